package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuerUnmarshalNormalizesBothShapes(t *testing.T) {
	var fromString Credential
	require.NoError(t, json.Unmarshal([]byte(`{
		"@context": ["https://www.w3.org/2018/credentials/v1"],
		"type": ["VerifiableCredential"],
		"issuer": "did:ethr:0xabc",
		"credentialSubject": {"id": "did:example:alice"}
	}`), &fromString))
	assert.Equal(t, "did:ethr:0xabc", fromString.Issuer.ID)

	var fromObject Credential
	require.NoError(t, json.Unmarshal([]byte(`{
		"@context": ["https://www.w3.org/2018/credentials/v1"],
		"type": ["VerifiableCredential"],
		"issuer": {"id": "did:ethr:0xabc"},
		"credentialSubject": {"id": "did:example:alice"}
	}`), &fromObject))
	assert.Equal(t, "did:ethr:0xabc", fromObject.Issuer.ID)

	// Marshalling always produces the object shape.
	raw, err := json.Marshal(fromString)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"issuer":{"id":"did:ethr:0xabc"}`)
}

func TestSubjectClone(t *testing.T) {
	original := Subject{
		"id":   "did:example:alice",
		"name": "Alice",
		"degree": map[string]any{
			"type": "Bachelor",
		},
	}

	copied, err := original.Clone()
	require.NoError(t, err)
	assert.Equal(t, "did:example:alice", copied.ID())

	copied["id"] = "did:example:bob"
	copied["degree"].(map[string]any)["type"] = "Master"

	assert.Equal(t, "did:example:alice", original.ID())
	assert.Equal(t, "Bachelor", original["degree"].(map[string]any)["type"])
}

func TestCredentialHashIsStable(t *testing.T) {
	cred := Credential{
		Context: []string{ContextCredentialsV1},
		Type:    []string{TypeVerifiableCredential},
		Issuer:  Issuer{ID: "did:ethr:0xissuer"},
		Subject: Subject{"id": "did:example:alice"},
		Proof:   &Proof{Type: ProofTypeJWT, JWT: "a.b.c"},
	}

	h1, err := cred.Hash()
	require.NoError(t, err)
	h2, err := cred.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	other := cred
	other.Proof = &Proof{Type: ProofTypeJWT, JWT: "x.y.z"}
	h3, err := other.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestValidSubjectID(t *testing.T) {
	for id, want := range map[string]bool{
		"did:example:alice":   true,
		"did:ethr:0x1:0xabc":  true,
		"https://example.org": true,
		"urn:uuid:1234":       true,
		"":                    false,
		"alice":               false,
		"not a uri":           false,
		":missing-scheme":     false,
		"did:":                false,
		"bad scheme:rest":     false,
	} {
		assert.Equal(t, want, ValidSubjectID(id), "id %q", id)
	}
}
