package proof

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/identity"
)

func newTestSigner(t *testing.T) (*Signer, identity.Identity) {
	t.Helper()
	dir := identity.NewMemoryDirectory()
	issuer, err := dir.CreateDID(context.Background())
	require.NoError(t, err)
	return NewSigner(dir, identity.NewDirectoryResolver(dir, 1)), issuer
}

func testCredential(issuerDID string) models.Credential {
	return models.Credential{
		Context:      []string{models.ContextCredentialsV1},
		ID:           "cred-1",
		Type:         []string{models.TypeVerifiableCredential, "Profile"},
		Issuer:       models.Issuer{ID: issuerDID},
		IssuanceDate: models.FormatTime(time.Now()),
		Subject: models.Subject{
			"id":   "did:example:alice",
			"name": "Alice",
		},
	}
}

func TestSignAndVerifyCredential(t *testing.T) {
	ctx := context.Background()
	signer, issuer := newTestSigner(t)

	token, err := signer.SignCredential(ctx, testCredential(issuer.DID))
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	require.NoError(t, signer.VerifyToken(ctx, token))
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	ctx := context.Background()
	signer, issuer := newTestSigner(t)

	token, err := signer.SignCredential(ctx, testCredential(issuer.DID))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	// Flip the payload; the signature must no longer match.
	tampered := parts[0] + "." + parts[1][:len(parts[1])-2] + "xx" + "." + parts[2]
	assert.Error(t, signer.VerifyToken(ctx, tampered))
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	signer, _ := newTestSigner(t)

	for _, raw := range []string{"", "not-a-jwt", "a.b", "%%%.###.@@@"} {
		assert.Error(t, signer.VerifyToken(ctx, raw), raw)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	signer, issuer := newTestSigner(t)

	cred := testCredential(issuer.DID)
	cred.IssuanceDate = models.FormatTime(time.Now().Add(-2 * time.Hour))
	cred.ExpirationDate = models.FormatTime(time.Now().Add(-time.Hour))

	token, err := signer.SignCredential(ctx, cred)
	require.NoError(t, err)

	err = signer.VerifyToken(ctx, token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSignCredentialUnknownIssuer(t *testing.T) {
	ctx := context.Background()
	signer, _ := newTestSigner(t)

	cred := testCredential("did:ethr:0xdeadbeef")
	_, err := signer.SignCredential(ctx, cred)
	assert.Error(t, err)
}

func TestSignPresentation(t *testing.T) {
	ctx := context.Background()
	signer, holder := newTestSigner(t)

	vp := models.Presentation{
		Context:      []string{models.ContextCredentialsV1},
		Type:         []string{models.TypeVerifiablePresentation},
		Holder:       holder.DID,
		Verifier:     []string{"did:example:verifier"},
		IssuanceDate: models.FormatTime(time.Now()),
	}

	token, err := signer.SignPresentation(ctx, vp)
	require.NoError(t, err)
	require.NoError(t, signer.VerifyToken(ctx, token))

	vp.Holder = ""
	_, err = signer.SignPresentation(ctx, vp)
	assert.Error(t, err)
}
