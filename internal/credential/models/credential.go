// Package models holds the W3C credential shapes exchanged across the
// agent: credentials, presentations, proofs, and the request/result records
// of the public operations. Credentials are immutable once a proof has been
// assigned; nothing in this package mutates a signed credential.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// TypeVerifiableCredential must be present in every credential's type set.
	TypeVerifiableCredential = "VerifiableCredential"
	// TypeVerifiablePresentation must be present in every presentation's type set.
	TypeVerifiablePresentation = "VerifiablePresentation"
	// ContextCredentialsV1 is the base schema context.
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"
	// ProofTypeJWT tags compact JWT proofs.
	ProofTypeJWT = "JwtProof2020"
)

// Issuer is the credential issuer reference. On the wire it may appear as a
// bare DID string or as an {id} object; it always marshals as the object.
type Issuer struct {
	ID string `json:"id"`
}

func (i *Issuer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i.ID = s
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("issuer must be a DID string or an {id} object: %w", err)
	}
	i.ID = obj.ID
	return nil
}

// Proof carries the credential or presentation signature. Assigned exactly
// once at issuance.
type Proof struct {
	Type string `json:"type,omitempty"`
	JWT  string `json:"jwt"`
}

// CredentialStatus points at the registry entry governing revocation.
type CredentialStatus struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
}

// Subject maps claim keys to values. The "id" claim names the subject DID.
type Subject map[string]any

// ID returns the subject DID, or "" when missing.
func (s Subject) ID() string {
	id, _ := s["id"].(string)
	return id
}

// ValidSubjectID reports whether id is shaped like a DID or absolute URI:
// a non-empty scheme, a colon, and a non-empty remainder.
func ValidSubjectID(id string) bool {
	scheme, rest, ok := strings.Cut(id, ":")
	if !ok || scheme == "" || rest == "" {
		return false
	}
	for _, r := range scheme {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '+' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

// Clone deep-copies the subject through a JSON roundtrip so derived
// credentials never alias the original's claims.
func (s Subject) Clone() (Subject, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal subject: %w", err)
	}
	var out Subject
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal subject copy: %w", err)
	}
	return out, nil
}

// Credential is a W3C verifiable credential.
type Credential struct {
	Context        []string          `json:"@context"`
	ID             string            `json:"id,omitempty"`
	Type           []string          `json:"type"`
	Issuer         Issuer            `json:"issuer"`
	IssuanceDate   string            `json:"issuanceDate,omitempty"`
	ExpirationDate string            `json:"expirationDate,omitempty"`
	Subject        Subject           `json:"credentialSubject"`
	Status         *CredentialStatus `json:"credentialStatus,omitempty"`
	Proof          *Proof            `json:"proof,omitempty"`
}

// Signed reports whether a proof has been assigned.
func (c Credential) Signed() bool {
	return c.Proof != nil && c.Proof.JWT != ""
}

// Hash computes the content address of a credential: lowercase hex SHA-256
// over its canonical JSON encoding.
func (c Credential) Hash() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal credential: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Presentation is a W3C verifiable presentation: one or more credentials
// presented by a holder to named verifiers. Transient; never persisted.
type Presentation struct {
	Context              []string     `json:"@context"`
	Type                 []string     `json:"type"`
	Holder               string       `json:"holder"`
	Verifier             []string     `json:"verifier,omitempty"`
	VerifiableCredential []Credential `json:"verifiableCredential"`
	IssuanceDate         string       `json:"issuanceDate,omitempty"`
	Proof                *Proof       `json:"proof,omitempty"`
}

// FormatTime renders timestamps the way credential dates are exchanged.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses a credential date.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
