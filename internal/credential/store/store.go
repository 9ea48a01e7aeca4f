// Package store persists issued credentials, addressed by content hash.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tientaidev/veramo-agent/internal/credential/models"
)

// Store is the narrow credential persistence seam. Implementations must be
// safe for concurrent use; credentials are immutable so Save of the same
// content is idempotent.
type Store interface {
	Save(ctx context.Context, cred models.Credential) (hash string, err error)
	GetByHash(ctx context.Context, hash string) (models.Credential, error)
	ListAll(ctx context.Context) ([]models.CredentialRecord, error)
	DeleteByHash(ctx context.Context, hash string) (bool, error)
}

// newRecord flattens a credential into its listing row.
func newRecord(cred models.Credential) (models.CredentialRecord, error) {
	hash, err := cred.Hash()
	if err != nil {
		return models.CredentialRecord{}, err
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return models.CredentialRecord{}, fmt.Errorf("marshal credential: %w", err)
	}
	return models.CredentialRecord{
		Hash:           hash,
		Raw:            string(raw),
		ID:             cred.ID,
		IssuanceDate:   cred.IssuanceDate,
		ExpirationDate: cred.ExpirationDate,
		Context:        strings.Join(cred.Context, ","),
		Type:           strings.Join(cred.Type, ","),
		IssuerDID:      cred.Issuer.ID,
		SubjectDID:     cred.Subject.ID(),
	}, nil
}
