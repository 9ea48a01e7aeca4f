package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/pkg/platform/tx"
	"github.com/tientaidev/veramo-agent/pkg/sentinel"
)

// PostgresStore persists credentials in PostgreSQL via the pgx stdlib
// driver. The schema mirrors the original agent's credential table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS credential (
	hash            TEXT PRIMARY KEY,
	raw             TEXT NOT NULL,
	id              TEXT NOT NULL DEFAULT '',
	issuance_date   TEXT NOT NULL DEFAULT '',
	expiration_date TEXT NOT NULL DEFAULT '',
	context         TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL DEFAULT '',
	issuer_did      TEXT NOT NULL DEFAULT '',
	subject_did     TEXT NOT NULL DEFAULT ''
)`

// EnsureSchema creates the credential table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure credential schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, cred models.Credential) (string, error) {
	record, err := newRecord(cred)
	if err != nil {
		return "", err
	}
	_, err = tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO credential (hash, raw, id, issuance_date, expiration_date, context, type, issuer_did, subject_did)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hash) DO NOTHING`,
		record.Hash, record.Raw, record.ID, record.IssuanceDate, record.ExpirationDate,
		record.Context, record.Type, record.IssuerDID, record.SubjectDID,
	)
	if err != nil {
		return "", fmt.Errorf("save credential: %w", err)
	}
	return record.Hash, nil
}

func (s *PostgresStore) GetByHash(ctx context.Context, hash string) (models.Credential, error) {
	var raw string
	err := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, `SELECT raw FROM credential WHERE hash = $1`, hash).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Credential{}, fmt.Errorf("credential %q: %w", hash, sentinel.ErrNotFound)
		}
		return models.Credential{}, fmt.Errorf("get credential by hash: %w", err)
	}
	var cred models.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return models.Credential{}, fmt.Errorf("decode stored credential: %w", err)
	}
	return cred, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]models.CredentialRecord, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx, `
		SELECT hash, raw, id, issuance_date, expiration_date, context, type, issuer_did, subject_did
		FROM credential ORDER BY hash`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.CredentialRecord
	for rows.Next() {
		var r models.CredentialRecord
		if err := rows.Scan(&r.Hash, &r.Raw, &r.ID, &r.IssuanceDate, &r.ExpirationDate,
			&r.Context, &r.Type, &r.IssuerDID, &r.SubjectDID); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	res, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `DELETE FROM credential WHERE hash = $1`, hash)
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	return affected > 0, nil
}
