// Package revocation drives credential revocation against the chain status
// registry. The engine writes PENDING on accepted submissions and leaves
// NOT_REVOKED behind on every failure; the terminal REVOKED state is only
// ever observed by querying the registry.
package revocation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tientaidev/veramo-agent/internal/audit"
	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/credential/store"
	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
	"github.com/tientaidev/veramo-agent/internal/registry"
)

const (
	// RegistryType is the only credentialStatus type eligible for
	// on-chain revocation.
	RegistryType = "EthrStatusRegistry2019"

	// RejectMessage accompanies every policy-gate rejection.
	RejectMessage = "Unsupported type or status."

	eligibleStatusCode = "1"
)

// Engine coordinates the revocation flow: policy gate, credential fetch,
// DID resolution, legacy reshaping, and chain submission.
type Engine struct {
	credentials store.Store
	records     RecordStore
	resolver    identity.Resolver
	directory   identity.Directory
	chain       registry.Client
	gasLimit    uint64
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       audit.Publisher
	now         func() time.Time
}

func NewEngine(
	credentials store.Store,
	records RecordStore,
	resolver identity.Resolver,
	directory identity.Directory,
	chain registry.Client,
	gasLimit uint64,
	logger *slog.Logger,
	m *metrics.Metrics,
	trail audit.Publisher,
) *Engine {
	return &Engine{
		credentials: credentials,
		records:     records,
		resolver:    resolver,
		directory:   directory,
		chain:       chain,
		gasLimit:    gasLimit,
		logger:      logger,
		metrics:     m,
		audit:       trail,
		now:         time.Now,
	}
}

// Revoke runs the revocation state machine for one request. The outcome is
// always data: every failure downstream of the policy gate lands in the
// result as NOT_REVOKED with the error text preserved.
func (e *Engine) Revoke(ctx context.Context, req models.RevocationRequest) models.RevocationResult {
	if !eligible(req.CredentialStatus) {
		// Gate rejections never touch the chain and leave no record.
		return models.RevocationResult{Status: models.StatusNotRevoked, Message: RejectMessage}
	}

	result := e.submit(ctx, req.CredentialID)

	now := e.now().UTC()
	rec := Record{
		CredentialHash: req.CredentialID,
		Status:         result.Status,
		Message:        result.Message,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}
	if err := e.records.SaveRecord(ctx, rec); err != nil {
		e.logger.WarnContext(ctx, "revocation record not persisted",
			"credential_hash", req.CredentialID, "error", err)
	}

	if e.metrics != nil {
		e.metrics.RevocationsSubmitted.WithLabelValues(string(result.Status)).Inc()
	}
	_ = e.audit.Emit(ctx, audit.NewEvent(audit.ActionRevocationRequest, "", req.CredentialID,
		map[string]any{"status": string(result.Status), "message": result.Message}))
	return result
}

func (e *Engine) submit(ctx context.Context, credentialHash string) models.RevocationResult {
	cred, err := e.credentials.GetByHash(ctx, credentialHash)
	if err != nil {
		return failed(fmt.Errorf("load credential %q: %w", credentialHash, err))
	}
	if !cred.Signed() {
		return failed(fmt.Errorf("credential %q carries no proof token", credentialHash))
	}

	subjectDID := cred.Subject.ID()
	if subjectDID == "" {
		return failed(fmt.Errorf("credential %q has no subject id", credentialHash))
	}

	doc, err := e.resolver.Resolve(ctx, subjectDID)
	if err != nil {
		return failed(fmt.Errorf("resolve subject %q: %w", subjectDID, err))
	}
	if _, err := LegacyKeyDescriptor(doc); err != nil {
		return failed(err)
	}

	ident, err := e.directory.GetDID(ctx, subjectDID)
	if err != nil {
		return failed(fmt.Errorf("subject identity: %w", err))
	}
	key, err := e.directory.GetKey(ctx, ident.ControllerKeyID)
	if err != nil {
		return failed(fmt.Errorf("subject signing key: %w", err))
	}

	txHash, err := e.chain.Revoke(ctx, cred.Proof.JWT, key.PrivateKeyHex, registry.TxOptions{GasLimit: e.gasLimit})
	if err != nil {
		return failed(fmt.Errorf("submit revocation: %w", err))
	}

	e.logger.InfoContext(ctx, "revocation submitted",
		"credential_hash", credentialHash, "tx_hash", txHash)
	return models.RevocationResult{Status: models.StatusPending, Message: txHash}
}

// CheckStatus asks the registry whether the credential behind the hash is
// revoked. Read-only and idempotent; results are cached briefly so bursts
// of checks do not hammer the chain node.
func (e *Engine) CheckStatus(ctx context.Context, credentialHash string) (models.StatusResult, error) {
	if revoked, err := e.records.GetCachedStatus(ctx, credentialHash); err == nil {
		return models.StatusResult{Revoked: revoked}, nil
	}

	cred, err := e.credentials.GetByHash(ctx, credentialHash)
	if err != nil {
		return models.StatusResult{}, fmt.Errorf("load credential %q: %w", credentialHash, err)
	}
	if !cred.Signed() {
		return models.StatusResult{}, fmt.Errorf("credential %q carries no proof token", credentialHash)
	}

	subjectDID := cred.Subject.ID()
	doc, err := e.resolver.Resolve(ctx, subjectDID)
	if err != nil {
		return models.StatusResult{}, fmt.Errorf("resolve subject %q: %w", subjectDID, err)
	}
	legacy, err := LegacyKeyDescriptor(doc)
	if err != nil {
		return models.StatusResult{}, err
	}

	revoked, err := e.chain.CheckStatus(ctx, cred.Proof.JWT, legacy)
	if err != nil {
		return models.StatusResult{}, fmt.Errorf("registry status check: %w", err)
	}

	if err := e.records.CacheStatus(ctx, credentialHash, revoked); err != nil {
		e.logger.WarnContext(ctx, "status cache write failed",
			"credential_hash", credentialHash, "error", err)
	}
	return models.StatusResult{Revoked: revoked}, nil
}

// Record returns the engine's last known submission state for the hash.
func (e *Engine) Record(ctx context.Context, credentialHash string) (Record, error) {
	return e.records.GetRecord(ctx, credentialHash)
}

func eligible(entries []models.StatusEntry) bool {
	if len(entries) == 0 {
		return false
	}
	return entries[0].Type == RegistryType && entries[0].Status == eligibleStatusCode
}

func failed(err error) models.RevocationResult {
	return models.RevocationResult{Status: models.StatusNotRevoked, Message: err.Error()}
}
