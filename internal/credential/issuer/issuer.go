// Package issuer signs credential templates into verifiable credentials.
package issuer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/tientaidev/veramo-agent/internal/audit"
	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/credential/proof"
	"github.com/tientaidev/veramo-agent/internal/credential/store"
	"github.com/tientaidev/veramo-agent/internal/messaging"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
	dErrors "github.com/tientaidev/veramo-agent/pkg/domain-errors"
)

// WalletMessageType tags credential-delivery messages to subject wallets.
const WalletMessageType = "jwt"

// Service turns credential templates into signed credentials, optionally
// persisting them and delivering them to the subject's wallet.
type Service struct {
	signer     *proof.Signer
	store      store.Store
	dispatcher *messaging.Dispatcher
	audit      audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(
	signer *proof.Signer,
	credStore store.Store,
	dispatcher *messaging.Dispatcher,
	auditor audit.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		signer:     signer,
		store:      credStore,
		dispatcher: dispatcher,
		audit:      auditor,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Issue signs the template and returns the credential. Persistence and
// wallet delivery are secondary effects: their failures land in Warning
// and never void the signed credential.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (models.IssueResult, error) {
	cred := req.Credential
	if err := s.normalize(&cred); err != nil {
		return models.IssueResult{}, err
	}

	token, err := s.signer.SignCredential(ctx, cred)
	if err != nil {
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign credential")
	}
	cred.Proof = &models.Proof{Type: models.ProofTypeJWT, JWT: token}

	result := models.IssueResult{Credential: cred}

	if req.Options.Save {
		if _, err := s.store.Save(ctx, cred); err != nil {
			result.Warning = fmt.Sprintf("credential not persisted: %v", err)
			s.logger.WarnContext(ctx, "issued credential not persisted",
				"issuer", cred.Issuer.ID, "error", err)
		}
	}

	if req.Options.ToWallet {
		result.Sent, err = s.deliver(ctx, cred)
		if err != nil {
			result.Warning = appendWarning(result.Warning, fmt.Sprintf("wallet delivery failed: %v", err))
			s.logger.WarnContext(ctx, "wallet delivery failed",
				"subject", cred.Subject.ID(), "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
	}
	hash, _ := cred.Hash()
	_ = s.audit.Emit(ctx, audit.NewEvent(audit.ActionCredentialIssued, cred.Issuer.ID, cred.Subject.ID(),
		map[string]any{"hash": hash, "saved": req.Options.Save, "sent": result.Sent}))

	return result, nil
}

// normalize applies the defaults the signing layer expects: base context,
// base type, an issuance date, and an object-shaped issuer.
func (s *Service) normalize(cred *models.Credential) error {
	if cred.Issuer.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "credential issuer is required")
	}
	if cred.Subject == nil {
		return dErrors.New(dErrors.CodeValidation, "credentialSubject is required")
	}
	if !models.ValidSubjectID(cred.Subject.ID()) {
		return dErrors.New(dErrors.CodeValidation, "credentialSubject.id must be a DID or URI")
	}
	if !slices.Contains(cred.Context, models.ContextCredentialsV1) {
		cred.Context = append([]string{models.ContextCredentialsV1}, cred.Context...)
	}
	if !slices.Contains(cred.Type, models.TypeVerifiableCredential) {
		cred.Type = append([]string{models.TypeVerifiableCredential}, cred.Type...)
	}
	if cred.IssuanceDate == "" {
		cred.IssuanceDate = models.FormatTime(s.now())
	}
	return nil
}

// deliver packs the credential's proof token and sends it to the subject's
// wallet, mirroring agent-to-agent credential handoff.
func (s *Service) deliver(ctx context.Context, cred models.Credential) (bool, error) {
	subjectDID := cred.Subject.ID()
	if subjectDID == "" {
		return false, fmt.Errorf("credential subject has no id to deliver to")
	}
	packed, err := s.dispatcher.Pack(ctx, messaging.Message{
		Type: WalletMessageType,
		From: cred.Issuer.ID,
		To:   subjectDID,
		Body: cred.Proof.JWT,
	})
	if err != nil {
		return false, err
	}
	if err := s.dispatcher.Send(ctx, packed, subjectDID); err != nil {
		return false, err
	}
	return true, nil
}

func appendWarning(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}
