// Package verifier checks credential and presentation proofs. Results are
// always data; malformed input yields valid=false with a diagnostic, never
// a transport error. Revocation is deliberately out of scope here.
package verifier

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tientaidev/veramo-agent/internal/audit"
	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/credential/proof"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
)

type Service struct {
	signer  *proof.Signer
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

func New(signer *proof.Signer, logger *slog.Logger, m *metrics.Metrics, trail audit.Publisher) *Service {
	return &Service{signer: signer, logger: logger, metrics: m, audit: trail}
}

// VerifyCredential checks the credential's embedded proof token.
func (s *Service) VerifyCredential(ctx context.Context, cred models.Credential) models.VerificationResult {
	res := s.observe(ctx, s.verifyCredential(ctx, cred))
	_ = s.audit.Emit(ctx, audit.NewEvent(audit.ActionCredentialVerified, cred.Issuer.ID, cred.Subject.ID(),
		map[string]any{"valid": res.Valid}))
	return res
}

func (s *Service) verifyCredential(ctx context.Context, cred models.Credential) models.VerificationResult {
	if !cred.Signed() {
		return invalid("credential carries no proof token")
	}
	if !models.ValidSubjectID(cred.Subject.ID()) {
		return invalid("credential subject id is not a DID or URI")
	}
	if err := s.signer.VerifyToken(ctx, cred.Proof.JWT); err != nil {
		return invalid(err.Error())
	}
	return models.VerificationResult{Valid: true}
}

// VerifyPresentation checks the presentation proof and every embedded
// credential. When the presentation carries a delegation pair, the mandate
// credential's issuer must be the original credential's subject.
func (s *Service) VerifyPresentation(ctx context.Context, vp models.Presentation) models.VerificationResult {
	return s.observe(ctx, s.verifyPresentation(ctx, vp))
}

func (s *Service) verifyPresentation(ctx context.Context, vp models.Presentation) models.VerificationResult {
	if vp.Proof == nil || vp.Proof.JWT == "" {
		return invalid("presentation carries no proof token")
	}
	if err := s.signer.VerifyToken(ctx, vp.Proof.JWT); err != nil {
		return invalid(fmt.Sprintf("presentation proof: %v", err))
	}
	if len(vp.VerifiableCredential) == 0 {
		return invalid("presentation contains no credentials")
	}

	// Embedded proofs are independent; check them concurrently.
	g, gctx := errgroup.WithContext(ctx)
	for i, cred := range vp.VerifiableCredential {
		g.Go(func() error {
			if res := s.verifyCredential(gctx, cred); !res.Valid {
				return fmt.Errorf("credential %d: %s", i, res.Error)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return invalid(err.Error())
	}

	if err := checkDelegationChain(vp.VerifiableCredential); err != nil {
		return invalid(err.Error())
	}
	return models.VerificationResult{Valid: true}
}

// checkDelegationChain walks consecutive credential pairs: each derived
// credential must be issued by the previous credential's subject.
func checkDelegationChain(creds []models.Credential) error {
	for i := 1; i < len(creds); i++ {
		previousSubject := creds[i-1].Subject.ID()
		issuer := creds[i].Issuer.ID
		if issuer == "" || issuer != previousSubject {
			return fmt.Errorf("delegation chain broken at credential %d: issuer %q is not the previous subject %q",
				i, issuer, previousSubject)
		}
	}
	return nil
}

func (s *Service) observe(ctx context.Context, res models.VerificationResult) models.VerificationResult {
	if s.metrics != nil {
		s.metrics.CredentialsVerified.WithLabelValues(fmt.Sprintf("%t", res.Valid)).Inc()
	}
	if !res.Valid {
		s.logger.DebugContext(ctx, "verification failed", "error", res.Error)
	}
	return res
}

func invalid(msg string) models.VerificationResult {
	return models.VerificationResult{Valid: false, Error: msg}
}
