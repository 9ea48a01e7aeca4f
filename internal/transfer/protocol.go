// Package transfer implements delegated-authority credential handoff: the
// original credential and a freshly minted mandate credential travel
// together in a signed presentation to the transfer target.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tientaidev/veramo-agent/internal/audit"
	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/credential/proof"
	"github.com/tientaidev/veramo-agent/internal/messaging"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
)

// DelegationWindow bounds a mandate credential's validity.
const DelegationWindow = 24 * time.Hour

// MessageType tags transfer payloads on the wire.
const MessageType = "jwt"

// Protocol runs the multi-step transfer. Every step is a distinct failure
// point; the first failure produces a failure result and nothing after it
// runs, so a partial transfer is never reported as success.
type Protocol struct {
	signer     *proof.Signer
	dispatcher *messaging.Dispatcher
	audit      audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

func New(
	signer *proof.Signer,
	dispatcher *messaging.Dispatcher,
	auditor audit.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Protocol {
	return &Protocol{
		signer:     signer,
		dispatcher: dispatcher,
		audit:      auditor,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer("transfer"),
		now:        time.Now,
	}
}

// Transfer delegates the credential from fromDID to toDID. The result is
// always data; every downstream failure is converted to {success:false}.
func (p *Protocol) Transfer(ctx context.Context, original models.Credential, fromDID, toDID string) models.GenericResult {
	ctx, span := p.tracer.Start(ctx, "transfer.Transfer", trace.WithAttributes(
		attribute.String("transfer.from", fromDID),
		attribute.String("transfer.to", toDID),
	))
	defer span.End()

	result := p.run(ctx, original, fromDID, toDID)

	outcome := "ok"
	if !result.Success {
		outcome = "error"
		span.SetStatus(codes.Error, result.Error)
	}
	if p.metrics != nil {
		p.metrics.TransfersCompleted.WithLabelValues(outcome).Inc()
	}
	if result.Success {
		_ = p.audit.Emit(ctx, audit.NewEvent(audit.ActionTransferCompleted, fromDID, toDID, nil))
	}
	return result
}

func (p *Protocol) run(ctx context.Context, original models.Credential, fromDID, toDID string) models.GenericResult {
	if toDID == "" {
		return failure(fmt.Errorf("transfer target DID is required"))
	}
	subjectDID := original.Subject.ID()
	if subjectDID == "" {
		return failure(fmt.Errorf("original credential has no subject id"))
	}
	if !original.Signed() {
		return failure(fmt.Errorf("original credential carries no proof token"))
	}

	mandate, err := p.mandate(ctx, original, toDID)
	if err != nil {
		return failure(err)
	}

	vp := models.Presentation{
		Context:              original.Context,
		Type:                 []string{models.TypeVerifiablePresentation},
		Holder:               subjectDID,
		Verifier:             []string{toDID},
		VerifiableCredential: []models.Credential{original, mandate},
		IssuanceDate:         models.FormatTime(p.now()),
	}
	vpToken, err := p.signer.SignPresentation(ctx, vp)
	if err != nil {
		return failure(fmt.Errorf("sign presentation: %w", err))
	}

	packed, err := p.dispatcher.Pack(ctx, messaging.Message{
		Type: MessageType,
		From: fromDID,
		To:   toDID,
		Body: vpToken,
	})
	if err != nil {
		return failure(fmt.Errorf("pack transfer message: %w", err))
	}
	if err := p.dispatcher.Send(ctx, packed, toDID); err != nil {
		return failure(err)
	}

	p.logger.InfoContext(ctx, "credential transferred", "from", fromDID, "to", toDID)
	return models.GenericResult{Success: true}
}

// mandate derives and signs the delegation credential: the original
// subject becomes the issuer, the target becomes the subject, and validity
// is capped at the delegation window.
func (p *Protocol) mandate(ctx context.Context, original models.Credential, toDID string) (models.Credential, error) {
	subject, err := original.Subject.Clone()
	if err != nil {
		return models.Credential{}, fmt.Errorf("copy credential subject: %w", err)
	}
	subject["id"] = toDID

	now := p.now()
	mandate := models.Credential{
		Context:        original.Context,
		Type:           original.Type,
		Issuer:         models.Issuer{ID: original.Subject.ID()},
		IssuanceDate:   models.FormatTime(now),
		ExpirationDate: models.FormatTime(now.Add(DelegationWindow)),
		Subject:        subject,
	}
	token, err := p.signer.SignCredential(ctx, mandate)
	if err != nil {
		return models.Credential{}, fmt.Errorf("sign mandate credential: %w", err)
	}
	mandate.Proof = &models.Proof{Type: models.ProofTypeJWT, JWT: token}
	return mandate, nil
}

func failure(err error) models.GenericResult {
	return models.GenericResult{Success: false, Error: err.Error()}
}
