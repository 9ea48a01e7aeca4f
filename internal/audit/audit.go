// Package audit records the agent's externally visible actions: issuance,
// verification, revocation submissions, transfers, and dispatches. The
// trail is fail-open; losing an audit event never fails the operation that
// produced it.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions recorded on the trail.
const (
	ActionCredentialIssued   = "credential.issued"
	ActionCredentialVerified = "credential.verified"
	ActionRevocationRequest  = "revocation.submitted"
	ActionTransferCompleted  = "transfer.completed"
	ActionMessageDispatched  = "message.dispatched"
)

// Event is one audit trail entry.
type Event struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// NewEvent stamps an event with id and time.
func NewEvent(action, actor, subject string, detail map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Action:     action,
		Actor:      actor,
		Subject:    subject,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher emits audit events. Emit must not block business operations on
// broker availability beyond its own internal timeout.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Emit(ctx context.Context, event Event) error { return nil }
func (NopPublisher) Close() error                                { return nil }
