// Package messaging packs payloads into authenticated envelopes and routes
// them to DID-addressed recipients. It knows nothing about credential
// semantics; bodies are opaque.
package messaging

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tientaidev/veramo-agent/internal/credential/proof"
	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
)

// ContentType tags signed envelopes on the wire.
const ContentType = "application/didcomm-signed+json"

// messagingServiceTypes are the DID document service types the dispatcher
// will deliver to, in preference order.
var messagingServiceTypes = []string{"DIDCommMessaging", "Messaging", "MessagingService"}

// Message is the authenticated envelope payload.
type Message struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	From        string `json:"from"`
	To          string `json:"to"`
	Body        any    `json:"body"`
	CreatedTime string `json:"created_time,omitempty"`
}

// Dispatcher signs outbound envelopes with the sender's directory key and
// delivers them to the recipient's resolved messaging endpoint.
type Dispatcher struct {
	directory identity.Directory
	resolver  identity.Resolver
	client    *http.Client
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(directory identity.Directory, resolver identity.Resolver, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		directory: directory,
		resolver:  resolver,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
		metrics:   m,
	}
}

// Pack wraps the message in a signature-only ("jws") envelope: a compact
// ES256K JWS over the message JSON, signed with the sender's controller key.
func (d *Dispatcher) Pack(ctx context.Context, msg Message) (string, error) {
	if msg.From == "" {
		return "", fmt.Errorf("message sender is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedTime == "" {
		msg.CreatedTime = time.Now().UTC().Format(time.RFC3339)
	}

	sender, err := d.directory.GetDID(ctx, msg.From)
	if err != nil {
		return "", fmt.Errorf("sender identity: %w", err)
	}
	key, err := d.directory.GetKey(ctx, sender.ControllerKeyID)
	if err != nil {
		return "", fmt.Errorf("sender key: %w", err)
	}

	claims := jwt.MapClaims{
		"id":           msg.ID,
		"type":         msg.Type,
		"from":         msg.From,
		"to":           msg.To,
		"body":         msg.Body,
		"created_time": msg.CreatedTime,
	}
	token := jwt.NewWithClaims(proof.ES256K, claims)
	token.Header["typ"] = ContentType
	token.Header["kid"] = sender.ControllerKeyID

	packed, err := token.SignedString(key.PrivateKeyHex)
	if err != nil {
		return "", fmt.Errorf("pack message: %w", err)
	}
	return packed, nil
}

// Send resolves the recipient's messaging endpoint and delivers the packed
// envelope. Failures are returned to the caller; no retries happen here.
func (d *Dispatcher) Send(ctx context.Context, packed, recipientDID string) error {
	err := d.send(ctx, packed, recipientDID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if d.metrics != nil {
		d.metrics.MessagesDispatched.WithLabelValues(outcome).Inc()
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, packed, recipientDID string) error {
	doc, err := d.resolver.Resolve(ctx, recipientDID)
	if err != nil {
		return fmt.Errorf("resolve recipient %q: %w", recipientDID, err)
	}
	endpoint, err := messagingEndpoint(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(packed))
	if err != nil {
		return fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch to %q: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dispatch to %q: endpoint returned %s", endpoint, resp.Status)
	}

	d.logger.InfoContext(ctx, "message dispatched", "recipient", recipientDID, "endpoint", endpoint)
	return nil
}

// Handle is the raw inbound entry point: it authenticates a packed
// envelope against the sender's resolved key and returns the message.
func (d *Dispatcher) Handle(ctx context.Context, raw string) (Message, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Message{}, fmt.Errorf("raw message is not a compact JWS")
	}

	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Message{}, fmt.Errorf("decode envelope header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return Message{}, fmt.Errorf("parse envelope header: %w", err)
	}
	if header.Alg != proof.ES256K.Alg() {
		return Message{}, fmt.Errorf("unsupported envelope algorithm %q", header.Alg)
	}

	senderDID := strings.SplitN(header.Kid, "#", 2)[0]
	doc, err := d.resolver.Resolve(ctx, senderDID)
	if err != nil {
		return Message{}, fmt.Errorf("resolve envelope sender: %w", err)
	}
	pubKey, err := senderKey(doc, header.Kid)
	if err != nil {
		return Message{}, err
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Message{}, fmt.Errorf("decode envelope signature: %w", err)
	}
	if err := proof.ES256K.Verify(parts[0]+"."+parts[1], signature, pubKey); err != nil {
		return Message{}, fmt.Errorf("envelope signature: %w", err)
	}

	payloadRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Message{}, fmt.Errorf("decode envelope payload: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(payloadRaw, &msg); err != nil {
		return Message{}, fmt.Errorf("parse envelope payload: %w", err)
	}
	return msg, nil
}

func messagingEndpoint(doc identity.DIDDocument) (string, error) {
	for _, wanted := range messagingServiceTypes {
		for _, svc := range doc.Service {
			if svc.Type == wanted && svc.ServiceEndpoint != "" {
				return svc.ServiceEndpoint, nil
			}
		}
	}
	return "", fmt.Errorf("DID %q exposes no messaging service endpoint", doc.ID)
}

func senderKey(doc identity.DIDDocument, kid string) (any, error) {
	for _, vm := range doc.VerificationMethod {
		if vm.ID == kid && vm.PublicKeyHex != "" {
			return proof.ParsePublicKeyHex(vm.PublicKeyHex)
		}
	}
	for _, vm := range doc.VerificationMethod {
		if vm.PublicKeyHex != "" {
			return proof.ParsePublicKeyHex(vm.PublicKeyHex)
		}
	}
	return nil, fmt.Errorf("DID document for %q carries no usable verification key", doc.ID)
}
