package transporthttp

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tientaidev/veramo-agent/internal/messaging"
	dErrors "github.com/tientaidev/veramo-agent/pkg/domain-errors"
	"github.com/tientaidev/veramo-agent/pkg/platform/httputil"
)

// maxEnvelopeBytes caps inbound raw messages.
const maxEnvelopeBytes = 1 << 20

type messagingHandler struct {
	dispatcher *messaging.Dispatcher
	logger     *slog.Logger
}

func newMessagingHandler(dispatcher *messaging.Dispatcher, logger *slog.Logger) *messagingHandler {
	return &messagingHandler{dispatcher: dispatcher, logger: logger}
}

func (h *messagingHandler) register(r chi.Router) {
	r.Post("/messaging", h.handleInbound)
}

// handleInbound is the raw agent-to-agent entry point: the body is a
// packed envelope, not JSON.
func (h *messagingHandler) handleInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "read message body"))
		return
	}

	msg, err := h.dispatcher.Handle(ctx, string(raw))
	if err != nil {
		h.logger.WarnContext(ctx, "inbound message rejected", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "handle message"))
		return
	}

	h.logger.InfoContext(ctx, "inbound message accepted",
		"id", msg.ID, "type", msg.Type, "from", msg.From)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": msg.ID, "success": true})
}
