package transporthttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/platform/middleware"
	dErrors "github.com/tientaidev/veramo-agent/pkg/domain-errors"
	"github.com/tientaidev/veramo-agent/pkg/platform/httputil"
	"github.com/tientaidev/veramo-agent/pkg/sentinel"
)

type identityHandler struct {
	directory identity.Directory
	resolver  identity.Resolver
	logger    *slog.Logger
}

func newIdentityHandler(directory identity.Directory, resolver identity.Resolver, logger *slog.Logger) *identityHandler {
	return &identityHandler{directory: directory, resolver: resolver, logger: logger}
}

func (h *identityHandler) register(r chi.Router) {
	r.Route("/dids", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Get("/", h.handleList)
		r.Get("/create", h.handleCreate)
		r.Get("/delete", h.handleDelete)
		r.Get("/resolve", h.handleResolve)
		r.Post("/add-service", h.handleAddService)
	})
}

func (h *identityHandler) handleList(w http.ResponseWriter, r *http.Request) {
	identifiers, err := h.directory.FindDIDs(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list identifiers"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"identifiers": identifiers})
}

func (h *identityHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identifier, err := h.directory.CreateDID(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "create identifier"))
		return
	}
	h.logger.InfoContext(r.Context(), "identifier created", "did", identifier.DID)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"identifier": identifier})
}

func (h *identityHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	did := r.URL.Query().Get("did")
	if did == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "did query parameter is required"))
		return
	}
	result, err := h.directory.DeleteDID(r.Context(), did)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "delete identifier"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"result": result})
}

func (h *identityHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	did := r.URL.Query().Get("did")
	if did == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "did query parameter is required"))
		return
	}
	doc, err := h.resolver.Resolve(r.Context(), did)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "resolve identifier"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

type addServiceRequest struct {
	DID     string           `json:"did"`
	Service identity.Service `json:"service"`
}

func (h *identityHandler) handleAddService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[addServiceRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if req.DID == "" || req.Service.ServiceEndpoint == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "did and service endpoint are required"))
		return
	}
	if err := h.directory.AddService(ctx, req.DID, req.Service); err != nil {
		code := dErrors.CodeInternal
		if errors.Is(err, sentinel.ErrNotFound) {
			code = dErrors.CodeNotFound
		}
		httputil.WriteError(w, dErrors.Wrap(err, code, "add service"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
