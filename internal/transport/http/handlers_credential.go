package transporthttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tientaidev/veramo-agent/internal/credential/issuer"
	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/credential/store"
	"github.com/tientaidev/veramo-agent/internal/credential/verifier"
	"github.com/tientaidev/veramo-agent/internal/platform/middleware"
	"github.com/tientaidev/veramo-agent/internal/revocation"
	"github.com/tientaidev/veramo-agent/internal/transfer"
	dErrors "github.com/tientaidev/veramo-agent/pkg/domain-errors"
	"github.com/tientaidev/veramo-agent/pkg/platform/httputil"
	"github.com/tientaidev/veramo-agent/pkg/sentinel"
)

type credentialHandler struct {
	issuer     *issuer.Service
	verifier   *verifier.Service
	transfer   *transfer.Protocol
	revocation *revocation.Engine
	store      store.Store
	logger     *slog.Logger
}

func newCredentialHandler(d Deps) *credentialHandler {
	return &credentialHandler{
		issuer:     d.Issuer,
		verifier:   d.Verifier,
		transfer:   d.Transfer,
		revocation: d.Revocation,
		store:      d.Store,
		logger:     d.Logger,
	}
}

func (h *credentialHandler) register(r chi.Router) {
	r.Route("/credentials", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Get("/", h.handleList)
		r.Post("/issue", h.handleIssue)
		r.Post("/verify", h.handleVerify)
		r.Post("/verify-presentation", h.handleVerifyPresentation)
		r.Post("/transfer", h.handleTransfer)
		r.Delete("/delete", h.handleDelete)
		r.Post("/revoke", h.handleRevoke)
		r.Post("/is-revoked", h.handleIsRevoked)
	})
}

func (h *credentialHandler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListAll(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list credentials"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// handleIssue answers 201 with the signed credential, or 500 with a tagged
// failure body when issuance itself fails. Secondary failures ride along in
// the result's warning field.
func (h *credentialHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.IssueRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	if r.URL.Query().Get("toRemote") == "true" {
		req.Options.ToWallet = true
	}

	result, err := h.issuer.Issue(ctx, req)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeValidation) || dErrors.Is(err, dErrors.CodeBadRequest) {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError,
			models.GenericResult{Success: false, Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

type verifyRequest struct {
	VerifiableCredential models.Credential `json:"verifiableCredential"`
}

func (h *credentialHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[verifyRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.verifier.VerifyCredential(ctx, req.VerifiableCredential))
}

type verifyPresentationRequest struct {
	VerifiablePresentation models.Presentation `json:"verifiablePresentation"`
}

func (h *credentialHandler) handleVerifyPresentation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[verifyPresentationRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.verifier.VerifyPresentation(ctx, req.VerifiablePresentation))
}

func (h *credentialHandler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.TransferRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	result := h.transfer.Transfer(ctx, req.Body.Credential, req.From, req.To)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	httputil.WriteJSON(w, status, result)
}

func (h *credentialHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("hash")
	if hash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "hash query parameter is required"))
		return
	}
	deleted, err := h.store.DeleteByHash(r.Context(), hash)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "delete credential"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deleted)
}

func (h *credentialHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RevocationRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.revocation.Revoke(ctx, req))
}

type isRevokedRequest struct {
	CredentialID string `json:"credentialId"`
}

func (h *credentialHandler) handleIsRevoked(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[isRevokedRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}

	result, err := h.revocation.CheckStatus(ctx, req.CredentialID)
	if err != nil {
		code := dErrors.CodeInternal
		if errors.Is(err, sentinel.ErrNotFound) {
			code = dErrors.CodeNotFound
		}
		httputil.WriteError(w, dErrors.Wrap(err, code, "check revocation status"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
