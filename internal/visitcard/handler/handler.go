package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"visitledger/internal/visitcard/models"
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
	"visitledger/pkg/platform/httputil"
	"visitledger/pkg/requestcontext"
)

// Service defines the registry operations the handler exposes.
type Service interface {
	Issue(ctx context.Context, caller id.Address, req models.IssueRequest) (models.CredentialID, error)
	Credential(ctx context.Context, credentialID models.CredentialID) (*models.Credential, error)
	CredentialOf(ctx context.Context, identity id.Address) (*models.Credential, error)
	Approve(ctx context.Context, caller, operator id.Address, credentialID models.CredentialID) error
	TransferFrom(ctx context.Context, caller, from, to id.Address, credentialID models.CredentialID) error
	SafeTransferFrom(ctx context.Context, caller, from, to id.Address, credentialID models.CredentialID, data []byte) error
	Transferable() bool
}

// Handler wires visit card endpoints to the registry.
type Handler struct {
	service Service
	gateway string
	logger  *slog.Logger
}

// New constructs a visit card handler. gateway is the base used to render
// gateway URLs for ipfs metadata.
func New(service Service, gateway string, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		gateway: gateway,
		logger:  logger,
	}
}

// Register mounts the public read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/visit-cards/{id}", h.HandleGet)
	r.Get("/holders/{address}/visit-card", h.HandleGetByHolder)
}

// RegisterAuthenticated mounts endpoints that need a caller.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/visit-cards", h.HandleIssue)
	r.Post("/visit-cards/{id}/approve", h.HandleApprove)
	r.Post("/visit-cards/{id}/transfer", h.HandleTransfer)
}

// HandleIssue handles POST /visit-cards.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	credentialID, err := h.service.Issue(ctx, caller, req.ToModel())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "visit card issued via api",
		"request_id", requestID,
		"credential_id", credentialID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, IssueResponse{ID: credentialID.String()})
}

// HandleGet handles GET /visit-cards/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	credentialID, ok := models.ParseCredentialID(chi.URLParam(r, "id"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnknownCredential, "unknown visit card"))
		return
	}
	credential, err := h.service.Credential(r.Context(), credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(credential, h.gateway, h.service.Transferable()))
}

// HandleGetByHolder handles GET /holders/{address}/visit-card. A holder
// without a card gets balance 0 and no credential.
func (h *Handler) HandleGetByHolder(w http.ResponseWriter, r *http.Request) {
	holder, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "address: "+err.Error()))
		return
	}
	resp := HolderResponse{Holder: holder.Hex()}
	credential, err := h.service.CredentialOf(r.Context(), holder)
	switch {
	case err == nil:
		cr := toCredentialResponse(credential, h.gateway, h.service.Transferable())
		resp.Balance = 1
		resp.Credential = &cr
	case dErrors.Is(err, dErrors.CodeUnknownCredential):
	default:
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleApprove handles POST /visit-cards/{id}/approve. It always fails.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	credentialID, _ := models.ParseCredentialID(chi.URLParam(r, "id"))
	operator, _ := id.ParseAddress(req.Operator)

	writeRefusal(w, h.service.Approve(ctx, caller, operator, credentialID))
}

// HandleTransfer handles POST /visit-cards/{id}/transfer. It always fails.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	credentialID, _ := models.ParseCredentialID(chi.URLParam(r, "id"))
	from, _ := id.ParseAddress(req.From)
	to, _ := id.ParseAddress(req.To)

	var err error
	if req.Safe {
		err = h.service.SafeTransferFrom(ctx, caller, from, to, credentialID, req.Data)
	} else {
		err = h.service.TransferFrom(ctx, caller, from, to, credentialID)
	}
	writeRefusal(w, err)
}

func writeRefusal(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteError(w, err)
}
