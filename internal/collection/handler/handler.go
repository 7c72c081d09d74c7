package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"visitledger/internal/collection/models"
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
	"visitledger/pkg/gateway"
	"visitledger/pkg/platform/httputil"
	"visitledger/pkg/requestcontext"
)

// Service defines the ledger operations the handler exposes.
type Service interface {
	Initialize(ctx context.Context, caller id.Address) error
	Distribute(ctx context.Context, caller, recipient id.Address, classes []models.ClassID, amounts []uint64, data []byte) error
	Transfer(ctx context.Context, caller, from, to id.Address, class models.ClassID, amount uint64, data []byte) error
	BatchTransfer(ctx context.Context, caller, from, to id.Address, classes []models.ClassID, amounts []uint64, data []byte) error
	SetApprovalForAll(ctx context.Context, caller, operator id.Address, approved bool) error
	IsInitialized(ctx context.Context) (bool, error)
	Holdings(ctx context.Context, holder id.Address) ([]models.Balance, error)
	TotalSupply(ctx context.Context, class models.ClassID) (uint64, error)
	URI(class models.ClassID) (string, error)
	Catalog() models.Catalog
}

// Handler wires collection endpoints to the ledger.
type Handler struct {
	service Service
	gateway string
	logger  *slog.Logger
}

// New constructs a collection handler.
func New(service Service, gateway string, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		gateway: gateway,
		logger:  logger,
	}
}

// Register mounts the public read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/collection", h.HandleCollection)
	r.Get("/collection/balances/{address}", h.HandleBalances)
	r.Get("/collection/classes/{id}", h.HandleClass)
}

// RegisterAuthenticated mounts endpoints that need a caller.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/collection/initialize", h.HandleInitialize)
	r.Post("/collection/distribute", h.HandleDistribute)
	r.Post("/collection/transfer", h.HandleTransfer)
	r.Post("/collection/operators", h.HandleSetOperator)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.Address, bool) {
	caller, ok := requestcontext.Caller(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}
	return caller, ok
}

// HandleInitialize handles POST /collection/initialize.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.Initialize(r.Context(), caller); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDistribute handles POST /collection/distribute.
func (h *Handler) HandleDistribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.Distribute(ctx, caller, req.parsedTo, req.ClassIDs, req.Amounts, req.Data); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransfer handles POST /collection/transfer. A single pair goes through
// Transfer; anything else through BatchTransfer. A missing from means the caller.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	from := req.parsedFrom
	if !req.fromSet {
		from = caller
	}

	var err error
	if len(req.ClassIDs) == 1 && len(req.Amounts) == 1 {
		err = h.service.Transfer(ctx, caller, from, req.parsedTo, req.ClassIDs[0], req.Amounts[0], req.Data)
	} else {
		err = h.service.BatchTransfer(ctx, caller, from, req.parsedTo, req.ClassIDs, req.Amounts, req.Data)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetOperator handles POST /collection/operators.
func (h *Handler) HandleSetOperator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OperatorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetApprovalForAll(ctx, caller, req.parsedOperator, req.Approved); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OperatorResponse{
		Holder:   caller.Hex(),
		Operator: req.parsedOperator.Hex(),
		Approved: req.Approved,
	})
}

// HandleCollection handles GET /collection.
func (h *Handler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	initialized, err := h.service.IsInitialized(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	catalog := h.service.Catalog()
	resp := CollectionResponse{Initialized: initialized, Size: catalog.Size()}
	for _, class := range catalog.Classes() {
		cr, err := h.class(ctx, class)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		resp.Classes = append(resp.Classes, cr)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleClass handles GET /collection/classes/{id}.
func (h *Handler) HandleClass(w http.ResponseWriter, r *http.Request) {
	raw, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAssetID, "class id must be a non-negative integer"))
		return
	}
	cr, err := h.class(r.Context(), models.ClassID(raw))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cr)
}

// HandleBalances handles GET /collection/balances/{address}.
func (h *Handler) HandleBalances(w http.ResponseWriter, r *http.Request) {
	holder, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "address: "+err.Error()))
		return
	}
	holdings, err := h.service.Holdings(r.Context(), holder)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := HoldingsResponse{Holder: holder.Hex(), Balances: make([]BalanceResponse, len(holdings))}
	for i, b := range holdings {
		resp.Balances[i] = BalanceResponse{Class: b.Class, Amount: b.Amount}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) class(ctx context.Context, class models.ClassID) (ClassResponse, error) {
	uri, err := h.service.URI(class)
	if err != nil {
		return ClassResponse{}, err
	}
	total, err := h.service.TotalSupply(ctx, class)
	if err != nil {
		return ClassResponse{}, err
	}
	return ClassResponse{
		ID:          class,
		URI:         uri,
		GatewayURL:  gateway.ToGateway(uri, h.gateway),
		TotalSupply: total,
	}, nil
}
