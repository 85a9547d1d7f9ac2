package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/carrier"
	"github.com/tokosenja/api/internal/middleware"
	"github.com/tokosenja/api/internal/service"
)

// SettlementServicer is satisfied by *service.SettlementService.
type SettlementServicer interface {
	OpenBatch(ctx context.Context, orderIDs []uuid.UUID) (service.BatchView, error)
	GetBatch(batchID uuid.UUID) (service.BatchView, error)
	StageCosts(batchID, orderID uuid.UUID, costs map[uuid.UUID]decimal.Decimal) (service.BatchView, error)
	StageSuppliers(ctx context.Context, batchID, orderID uuid.UUID, mode string, orderSupplier *service.SupplierRef, lineSuppliers map[uuid.UUID]service.SupplierRef) (service.BatchView, error)
	StageShipping(batchID, orderID uuid.UUID, carrierName string, cost decimal.Decimal, bearer string) (service.BatchView, error)
	SuggestShipping(name string) (carrier.Suggestion, bool)
	Advance(batchID uuid.UUID) (service.BatchView, error)
	Commit(ctx context.Context, batchID uuid.UUID, settledBy string) (service.CommitResult, error)
}

// SettlementHandler drives the settlement wizard endpoints.
type SettlementHandler struct {
	svc SettlementServicer
}

func NewSettlementHandler(svc SettlementServicer) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

// RegisterRoutes registers settlement endpoints on the given Chi router.
func (h *SettlementHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/carrier-suggestion", h.CarrierSuggestion)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/orders/{orderID}/costs", h.StageCosts)
	r.Post("/{id}/orders/{orderID}/suppliers", h.StageSuppliers)
	r.Post("/{id}/orders/{orderID}/shipping", h.StageShipping)
	r.Post("/{id}/advance", h.Advance)
	r.Post("/{id}/commit", h.Commit)
}

// --- Request / Response types ---

type openBatchRequest struct {
	OrderIDs []string `json:"order_ids"`
}

type stageCostsRequest struct {
	Costs map[string]string `json:"costs"`
}

type supplierRefRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type stageSuppliersRequest struct {
	Mode          string                        `json:"mode"`
	Supplier      *supplierRefRequest           `json:"supplier"`
	LineSuppliers map[string]supplierRefRequest `json:"line_suppliers"`
}

type stageShippingRequest struct {
	Carrier string `json:"carrier"`
	Cost    string `json:"cost"`
	Bearer  string `json:"bearer"`
}

type carrierSuggestionResponse struct {
	Carrier  string `json:"carrier"`
	BaseCost string `json:"base_cost"`
}

// --- Handlers ---

// Open handles POST /settlements.
func (h *SettlementHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ids := make([]uuid.UUID, len(req.OrderIDs))
	for i, s := range req.OrderIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID: " + s})
			return
		}
		ids[i] = id
	}

	view, err := h.svc.OpenBatch(r.Context(), ids)
	if err != nil {
		h.writeError(w, "open settlement batch", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Get handles GET /settlements/{id}.
func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.GetBatch(batchID)
	if err != nil {
		h.writeError(w, "get settlement batch", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// StageCosts handles POST /settlements/{id}/orders/{orderID}/costs.
func (h *SettlementHandler) StageCosts(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	orderID, ok := h.parseOrderID(w, r)
	if !ok {
		return
	}

	var req stageCostsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	costs := make(map[uuid.UUID]decimal.Decimal, len(req.Costs))
	for lineID, costStr := range req.Costs {
		id, err := uuid.Parse(lineID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line item ID: " + lineID})
			return
		}
		cost, err := decimal.NewFromString(costStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost for line " + lineID})
			return
		}
		costs[id] = cost
	}

	view, err := h.svc.StageCosts(batchID, orderID, costs)
	if err != nil {
		h.writeError(w, "stage costs", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// StageSuppliers handles POST /settlements/{id}/orders/{orderID}/suppliers.
func (h *SettlementHandler) StageSuppliers(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	orderID, ok := h.parseOrderID(w, r)
	if !ok {
		return
	}

	var req stageSuppliersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var orderSupplier *service.SupplierRef
	if req.Supplier != nil {
		ref, err := toSupplierRef(*req.Supplier)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		orderSupplier = &ref
	}

	lineSuppliers := make(map[uuid.UUID]service.SupplierRef, len(req.LineSuppliers))
	for lineID, refReq := range req.LineSuppliers {
		id, err := uuid.Parse(lineID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line item ID: " + lineID})
			return
		}
		ref, err := toSupplierRef(refReq)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		lineSuppliers[id] = ref
	}

	view, err := h.svc.StageSuppliers(r.Context(), batchID, orderID, req.Mode, orderSupplier, lineSuppliers)
	if err != nil {
		h.writeError(w, "stage suppliers", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// StageShipping handles POST /settlements/{id}/orders/{orderID}/shipping.
func (h *SettlementHandler) StageShipping(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	orderID, ok := h.parseOrderID(w, r)
	if !ok {
		return
	}

	var req stageShippingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cost, err := decimal.NewFromString(req.Cost)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost"})
		return
	}

	view, err := h.svc.StageShipping(batchID, orderID, req.Carrier, cost, req.Bearer)
	if err != nil {
		h.writeError(w, "stage shipping", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CarrierSuggestion handles GET /settlements/carrier-suggestion?name=.
func (h *SettlementHandler) CarrierSuggestion(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	suggestion, ok := h.svc.SuggestShipping(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no matching carrier"})
		return
	}
	writeJSON(w, http.StatusOK, carrierSuggestionResponse{
		Carrier:  suggestion.Carrier,
		BaseCost: suggestion.BaseCost.StringFixed(2),
	})
}

// Advance handles POST /settlements/{id}/advance.
func (h *SettlementHandler) Advance(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Advance(batchID)
	if err != nil {
		h.writeError(w, "advance settlement batch", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Commit handles POST /settlements/{id}/commit.
func (h *SettlementHandler) Commit(w http.ResponseWriter, r *http.Request) {
	batchID, ok := h.parseBatchID(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	result, err := h.svc.Commit(r.Context(), batchID, claims.FullName)
	if err != nil {
		h.writeError(w, "commit settlement batch", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

func (h *SettlementHandler) parseBatchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *SettlementHandler) parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return id, true
}

func toSupplierRef(req supplierRefRequest) (service.SupplierRef, error) {
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			return service.SupplierRef{}, errors.New("invalid supplier ID: " + req.ID)
		}
		return service.SupplierRef{ID: &id}, nil
	}
	return service.SupplierRef{Name: req.Name}, nil
}

// writeError maps settlement service errors to HTTP status codes.
func (h *SettlementHandler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrBatchNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotOpen),
		errors.Is(err, service.ErrBatchNotStaging),
		errors.Is(err, service.ErrBatchNotCommitting),
		errors.Is(err, service.ErrOrderNotReady):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyBatch),
		errors.Is(err, service.ErrOrderNotInBatch),
		errors.Is(err, service.ErrNegativeCost),
		errors.Is(err, service.ErrUnknownLineItem),
		errors.Is(err, service.ErrInvalidSupplierMode),
		errors.Is(err, service.ErrMissingSupplier),
		errors.Is(err, service.ErrMissingCarrier),
		errors.Is(err, service.ErrInvalidBearer),
		errors.Is(err, service.ErrShippingNotRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
