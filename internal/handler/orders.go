package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/middleware"
	"github.com/tokosenja/api/internal/service"
)

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateLineItem(ctx context.Context, arg database.CreateLineItemParams) (database.LineItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListLineItems(ctx context.Context, orderID uuid.UUID) ([]database.LineItem, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) error
	DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error)
}

// TotalsServicer is satisfied by *service.TotalsService.
type TotalsServicer interface {
	Recompute(ctx context.Context, orderID uuid.UUID) (service.Totals, error)
}

// CancellationServicer is satisfied by *service.CancellationService.
type CancellationServicer interface {
	Cancel(ctx context.Context, arg service.CancelOrderParams) error
}

// OrderHandler handles order intake and lifecycle endpoints.
type OrderHandler struct {
	store    OrderStore
	pool     service.TxBeginner
	newStore func(db database.DBTX) OrderStore
	totals   TotalsServicer
	cancels  CancellationServicer
}

func NewOrderHandler(store OrderStore, pool service.TxBeginner, newStore func(db database.DBTX) OrderStore, totals TotalsServicer, cancels CancellationServicer) *OrderHandler {
	return &OrderHandler{store: store, pool: pool, newStore: newStore, totals: totals, cancels: cancels}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/recompute-totals", h.RecomputeTotals)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerName  string                  `json:"customer_name"`
	CustomerPhone string                  `json:"customer_phone"`
	OrderedAt     string                  `json:"ordered_at"`
	PaymentMethod string                  `json:"payment_method"`
	ShippingCost  string                  `json:"shipping_cost"`
	Items         []createLineItemRequest `json:"items"`
}

type createLineItemRequest struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type cancelOrderRequest struct {
	Reason    string `json:"reason"`
	Fee       string `json:"fee"`
	FeeBearer string `json:"fee_bearer"`
}

type orderResponse struct {
	ID              uuid.UUID          `json:"id"`
	CustomerName    string             `json:"customer_name"`
	CustomerPhone   *string            `json:"customer_phone"`
	OrderedAt       time.Time          `json:"ordered_at"`
	Status          string             `json:"status"`
	SettledBy       *string            `json:"settled_by"`
	SettledAt       *time.Time         `json:"settled_at"`
	ShippingCarrier *string            `json:"shipping_carrier"`
	ShippingCost    string             `json:"shipping_cost"`
	ShippingBearer  *string            `json:"shipping_bearer"`
	PaymentMethod   *string            `json:"payment_method"`
	Subtotal        string             `json:"subtotal"`
	TaxAmount       string             `json:"tax_amount"`
	Total           string             `json:"total"`
	CancelReason    *string            `json:"cancel_reason"`
	CancelFee       string             `json:"cancel_fee"`
	CancelFeeBearer *string            `json:"cancel_fee_bearer"`
	CancelledBy     *string            `json:"cancelled_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Items           []lineItemResponse `json:"items,omitempty"`
}

type lineItemResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Quantity      int32      `json:"quantity"`
	UnitPrice     string     `json:"unit_price"`
	UnitCost      string     `json:"unit_cost"`
	Subtotal      string     `json:"subtotal"`
	CostSubtotal  string     `json:"cost_subtotal"`
	SupplierID    *uuid.UUID `json:"supplier_id"`
	LedgerEntryID *uuid.UUID `json:"ledger_entry_id"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type totalsResponse struct {
	Subtotal  string `json:"subtotal"`
	TaxAmount string `json:"tax_amount"`
	Total     string `json:"total"`
}

// --- Handlers ---

// Create handles POST /orders. The order, its line items, and the
// derived totals are written in one transaction.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.CustomerName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_name is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	orderedAt := time.Now()
	if req.OrderedAt != "" {
		t, err := time.Parse(time.RFC3339, req.OrderedAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ordered_at, use RFC3339"})
			return
		}
		orderedAt = t
	}

	shippingCost := decimal.Zero
	if req.ShippingCost != "" {
		v, err := decimal.NewFromString(req.ShippingCost)
		if err != nil || v.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shipping_cost"})
			return
		}
		shippingCost = v
	}

	type parsedItem struct {
		name      string
		quantity  int32
		unitPrice decimal.Decimal
	}
	items := make([]parsedItem, len(req.Items))
	for i, item := range req.Items {
		if item.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "name is required")})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "quantity must be > 0")})
			return
		}
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil || price.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "invalid unit_price")})
			return
		}
		items[i] = parsedItem{name: item.Name, quantity: item.Quantity, unitPrice: price}
	}

	var customerPhone *string
	if req.CustomerPhone != "" {
		customerPhone = &req.CustomerPhone
	}
	var paymentMethod *string
	if req.PaymentMethod != "" {
		paymentMethod = &req.PaymentMethod
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin create order tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)
	order, err := store.CreateOrder(r.Context(), database.CreateOrderParams{
		CustomerName:  req.CustomerName,
		CustomerPhone: customerPhone,
		OrderedAt:     orderedAt,
		ShippingCost:  shippingCost,
		PaymentMethod: paymentMethod,
	})
	if err != nil {
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	created := make([]database.LineItem, len(items))
	subtotals := make([]decimal.Decimal, len(items))
	for i, item := range items {
		li, err := store.CreateLineItem(r.Context(), database.CreateLineItemParams{
			OrderID:   order.ID,
			Name:      item.name,
			Quantity:  item.quantity,
			UnitPrice: item.unitPrice,
		})
		if err != nil {
			log.Printf("ERROR: create line item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		created[i] = li
		subtotals[i] = li.Subtotal
	}

	totals := service.ComputeTotals(subtotals, shippingCost)
	if err := store.UpdateOrderTotals(r.Context(), database.UpdateOrderTotalsParams{
		ID:        order.ID,
		Subtotal:  totals.Subtotal,
		TaxAmount: totals.TaxAmount,
		Total:     totals.Total,
	}); err != nil {
		log.Printf("ERROR: write order totals: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit create order tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	order.Subtotal = totals.Subtotal
	order.TaxAmount = totals.TaxAmount
	order.Total = totals.Total

	resp := dbOrderToResponse(order)
	resp.Items = make([]lineItemResponse, len(created))
	for i, li := range created {
		resp.Items[i] = dbLineItemToResponse(li)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders with optional status and date filters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = &s
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = &t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		end := t.AddDate(0, 0, 1)
		params.EndDate = &end
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Get handles GET /orders/{id} with line items inlined.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListLineItems(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list line items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]lineItemResponse, len(items))
	for i, li := range items {
		resp.Items[i] = dbLineItemToResponse(li)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /orders/{id}. Only OPEN orders can be removed;
// the SQL enforces the precondition atomically.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	affected, err := h.store.DeleteOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: delete order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if affected == 0 {
		// Either missing or already terminal; fetch for a better message.
		if _, err := h.store.GetOrder(r.Context(), orderID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
				return
			}
			log.Printf("ERROR: get order for delete: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		writeJSON(w, http.StatusConflict, map[string]string{"error": "only open orders can be deleted"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	fee := decimal.Zero
	if req.Fee != "" {
		v, err := decimal.NewFromString(req.Fee)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid fee"})
			return
		}
		fee = v
	}

	err = h.cancels.Cancel(r.Context(), service.CancelOrderParams{
		OrderID:     orderID,
		Reason:      req.Reason,
		Fee:         fee,
		FeeBearer:   req.FeeBearer,
		CancelledBy: claims.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyReason),
			errors.Is(err, service.ErrNegativeFee),
			errors.Is(err, service.ErrInvalidBearer):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderNotOpen):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: cancel order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: get order after cancel: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// RecomputeTotals handles POST /orders/{id}/recompute-totals.
func (h *OrderHandler) RecomputeTotals(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	totals, err := h.totals.Recompute(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderNotOpen):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: recompute totals: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, totalsResponse{
		Subtotal:  totals.Subtotal.StringFixed(2),
		TaxAmount: totals.TaxAmount.StringFixed(2),
		Total:     totals.Total.StringFixed(2),
	})
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

func dbOrderToResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		OrderedAt:       o.OrderedAt,
		Status:          o.Status,
		SettledBy:       o.SettledBy,
		SettledAt:       o.SettledAt,
		ShippingCarrier: o.ShippingCarrier,
		ShippingCost:    o.ShippingCost.StringFixed(2),
		ShippingBearer:  o.ShippingBearer,
		PaymentMethod:   o.PaymentMethod,
		Subtotal:        o.Subtotal.StringFixed(2),
		TaxAmount:       o.TaxAmount.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		CancelReason:    o.CancelReason,
		CancelFee:       o.CancelFee.StringFixed(2),
		CancelFeeBearer: o.CancelFeeBearer,
		CancelledBy:     o.CancelledBy,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func dbLineItemToResponse(li database.LineItem) lineItemResponse {
	return lineItemResponse{
		ID:            li.ID,
		Name:          li.Name,
		Quantity:      li.Quantity,
		UnitPrice:     li.UnitPrice.StringFixed(2),
		UnitCost:      li.UnitCost.StringFixed(2),
		Subtotal:      li.Subtotal.StringFixed(2),
		CostSubtotal:  li.CostSubtotal.StringFixed(2),
		SupplierID:    li.SupplierID,
		LedgerEntryID: li.LedgerEntryID,
	}
}
