package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tokosenja/api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
type ReportsStore interface {
	GetSettlementMargin(ctx context.Context, arg database.DateRangeParams) (database.SettlementMarginRow, error)
	GetCancellationFees(ctx context.Context, arg database.DateRangeParams) (database.CancellationFeesRow, error)
}

// ReportsHandler serves the back-office margin view over settled orders.
type ReportsHandler struct {
	store ReportsStore
}

func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/margin", h.Margin)
}

type marginResponse struct {
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	SettledOrders     int64  `json:"settled_orders"`
	Revenue           string `json:"revenue"`
	TaxCollected      string `json:"tax_collected"`
	ProductCost       string `json:"product_cost"`
	ShippingCostStore string `json:"shipping_cost_store"`
	PaymentFees       string `json:"payment_fees"`
	GrossMargin       string `json:"gross_margin"`
	CancelledOrders   int64  `json:"cancelled_orders"`
	CancellationFees  string `json:"cancellation_fees_income"`
	CancellationCosts string `json:"cancellation_fees_cost"`
}

// Margin handles GET /reports/margin?start_date=&end_date=.
// Gross margin = revenue - product cost - store-borne shipping -
// payment fees; tax is collected on behalf of the state and excluded.
func (h *ReportsHandler) Margin(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start_date")
	endStr := r.URL.Query().Get("end_date")
	if startStr == "" || endStr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_date and end_date are required"})
		return
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
		return
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
		return
	}
	// The range is inclusive of end_date.
	end = end.AddDate(0, 0, 1)
	if !end.After(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date must not be before start_date"})
		return
	}

	params := database.DateRangeParams{StartDate: start, EndDate: end}
	margin, err := h.store.GetSettlementMargin(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: settlement margin report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	fees, err := h.store.GetCancellationFees(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: cancellation fees report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	grossMargin := margin.Revenue.
		Sub(margin.ProductCost).
		Sub(margin.ShippingCostStore).
		Sub(margin.PaymentFees).
		Add(fees.FeesFromCustomer)

	writeJSON(w, http.StatusOK, marginResponse{
		StartDate:         startStr,
		EndDate:           endStr,
		SettledOrders:     margin.SettledOrders,
		Revenue:           margin.Revenue.StringFixed(2),
		TaxCollected:      margin.TaxCollected.StringFixed(2),
		ProductCost:       margin.ProductCost.StringFixed(2),
		ShippingCostStore: margin.ShippingCostStore.StringFixed(2),
		PaymentFees:       margin.PaymentFees.StringFixed(2),
		GrossMargin:       grossMargin.StringFixed(2),
		CancelledOrders:   fees.CancelledOrders,
		CancellationFees:  fees.FeesFromCustomer.StringFixed(2),
		CancellationCosts: fees.FeesBorneByStore.StringFixed(2),
	})
}
