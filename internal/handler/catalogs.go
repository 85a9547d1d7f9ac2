package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tokosenja/api/internal/database"
)

// CatalogStore defines the database methods needed by catalog handlers.
type CatalogStore interface {
	ListPaymentMethods(ctx context.Context) ([]database.PaymentMethod, error)
	ListShippingCarriers(ctx context.Context) ([]database.ShippingCarrier, error)
}

// CatalogHandler serves the read-only reference catalogs.
type CatalogHandler struct {
	store CatalogStore
}

func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/payment-methods", h.PaymentMethods)
	r.Get("/shipping-carriers", h.ShippingCarriers)
}

type paymentMethodResponse struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	PercentFee string `json:"percent_fee"`
	FixedFee   string `json:"fixed_fee"`
}

type shippingCarrierResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	BaseCost string    `json:"base_cost"`
}

func (h *CatalogHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.store.ListPaymentMethods(r.Context())
	if err != nil {
		log.Printf("ERROR: list payment methods: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentMethodResponse, len(methods))
	for i, m := range methods {
		resp[i] = paymentMethodResponse{
			Code:       m.Code,
			Name:       m.Name,
			PercentFee: m.PercentFee.StringFixed(2),
			FixedFee:   m.FixedFee.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CatalogHandler) ShippingCarriers(w http.ResponseWriter, r *http.Request) {
	carriers, err := h.store.ListShippingCarriers(r.Context())
	if err != nil {
		log.Printf("ERROR: list shipping carriers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]shippingCarrierResponse, len(carriers))
	for i, c := range carriers {
		resp[i] = shippingCarrierResponse{
			ID:       c.ID,
			Name:     c.Name,
			BaseCost: c.BaseCost.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
