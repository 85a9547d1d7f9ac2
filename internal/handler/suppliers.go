package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tokosenja/api/internal/database"
)

// SupplierStore defines the database methods needed by supplier handlers.
type SupplierStore interface {
	CreateSupplier(ctx context.Context, name string) (database.Supplier, error)
	ListActiveSuppliers(ctx context.Context) ([]database.Supplier, error)
}

// SupplierHandler handles supplier catalog endpoints. Most suppliers
// are created implicitly during settlement staging; this surface
// exists for up-front catalog management.
type SupplierHandler struct {
	store SupplierStore
}

func NewSupplierHandler(store SupplierStore) *SupplierHandler {
	return &SupplierHandler{store: store}
}

func (h *SupplierHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
}

type createSupplierRequest struct {
	Name string `json:"name"`
}

type supplierResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *SupplierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSupplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	supplier, err := h.store.CreateSupplier(r.Context(), req.Name)
	if err != nil {
		log.Printf("ERROR: create supplier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toSupplierResponse(supplier))
}

func (h *SupplierHandler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.store.ListActiveSuppliers(r.Context())
	if err != nil {
		log.Printf("ERROR: list suppliers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]supplierResponse, len(suppliers))
	for i, s := range suppliers {
		resp[i] = toSupplierResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toSupplierResponse(s database.Supplier) supplierResponse {
	return supplierResponse{ID: s.ID, Name: s.Name, IsActive: s.IsActive, CreatedAt: s.CreatedAt}
}
