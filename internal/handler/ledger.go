package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/database"
)

// LedgerStore defines the database methods needed by ledger handlers.
type LedgerStore interface {
	ListLedgerEntries(ctx context.Context, arg database.ListLedgerEntriesParams) ([]database.LedgerEntryWithSupplier, error)
	PayLedgerEntry(ctx context.Context, arg database.PayLedgerEntryParams) (database.LedgerEntry, error)
}

// LedgerHandler exposes supplier payables and payment recording.
type LedgerHandler struct {
	store LedgerStore
}

func NewLedgerHandler(store LedgerStore) *LedgerHandler {
	return &LedgerHandler{store: store}
}

func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/payments", h.Pay)
}

type ledgerEntryResponse struct {
	ID              uuid.UUID `json:"id"`
	SupplierID      uuid.UUID `json:"supplier_id"`
	SupplierName    string    `json:"supplier_name"`
	Description     string    `json:"description"`
	Amount          string    `json:"amount"`
	RemainingAmount string    `json:"remaining_amount"`
	CreatedAt       time.Time `json:"created_at"`
	DueDate         time.Time `json:"due_date"`
}

type payLedgerEntryRequest struct {
	Amount string `json:"amount"`
}

func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListLedgerEntriesParams{}
	if s := r.URL.Query().Get("supplier_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supplier_id"})
			return
		}
		params.SupplierID = &id
	}
	if r.URL.Query().Get("unpaid") == "true" {
		params.UnpaidOnly = true
	}

	entries, err := h.store.ListLedgerEntries(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list ledger entries: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ledgerEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = ledgerEntryResponse{
			ID:              e.ID,
			SupplierID:      e.SupplierID,
			SupplierName:    e.SupplierName,
			Description:     e.Description,
			Amount:          e.Amount.StringFixed(2),
			RemainingAmount: e.RemainingAmount.StringFixed(2),
			CreatedAt:       e.CreatedAt,
			DueDate:         e.DueDate,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Pay handles POST /ledger-entries/{id}/payments. The SQL rejects
// overpayment atomically.
func (h *LedgerHandler) Pay(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ledger entry ID"})
		return
	}

	var req payLedgerEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be a positive number"})
		return
	}

	entry, err := h.store.PayLedgerEntry(r.Context(), database.PayLedgerEntryParams{
		ID:     entryID,
		Amount: amount,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "entry not found or payment exceeds remaining amount"})
			return
		}
		log.Printf("ERROR: pay ledger entry: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, ledgerEntryResponse{
		ID:              entry.ID,
		SupplierID:      entry.SupplierID,
		Description:     entry.Description,
		Amount:          entry.Amount.StringFixed(2),
		RemainingAmount: entry.RemainingAmount.StringFixed(2),
		CreatedAt:       entry.CreatedAt,
		DueDate:         entry.DueDate,
	})
}
