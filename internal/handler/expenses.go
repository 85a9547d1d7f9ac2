package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/enum"
)

// ExpenseStore defines the database methods needed by expense handlers.
type ExpenseStore interface {
	InsertExpense(ctx context.Context, arg database.InsertExpenseParams) (database.Expense, error)
	ListExpenses(ctx context.Context, arg database.ListExpensesParams) ([]database.Expense, error)
}

// ExpenseHandler handles general expense booking. Cancellation fee
// expenses are created by the cancellation flow, not here.
type ExpenseHandler struct {
	store ExpenseStore
}

func NewExpenseHandler(store ExpenseStore) *ExpenseHandler {
	return &ExpenseHandler{store: store}
}

func (h *ExpenseHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
}

type createExpenseRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	ExpenseDate string `json:"expense_date"`
}

type expenseResponse struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Category    string    `json:"category"`
	ExpenseDate time.Time `json:"expense_date"`
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be a positive number"})
		return
	}

	category := req.Category
	if category == "" {
		category = enum.ExpenseCategoryGeneral
	}

	expenseDate := time.Now()
	if req.ExpenseDate != "" {
		t, err := time.Parse("2006-01-02", req.ExpenseDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expense_date format, use YYYY-MM-DD"})
			return
		}
		expenseDate = t
	}

	expense, err := h.store.InsertExpense(r.Context(), database.InsertExpenseParams{
		Description: req.Description,
		Amount:      amount,
		Category:    category,
		ExpenseDate: expenseDate,
	})
	if err != nil {
		log.Printf("ERROR: create expense: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListExpensesParams{}
	if s := r.URL.Query().Get("category"); s != "" {
		params.Category = &s
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

	expenses, err := h.store.ListExpenses(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list expenses: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]expenseResponse, len(expenses))
	for i, e := range expenses {
		resp[i] = toExpenseResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toExpenseResponse(e database.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		Category:    e.Category,
		ExpenseDate: e.ExpenseDate,
	}
}
