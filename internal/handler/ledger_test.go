package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/handler"
	"github.com/tokosenja/api/internal/middleware"
)

// --- Mock LedgerStore ---

type mockLedgerStore struct {
	listLedgerEntriesFn func(ctx context.Context, arg database.ListLedgerEntriesParams) ([]database.LedgerEntryWithSupplier, error)
	payLedgerEntryFn    func(ctx context.Context, arg database.PayLedgerEntryParams) (database.LedgerEntry, error)
}

func (m *mockLedgerStore) ListLedgerEntries(ctx context.Context, arg database.ListLedgerEntriesParams) ([]database.LedgerEntryWithSupplier, error) {
	if m.listLedgerEntriesFn != nil {
		return m.listLedgerEntriesFn(ctx, arg)
	}
	return []database.LedgerEntryWithSupplier{}, nil
}

func (m *mockLedgerStore) PayLedgerEntry(ctx context.Context, arg database.PayLedgerEntryParams) (database.LedgerEntry, error) {
	if m.payLedgerEntryFn != nil {
		return m.payLedgerEntryFn(ctx, arg)
	}
	return database.LedgerEntry{}, pgx.ErrNoRows
}

func setupLedgerRouter(store *mockLedgerStore) *chi.Mux {
	h := handler.NewLedgerHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/ledger-entries", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestLedgerList_UnpaidFilter(t *testing.T) {
	supplierID := uuid.New()
	now := time.Now()

	var gotParams database.ListLedgerEntriesParams
	store := &mockLedgerStore{
		listLedgerEntriesFn: func(ctx context.Context, arg database.ListLedgerEntriesParams) ([]database.LedgerEntryWithSupplier, error) {
			gotParams = arg
			return []database.LedgerEntryWithSupplier{
				{
					LedgerEntry: database.LedgerEntry{
						ID:              uuid.New(),
						SupplierID:      supplierID,
						Description:     "Product cost for order " + uuid.NewString(),
						Amount:          dec(t, "50000"),
						RemainingAmount: dec(t, "50000"),
						CreatedAt:       now,
						DueDate:         now.AddDate(0, 0, 30),
					},
					SupplierName: "Pasar Induk",
				},
			}, nil
		},
	}

	router := setupLedgerRouter(store)
	rr := doAuthRequest(t, router, "GET", "/ledger-entries?supplier_id="+supplierID.String()+"&unpaid=true", nil, testClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if gotParams.SupplierID == nil || *gotParams.SupplierID != supplierID {
		t.Errorf("supplier filter: got %v, want %s", gotParams.SupplierID, supplierID)
	}
	if !gotParams.UnpaidOnly {
		t.Error("expected unpaid filter to be set")
	}
}

func TestLedgerPay_HappyPath(t *testing.T) {
	entryID := uuid.New()
	now := time.Now()

	store := &mockLedgerStore{
		payLedgerEntryFn: func(ctx context.Context, arg database.PayLedgerEntryParams) (database.LedgerEntry, error) {
			if arg.ID != entryID {
				t.Errorf("entry ID: got %s, want %s", arg.ID, entryID)
			}
			if !arg.Amount.Equal(dec(t, "20000")) {
				t.Errorf("amount: got %s, want 20000", arg.Amount)
			}
			return database.LedgerEntry{
				ID:              entryID,
				SupplierID:      uuid.New(),
				Description:     "Product cost for order " + uuid.NewString(),
				Amount:          dec(t, "50000"),
				RemainingAmount: dec(t, "30000"),
				CreatedAt:       now,
				DueDate:         now.AddDate(0, 0, 30),
			}, nil
		},
	}

	router := setupLedgerRouter(store)
	rr := doAuthRequest(t, router, "POST", "/ledger-entries/"+entryID.String()+"/payments", map[string]interface{}{
		"amount": "20000",
	}, testClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["remaining_amount"] != "30000.00" {
		t.Errorf("remaining_amount: got %v, want 30000.00", resp["remaining_amount"])
	}
}

func TestLedgerPay_NonPositiveAmount(t *testing.T) {
	router := setupLedgerRouter(&mockLedgerStore{})
	rr := doAuthRequest(t, router, "POST", "/ledger-entries/"+uuid.NewString()+"/payments", map[string]interface{}{
		"amount": "0",
	}, testClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestLedgerPay_ExceedsRemaining(t *testing.T) {
	store := &mockLedgerStore{
		payLedgerEntryFn: func(ctx context.Context, arg database.PayLedgerEntryParams) (database.LedgerEntry, error) {
			return database.LedgerEntry{}, pgx.ErrNoRows
		},
	}

	router := setupLedgerRouter(store)
	rr := doAuthRequest(t, router, "POST", "/ledger-entries/"+uuid.NewString()+"/payments", map[string]interface{}{
		"amount": "999999",
	}, testClaims())

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}
