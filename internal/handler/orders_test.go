package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/auth"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/enum"
	"github.com/tokosenja/api/internal/handler"
	"github.com/tokosenja/api/internal/middleware"
	"github.com/tokosenja/api/internal/service"
)

// --- Mock OrderStore ---

type mockOrderStore struct {
	createOrderFn       func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createLineItemFn    func(ctx context.Context, arg database.CreateLineItemParams) (database.LineItem, error)
	getOrderFn          func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrdersFn        func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listLineItemsFn     func(ctx context.Context, orderID uuid.UUID) ([]database.LineItem, error)
	updateOrderTotalsFn func(ctx context.Context, arg database.UpdateOrderTotalsParams) error
	deleteOrderFn       func(ctx context.Context, id uuid.UUID) (int64, error)
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) CreateLineItem(ctx context.Context, arg database.CreateLineItemParams) (database.LineItem, error) {
	if m.createLineItemFn != nil {
		return m.createLineItemFn(ctx, arg)
	}
	return database.LineItem{}, pgx.ErrNoRows
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListLineItems(ctx context.Context, orderID uuid.UUID) ([]database.LineItem, error) {
	if m.listLineItemsFn != nil {
		return m.listLineItemsFn(ctx, orderID)
	}
	return []database.LineItem{}, nil
}

func (m *mockOrderStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) error {
	if m.updateOrderTotalsFn != nil {
		return m.updateOrderTotalsFn(ctx, arg)
	}
	return nil
}

func (m *mockOrderStore) DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	if m.deleteOrderFn != nil {
		return m.deleteOrderFn(ctx, id)
	}
	return 0, nil
}

// --- Mock TxBeginner ---

type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

type mockPool struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// --- Mock services ---

type mockTotalsService struct {
	recomputeFn func(ctx context.Context, orderID uuid.UUID) (service.Totals, error)
}

func (m *mockTotalsService) Recompute(ctx context.Context, orderID uuid.UUID) (service.Totals, error) {
	return m.recomputeFn(ctx, orderID)
}

type mockCancellationService struct {
	cancelFn func(ctx context.Context, arg service.CancelOrderParams) error
}

func (m *mockCancellationService) Cancel(ctx context.Context, arg service.CancelOrderParams) error {
	return m.cancelFn(ctx, arg)
}

// --- Test helpers ---

const testJWTSecret = "test-secret-for-handlers"

func dec(t *testing.T, val string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(val)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", val, err)
	}
	return d
}

func testClaims() *auth.Claims {
	return &auth.Claims{
		UserID:   uuid.New(),
		FullName: "Siti Rahma",
		Role:     enum.UserRoleStaff,
	}
}

func setupOrderRouter(store *mockOrderStore, totals *mockTotalsService, cancels *mockCancellationService) *chi.Mux {
	pool := &mockPool{}
	newStore := func(db database.DBTX) handler.OrderStore { return store }
	h := handler.NewOrderHandler(store, pool, newStore, totals, cancels)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/orders", h.RegisterRoutes)
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.FullName, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func testOpenOrder(t *testing.T) database.Order {
	now := time.Now()
	return database.Order{
		ID:           uuid.New(),
		CustomerName: "Budi Santoso",
		OrderedAt:    now,
		Status:       enum.OrderStatusOpen,
		ShippingCost: dec(t, "0"),
		Subtotal:     dec(t, "0"),
		TaxAmount:    dec(t, "0"),
		Total:        dec(t, "0"),
		CancelFee:    dec(t, "0"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// --- Tests ---

func TestOrderCreate_HappyPath(t *testing.T) {
	claims := testClaims()
	order := testOpenOrder(t)
	order.ShippingCost = dec(t, "2000")

	var totalsWrite *database.UpdateOrderTotalsParams
	store := &mockOrderStore{
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			if arg.CustomerName != "Budi Santoso" {
				t.Errorf("customer_name: got %q, want Budi Santoso", arg.CustomerName)
			}
			if !arg.ShippingCost.Equal(dec(t, "2000")) {
				t.Errorf("shipping_cost: got %s, want 2000", arg.ShippingCost)
			}
			return order, nil
		},
		createLineItemFn: func(ctx context.Context, arg database.CreateLineItemParams) (database.LineItem, error) {
			return database.LineItem{
				ID:        uuid.New(),
				OrderID:   arg.OrderID,
				Name:      arg.Name,
				Quantity:  arg.Quantity,
				UnitPrice: arg.UnitPrice,
				Subtotal:  arg.UnitPrice.Mul(decimal.NewFromInt32(arg.Quantity)),
			}, nil
		},
		updateOrderTotalsFn: func(ctx context.Context, arg database.UpdateOrderTotalsParams) error {
			totalsWrite = &arg
			return nil
		},
	}

	router := setupOrderRouter(store, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"customer_name": "Budi Santoso",
		"shipping_cost": "2000",
		"items": []map[string]interface{}{
			{"name": "Kopi Susu", "quantity": 2, "unit_price": "10000"},
			{"name": "Teh Botol", "quantity": 1, "unit_price": "5000"},
		},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	// (25000 + 2000) * 1.15
	if totalsWrite == nil {
		t.Fatal("expected totals to be written")
	}
	if !totalsWrite.Subtotal.Equal(dec(t, "25000")) {
		t.Errorf("subtotal: got %s, want 25000", totalsWrite.Subtotal)
	}
	if !totalsWrite.TaxAmount.Equal(dec(t, "4050")) {
		t.Errorf("tax_amount: got %s, want 4050", totalsWrite.TaxAmount)
	}
	if !totalsWrite.Total.Equal(dec(t, "31050")) {
		t.Errorf("total: got %s, want 31050", totalsWrite.Total)
	}

	resp := decodeResponse(t, rr)
	if resp["total"] != "31050.00" {
		t.Errorf("total: got %v, want 31050.00", resp["total"])
	}
	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("items: got %v, want 2 entries", resp["items"])
	}
	item := items[0].(map[string]interface{})
	if item["subtotal"] != "20000.00" {
		t.Errorf("item subtotal: got %v, want 20000.00", item["subtotal"])
	}
}

func TestOrderCreate_MissingCustomerName(t *testing.T) {
	router := setupOrderRouter(&mockOrderStore{}, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"name": "Kopi Susu", "quantity": 1, "unit_price": "10000"},
		},
	}, testClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "customer_name is required" {
		t.Errorf("error: got %v, want 'customer_name is required'", resp["error"])
	}
}

func TestOrderCreate_EmptyItems(t *testing.T) {
	router := setupOrderRouter(&mockOrderStore{}, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"customer_name": "Budi Santoso",
		"items":         []map[string]interface{}{},
	}, testClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestOrderCreate_InvalidUnitPrice(t *testing.T) {
	router := setupOrderRouter(&mockOrderStore{}, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"customer_name": "Budi Santoso",
		"items": []map[string]interface{}{
			{"name": "Kopi Susu", "quantity": 1, "unit_price": "-5"},
		},
	}, testClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "items[0]: invalid unit_price" {
		t.Errorf("error: got %v, want 'items[0]: invalid unit_price'", resp["error"])
	}
}

func TestOrderGet_WithItems(t *testing.T) {
	order := testOpenOrder(t)
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		listLineItemsFn: func(ctx context.Context, orderID uuid.UUID) ([]database.LineItem, error) {
			return []database.LineItem{
				{ID: uuid.New(), OrderID: order.ID, Name: "Kopi Susu", Quantity: 2, UnitPrice: dec(t, "10000"), Subtotal: dec(t, "20000")},
			}, nil
		},
	}

	router := setupOrderRouter(store, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/orders/"+order.ID.String(), nil, testClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["customer_name"] != "Budi Santoso" {
		t.Errorf("customer_name: got %v, want Budi Santoso", resp["customer_name"])
	}
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items count: got %d, want 1", len(items))
	}
}

func TestOrderGet_NotFound(t *testing.T) {
	router := setupOrderRouter(&mockOrderStore{}, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/orders/"+uuid.NewString(), nil, testClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestOrderList_StatusFilter(t *testing.T) {
	order := testOpenOrder(t)
	var gotParams database.ListOrdersParams
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			gotParams = arg
			return []database.Order{order}, nil
		},
	}

	router := setupOrderRouter(store, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/orders?status=OPEN&limit=5", nil, testClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if gotParams.Status == nil || *gotParams.Status != enum.OrderStatusOpen {
		t.Errorf("status filter: got %v, want OPEN", gotParams.Status)
	}
	if gotParams.Limit != 5 {
		t.Errorf("limit: got %d, want 5", gotParams.Limit)
	}

	resp := decodeResponse(t, rr)
	orders := resp["orders"].([]interface{})
	if len(orders) != 1 {
		t.Fatalf("orders count: got %d, want 1", len(orders))
	}
}

func TestOrderDelete_Open(t *testing.T) {
	store := &mockOrderStore{
		deleteOrderFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 1, nil
		},
	}

	router := setupOrderRouter(store, nil, nil)
	rr := doAuthRequest(t, router, "DELETE", "/orders/"+uuid.NewString(), nil, testClaims())

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}
}

func TestOrderDelete_Settled(t *testing.T) {
	order := testOpenOrder(t)
	order.Status = enum.OrderStatusSettled
	store := &mockOrderStore{
		deleteOrderFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 0, nil
		},
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
	}

	router := setupOrderRouter(store, nil, nil)
	rr := doAuthRequest(t, router, "DELETE", "/orders/"+order.ID.String(), nil, testClaims())

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestOrderDelete_NotFound(t *testing.T) {
	store := &mockOrderStore{
		deleteOrderFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 0, nil
		},
	}

	router := setupOrderRouter(store, nil, nil)
	rr := doAuthRequest(t, router, "DELETE", "/orders/"+uuid.NewString(), nil, testClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestOrderCancel_HappyPath(t *testing.T) {
	claims := testClaims()
	order := testOpenOrder(t)

	var gotParams service.CancelOrderParams
	cancels := &mockCancellationService{
		cancelFn: func(ctx context.Context, arg service.CancelOrderParams) error {
			gotParams = arg
			return nil
		},
	}
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			cancelled := order
			cancelled.Status = enum.OrderStatusCancelled
			return cancelled, nil
		},
	}

	router := setupOrderRouter(store, nil, cancels)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/cancel", map[string]interface{}{
		"reason":     "customer changed their mind",
		"fee":        "5000",
		"fee_bearer": "CUSTOMER",
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if gotParams.CancelledBy != claims.FullName {
		t.Errorf("cancelled_by: got %q, want %q", gotParams.CancelledBy, claims.FullName)
	}
	if !gotParams.Fee.Equal(dec(t, "5000")) {
		t.Errorf("fee: got %s, want 5000", gotParams.Fee)
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.OrderStatusCancelled {
		t.Errorf("status: got %v, want CANCELLED", resp["status"])
	}
}

func TestOrderCancel_EmptyReason(t *testing.T) {
	cancels := &mockCancellationService{
		cancelFn: func(ctx context.Context, arg service.CancelOrderParams) error {
			return service.ErrEmptyReason
		},
	}

	router := setupOrderRouter(&mockOrderStore{}, nil, cancels)
	rr := doAuthRequest(t, router, "POST", "/orders/"+uuid.NewString()+"/cancel", map[string]interface{}{
		"reason": "",
	}, testClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestOrderCancel_NotOpen(t *testing.T) {
	cancels := &mockCancellationService{
		cancelFn: func(ctx context.Context, arg service.CancelOrderParams) error {
			return service.ErrOrderNotOpen
		},
	}

	router := setupOrderRouter(&mockOrderStore{}, nil, cancels)
	rr := doAuthRequest(t, router, "POST", "/orders/"+uuid.NewString()+"/cancel", map[string]interface{}{
		"reason": "too late",
	}, testClaims())

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestOrderRecomputeTotals_HappyPath(t *testing.T) {
	totals := &mockTotalsService{
		recomputeFn: func(ctx context.Context, orderID uuid.UUID) (service.Totals, error) {
			return service.Totals{
				Subtotal:  dec(t, "25000"),
				TaxAmount: dec(t, "4050"),
				Total:     dec(t, "31050"),
			}, nil
		},
	}

	router := setupOrderRouter(&mockOrderStore{}, totals, nil)
	rr := doAuthRequest(t, router, "POST", "/orders/"+uuid.NewString()+"/recompute-totals", nil, testClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["total"] != "31050.00" {
		t.Errorf("total: got %v, want 31050.00", resp["total"])
	}
}

func TestOrderRecomputeTotals_NotOpen(t *testing.T) {
	totals := &mockTotalsService{
		recomputeFn: func(ctx context.Context, orderID uuid.UUID) (service.Totals, error) {
			return service.Totals{}, service.ErrOrderNotOpen
		},
	}

	router := setupOrderRouter(&mockOrderStore{}, totals, nil)
	rr := doAuthRequest(t, router, "POST", "/orders/"+uuid.NewString()+"/recompute-totals", nil, testClaims())

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}
