package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/carrier"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/enum"
)

// TxBeginner opens database transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SettlementStore defines every DB method the settlement flow touches.
// Satisfied by *database.Queries bound to either the pool or a tx.
type SettlementStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListLineItems(ctx context.Context, orderID uuid.UUID) ([]database.LineItem, error)
	UpdateLineItemCost(ctx context.Context, arg database.UpdateLineItemCostParams) error
	UpdateLineItemSupplier(ctx context.Context, arg database.UpdateLineItemSupplierParams) error
	LinkLineItemToLedgerEntry(ctx context.Context, arg database.LinkLineItemToLedgerEntryParams) error
	UpdateOrderShipping(ctx context.Context, arg database.UpdateOrderShippingParams) error
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) error
	SetOrderSettled(ctx context.Context, arg database.SetOrderSettledParams) error
	GetSupplier(ctx context.Context, id uuid.UUID) (database.Supplier, error)
	GetSupplierByName(ctx context.Context, name string) (database.Supplier, error)
	CreateSupplier(ctx context.Context, name string) (database.Supplier, error)
	InsertLedgerEntry(ctx context.Context, arg database.InsertLedgerEntryParams) (database.LedgerEntry, error)
	DeleteUnpaidLedgerEntriesForOrder(ctx context.Context, orderID uuid.UUID) error
	ListPartiallyPaidLedgerEntriesForOrder(ctx context.Context, orderID uuid.UUID) ([]database.LedgerEntry, error)
}

// NewSettlementStore creates a SettlementStore from a DBTX (pool or tx).
type NewSettlementStore func(db database.DBTX) SettlementStore

// ledgerDueDays is how far out supplier payables fall due.
const ledgerDueDays = 30

// Batch is an in-flight settlement wizard session. Batches live in
// memory only; restarting the server discards them without touching
// any order.
type Batch struct {
	ID        uuid.UUID
	State     string
	OrderIDs  []uuid.UUID
	Current   int
	Staging   map[uuid.UUID]*OrderStaging
	CreatedAt time.Time
}

// SupplierRef names a supplier by id or, when the id is unknown, by
// free-text name. A name with no catalog match creates the supplier.
type SupplierRef struct {
	ID   *uuid.UUID
	Name string
}

// OrderStagingView is the read model for one order's staging progress.
type OrderStagingView struct {
	OrderID        uuid.UUID `json:"order_id"`
	NeedsShipping  bool      `json:"needs_shipping"`
	CostsReady     bool      `json:"costs_ready"`
	SuppliersReady bool      `json:"suppliers_ready"`
	ShippingReady  bool      `json:"shipping_ready"`
	Ready          bool      `json:"ready"`
}

// BatchView is the read model for a settlement batch.
type BatchView struct {
	ID        uuid.UUID          `json:"id"`
	State     string             `json:"state"`
	Current   int                `json:"current"`
	Orders    []OrderStagingView `json:"orders"`
	CreatedAt time.Time          `json:"created_at"`
}

// CommitFailure records where a batch commit stopped.
type CommitFailure struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

// CommitResult reports the outcome of a batch commit. Settled orders
// stay settled even when a later order fails.
type CommitResult struct {
	State    string         `json:"state"`
	Settled  []uuid.UUID    `json:"settled"`
	Warnings []string       `json:"warnings"`
	Failure  *CommitFailure `json:"failure,omitempty"`
}

// SettlementService drives the multi-order settlement wizard: open a
// batch, stage costs/suppliers/shipping per order, then commit each
// order in its own transaction.
type SettlementService struct {
	store    SettlementStore
	pool     TxBeginner
	newStore NewSettlementStore
	carriers carrier.Lookup

	mu      sync.Mutex
	batches map[uuid.UUID]*Batch
}

func NewSettlementService(store SettlementStore, pool TxBeginner, newStore NewSettlementStore, carriers carrier.Lookup) *SettlementService {
	return &SettlementService{
		store:    store,
		pool:     pool,
		newStore: newStore,
		carriers: carriers,
		batches:  map[uuid.UUID]*Batch{},
	}
}

// OpenBatch validates the selection and starts a staging session. Every
// order must exist and be OPEN; duplicates collapse to one entry.
func (s *SettlementService) OpenBatch(ctx context.Context, orderIDs []uuid.UUID) (BatchView, error) {
	seen := map[uuid.UUID]bool{}
	ids := make([]uuid.UUID, 0, len(orderIDs))
	for _, id := range orderIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return BatchView{}, ErrEmptyBatch
	}

	staging := make(map[uuid.UUID]*OrderStaging, len(ids))
	for _, id := range ids {
		order, err := s.store.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return BatchView{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
			}
			return BatchView{}, fmt.Errorf("get order %s: %w", id, err)
		}
		if order.Status != enum.OrderStatusOpen {
			return BatchView{}, fmt.Errorf("%w: order %s is %s", ErrOrderNotOpen, id, order.Status)
		}
		lines, err := s.store.ListLineItems(ctx, id)
		if err != nil {
			return BatchView{}, fmt.Errorf("list line items for %s: %w", id, err)
		}
		staging[id] = newOrderStaging(order, lines)
	}

	batch := &Batch{
		ID:        uuid.New(),
		State:     enum.BatchStateStaging,
		OrderIDs:  ids,
		Current:   0,
		Staging:   staging,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.batches[batch.ID] = batch
	s.mu.Unlock()

	return viewOf(batch), nil
}

// GetBatch returns the current wizard state.
func (s *SettlementService) GetBatch(batchID uuid.UUID) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok {
		return BatchView{}, ErrBatchNotFound
	}
	return viewOf(batch), nil
}

// StageCosts records proposed unit costs for line items of one order in
// the batch. Costs merge with earlier staged values; restaging a line
// overwrites it.
func (s *SettlementService) StageCosts(batchID, orderID uuid.UUID, costs map[uuid.UUID]decimal.Decimal) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, batch, err := s.stagingFor(batchID, orderID)
	if err != nil {
		return BatchView{}, err
	}
	for lineID, cost := range costs {
		if cost.IsNegative() {
			return BatchView{}, fmt.Errorf("%w: line %s", ErrNegativeCost, lineID)
		}
		if !st.hasLine(lineID) {
			return BatchView{}, fmt.Errorf("%w: %s", ErrUnknownLineItem, lineID)
		}
	}
	for lineID, cost := range costs {
		st.LineCosts[lineID] = cost
	}
	return viewOf(batch), nil
}

// StageSuppliers records supplier assignment for one order. Mode ORDER
// takes a single ref for all lines; mode LINE takes a ref per line.
// Refs by name resolve case-insensitively against the catalog and
// create the supplier on a miss. Switching modes discards the other
// mode's staged choices.
func (s *SettlementService) StageSuppliers(ctx context.Context, batchID, orderID uuid.UUID, mode string, orderSupplier *SupplierRef, lineSuppliers map[uuid.UUID]SupplierRef) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, batch, err := s.stagingFor(batchID, orderID)
	if err != nil {
		return BatchView{}, err
	}

	switch mode {
	case enum.SupplierModeOrder:
		if orderSupplier == nil {
			return BatchView{}, ErrMissingSupplier
		}
		supplier, err := s.resolveSupplier(ctx, *orderSupplier)
		if err != nil {
			return BatchView{}, err
		}
		st.Supplier = SupplierAssignment{Mode: enum.SupplierModeOrder, OrderSupplier: &supplier.ID}

	case enum.SupplierModeLine:
		resolved := map[uuid.UUID]uuid.UUID{}
		if st.Supplier.Mode == enum.SupplierModeLine {
			for k, v := range st.Supplier.LineSuppliers {
				resolved[k] = v
			}
		}
		for lineID, ref := range lineSuppliers {
			if !st.hasLine(lineID) {
				return BatchView{}, fmt.Errorf("%w: %s", ErrUnknownLineItem, lineID)
			}
			supplier, err := s.resolveSupplier(ctx, ref)
			if err != nil {
				return BatchView{}, err
			}
			resolved[lineID] = supplier.ID
		}
		st.Supplier = SupplierAssignment{Mode: enum.SupplierModeLine, LineSuppliers: resolved}

	default:
		return BatchView{}, fmt.Errorf("%w: %q", ErrInvalidSupplierMode, mode)
	}
	return viewOf(batch), nil
}

// StageShipping records the shipping resolution for an order that
// needs one. Orders that arrived with a shipping cost already recorded
// reject restaging.
func (s *SettlementService) StageShipping(batchID, orderID uuid.UUID, carrierName string, cost decimal.Decimal, bearer string) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, batch, err := s.stagingFor(batchID, orderID)
	if err != nil {
		return BatchView{}, err
	}
	if !st.NeedsShipping {
		return BatchView{}, fmt.Errorf("%w: %s", ErrShippingNotRequired, orderID)
	}
	if carrierName == "" {
		return BatchView{}, ErrMissingCarrier
	}
	if cost.IsNegative() {
		return BatchView{}, ErrNegativeCost
	}
	if bearer != enum.BearerStore && bearer != enum.BearerCustomer {
		return BatchView{}, fmt.Errorf("%w: %q", ErrInvalidBearer, bearer)
	}
	st.Shipping = &ShippingResolution{Carrier: carrierName, Cost: cost, Bearer: bearer}
	return viewOf(batch), nil
}

// SuggestShipping resolves a free-text carrier name against the
// catalog. A miss is not an error; the caller falls back to manual
// entry.
func (s *SettlementService) SuggestShipping(name string) (carrier.Suggestion, bool) {
	return s.carriers.Suggest(name)
}

// Advance moves the wizard to the next order, or into COMMITTING after
// the last one. The current order must be fully staged.
func (s *SettlementService) Advance(batchID uuid.UUID) (BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok {
		return BatchView{}, ErrBatchNotFound
	}
	if batch.State != enum.BatchStateStaging {
		return BatchView{}, fmt.Errorf("%w: state is %s", ErrBatchNotStaging, batch.State)
	}

	current := batch.OrderIDs[batch.Current]
	st := batch.Staging[current]
	if !st.Ready() {
		return BatchView{}, fmt.Errorf("%w: order %s (costs=%t suppliers=%t shipping=%t)",
			ErrOrderNotReady, current, st.CostsReady(), st.SuppliersReady(), st.ShippingReady())
	}

	if batch.Current == len(batch.OrderIDs)-1 {
		batch.State = enum.BatchStateCommitting
	} else {
		batch.Current++
	}
	return viewOf(batch), nil
}

// Commit settles the batch order by order, each inside its own
// transaction. A failure stops the batch but never rolls back orders
// already settled; the remaining orders stay OPEN for a later batch.
func (s *SettlementService) Commit(ctx context.Context, batchID uuid.UUID, settledBy string) (CommitResult, error) {
	s.mu.Lock()
	batch, ok := s.batches[batchID]
	if !ok {
		s.mu.Unlock()
		return CommitResult{}, ErrBatchNotFound
	}
	if batch.State != enum.BatchStateCommitting {
		s.mu.Unlock()
		return CommitResult{}, fmt.Errorf("%w: state is %s", ErrBatchNotCommitting, batch.State)
	}
	s.mu.Unlock()

	result := CommitResult{Settled: []uuid.UUID{}, Warnings: []string{}}
	for _, orderID := range batch.OrderIDs {
		warnings, err := s.commitOrder(ctx, batch.Staging[orderID], settledBy)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			result.Failure = &CommitFailure{OrderID: orderID, Reason: err.Error()}
			break
		}
		result.Settled = append(result.Settled, orderID)
	}

	s.mu.Lock()
	if result.Failure != nil {
		batch.State = enum.BatchStateFailed
	} else {
		batch.State = enum.BatchStateDone
	}
	result.State = batch.State
	s.mu.Unlock()

	return result, nil
}

// commitOrder applies one order's staged decisions atomically: costs,
// suppliers, shipping, ledger regeneration, totals, then the SETTLED
// flip. Any error rolls the whole order back.
func (s *SettlementService) commitOrder(ctx context.Context, st *OrderStaging, settledBy string) ([]string, error) {
	if !st.Ready() {
		return nil, fmt.Errorf("%w: order %s", ErrOrderNotReady, st.OrderID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, st.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, st.OrderID)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	// Re-check under the row lock; the order may have been cancelled or
	// settled elsewhere since the batch opened.
	if order.Status != enum.OrderStatusOpen {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotOpen, order.Status)
	}

	lines, err := store.ListLineItems(ctx, st.OrderID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}

	payableBySupplier := map[uuid.UUID]decimal.Decimal{}
	linesBySupplier := map[uuid.UUID][]uuid.UUID{}
	supplierOrder := []uuid.UUID{}
	lineSubtotals := make([]decimal.Decimal, 0, len(lines))

	for _, li := range lines {
		lineSubtotals = append(lineSubtotals, li.Subtotal)

		cost, ok := st.LineCosts[li.ID]
		if !ok {
			// Line added after the batch opened; staging no longer covers
			// the order.
			return nil, fmt.Errorf("%w: no cost for line %s", ErrOrderNotReady, li.ID)
		}
		costSubtotal := cost.Mul(decimal.NewFromInt32(li.Quantity))
		if !cost.Equal(li.UnitCost) || !costSubtotal.Equal(li.CostSubtotal) {
			if err := store.UpdateLineItemCost(ctx, database.UpdateLineItemCostParams{
				ID:           li.ID,
				UnitCost:     cost,
				CostSubtotal: costSubtotal,
			}); err != nil {
				return nil, fmt.Errorf("update line cost: %w", err)
			}
		}

		supplierID := st.supplierFor(li.ID)
		if supplierID == nil {
			return nil, fmt.Errorf("%w: no supplier for line %s", ErrOrderNotReady, li.ID)
		}
		if li.SupplierID == nil || *li.SupplierID != *supplierID {
			if err := store.UpdateLineItemSupplier(ctx, database.UpdateLineItemSupplierParams{
				ID:         li.ID,
				SupplierID: *supplierID,
			}); err != nil {
				return nil, fmt.Errorf("update line supplier: %w", err)
			}
		}

		if _, seen := payableBySupplier[*supplierID]; !seen {
			supplierOrder = append(supplierOrder, *supplierID)
		}
		payableBySupplier[*supplierID] = payableBySupplier[*supplierID].Add(costSubtotal)
		linesBySupplier[*supplierID] = append(linesBySupplier[*supplierID], li.ID)
	}

	shippingCost := order.ShippingCost
	if st.Shipping != nil {
		if err := store.UpdateOrderShipping(ctx, database.UpdateOrderShippingParams{
			ID:              st.OrderID,
			ShippingCarrier: st.Shipping.Carrier,
			ShippingCost:    st.Shipping.Cost,
			ShippingBearer:  st.Shipping.Bearer,
		}); err != nil {
			return nil, fmt.Errorf("update shipping: %w", err)
		}
		shippingCost = st.Shipping.Cost
	}

	// Supersede payables from any earlier settlement attempt. Entries
	// that already received payment are kept and surfaced as warnings.
	partiallyPaid, err := store.ListPartiallyPaidLedgerEntriesForOrder(ctx, st.OrderID)
	if err != nil {
		return nil, fmt.Errorf("list partially paid ledger entries: %w", err)
	}
	var warnings []string
	for _, entry := range partiallyPaid {
		warnings = append(warnings, fmt.Sprintf(
			"ledger entry %s for order %s has payments recorded and was kept; review it manually",
			entry.ID, st.OrderID))
	}
	if err := store.DeleteUnpaidLedgerEntriesForOrder(ctx, st.OrderID); err != nil {
		return nil, fmt.Errorf("delete superseded ledger entries: %w", err)
	}

	dueDate := time.Now().AddDate(0, 0, ledgerDueDays)
	for _, supplierID := range supplierOrder {
		amount := payableBySupplier[supplierID]
		if !amount.IsPositive() {
			continue
		}
		entry, err := store.InsertLedgerEntry(ctx, database.InsertLedgerEntryParams{
			SupplierID:  supplierID,
			Description: fmt.Sprintf("Product cost for order %s", st.OrderID),
			Amount:      amount,
			DueDate:     dueDate,
		})
		if err != nil {
			return nil, fmt.Errorf("insert ledger entry: %w", err)
		}
		for _, lineID := range linesBySupplier[supplierID] {
			if err := store.LinkLineItemToLedgerEntry(ctx, database.LinkLineItemToLedgerEntryParams{
				ID:            lineID,
				LedgerEntryID: entry.ID,
			}); err != nil {
				return nil, fmt.Errorf("link line item to ledger entry: %w", err)
			}
		}
	}

	totals := ComputeTotals(lineSubtotals, shippingCost)
	if err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:        st.OrderID,
		Subtotal:  totals.Subtotal,
		TaxAmount: totals.TaxAmount,
		Total:     totals.Total,
	}); err != nil {
		return nil, fmt.Errorf("update totals: %w", err)
	}

	if err := store.SetOrderSettled(ctx, database.SetOrderSettledParams{
		ID:        st.OrderID,
		SettledBy: settledBy,
	}); err != nil {
		return nil, fmt.Errorf("mark settled: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return warnings, nil
}

// stagingFor looks up a batch and one of its orders. Caller holds s.mu.
func (s *SettlementService) stagingFor(batchID, orderID uuid.UUID) (*OrderStaging, *Batch, error) {
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, nil, ErrBatchNotFound
	}
	if batch.State != enum.BatchStateStaging {
		return nil, nil, fmt.Errorf("%w: state is %s", ErrBatchNotStaging, batch.State)
	}
	st, ok := batch.Staging[orderID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrOrderNotInBatch, orderID)
	}
	return st, batch, nil
}

func (s *SettlementService) resolveSupplier(ctx context.Context, ref SupplierRef) (database.Supplier, error) {
	if ref.ID != nil {
		supplier, err := s.store.GetSupplier(ctx, *ref.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Supplier{}, fmt.Errorf("%w: supplier %s not found", ErrMissingSupplier, *ref.ID)
			}
			return database.Supplier{}, fmt.Errorf("get supplier: %w", err)
		}
		return supplier, nil
	}
	if ref.Name == "" {
		return database.Supplier{}, ErrMissingSupplier
	}
	supplier, err := s.store.GetSupplierByName(ctx, ref.Name)
	if err == nil {
		return supplier, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Supplier{}, fmt.Errorf("get supplier by name: %w", err)
	}
	supplier, err = s.store.CreateSupplier(ctx, ref.Name)
	if err != nil {
		return database.Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	return supplier, nil
}

func viewOf(batch *Batch) BatchView {
	orders := make([]OrderStagingView, len(batch.OrderIDs))
	for i, id := range batch.OrderIDs {
		st := batch.Staging[id]
		orders[i] = OrderStagingView{
			OrderID:        id,
			NeedsShipping:  st.NeedsShipping,
			CostsReady:     st.CostsReady(),
			SuppliersReady: st.SuppliersReady(),
			ShippingReady:  st.ShippingReady(),
			Ready:          st.Ready(),
		}
	}
	return BatchView{
		ID:        batch.ID,
		State:     batch.State,
		Current:   batch.Current,
		Orders:    orders,
		CreatedAt: batch.CreatedAt,
	}
}
