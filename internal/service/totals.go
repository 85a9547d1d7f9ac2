package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/enum"
)

// TaxRate is the fixed rate applied to the taxable base
// (pre-tax subtotal plus shipping cost).
var TaxRate = decimal.RequireFromString("0.15")

// Totals holds an order's derived monetary fields.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals derives subtotal, tax, and total from line subtotals
// and shipping cost. Pure; identical inputs always yield identical
// outputs.
func ComputeTotals(lineSubtotals []decimal.Decimal, shippingCost decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, s := range lineSubtotals {
		subtotal = subtotal.Add(s)
	}
	taxableBase := subtotal.Add(shippingCost)
	taxAmount := taxableBase.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     taxableBase.Add(taxAmount),
	}
}

// TotalsStore defines the DB methods needed to recompute order totals.
// Satisfied by *database.Queries (and its tx-bound variant).
type TotalsStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListLineItems(ctx context.Context, orderID uuid.UUID) ([]database.LineItem, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) error
}

// NewTotalsStore creates a TotalsStore from a DBTX (pool or tx).
type NewTotalsStore func(db database.DBTX) TotalsStore

// TotalsService recomputes and persists derived order totals.
type TotalsService struct {
	pool     TxBeginner
	newStore NewTotalsStore
}

func NewTotalsService(pool TxBeginner, newStore NewTotalsStore) *TotalsService {
	return &TotalsService{pool: pool, newStore: newStore}
}

// Recompute rederives subtotal/tax/total from the order's current line
// items and persists all three in one write. Idempotent: repeated calls
// with unchanged line items produce identical stored values. Terminal
// orders are rejected before any write.
func (s *TotalsService) Recompute(ctx context.Context, orderID uuid.UUID) (Totals, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Totals{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Totals{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return Totals{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusOpen {
		return Totals{}, fmt.Errorf("%w: status is %s", ErrOrderNotOpen, order.Status)
	}

	lines, err := store.ListLineItems(ctx, orderID)
	if err != nil {
		return Totals{}, fmt.Errorf("list line items: %w", err)
	}

	subtotals := make([]decimal.Decimal, len(lines))
	for i, li := range lines {
		subtotals[i] = li.Subtotal
	}

	totals := ComputeTotals(subtotals, order.ShippingCost)
	if err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:        orderID,
		Subtotal:  totals.Subtotal,
		TaxAmount: totals.TaxAmount,
		Total:     totals.Total,
	}); err != nil {
		return Totals{}, fmt.Errorf("update order totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Totals{}, fmt.Errorf("commit tx: %w", err)
	}
	return totals, nil
}
