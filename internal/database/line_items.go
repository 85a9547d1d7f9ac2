package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const lineItemColumns = `
	id, order_id, name, quantity, unit_price, unit_cost,
	subtotal, cost_subtotal, supplier_id, ledger_entry_id`

func scanLineItem(row interface{ Scan(dest ...any) error }) (LineItem, error) {
	var li LineItem
	err := row.Scan(
		&li.ID, &li.OrderID, &li.Name, &li.Quantity, &li.UnitPrice, &li.UnitCost,
		&li.Subtotal, &li.CostSubtotal, &li.SupplierID, &li.LedgerEntryID,
	)
	return li, err
}

type CreateLineItemParams struct {
	OrderID   uuid.UUID
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// CreateLineItem inserts a line item with derived subtotal computed in
// SQL so quantity and price can never drift from it.
func (q *Queries) CreateLineItem(ctx context.Context, arg CreateLineItemParams) (LineItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO line_items (order_id, name, quantity, unit_price, unit_cost, subtotal, cost_subtotal)
		VALUES ($1, $2, $3, $4, 0, $3 * $4, 0)
		RETURNING`+lineItemColumns,
		arg.OrderID, arg.Name, arg.Quantity, arg.UnitPrice,
	)
	return scanLineItem(row)
}

func (q *Queries) ListLineItems(ctx context.Context, orderID uuid.UUID) ([]LineItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT`+lineItemColumns+` FROM line_items WHERE order_id = $1 ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

type UpdateLineItemCostParams struct {
	ID           uuid.UUID
	UnitCost     decimal.Decimal
	CostSubtotal decimal.Decimal
}

func (q *Queries) UpdateLineItemCost(ctx context.Context, arg UpdateLineItemCostParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE line_items SET unit_cost = $2, cost_subtotal = $3 WHERE id = $1`,
		arg.ID, arg.UnitCost, arg.CostSubtotal,
	)
	return err
}

type UpdateLineItemSupplierParams struct {
	ID         uuid.UUID
	SupplierID uuid.UUID
}

func (q *Queries) UpdateLineItemSupplier(ctx context.Context, arg UpdateLineItemSupplierParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE line_items SET supplier_id = $2 WHERE id = $1`,
		arg.ID, arg.SupplierID,
	)
	return err
}

type LinkLineItemToLedgerEntryParams struct {
	ID            uuid.UUID
	LedgerEntryID uuid.UUID
}

func (q *Queries) LinkLineItemToLedgerEntry(ctx context.Context, arg LinkLineItemToLedgerEntryParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE line_items SET ledger_entry_id = $2 WHERE id = $1`,
		arg.ID, arg.LedgerEntryID,
	)
	return err
}
