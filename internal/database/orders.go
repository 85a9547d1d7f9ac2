package database

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderColumns = `
	id, customer_name, customer_phone, ordered_at, status,
	settled_by, settled_at,
	shipping_carrier, shipping_cost, shipping_bearer, payment_method,
	subtotal, tax_amount, total,
	cancel_reason, cancel_fee, cancel_fee_bearer, cancelled_by,
	created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.CustomerPhone, &o.OrderedAt, &o.Status,
		&o.SettledBy, &o.SettledAt,
		&o.ShippingCarrier, &o.ShippingCost, &o.ShippingBearer, &o.PaymentMethod,
		&o.Subtotal, &o.TaxAmount, &o.Total,
		&o.CancelReason, &o.CancelFee, &o.CancelFeeBearer, &o.CancelledBy,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

type CreateOrderParams struct {
	CustomerName  string
	CustomerPhone *string
	OrderedAt     time.Time
	ShippingCost  decimal.Decimal
	PaymentMethod *string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (customer_name, customer_phone, ordered_at, status, shipping_cost, payment_method)
		VALUES ($1, $2, $3, 'OPEN', $4, $5)
		RETURNING`+orderColumns,
		arg.CustomerName, arg.CustomerPhone, arg.OrderedAt, arg.ShippingCost, arg.PaymentMethod,
	)
	return scanOrder(row)
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row for the duration of the
// enclosing transaction. Only call inside a transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

type ListOrdersParams struct {
	Status    *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}

	if arg.Status != nil {
		args = append(args, *arg.Status)
		query += ` AND status = $` + itoa(len(args))
	}
	if arg.StartDate != nil {
		args = append(args, *arg.StartDate)
		query += ` AND ordered_at >= $` + itoa(len(args))
	}
	if arg.EndDate != nil {
		args = append(args, *arg.EndDate)
		query += ` AND ordered_at < $` + itoa(len(args))
	}
	args = append(args, arg.Limit)
	query += ` ORDER BY ordered_at DESC LIMIT $` + itoa(len(args))
	args = append(args, arg.Offset)
	query += ` OFFSET $` + itoa(len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type UpdateOrderShippingParams struct {
	ID              uuid.UUID
	ShippingCarrier string
	ShippingCost    decimal.Decimal
	ShippingBearer  string
}

func (q *Queries) UpdateOrderShipping(ctx context.Context, arg UpdateOrderShippingParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders
		SET shipping_carrier = $2, shipping_cost = $3, shipping_bearer = $4, updated_at = NOW()
		WHERE id = $1`,
		arg.ID, arg.ShippingCarrier, arg.ShippingCost, arg.ShippingBearer,
	)
	return err
}

type UpdateOrderTotalsParams struct {
	ID        uuid.UUID
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// UpdateOrderTotals writes the three derived fields in a single
// statement so they are never partially persisted.
func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders
		SET subtotal = $2, tax_amount = $3, total = $4, updated_at = NOW()
		WHERE id = $1`,
		arg.ID, arg.Subtotal, arg.TaxAmount, arg.Total,
	)
	return err
}

type SetOrderSettledParams struct {
	ID        uuid.UUID
	SettledBy string
}

func (q *Queries) SetOrderSettled(ctx context.Context, arg SetOrderSettledParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders
		SET status = 'SETTLED', settled_by = $2, settled_at = NOW(), updated_at = NOW()
		WHERE id = $1`,
		arg.ID, arg.SettledBy,
	)
	return err
}

type SetOrderCancelledParams struct {
	ID              uuid.UUID
	CancelReason    string
	CancelFee       decimal.Decimal
	CancelFeeBearer string
	CancelledBy     string
}

func (q *Queries) SetOrderCancelled(ctx context.Context, arg SetOrderCancelledParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders
		SET status = 'CANCELLED', cancel_reason = $2, cancel_fee = $3,
		    cancel_fee_bearer = $4, cancelled_by = $5, updated_at = NOW()
		WHERE id = $1`,
		arg.ID, arg.CancelReason, arg.CancelFee, arg.CancelFeeBearer, arg.CancelledBy,
	)
	return err
}

// DeleteOrder removes a non-terminal order and reports how many rows
// matched. Terminal orders are never deleted.
func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND status = 'OPEN'`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
