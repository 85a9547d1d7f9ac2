package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type DateRangeParams struct {
	StartDate time.Time
	EndDate   time.Time
}

type SettlementMarginRow struct {
	SettledOrders     int64
	Revenue           decimal.Decimal
	TaxCollected      decimal.Decimal
	ProductCost       decimal.Decimal
	ShippingCostStore decimal.Decimal
	PaymentFees       decimal.Decimal
}

// GetSettlementMargin aggregates settled orders in [start, end).
// Payment fees come from the payment-method catalog; orders without a
// recorded method contribute zero fees.
func (q *Queries) GetSettlementMargin(ctx context.Context, arg DateRangeParams) (SettlementMarginRow, error) {
	var r SettlementMarginRow
	err := q.db.QueryRow(ctx, `
		SELECT
			COUNT(o.id),
			COALESCE(SUM(o.subtotal), 0),
			COALESCE(SUM(o.tax_amount), 0),
			COALESCE(SUM(lc.cost_total), 0),
			COALESCE(SUM(CASE WHEN o.shipping_bearer = 'STORE' THEN o.shipping_cost ELSE 0 END), 0),
			COALESCE(SUM(o.total * pm.percent_fee / 100 + pm.fixed_fee), 0)
		FROM orders o
		LEFT JOIN payment_methods pm ON pm.code = o.payment_method
		LEFT JOIN (
			SELECT order_id, SUM(cost_subtotal) AS cost_total
			FROM line_items
			GROUP BY order_id
		) lc ON lc.order_id = o.id
		WHERE o.status = 'SETTLED' AND o.settled_at >= $1 AND o.settled_at < $2`,
		arg.StartDate, arg.EndDate,
	).Scan(
		&r.SettledOrders, &r.Revenue, &r.TaxCollected,
		&r.ProductCost, &r.ShippingCostStore, &r.PaymentFees,
	)
	return r, err
}

type CancellationFeesRow struct {
	CancelledOrders  int64
	FeesFromCustomer decimal.Decimal
	FeesBorneByStore decimal.Decimal
}

func (q *Queries) GetCancellationFees(ctx context.Context, arg DateRangeParams) (CancellationFeesRow, error) {
	var r CancellationFeesRow
	err := q.db.QueryRow(ctx, `
		SELECT
			COUNT(id),
			COALESCE(SUM(CASE WHEN cancel_fee_bearer = 'CUSTOMER' THEN cancel_fee ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN cancel_fee_bearer = 'STORE' THEN cancel_fee ELSE 0 END), 0)
		FROM orders
		WHERE status = 'CANCELLED' AND updated_at >= $1 AND updated_at < $2`,
		arg.StartDate, arg.EndDate,
	).Scan(&r.CancelledOrders, &r.FeesFromCustomer, &r.FeesBorneByStore)
	return r, err
}
