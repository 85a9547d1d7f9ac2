package database

import "context"

// Payment methods and shipping carriers are read-only reference data,
// seeded by cmd/seed and consumed by settlement and reporting.

func (q *Queries) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := q.db.Query(ctx,
		`SELECT code, name, percent_fee, fixed_fee FROM payment_methods ORDER BY code`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []PaymentMethod
	for rows.Next() {
		var m PaymentMethod
		if err := rows.Scan(&m.Code, &m.Name, &m.PercentFee, &m.FixedFee); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (q *Queries) ListShippingCarriers(ctx context.Context) ([]ShippingCarrier, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, name, base_cost FROM shipping_carriers ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var carriers []ShippingCarrier
	for rows.Next() {
		var c ShippingCarrier
		if err := rows.Scan(&c.ID, &c.Name, &c.BaseCost); err != nil {
			return nil, err
		}
		carriers = append(carriers, c)
	}
	return carriers, rows.Err()
}
