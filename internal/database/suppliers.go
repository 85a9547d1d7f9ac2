package database

import (
	"context"

	"github.com/google/uuid"
)

const supplierColumns = ` id, name, is_active, created_at`

func scanSupplier(row interface{ Scan(dest ...any) error }) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.IsActive, &s.CreatedAt)
	return s, err
}

func (q *Queries) CreateSupplier(ctx context.Context, name string) (Supplier, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO suppliers (name) VALUES ($1)
		RETURNING`+supplierColumns,
		name,
	)
	return scanSupplier(row)
}

func (q *Queries) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	row := q.db.QueryRow(ctx, `SELECT`+supplierColumns+` FROM suppliers WHERE id = $1`, id)
	return scanSupplier(row)
}

// GetSupplierByName matches case-insensitively on the exact name.
func (q *Queries) GetSupplierByName(ctx context.Context, name string) (Supplier, error) {
	row := q.db.QueryRow(ctx,
		`SELECT`+supplierColumns+` FROM suppliers WHERE lower(name) = lower($1)`,
		name,
	)
	return scanSupplier(row)
}

func (q *Queries) ListActiveSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := q.db.Query(ctx,
		`SELECT`+supplierColumns+` FROM suppliers WHERE is_active = true ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}
