package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const ledgerEntryColumns = `
	id, supplier_id, description, amount, remaining_amount, created_at, due_date`

func scanLedgerEntry(row interface{ Scan(dest ...any) error }) (LedgerEntry, error) {
	var e LedgerEntry
	err := row.Scan(
		&e.ID, &e.SupplierID, &e.Description, &e.Amount, &e.RemainingAmount,
		&e.CreatedAt, &e.DueDate,
	)
	return e, err
}

type InsertLedgerEntryParams struct {
	SupplierID  uuid.UUID
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
}

// InsertLedgerEntry creates a payable with remaining_amount equal to
// the full amount.
func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO ledger_entries (supplier_id, description, amount, remaining_amount, due_date)
		VALUES ($1, $2, $3, $3, $4)
		RETURNING`+ledgerEntryColumns,
		arg.SupplierID, arg.Description, arg.Amount, arg.DueDate,
	)
	return scanLedgerEntry(row)
}

// DeleteUnpaidLedgerEntriesForOrder supersedes prior payables generated
// for this order, but only entries still unpaid in full. Line-item
// references are cleared by the ON DELETE SET NULL constraint.
func (q *Queries) DeleteUnpaidLedgerEntriesForOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM ledger_entries
		WHERE description LIKE '%' || $1::text || '%' AND remaining_amount = amount`,
		orderID.String(),
	)
	return err
}

// ListPartiallyPaidLedgerEntriesForOrder returns payables for this
// order that have already received payment and therefore survive
// supersession.
func (q *Queries) ListPartiallyPaidLedgerEntriesForOrder(ctx context.Context, orderID uuid.UUID) ([]LedgerEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT`+ledgerEntryColumns+`
		FROM ledger_entries
		WHERE description LIKE '%' || $1::text || '%' AND remaining_amount <> amount
		ORDER BY created_at`,
		orderID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type ListLedgerEntriesParams struct {
	SupplierID *uuid.UUID
	UnpaidOnly bool
}

// LedgerEntryWithSupplier joins the supplier name for list views.
type LedgerEntryWithSupplier struct {
	LedgerEntry
	SupplierName string
}

func (q *Queries) ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]LedgerEntryWithSupplier, error) {
	query := `
		SELECT le.id, le.supplier_id, le.description, le.amount, le.remaining_amount,
		       le.created_at, le.due_date, s.name
		FROM ledger_entries le
		JOIN suppliers s ON s.id = le.supplier_id
		WHERE 1=1`
	args := []any{}

	if arg.SupplierID != nil {
		args = append(args, *arg.SupplierID)
		query += ` AND le.supplier_id = $` + itoa(len(args))
	}
	if arg.UnpaidOnly {
		query += ` AND le.remaining_amount > 0`
	}
	query += ` ORDER BY le.created_at DESC`

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntryWithSupplier
	for rows.Next() {
		var e LedgerEntryWithSupplier
		if err := rows.Scan(
			&e.ID, &e.SupplierID, &e.Description, &e.Amount, &e.RemainingAmount,
			&e.CreatedAt, &e.DueDate, &e.SupplierName,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type PayLedgerEntryParams struct {
	ID     uuid.UUID
	Amount decimal.Decimal
}

// PayLedgerEntry decrements remaining_amount. The WHERE clause rejects
// overpayment atomically; no rows means the entry is missing or the
// payment exceeds what is still owed.
func (q *Queries) PayLedgerEntry(ctx context.Context, arg PayLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE ledger_entries
		SET remaining_amount = remaining_amount - $2
		WHERE id = $1 AND remaining_amount >= $2
		RETURNING`+ledgerEntryColumns,
		arg.ID, arg.Amount,
	)
	return scanLedgerEntry(row)
}
