package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const expenseColumns = ` id, description, amount, category, expense_date`

func scanExpense(row interface{ Scan(dest ...any) error }) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Description, &e.Amount, &e.Category, &e.ExpenseDate)
	return e, err
}

type InsertExpenseParams struct {
	Description string
	Amount      decimal.Decimal
	Category    string
	ExpenseDate time.Time
}

func (q *Queries) InsertExpense(ctx context.Context, arg InsertExpenseParams) (Expense, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO expenses (description, amount, category, expense_date)
		VALUES ($1, $2, $3, $4)
		RETURNING`+expenseColumns,
		arg.Description, arg.Amount, arg.Category, arg.ExpenseDate,
	)
	return scanExpense(row)
}

type ListExpensesParams struct {
	Category  *string
	StartDate *time.Time
	EndDate   *time.Time
}

func (q *Queries) ListExpenses(ctx context.Context, arg ListExpensesParams) ([]Expense, error) {
	query := `SELECT` + expenseColumns + ` FROM expenses WHERE 1=1`
	args := []any{}

	if arg.Category != nil {
		args = append(args, *arg.Category)
		query += ` AND category = $` + itoa(len(args))
	}
	if arg.StartDate != nil {
		args = append(args, *arg.StartDate)
		query += ` AND expense_date >= $` + itoa(len(args))
	}
	if arg.EndDate != nil {
		args = append(args, *arg.EndDate)
		query += ` AND expense_date < $` + itoa(len(args))
	}
	query += ` ORDER BY expense_date DESC`

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}
