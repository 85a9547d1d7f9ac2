package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/enum"
)

// CancellationStore defines the DB methods used to cancel an order.
type CancellationStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	SetOrderCancelled(ctx context.Context, arg database.SetOrderCancelledParams) error
	InsertExpense(ctx context.Context, arg database.InsertExpenseParams) (database.Expense, error)
}

// NewCancellationStore creates a CancellationStore from a DBTX.
type NewCancellationStore func(db database.DBTX) CancellationStore

// CancellationService cancels open orders and books the cancellation
// fee as an expense when the store carries it.
type CancellationService struct {
	pool     TxBeginner
	newStore NewCancellationStore
}

func NewCancellationService(pool TxBeginner, newStore NewCancellationStore) *CancellationService {
	return &CancellationService{pool: pool, newStore: newStore}
}

type CancelOrderParams struct {
	OrderID     uuid.UUID
	Reason      string
	Fee         decimal.Decimal
	FeeBearer   string
	CancelledBy string
}

// Cancel moves an OPEN order to CANCELLED in one transaction. Exactly
// one expense is created, and only when the store carries a positive
// fee. Terminal orders are rejected under the row lock.
func (s *CancellationService) Cancel(ctx context.Context, arg CancelOrderParams) error {
	if arg.Reason == "" {
		return ErrEmptyReason
	}
	if arg.Fee.IsNegative() {
		return ErrNegativeFee
	}
	if arg.FeeBearer != enum.BearerStore && arg.FeeBearer != enum.BearerCustomer {
		return fmt.Errorf("%w: %q", ErrInvalidBearer, arg.FeeBearer)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, arg.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, arg.OrderID)
		}
		return fmt.Errorf("lock order: %w", err)
	}
	if order.Status != enum.OrderStatusOpen {
		return fmt.Errorf("%w: status is %s", ErrOrderNotOpen, order.Status)
	}

	if err := store.SetOrderCancelled(ctx, database.SetOrderCancelledParams{
		ID:              arg.OrderID,
		CancelReason:    arg.Reason,
		CancelFee:       arg.Fee,
		CancelFeeBearer: arg.FeeBearer,
		CancelledBy:     arg.CancelledBy,
	}); err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}

	if arg.FeeBearer == enum.BearerStore && arg.Fee.IsPositive() {
		if _, err := store.InsertExpense(ctx, database.InsertExpenseParams{
			Description: fmt.Sprintf("Cancellation fee for order %s", arg.OrderID),
			Amount:      arg.Fee,
			Category:    enum.ExpenseCategoryCancellationFee,
			ExpenseDate: time.Now(),
		}); err != nil {
			return fmt.Errorf("insert cancellation expense: %w", err)
		}
	}

	return tx.Commit(ctx)
}
