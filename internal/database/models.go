package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
}

type Order struct {
	ID              uuid.UUID
	CustomerName    string
	CustomerPhone   *string
	OrderedAt       time.Time
	Status          string
	SettledBy       *string
	SettledAt       *time.Time
	ShippingCarrier *string
	ShippingCost    decimal.Decimal
	ShippingBearer  *string
	PaymentMethod   *string
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
	CancelReason    *string
	CancelFee       decimal.Decimal
	CancelFeeBearer *string
	CancelledBy     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type LineItem struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Name          string
	Quantity      int32
	UnitPrice     decimal.Decimal
	UnitCost      decimal.Decimal
	Subtotal      decimal.Decimal
	CostSubtotal  decimal.Decimal
	SupplierID    *uuid.UUID
	LedgerEntryID *uuid.UUID
}

type Supplier struct {
	ID        uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

type LedgerEntry struct {
	ID              uuid.UUID
	SupplierID      uuid.UUID
	Description     string
	Amount          decimal.Decimal
	RemainingAmount decimal.Decimal
	CreatedAt       time.Time
	DueDate         time.Time
}

type Expense struct {
	ID          uuid.UUID
	Description string
	Amount      decimal.Decimal
	Category    string
	ExpenseDate time.Time
}

type PaymentMethod struct {
	Code       string
	Name       string
	PercentFee decimal.Decimal
	FixedFee   decimal.Decimal
}

type ShippingCarrier struct {
	ID       uuid.UUID
	Name     string
	BaseCost decimal.Decimal
}
