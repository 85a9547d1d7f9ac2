package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/enum"
)

// ShippingResolution is a staged shipping decision for one order:
// resolved carrier, final cost, and who carries it.
type ShippingResolution struct {
	Carrier string
	Cost    decimal.Decimal
	Bearer  string
}

// SupplierAssignment holds staged supplier choices. Mode ORDER uses
// OrderSupplier for every line; mode LINE reads LineSuppliers per line.
type SupplierAssignment struct {
	Mode          string
	OrderSupplier *uuid.UUID
	LineSuppliers map[uuid.UUID]uuid.UUID
}

// OrderStaging accumulates decisions for one order inside a settlement
// batch. Nothing here touches the database until the batch commits.
type OrderStaging struct {
	OrderID       uuid.UUID
	Lines         []database.LineItem
	LineCosts     map[uuid.UUID]decimal.Decimal
	Supplier      SupplierAssignment
	Shipping      *ShippingResolution
	NeedsShipping bool
}

func newOrderStaging(order database.Order, lines []database.LineItem) *OrderStaging {
	return &OrderStaging{
		OrderID:       order.ID,
		Lines:         lines,
		LineCosts:     map[uuid.UUID]decimal.Decimal{},
		Supplier: SupplierAssignment{Mode: enum.SupplierModeOrder},
		// Shipping only needs resolving when no cost was recorded at
		// intake; a non-zero recorded cost makes this step a no-op.
		NeedsShipping: order.ShippingCost.IsZero(),
	}
}

func (st *OrderStaging) hasLine(lineID uuid.UUID) bool {
	for _, li := range st.Lines {
		if li.ID == lineID {
			return true
		}
	}
	return false
}

// supplierFor resolves the staged supplier for a line, or nil when the
// assignment does not cover it.
func (st *OrderStaging) supplierFor(lineID uuid.UUID) *uuid.UUID {
	switch st.Supplier.Mode {
	case enum.SupplierModeOrder:
		return st.Supplier.OrderSupplier
	case enum.SupplierModeLine:
		if id, ok := st.Supplier.LineSuppliers[lineID]; ok {
			return &id
		}
	}
	return nil
}

// CostsReady reports whether every line item has a staged cost.
func (st *OrderStaging) CostsReady() bool {
	for _, li := range st.Lines {
		if _, ok := st.LineCosts[li.ID]; !ok {
			return false
		}
	}
	return true
}

// SuppliersReady reports whether the staged assignment covers every
// line item.
func (st *OrderStaging) SuppliersReady() bool {
	for _, li := range st.Lines {
		if st.supplierFor(li.ID) == nil {
			return false
		}
	}
	return true
}

// ShippingReady reports whether shipping is resolved, or was never
// needed because the order already carries a shipping cost.
func (st *OrderStaging) ShippingReady() bool {
	return !st.NeedsShipping || st.Shipping != nil
}

// Ready gates advancement past this order in the batch.
func (st *OrderStaging) Ready() bool {
	return st.CostsReady() && st.SuppliersReady() && st.ShippingReady()
}
