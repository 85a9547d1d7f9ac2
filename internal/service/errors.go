package service

import "errors"

// Errors returned by the settlement engine. Validation errors keep the
// batch open and never reach storage; consistency errors reject writes
// against terminal orders.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotOpen        = errors.New("order is not open")
	ErrEmptyBatch          = errors.New("order_ids are required")
	ErrBatchNotFound       = errors.New("settlement batch not found")
	ErrOrderNotInBatch     = errors.New("order is not part of this batch")
	ErrBatchNotStaging     = errors.New("batch is not in the staging phase")
	ErrBatchNotCommitting  = errors.New("batch is not ready to commit")
	ErrOrderNotReady       = errors.New("order staging is incomplete")
	ErrNegativeCost        = errors.New("cost must be zero or positive")
	ErrUnknownLineItem     = errors.New("line item does not belong to the order")
	ErrInvalidSupplierMode = errors.New("invalid supplier mode")
	ErrMissingSupplier     = errors.New("supplier is required")
	ErrMissingCarrier      = errors.New("carrier is required")
	ErrInvalidBearer       = errors.New("invalid bearer")
	ErrShippingNotRequired = errors.New("order already has a shipping cost recorded")
	ErrEmptyReason         = errors.New("cancellation reason is required")
	ErrNegativeFee         = errors.New("cancellation fee must be zero or positive")
)
