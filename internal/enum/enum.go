package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusOpen      = "OPEN"
	OrderStatusSettled   = "SETTLED"
	OrderStatusCancelled = "CANCELLED"
)

// Settlement batch states. In-memory only, never persisted. Order
// selection happens in the open call itself, so a fresh batch starts
// out already STAGING.
const (
	BatchStateStaging    = "STAGING"
	BatchStateCommitting = "COMMITTING"
	BatchStateDone       = "DONE"
	BatchStateFailed     = "FAILED"
)

// ── Group B: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin = "ADMIN"
	UserRoleStaff = "STAFF"
)

// Bearer identifies which party carries a cost (shipping or cancellation fee).
const (
	BearerStore    = "STORE"
	BearerCustomer = "CUSTOMER"
)

// ── Group C: Configurable labels (no DB constraint) ──

// Supplier assignment modes for a settlement batch.
const (
	SupplierModeOrder = "ORDER"
	SupplierModeLine  = "LINE"
)

const (
	ExpenseCategoryCancellationFee = "CANCELLATION_FEE"
	ExpenseCategoryGeneral         = "GENERAL"
)
