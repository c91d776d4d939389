package types

// PetStatus represents the lifecycle state of a pet record.
// There is no terminal "rejected" state: rejecting a pending request
// deletes the row outright.
type PetStatus string

const (
	// PetPending is awaiting admin approval. Counts against the plan quota.
	PetPending PetStatus = "pending"
	// PetActive is approved and visible. Counts against the plan quota.
	PetActive PetStatus = "active"
	// PetInactive is parked by a downgrade. Does not count against the
	// quota and is eligible for reactivation on upgrade.
	PetInactive PetStatus = "inactive"
)

// PlanTier identifies the subscription plan of a user account.
type PlanTier string

const (
	PlanFree  PlanTier = "Free"
	PlanBasic PlanTier = "Basic"
	PlanPlus  PlanTier = "Plus"
	// PlanOwner is reserved for admin accounts and is never a purchasable
	// target through the ledger.
	PlanOwner PlanTier = "Owner"
)

// UserRole defines authorization levels.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// PurchaseStatus represents the state of a purchase intent.
type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "pending"
	PurchasePaid     PurchaseStatus = "paid"
	PurchaseCanceled PurchaseStatus = "canceled"
)

// PurchaseProvider identifies the payment processor behind an intent.
type PurchaseProvider string

const (
	ProviderMock   PurchaseProvider = "mock"
	ProviderStripe PurchaseProvider = "stripe"
)

// GeofenceState is the last known position of a pet relative to the
// owner's home radius.
type GeofenceState string

const (
	GeofenceInside  GeofenceState = "inside"
	GeofenceOutside GeofenceState = "outside"
	GeofenceUnknown GeofenceState = "unknown"
)
