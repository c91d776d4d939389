package types

import "time"

// User is a platform account. Role and Plan together determine quota
// behavior: an admin role is always treated as unlimited capacity
// regardless of the stored plan value.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Plan      PlanTier  `json:"plan"`
	Role      UserRole  `json:"role"`
	HomeLat   *float64  `json:"home_lat,omitempty"`
	HomeLng   *float64  `json:"home_lng,omitempty"`
	HomeAddr  string    `json:"home_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pet is the quota-bearing resource. UserID is nullable: a pet whose owner
// row was removed becomes orphaned and can be reattached by an admin.
//
// LastActiveAt is the recency value the reconciler orders by. It is set at
// creation and refreshed every time the pet transitions into active, so
// "most recently activated" survives downgrades first.
type Pet struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id,omitempty"`
	Name          string        `json:"name"`
	Breed         string        `json:"breed,omitempty"`
	Photo         string        `json:"photo,omitempty"`
	Status        PetStatus     `json:"status"`
	RequestedBy   string        `json:"requested_by,omitempty"`
	ApprovedBy    string        `json:"approved_by,omitempty"`
	LastActiveAt  time.Time     `json:"last_active_at"`
	QRToken       string        `json:"qr_token,omitempty"`
	TrackerCode   string        `json:"tracker_code,omitempty"`
	LastLat       *float64      `json:"last_lat,omitempty"`
	LastLng       *float64      `json:"last_lng,omitempty"`
	LastSeenAt    *time.Time    `json:"last_seen_at,omitempty"`
	GeofenceState GeofenceState `json:"geofence_state"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PurchaseIntent records a plan upgrade order. Token is the only
// external-facing identifier (opaque, unguessable, unique).
type PurchaseIntent struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	TargetPlan  PlanTier         `json:"target_plan"`
	Status      PurchaseStatus   `json:"status"`
	Provider    PurchaseProvider `json:"provider"`
	Token       string           `json:"-"`
	AmountCents int64            `json:"amount_cents"`
	CreatedAt   time.Time        `json:"created_at"`
}

// PlanChangeResult summarizes a completed plan change.
type PlanChangeResult struct {
	Activated   int      `json:"activated"`
	Deactivated int      `json:"deactivated"`
	FinalPlan   PlanTier `json:"final_plan"`
}

// PublicPetCard is the projection served on the public card page reached
// through a printed QR token. It deliberately exposes nothing beyond what a
// finder of a lost pet needs.
type PublicPetCard struct {
	PetID      string `json:"pet_id"`
	PetName    string `json:"pet_name"`
	Photo      string `json:"photo,omitempty"`
	OwnerName  string `json:"owner_name,omitempty"`
	OwnerPhone string `json:"owner_phone,omitempty"`
}

// PendingPet is the admin review-queue projection: a pending pet joined
// with its requester's contact details.
type PendingPet struct {
	Pet        Pet    `json:"pet"`
	OwnerEmail string `json:"owner_email,omitempty"`
	OwnerName  string `json:"owner_name,omitempty"`
}
