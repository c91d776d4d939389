// Package quota implements the pet admission and reconciliation core: the
// admission gate that bounds new requests, the pending -> active -> inactive
// lifecycle, the reconciler that converges pet statuses after a plan change,
// and the plan change coordinator that ties the two together.
//
// Every mutation runs inside a serializable transaction holding a per-account
// advisory lock (see db.TxRunner), so concurrent requests for the same
// account cannot interleave past a quota check.
package quota

import (
	"context"
	"log/slog"
	"time"

	"pawtrack/internal/db"
	"pawtrack/internal/types"
)

// Runner abstracts db.TxRunner for testing.
type Runner interface {
	InTx(ctx context.Context, userKey string, fn func(tx db.DBTX) error) error
}

// PetStore is the subset of the pet repository the quota core needs.
type PetStore interface {
	CreatePending(ctx context.Context, pet *types.Pet) error
	GetByID(ctx context.Context, id string) (*types.Pet, error)
	CountByStatus(ctx context.Context, userID string, statuses ...types.PetStatus) (int, error)
	SetActive(ctx context.Context, id string, approvedBy string, now time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
	ReactivateUpTo(ctx context.Context, userID string, need int, now time.Time) (int64, error)
	DeactivateExcess(ctx context.Context, userID string, quota int) (int64, error)
	QRTokenExists(ctx context.Context, token string) (bool, error)
}

// UserStore is the subset of the user repository the quota core needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
	UpdatePlan(ctx context.Context, id string, plan types.PlanTier) error
}

// Stores bundles the repositories bound to one transaction.
type Stores struct {
	Pets  PetStore
	Users UserStore
}

// StoreFactory builds Stores bound to the given transaction. In production
// this wraps db.NewPetRepository / db.NewUserRepository; tests substitute
// fakes.
type StoreFactory func(tx db.DBTX) Stores

// Service is the quota core. All exported operations are safe for
// concurrent use.
type Service struct {
	runner Runner
	stores StoreFactory
	tokens types.TokenSource
	clock  types.Clock
	logger *slog.Logger
}

// NewService creates the quota Service. A nil logger falls back to
// slog.Default(), and a nil clock to the real clock.
func NewService(runner Runner, stores StoreFactory, tokens types.TokenSource, clock types.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{
		runner: runner,
		stores: stores,
		tokens: tokens,
		clock:  clock,
		logger: logger,
	}
}
