package quota

import (
	"context"
	"log/slog"

	"pawtrack/internal/db"
	"pawtrack/internal/plans"
	"pawtrack/internal/types"
)

// Reconcile converges a user's pet statuses with their current plan quota.
// It is idempotent: running it twice in a row changes nothing the second
// time. Mounted on the admin surface for support tooling; plan changes call
// reconcileTx inside their own transaction instead.
func (s *Service) Reconcile(ctx context.Context, userID string) (activated, deactivated int64, err error) {
	err = s.runner.InTx(ctx, userID, func(tx db.DBTX) error {
		st := s.stores(tx)
		user, err := st.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		activated, deactivated, err = s.reconcileTx(ctx, st, user)
		return err
	})
	return activated, deactivated, err
}

// reconcileTx runs the two reconciliation phases against the stores of the
// caller's transaction.
//
// Phase A (fill): while the quota has headroom over the active count,
// reactivate inactive pets, most recently activated first, refreshing their
// recency as they come back.
//
// Phase B (shed): if the active count exceeds the quota, deactivate the
// excess, keeping the quota most recently activated pets. Recency is left
// untouched on the way down so a later upgrade restores the same ordering.
//
// The phases cannot both fire: A only when active < quota, B only when
// active > quota.
func (s *Service) reconcileTx(ctx context.Context, st Stores, user *types.User) (activated, deactivated int64, err error) {
	if plans.Unlimited(user.Role, user.Plan) {
		// Unlimited accounts are already converged: nothing is ever shed,
		// and deliberately deactivated pets stay inactive.
		return 0, 0, nil
	}

	quota := plans.QuotaFor(user.Plan)
	active, err := st.Pets.CountByStatus(ctx, user.ID, types.PetActive)
	if err != nil {
		return 0, 0, err
	}

	switch {
	case active < quota:
		activated, err = st.Pets.ReactivateUpTo(ctx, user.ID, quota-active, s.clock.Now())
	case active > quota:
		deactivated, err = st.Pets.DeactivateExcess(ctx, user.ID, quota)
	}
	if err != nil {
		return 0, 0, err
	}

	if activated > 0 || deactivated > 0 {
		s.logger.InfoContext(ctx, "pets reconciled",
			slog.String("user_id", user.ID),
			slog.String("plan", string(user.Plan)),
			slog.Int64("activated", activated),
			slog.Int64("deactivated", deactivated),
		)
	}
	return activated, deactivated, nil
}
