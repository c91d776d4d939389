package quota

import (
	"context"
	"log/slog"

	"pawtrack/internal/db"
	"pawtrack/internal/plans"
	"pawtrack/internal/types"
)

// ChangePlan persists a new plan tier for the user and reconciles pet
// statuses to match, in one transaction. Upgrades, downgrades and
// cancellations (downgrade to Free) are all the same path.
func (s *Service) ChangePlan(ctx context.Context, userID string, target types.PlanTier) (*types.PlanChangeResult, error) {
	var result *types.PlanChangeResult
	err := s.runner.InTx(ctx, userID, func(tx db.DBTX) error {
		var err error
		result, err = s.ChangePlanTx(ctx, tx, userID, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChangePlanTx is ChangePlan inside the caller's transaction. The caller
// must already hold the per-user critical section for userID (see
// db.TxRunner); the purchase ledger uses this to make payment confirmation
// and the plan change one atomic unit.
//
// The plan write happens before reconciliation, so even a reconciler bug
// leaves the account billed for what it actually bought. Admin accounts
// refuse plan changes outright: their capacity comes from the role, and a
// stored plan change would only create confusion. Owner is granted at
// account seed time, never assigned, so it is rejected as a target too.
func (s *Service) ChangePlanTx(ctx context.Context, tx db.DBTX, userID string, target types.PlanTier) (*types.PlanChangeResult, error) {
	if !plans.IsValid(target) {
		return nil, types.NewAppError(types.ErrCodePlanInvalidTarget,
			"unknown plan tier: "+string(target), nil)
	}
	if target == types.PlanOwner {
		return nil, types.NewAppError(types.ErrCodePlanInvalidTarget,
			"the Owner plan cannot be assigned", nil)
	}

	st := s.stores(tx)
	user, err := st.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == types.RoleAdmin {
		return nil, types.NewAppError(types.ErrCodePlanAdminImmutable,
			"admin accounts cannot change plan", nil)
	}

	if err := st.Users.UpdatePlan(ctx, userID, target); err != nil {
		return nil, err
	}
	user.Plan = target

	activated, deactivated, err := s.reconcileTx(ctx, st, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "plan changed",
		slog.String("user_id", userID),
		slog.String("plan", string(target)),
		slog.Int64("activated", activated),
		slog.Int64("deactivated", deactivated),
	)
	return &types.PlanChangeResult{
		Activated:   int(activated),
		Deactivated: int(deactivated),
		FinalPlan:   target,
	}, nil
}
