package quota

import (
	"context"
	"fmt"

	"pawtrack/internal/db"
	"pawtrack/internal/plans"
	"pawtrack/internal/types"
)

// Denial reasons surfaced to clients. The two messages are deliberately
// distinct: a zero-slot plan and a full plan call for different upgrade
// prompts in the UI.
const (
	reasonNoSlots = "your plan does not include pet slots; upgrade to add a pet"
	reasonFull    = "pet limit reached for your plan (%d); upgrade to add more"
)

// Decision is the admission gate's verdict. Reason is empty when Allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanAdd reports whether the user may request one more pet right now.
// Active and pending pets both count against the quota, so an approval
// backlog can never push an account past its limit.
func (s *Service) CanAdd(ctx context.Context, userID string) (Decision, error) {
	var decision Decision
	err := s.runner.InTx(ctx, userID, func(tx db.DBTX) error {
		st := s.stores(tx)
		user, err := st.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		decision, err = s.gateCheck(ctx, st, user)
		return err
	})
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// gateCheck runs the admission check against the stores of the current
// transaction. Callers that go on to mutate must call this inside the same
// transaction as the mutation.
func (s *Service) gateCheck(ctx context.Context, st Stores, user *types.User) (Decision, error) {
	if plans.Unlimited(user.Role, user.Plan) {
		return Decision{Allowed: true}, nil
	}

	quota := plans.QuotaFor(user.Plan)
	if quota == 0 {
		return Decision{Reason: reasonNoSlots}, nil
	}

	count, err := st.Pets.CountByStatus(ctx, user.ID, types.PetActive, types.PetPending)
	if err != nil {
		return Decision{}, err
	}
	if count >= quota {
		return Decision{Reason: fmt.Sprintf(reasonFull, quota)}, nil
	}
	return Decision{Allowed: true}, nil
}
