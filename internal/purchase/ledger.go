// Package purchase implements the plan purchase ledger: opening upgrade
// intents, finalizing them after payment, and cancellation. An intent is
// identified externally only by its opaque token; finalizing is idempotent
// so payment webhooks can be retried safely.
package purchase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"pawtrack/internal/db"
	"pawtrack/internal/plans"
	"pawtrack/internal/types"
)

// tokenAttempts bounds the collision-retry loop when minting purchase tokens.
const tokenAttempts = 5

// Runner abstracts db.TxRunner for testing.
type Runner interface {
	InTx(ctx context.Context, userKey string, fn func(tx db.DBTX) error) error
}

// PurchaseStore is the subset of the purchase repository the ledger needs.
type PurchaseStore interface {
	Create(ctx context.Context, intent *types.PurchaseIntent) error
	GetByToken(ctx context.Context, token string) (*types.PurchaseIntent, error)
	MarkPaid(ctx context.Context, token string) error
	MarkCanceled(ctx context.Context, token string) error
	TokenExists(ctx context.Context, token string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*types.PurchaseIntent, error)
}

// UserStore is the subset of the user repository the ledger needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// Stores bundles the repositories bound to one transaction.
type Stores struct {
	Purchases PurchaseStore
	Users     UserStore
}

// StoreFactory builds Stores bound to the given transaction.
type StoreFactory func(tx db.DBTX) Stores

// PlanChanger applies a plan change with reconciliation inside the caller's
// transaction. Satisfied by quota.Service.
type PlanChanger interface {
	ChangePlanTx(ctx context.Context, tx db.DBTX, userID string, target types.PlanTier) (*types.PlanChangeResult, error)
}

// CheckoutProvider turns an open intent into a URL the buyer completes
// payment at.
type CheckoutProvider interface {
	Name() types.PurchaseProvider
	CheckoutURL(ctx context.Context, intent *types.PurchaseIntent, user *types.User) (string, error)
}

// Ledger is the purchase service. All exported operations are safe for
// concurrent use.
type Ledger struct {
	runner   Runner
	stores   StoreFactory
	changer  PlanChanger
	provider CheckoutProvider
	tokens   types.TokenSource
	clock    types.Clock
	logger   *slog.Logger
}

// NewLedger creates the purchase Ledger. A nil logger falls back to
// slog.Default(), and a nil clock to the real clock.
func NewLedger(runner Runner, stores StoreFactory, changer PlanChanger, provider CheckoutProvider, tokens types.TokenSource, clock types.Clock, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Ledger{
		runner:   runner,
		stores:   stores,
		changer:  changer,
		provider: provider,
		tokens:   tokens,
		clock:    clock,
		logger:   logger,
	}
}

// OpenIntent records a pending purchase of target for the user and returns
// the intent together with the checkout URL to complete it at.
//
// Rejected outright: non-purchasable targets (Free, Owner, unknown), admin
// callers (their plan is immutable), and targets that do not outrank the
// caller's current plan. Downgrades are free and go through ChangePlan
// directly, never through the ledger.
func (l *Ledger) OpenIntent(ctx context.Context, userID string, target types.PlanTier) (*types.PurchaseIntent, string, error) {
	if !plans.IsPurchasable(target) {
		return nil, "", types.NewAppError(types.ErrCodePlanInvalidTarget,
			"plan cannot be purchased: "+string(target), nil)
	}

	var intent *types.PurchaseIntent
	var user *types.User
	err := l.runner.InTx(ctx, userID, func(tx db.DBTX) error {
		st := l.stores(tx)
		var err error
		user, err = st.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Role == types.RoleAdmin {
			return types.NewAppError(types.ErrCodePlanAdminImmutable,
				"admin accounts cannot purchase plans", nil)
		}
		if plans.RankOf(target) <= plans.RankOf(user.Plan) {
			return types.NewAppError(types.ErrCodePlanNotAnUpgrade,
				"target plan does not outrank current plan", nil)
		}

		token, err := l.mintToken(ctx, st)
		if err != nil {
			return err
		}

		intent = &types.PurchaseIntent{
			ID:          "pur_" + uuid.New().String(),
			UserID:      userID,
			TargetPlan:  target,
			Status:      types.PurchasePending,
			Provider:    l.provider.Name(),
			Token:       token,
			AmountCents: plans.PriceCents(target),
			CreatedAt:   l.clock.Now(),
		}
		return st.Purchases.Create(ctx, intent)
	})
	if err != nil {
		return nil, "", err
	}

	url, err := l.provider.CheckoutURL(ctx, intent, user)
	if err != nil {
		return nil, "", err
	}

	l.logger.InfoContext(ctx, "purchase intent opened",
		slog.String("purchase_id", intent.ID),
		slog.String("user_id", userID),
		slog.String("target_plan", string(target)),
	)
	return intent, url, nil
}

// FinalizePaid confirms payment for the intent behind token: the buyer's
// plan changes (with reconciliation) and the intent is marked paid, as one
// transaction under the buyer's critical section.
//
// An already-paid intent is a successful no-op, so payment webhooks can
// retry freely. A canceled intent refuses finalization, even when the
// cancellation lands between the token lookup and the critical section: the
// status check runs on a re-read under the lock.
func (l *Ledger) FinalizePaid(ctx context.Context, token string) (*types.PlanChangeResult, error) {
	intent, err := l.getByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var result *types.PlanChangeResult
	err = l.runner.InTx(ctx, intent.UserID, func(tx db.DBTX) error {
		st := l.stores(tx)
		cur, err := st.Purchases.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		switch cur.Status {
		case types.PurchasePaid:
			result = &types.PlanChangeResult{FinalPlan: cur.TargetPlan}
			return nil
		case types.PurchaseCanceled:
			return types.NewAppError(types.ErrCodePurchaseCanceled,
				"purchase was canceled and cannot be finalized", nil)
		}

		result, err = l.changer.ChangePlanTx(ctx, tx, cur.UserID, cur.TargetPlan)
		if err != nil {
			return err
		}
		return st.Purchases.MarkPaid(ctx, token)
	})
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "purchase finalized",
		slog.String("purchase_id", intent.ID),
		slog.String("user_id", intent.UserID),
		slog.String("plan", string(intent.TargetPlan)),
	)
	return result, nil
}

// Cancel marks the intent canceled regardless of its current status. The
// buyer's plan is never touched; a cancel after payment only blocks future
// finalization attempts.
func (l *Ledger) Cancel(ctx context.Context, token string) error {
	intent, err := l.getByToken(ctx, token)
	if err != nil {
		return err
	}

	err = l.runner.InTx(ctx, intent.UserID, func(tx db.DBTX) error {
		return l.stores(tx).Purchases.MarkCanceled(ctx, token)
	})
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "purchase canceled",
		slog.String("purchase_id", intent.ID),
		slog.String("user_id", intent.UserID),
	)
	return nil
}

// ApplyTargetWithoutPayment applies a caller-supplied target plan for the
// intent's user without a payment confirmation, then marks the intent paid,
// as one transaction under the buyer's critical section. Only intent
// existence is checked. This is the operator escape hatch for manual
// settlements; it is never mounted on a public route.
func (l *Ledger) ApplyTargetWithoutPayment(ctx context.Context, token string, target types.PlanTier) (*types.PlanChangeResult, error) {
	intent, err := l.getByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var result *types.PlanChangeResult
	err = l.runner.InTx(ctx, intent.UserID, func(tx db.DBTX) error {
		st := l.stores(tx)
		cur, err := st.Purchases.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		result, err = l.changer.ChangePlanTx(ctx, tx, cur.UserID, target)
		if err != nil {
			return err
		}
		return st.Purchases.MarkPaid(ctx, token)
	})
	if err != nil {
		return nil, err
	}

	l.logger.WarnContext(ctx, "plan applied without payment",
		slog.String("purchase_id", intent.ID),
		slog.String("user_id", intent.UserID),
		slog.String("plan", string(target)),
	)
	return result, nil
}

// History returns the user's purchase intents, newest first.
func (l *Ledger) History(ctx context.Context, userID string) ([]*types.PurchaseIntent, error) {
	var out []*types.PurchaseIntent
	err := l.runner.InTx(ctx, userID, func(tx db.DBTX) error {
		var err error
		out, err = l.stores(tx).Purchases.ListByUser(ctx, userID)
		return err
	})
	return out, err
}

// Get resolves an intent by its opaque token. Used by the checkout page to
// show what is being bought before the payment is confirmed.
func (l *Ledger) Get(ctx context.Context, token string) (*types.PurchaseIntent, error) {
	return l.getByToken(ctx, token)
}

func (l *Ledger) getByToken(ctx context.Context, token string) (*types.PurchaseIntent, error) {
	var intent *types.PurchaseIntent
	err := l.runner.InTx(ctx, token, func(tx db.DBTX) error {
		var err error
		intent, err = l.stores(tx).Purchases.GetByToken(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

func (l *Ledger) mintToken(ctx context.Context, st Stores) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		tok := l.tokens.NewToken()
		exists, err := st.Purchases.TokenExists(ctx, tok)
		if err != nil {
			return "", err
		}
		if !exists {
			return tok, nil
		}
	}
	return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to mint unique purchase token", nil)
}
