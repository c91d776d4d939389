package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"pawtrack/internal/types"
)

// PurchaseRepository provides data access for the purchases table. Rows are
// keyed externally by their opaque token; the surrogate ID never leaves the
// service.
type PurchaseRepository struct {
	db DBTX
}

// NewPurchaseRepository creates a new PurchaseRepository backed by the given
// database connection (pool or transaction).
func NewPurchaseRepository(db DBTX) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

const purchaseColumns = `pu.id, pu.user_id, pu.target_plan, pu.status,
	pu.provider, pu.token, pu.amount_cents, pu.created_at`

func scanPurchase(row pgx.Row) (*types.PurchaseIntent, error) {
	var intent types.PurchaseIntent
	err := row.Scan(
		&intent.ID,
		&intent.UserID,
		&intent.TargetPlan,
		&intent.Status,
		&intent.Provider,
		&intent.Token,
		&intent.AmountCents,
		&intent.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// Create inserts a new purchase intent in pending status. The caller must
// set ID, UserID, TargetPlan, Provider, Token and AmountCents.
func (r *PurchaseRepository) Create(ctx context.Context, intent *types.PurchaseIntent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO purchases (
			id, user_id, target_plan, status,
			provider, token, amount_cents, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, COALESCE($8, NOW())
		)`,
		intent.ID,
		intent.UserID,
		intent.TargetPlan,
		types.PurchasePending,
		intent.Provider,
		intent.Token,
		intent.AmountCents,
		nilIfZeroTime(intent.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create purchase intent", err)
	}
	return nil
}

// GetByToken retrieves a purchase intent by its external token. Returns
// ErrCodeNotFoundPurchase if no intent carries the token.
func (r *PurchaseRepository) GetByToken(ctx context.Context, token string) (*types.PurchaseIntent, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases pu WHERE pu.token = $1`,
		token,
	)

	intent, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPurchase, "purchase not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve purchase intent", err)
	}
	return intent, nil
}

// MarkPaid transitions the intent to paid. Returns ErrCodeNotFoundPurchase
// if the token does not exist.
func (r *PurchaseRepository) MarkPaid(ctx context.Context, token string) error {
	return r.setStatus(ctx, token, types.PurchasePaid)
}

// MarkCanceled transitions the intent to canceled. Returns
// ErrCodeNotFoundPurchase if the token does not exist.
func (r *PurchaseRepository) MarkCanceled(ctx context.Context, token string) error {
	return r.setStatus(ctx, token, types.PurchaseCanceled)
}

func (r *PurchaseRepository) setStatus(ctx context.Context, token string, status types.PurchaseStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE purchases SET status = $1 WHERE token = $2`,
		status, token,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update purchase status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPurchase, "purchase not found", nil)
	}
	return nil
}

// TokenExists reports whether any intent already carries the given token.
// Used by the token source to retry on collision.
func (r *PurchaseRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM purchases WHERE token = $1)`,
		token,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check purchase token", err)
	}
	return exists, nil
}

// ListByUser returns a user's purchase history, newest first.
func (r *PurchaseRepository) ListByUser(ctx context.Context, userID string) ([]*types.PurchaseIntent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+purchaseColumns+`
		 FROM purchases pu
		 WHERE pu.user_id = $1
		 ORDER BY pu.created_at DESC, pu.id DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list purchases", err)
	}
	defer rows.Close()

	var results []*types.PurchaseIntent
	for rows.Next() {
		intent, scanErr := scanPurchase(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan purchase row", scanErr)
		}
		results = append(results, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating purchase rows", err)
	}

	return results, nil
}
