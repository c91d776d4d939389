package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"pawtrack/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `u.id, u.email, u.name, u.phone, u.plan, u.role,
	u.home_lat, u.home_lng, u.home_address,
	u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var user types.User
	var (
		phone    *string
		homeAddr *string
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&phone,
		&user.Plan,
		&user.Role,
		&user.HomeLat,
		&user.HomeLng,
		&homeAddr,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if phone != nil {
		user.Phone = *phone
	}
	if homeAddr != nil {
		user.HomeAddr = *homeAddr
	}

	return &user, nil
}

// Create inserts a new user record. The caller must set the ID (prefixed
// UUID, "user_...") and required fields before calling.
func (r *UserRepository) Create(ctx context.Context, user *types.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (
			id, email, name, phone, plan, role,
			home_lat, home_lng, home_address,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			COALESCE($10, NOW()), COALESCE($11, NOW())
		)`,
		user.ID,
		user.Email,
		user.Name,
		nilIfEmpty(user.Phone),
		user.Plan,
		user.Role,
		user.HomeLat,
		user.HomeLng,
		nilIfEmpty(user.HomeAddr),
		nilIfZeroTime(user.CreatedAt),
		nilIfZeroTime(user.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID. Returns ErrCodeNotFoundUser if not found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = $1`,
		id,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return user, nil
}

// UpdatePlan persists a new plan tier for the user. The caller is
// responsible for reconciling pet statuses afterwards, inside the same
// transaction. Returns ErrCodeNotFoundUser if the user does not exist.
func (r *UserRepository) UpdatePlan(ctx context.Context, id string, plan types.PlanTier) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET plan = $1, updated_at = NOW() WHERE id = $2`,
		plan, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update user plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// UpdateHome sets the user's home coordinates and address, the center of the
// geofence safe zone.
func (r *UserRepository) UpdateHome(ctx context.Context, id string, lat, lng float64, address string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET
			home_lat = $1,
			home_lng = $2,
			home_address = $3,
			updated_at = NOW()
		 WHERE id = $4`,
		lat, lng, nilIfEmpty(address), id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update user home", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}
