package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pawtrack/internal/types"
)

// Note: mockDBTX and mockRow are defined in pet_repo_test.go and reused here.

func TestUserRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	phone := "+56922222222"
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*string) = "user_1"
				*dest[1].(*string) = "ana@example.com"
				*dest[2].(*string) = "Ana"
				*dest[3].(**string) = &phone
				*dest[4].(*types.PlanTier) = types.PlanBasic
				*dest[5].(*types.UserRole) = types.RoleUser
				return nil
			},
		})

	user, err := repo.GetByID(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, types.PlanBasic, user.Plan)
	assert.Equal(t, "+56922222222", user.Phone)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(context.Background(), "user_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}

func TestUserRepository_UpdatePlan_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.UpdatePlan(context.Background(), "user_1", types.PlanPlus)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestUserRepository_UpdatePlan_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdatePlan(context.Background(), "user_missing", types.PlanPlus)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}

func TestUserRepository_UpdateHome_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("timeout"))

	err := repo.UpdateHome(context.Background(), "user_1", -33.45, -70.66, "Av. Providencia 123")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
