package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pawtrack/internal/types"
)

func TestPurchaseRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPurchaseRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	intent := &types.PurchaseIntent{
		ID:          "pur_1",
		UserID:      "user_1",
		TargetPlan:  types.PlanPlus,
		Provider:    types.ProviderMock,
		Token:       "tok_abc123",
		AmountCents: 9990,
		CreatedAt:   time.Now().UTC(),
	}
	err := repo.Create(context.Background(), intent)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPurchaseRepository_GetByToken_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPurchaseRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*string) = "pur_1"
				*dest[1].(*string) = "user_1"
				*dest[2].(*types.PlanTier) = types.PlanPlus
				*dest[3].(*types.PurchaseStatus) = types.PurchasePending
				*dest[4].(*types.PurchaseProvider) = types.ProviderStripe
				*dest[5].(*string) = "tok_abc123"
				*dest[6].(*int64) = 9990
				return nil
			},
		})

	intent, err := repo.GetByToken(context.Background(), "tok_abc123")
	require.NoError(t, err)
	assert.Equal(t, types.PlanPlus, intent.TargetPlan)
	assert.Equal(t, types.PurchasePending, intent.Status)
	assert.Equal(t, int64(9990), intent.AmountCents)
}

func TestPurchaseRepository_GetByToken_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPurchaseRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByToken(context.Background(), "tok_unknown")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPurchase, appErr.Code)
}

func TestPurchaseRepository_MarkPaid_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPurchaseRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.MarkPaid(context.Background(), "tok_unknown")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPurchase, appErr.Code)
}

func TestPurchaseRepository_MarkCanceled_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPurchaseRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.MarkCanceled(context.Background(), "tok_abc123")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPurchaseRepository_TokenExists(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPurchaseRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*bool) = true
				return nil
			},
		})

	exists, err := repo.TokenExists(context.Background(), "tok_abc123")
	require.NoError(t, err)
	assert.True(t, exists)
}
