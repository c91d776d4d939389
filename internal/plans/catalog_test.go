package plans

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pawtrack/internal/types"
)

func TestQuotaFor_KnownTiers(t *testing.T) {
	assert.Equal(t, 0, QuotaFor(types.PlanFree))
	assert.Equal(t, 1, QuotaFor(types.PlanBasic))
	assert.Equal(t, 5, QuotaFor(types.PlanPlus))
	assert.Equal(t, UnlimitedQuota, QuotaFor(types.PlanOwner))
}

func TestQuotaFor_UnknownTierFailsClosed(t *testing.T) {
	assert.Equal(t, 0, QuotaFor(types.PlanTier("Platinum")))
}

func TestRankOf_Ladder(t *testing.T) {
	assert.Equal(t, 0, RankOf(types.PlanFree))
	assert.Equal(t, 1, RankOf(types.PlanBasic))
	assert.Equal(t, 2, RankOf(types.PlanPlus))
	assert.Equal(t, -1, RankOf(types.PlanOwner))
	assert.Equal(t, -1, RankOf(types.PlanTier("Platinum")))
}

func TestIsPurchasable(t *testing.T) {
	assert.False(t, IsPurchasable(types.PlanFree))
	assert.True(t, IsPurchasable(types.PlanBasic))
	assert.True(t, IsPurchasable(types.PlanPlus))
	assert.False(t, IsPurchasable(types.PlanOwner))
}

func TestPriceCents(t *testing.T) {
	assert.Equal(t, int64(4990), PriceCents(types.PlanBasic))
	assert.Equal(t, int64(9990), PriceCents(types.PlanPlus))
	assert.Zero(t, PriceCents(types.PlanOwner))
}

func TestUnlimited_BypassPredicate(t *testing.T) {
	// Admin role bypasses regardless of plan.
	assert.True(t, Unlimited(types.RoleAdmin, types.PlanFree))
	// Owner plan bypasses regardless of role.
	assert.True(t, Unlimited(types.RoleUser, types.PlanOwner))
	// Ordinary account on a paid plan is still bounded.
	assert.False(t, Unlimited(types.RoleUser, types.PlanPlus))
}

func TestEffectiveQuota(t *testing.T) {
	assert.Equal(t, UnlimitedQuota, EffectiveQuota(types.RoleAdmin, types.PlanFree))
	assert.Equal(t, UnlimitedQuota, EffectiveQuota(types.RoleUser, types.PlanOwner))
	assert.Equal(t, 5, EffectiveQuota(types.RoleUser, types.PlanPlus))
	assert.Equal(t, 0, EffectiveQuota(types.RoleUser, types.PlanFree))
}
