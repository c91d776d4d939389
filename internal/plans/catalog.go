// Package plans is the single authority for plan tiers: quota per tier,
// upgrade ordering, purchasability and pricing. Every quota decision in the
// platform resolves through this catalog so a tier change is a one-line
// edit here.
package plans

import "pawtrack/internal/types"

// UnlimitedQuota is the sentinel quota for accounts with no effective limit.
// It is compared against, never iterated over.
const UnlimitedQuota = 1_000_000

// quotaByTier maps each plan tier to its active+pending pet allowance.
// Free deliberately allows zero: a fresh account can browse but must
// upgrade before requesting its first pet.
var quotaByTier = map[types.PlanTier]int{
	types.PlanFree:  0,
	types.PlanBasic: 1,
	types.PlanPlus:  5,
	types.PlanOwner: UnlimitedQuota,
}

// upgradeOrder is the purchasable ladder, cheapest first. Owner sits outside
// the ladder: it is granted, never bought.
var upgradeOrder = []types.PlanTier{
	types.PlanFree,
	types.PlanBasic,
	types.PlanPlus,
}

// priceCentsByTier maps purchasable tiers to their one-time price.
var priceCentsByTier = map[types.PlanTier]int64{
	types.PlanBasic: 4990,
	types.PlanPlus:  9990,
}

// QuotaFor returns the pet allowance for a plan tier. Unknown tiers resolve
// to the Free allowance so a corrupted plan value fails closed.
func QuotaFor(plan types.PlanTier) int {
	if q, ok := quotaByTier[plan]; ok {
		return q
	}
	return quotaByTier[types.PlanFree]
}

// RankOf returns the position of a plan on the upgrade ladder, or -1 for
// tiers outside it (Owner, unknown values).
func RankOf(plan types.PlanTier) int {
	for i, p := range upgradeOrder {
		if p == plan {
			return i
		}
	}
	return -1
}

// IsValid reports whether the tier is one the catalog knows about.
func IsValid(plan types.PlanTier) bool {
	_, ok := quotaByTier[plan]
	return ok
}

// IsPurchasable reports whether the tier can be bought through the ledger.
// Free is a valid ladder rung but not a purchase target.
func IsPurchasable(plan types.PlanTier) bool {
	_, ok := priceCentsByTier[plan]
	return ok
}

// PriceCents returns the one-time price of a purchasable tier, or 0 for
// tiers that cannot be bought.
func PriceCents(plan types.PlanTier) int64 {
	return priceCentsByTier[plan]
}

// Unlimited is the single bypass predicate: an admin role or the Owner plan
// lifts every quota check. All unlimited-capacity decisions route through
// here so the rule cannot drift between call sites.
func Unlimited(role types.UserRole, plan types.PlanTier) bool {
	return role == types.RoleAdmin || plan == types.PlanOwner
}

// EffectiveQuota returns the quota the reconciler enforces for a user,
// folding the unlimited bypass into the sentinel.
func EffectiveQuota(role types.UserRole, plan types.PlanTier) int {
	if Unlimited(role, plan) {
		return UnlimitedQuota
	}
	return QuotaFor(plan)
}
