package domain

import "time"

// EffectivePlan returns the plan the user is entitled to at now.
// A paid nominal plan only counts while the subscription is ACTIVE and the
// paid period has not ended; in every other case the user is on FREE.
//
// The result must not be stored or cached past a single request:
// CurrentPeriodEnd passes silently with time.
func EffectivePlan(user *User, now time.Time) Plan {
	if user == nil {
		return PlanFree
	}
	plan := ParsePlan(string(user.Plan))
	if plan == PlanFree {
		return PlanFree
	}
	if user.SubscriptionStatus != SubscriptionStatusActive {
		return PlanFree
	}
	if user.CurrentPeriodEnd == nil || !user.CurrentPeriodEnd.After(now) {
		return PlanFree
	}
	return plan
}

// EffectiveLimits is LimitsFor(EffectivePlan(user, now)).
func EffectiveLimits(user *User, now time.Time) UsageLimits {
	return LimitsFor(EffectivePlan(user, now))
}
