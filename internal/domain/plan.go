package domain

import "strings"

// Plan is a subscription tier. The value stored on a user is the nominal plan;
// use EffectivePlan to learn what the user is actually entitled to.
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanStarter Plan = "STARTER"
	PlanPremium Plan = "PREMIUM"
)

// Unlimited marks a limit that is never reached.
const Unlimited = -1

// UsageLimits holds the quotas granted by a plan. -1 means unlimited.
type UsageLimits struct {
	MaxDocuments        int `json:"maxDocuments"`
	MaxMessagesPerMonth int `json:"maxMessagesPerMonth"`
}

var planCatalog = map[Plan]UsageLimits{
	PlanFree:    {MaxDocuments: 1, MaxMessagesPerMonth: 20},
	PlanStarter: {MaxDocuments: 10, MaxMessagesPerMonth: 100},
	PlanPremium: {MaxDocuments: Unlimited, MaxMessagesPerMonth: Unlimited},
}

// LimitsFor returns the quotas for a plan. Unknown plans get the free tier.
func LimitsFor(plan Plan) UsageLimits {
	if limits, ok := planCatalog[plan]; ok {
		return limits
	}
	return planCatalog[PlanFree]
}

// ParsePlan normalizes a stored or user-supplied plan name.
// Anything that is not a known tier parses as PlanFree.
func ParsePlan(s string) Plan {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := planCatalog[p]; ok {
		return p
	}
	return PlanFree
}

// SubscriptionStatus mirrors the billing provider's subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusUnpaid   SubscriptionStatus = "UNPAID"
	SubscriptionStatusInactive SubscriptionStatus = "INACTIVE"
)

// ParseSubscriptionStatus uppercases a provider status ("active", "past_due")
// into our enum. Statuses we do not model (trialing, incomplete, paused...)
// become INACTIVE so they never grant a paid plan.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch st := SubscriptionStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case SubscriptionStatusActive,
		SubscriptionStatusCanceled,
		SubscriptionStatusPastDue,
		SubscriptionStatusUnpaid,
		SubscriptionStatusInactive:
		return st
	case "CANCELLED":
		return SubscriptionStatusCanceled
	default:
		return SubscriptionStatusInactive
	}
}

// Price ids of the original deployment. Overridable through configuration.
const (
	DefaultStarterPriceID = "price_1RgPSWA6n49uMd1tnwoWS4AJ"
	DefaultPremiumPriceID = "price_1RgPT8A6n49uMd1tAfOGHR7W"
)

// PriceCatalog maps billing provider price ids to plans.
type PriceCatalog struct {
	StarterPriceID string
	PremiumPriceID string
}

// DefaultPriceCatalog returns the catalog with the built-in price ids.
func DefaultPriceCatalog() PriceCatalog {
	return PriceCatalog{
		StarterPriceID: DefaultStarterPriceID,
		PremiumPriceID: DefaultPremiumPriceID,
	}
}

// PlanFor fails closed: empty or unknown price ids map to PlanFree.
func (c PriceCatalog) PlanFor(priceID string) Plan {
	if priceID == "" {
		return PlanFree
	}
	switch priceID {
	case c.StarterPriceID:
		return PlanStarter
	case c.PremiumPriceID:
		return PlanPremium
	default:
		return PlanFree
	}
}

// Knows reports whether priceID is one of the sellable prices.
func (c PriceCatalog) Knows(priceID string) bool {
	return c.PlanFor(priceID) != PlanFree
}
