package model

import "time"

type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "MONTHLY"
	BillingCycleYearly  BillingCycle = "YEARLY"
)

// Prices in KRW (integer minor unit; the won has no subunit).
var planPrices = map[Plan]map[BillingCycle]int64{
	PlanPro: {
		BillingCycleMonthly: 4900,
		BillingCycleYearly:  49000,
	},
}

// Purchasable reports whether the plan can be bought at all.
// The free tier never goes through the gateway.
func (p Plan) Purchasable() bool {
	_, ok := planPrices[p]
	return ok
}

func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// Price returns the charge amount for one billing period, or 0 when the
// combination is not purchasable.
func (p Plan) Price(cycle BillingCycle) int64 {
	return planPrices[p][cycle]
}

// Period advances from the given instant by one billing period.
// Calendar arithmetic, not fixed 30/365 days.
func (c BillingCycle) Period(from time.Time) time.Time {
	if c == BillingCycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// OrderName is the human-readable line item shown on gateway receipts.
func OrderName(p Plan, c BillingCycle) string {
	if c == BillingCycleYearly {
		return string(p) + " yearly subscription"
	}
	return string(p) + " monthly subscription"
}
