package analytics

import "github.com/shopspring/decimal"

// Health score bounds and adjustments. The score starts at a neutral
// base and moves with the savings rate and the share of spending that
// goes to subscriptions.
const (
	healthBase = 50

	savingsStrongBonus = 20
	savingsModestBonus = 10
	overspendPenalty   = 20

	subscriptionLeanBonus    = 10
	subscriptionHeavyPenalty = 10

	HealthMin = 0
	HealthMax = 100
)

var (
	savingsStrongRate = decimal.NewFromFloat(0.20)
	savingsModestRate = decimal.NewFromFloat(0.10)

	subscriptionLeanRatio  = decimal.NewFromFloat(0.10)
	subscriptionHeavyRatio = decimal.NewFromFloat(0.25)
)

// HealthScore rates a month's finances from 0 to 100. The score is a
// pure function of the rollup: it looks at the savings rate (income
// minus spend, over income) and the subscription share of spending,
// each evaluated in the month's primary currency.
func HealthScore(month *MonthRollup) int {
	score := healthBase

	currency := primaryCurrency(month)
	income := month.Income.Get(currency)
	spend := month.Spend.Get(currency)

	if income.IsPositive() {
		savings := income.Sub(spend).Div(income)
		switch {
		case savings.GreaterThan(savingsStrongRate):
			score += savingsStrongBonus
		case savings.GreaterThan(savingsModestRate):
			score += savingsModestBonus
		case savings.IsNegative():
			score -= overspendPenalty
		}
	} else if spend.IsPositive() {
		// Spending with no visible income reads as overspending.
		score -= overspendPenalty
	}

	if spend.IsPositive() {
		ratio := month.SubscriptionSpend.Get(currency).Div(spend)
		switch {
		case ratio.LessThan(subscriptionLeanRatio):
			score += subscriptionLeanBonus
		case ratio.GreaterThan(subscriptionHeavyRatio):
			score -= subscriptionHeavyPenalty
		}
	}

	return min(max(score, HealthMin), HealthMax)
}

// primaryCurrency is the currency carrying the largest flow in the
// month, income first, spend as tiebreaker.
func primaryCurrency(month *MonthRollup) string {
	best := ""
	bestVolume := decimal.Zero
	for _, set := range []MoneySet{month.Income, month.Spend} {
		for cur, amt := range set {
			volume := amt.Abs()
			if best == "" || volume.GreaterThan(bestVolume) {
				best, bestVolume = cur, volume
			}
		}
	}
	return best
}
