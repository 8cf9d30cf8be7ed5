// Package analytics folds accepted transaction records into per-month
// rollups, a subscription registry, and income summaries. Everything is
// computed by pure functions over record slices, so rebuilding from the
// ledger always reproduces the same report.
package analytics

import (
	"context"
	"sort"
	"time"

	"fjacquet/mail-ledger/internal/dateutils"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/store"
	"fjacquet/mail-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// MoneySet accumulates amounts per currency. Currencies are never
// converted into one another.
type MoneySet map[string]decimal.Decimal

// Add returns a copy of the set with the amount added.
func (s MoneySet) Add(m models.Money) MoneySet {
	out := make(MoneySet, len(s)+1)
	for cur, amt := range s {
		out[cur] = amt
	}
	out[m.Currency] = out[m.Currency].Add(m.Amount)
	return out
}

// Get returns the accumulated amount for a currency.
func (s MoneySet) Get(currency string) decimal.Decimal {
	return s[currency]
}

// MonthRollup is the aggregate for one user and calendar month.
type MonthRollup struct {
	Period            string
	CategoryTotals    map[string]MoneySet
	MerchantCounts    map[string]int
	Income            MoneySet
	Spend             MoneySet
	SubscriptionSpend MoneySet
	Records           int
}

func newMonthRollup(period string) *MonthRollup {
	return &MonthRollup{
		Period:            period,
		CategoryTotals:    make(map[string]MoneySet),
		MerchantCounts:    make(map[string]int),
		Income:            MoneySet{},
		Spend:             MoneySet{},
		SubscriptionSpend: MoneySet{},
	}
}

// Cadence is the recurrence interval inferred from transaction dates.
type Cadence string

const (
	CadenceWeekly    Cadence = "weekly"
	CadenceBiweekly  Cadence = "biweekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceAnnual    Cadence = "annual"
	CadenceIrregular Cadence = "irregular"
)

// weeksPerMonth converts a weekly cost to a monthly one.
var weeksPerMonth = decimal.NewFromFloat(4.33)

// Subscription is one recurring merchant with its normalized cost.
type Subscription struct {
	Merchant    string
	Amount      models.Money
	Cadence     Cadence
	MonthlyCost models.Money
	Renewals    int
	LastRenewal time.Time
}

// IncomeSource is one payer clustered from income records.
type IncomeSource struct {
	Payer    string
	Total    MoneySet
	Payments int
	PayCycle Cadence
	LastPaid time.Time
}

// Report is the full analytics output for one user.
type Report struct {
	User          string
	Months        map[string]*MonthRollup
	Subscriptions []Subscription
	Income        []IncomeSource
}

// Periods returns the report's months in chronological order.
func (r *Report) Periods() []string {
	periods := make([]string, 0, len(r.Months))
	for p := range r.Months {
		periods = append(periods, p)
	}
	sort.Strings(periods)
	return periods
}

// Build computes the report for a user from accepted records. The input
// slice is not modified; record order does not affect the result.
func Build(user string, records []models.TransactionRecord) *Report {
	sorted := make([]models.TransactionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	report := &Report{User: user, Months: make(map[string]*MonthRollup)}
	for _, rec := range sorted {
		applyMonth(report, rec)
	}
	report.Subscriptions = buildSubscriptions(sorted)
	report.Income = buildIncome(sorted)
	return report
}

func applyMonth(report *Report, rec models.TransactionRecord) {
	period := dateutils.Month(rec.Date)
	month, ok := report.Months[period]
	if !ok {
		month = newMonthRollup(period)
		report.Months[period] = month
	}

	month.CategoryTotals[rec.Category] = month.CategoryTotals[rec.Category].Add(rec.Amount)
	month.MerchantCounts[textutils.NormalizeMerchant(rec.Merchant)]++
	month.Records++

	if rec.Category == models.CategoryIncome {
		month.Income = month.Income.Add(rec.Amount)
		return
	}
	month.Spend = month.Spend.Add(rec.Amount)
	if rec.Subtype == models.SubtypeSubscription {
		month.SubscriptionSpend = month.SubscriptionSpend.Add(rec.Amount)
	}
}

// buildSubscriptions collects merchants with subscription-subtyped
// records and normalizes their cost to a monthly figure.
func buildSubscriptions(sorted []models.TransactionRecord) []Subscription {
	byMerchant := make(map[string][]models.TransactionRecord)
	for _, rec := range sorted {
		if rec.Subtype != models.SubtypeSubscription {
			continue
		}
		key := textutils.NormalizeMerchant(rec.Merchant)
		byMerchant[key] = append(byMerchant[key], rec)
	}

	merchants := make([]string, 0, len(byMerchant))
	for key := range byMerchant {
		merchants = append(merchants, key)
	}
	sort.Strings(merchants)

	subs := make([]Subscription, 0, len(merchants))
	for _, key := range merchants {
		recs := byMerchant[key]
		latest := recs[len(recs)-1]
		cadence := inferCadence(dates(recs))
		subs = append(subs, Subscription{
			Merchant:    key,
			Amount:      latest.Amount,
			Cadence:     cadence,
			MonthlyCost: monthlyCost(latest.Amount, cadence),
			Renewals:    len(recs),
			LastRenewal: latest.Date,
		})
	}
	return subs
}

// buildIncome clusters income records by payer and infers the pay
// cycle from the gaps between consecutive payments.
func buildIncome(sorted []models.TransactionRecord) []IncomeSource {
	byPayer := make(map[string][]models.TransactionRecord)
	for _, rec := range sorted {
		if rec.Category != models.CategoryIncome {
			continue
		}
		key := textutils.NormalizeMerchant(rec.Merchant)
		byPayer[key] = append(byPayer[key], rec)
	}

	payers := make([]string, 0, len(byPayer))
	for key := range byPayer {
		payers = append(payers, key)
	}
	sort.Strings(payers)

	sources := make([]IncomeSource, 0, len(payers))
	for _, key := range payers {
		recs := byPayer[key]
		total := MoneySet{}
		for _, rec := range recs {
			total = total.Add(rec.Amount)
		}
		sources = append(sources, IncomeSource{
			Payer:    key,
			Total:    total,
			Payments: len(recs),
			PayCycle: inferCadence(dates(recs)),
			LastPaid: recs[len(recs)-1].Date,
		})
	}
	return sources
}

func dates(recs []models.TransactionRecord) []time.Time {
	out := make([]time.Time, len(recs))
	for i, rec := range recs {
		out[i] = rec.Date
	}
	return out
}

// inferCadence classifies the typical gap between consecutive dates.
// Fewer than two dates, or gaps that disagree with each other, are
// irregular.
func inferCadence(sorted []time.Time) Cadence {
	if len(sorted) < 2 {
		return CadenceIrregular
	}

	var gaps []int
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, dateutils.DayDelta(sorted[i], sorted[i-1]))
	}

	cadence := classifyGap(gaps[0])
	for _, gap := range gaps[1:] {
		if classifyGap(gap) != cadence {
			return CadenceIrregular
		}
	}
	return cadence
}

func classifyGap(days int) Cadence {
	switch {
	case days >= 4 && days <= 10:
		return CadenceWeekly
	case days >= 11 && days <= 18:
		return CadenceBiweekly
	case days >= 25 && days <= 35:
		return CadenceMonthly
	case days >= 350 && days <= 380:
		return CadenceAnnual
	}
	return CadenceIrregular
}

// monthlyCost normalizes a renewal amount to its monthly equivalent.
// Irregular cadence is treated as monthly, the conservative reading.
func monthlyCost(amount models.Money, cadence Cadence) models.Money {
	switch cadence {
	case CadenceWeekly:
		return models.Money{Amount: amount.Amount.Mul(weeksPerMonth).Round(2), Currency: amount.Currency}
	case CadenceBiweekly:
		return models.Money{Amount: amount.Amount.Mul(decimal.NewFromFloat(2.17)).Round(2), Currency: amount.Currency}
	case CadenceAnnual:
		return models.Money{Amount: amount.Amount.DivRound(decimal.NewFromInt(12), 2), Currency: amount.Currency}
	}
	return amount
}

// Aggregator rebuilds reports from the ledger.
type Aggregator struct {
	ledger store.Ledger
	logger logging.Logger
}

// NewAggregator creates an aggregator over the ledger.
func NewAggregator(ledger store.Ledger, logger logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Aggregator{ledger: ledger, logger: logger}
}

// Rebuild recomputes the full report for a user from accepted records.
// Rebuilding is idempotent: the same ledger state always yields the
// same report.
func (a *Aggregator) Rebuild(ctx context.Context, user string) (*Report, error) {
	records, err := a.ledger.AllAccepted(ctx, user)
	if err != nil {
		return nil, err
	}
	report := Build(user, records)
	a.logger.Debug("analytics rebuilt",
		logging.Field{Key: logging.FieldUser, Value: user},
		logging.Field{Key: logging.FieldCount, Value: len(records)})
	return report, nil
}
