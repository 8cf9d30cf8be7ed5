package categorizer

import (
	"context"
	"testing"
	"time"

	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func record(t *testing.T, merchant, amount string, date time.Time, kind models.Kind) models.TransactionRecord {
	t.Helper()
	money, err := models.NewMoneyFromString(amount, "USD")
	require.NoError(t, err)
	return models.TransactionRecord{
		ID:            "rec-" + merchant + "-" + date.Format("2006-01-02"),
		User:          "alice",
		SourceEmailID: "email-" + date.Format("2006-01-02"),
		Merchant:      merchant,
		Amount:        money,
		Date:          date,
		Kind:          kind,
		Status:        models.StatusAccepted,
		CreatedAt:     date,
	}
}

func newCategorizer(t *testing.T, registry store.Registry, ledger store.Ledger, opts Options) *Categorizer {
	t.Helper()
	if registry == nil {
		registry = &store.MockRegistry{}
	}
	if ledger == nil {
		ledger = store.NewMemoryLedger()
	}
	return New(registry, ledger, opts, nil)
}

func TestCategorizeMappingWinsOverKeywords(t *testing.T) {
	registry := &store.MockRegistry{
		MerchantMappings: map[string]string{"coffeeco": models.CategoryGroceries},
	}
	c := newCategorizer(t, registry, nil, Options{})

	got, err := c.Categorize(context.Background(),
		record(t, "CoffeeCo", "4.50", day(2024, time.March, 10), models.KindPurchase))

	require.NoError(t, err)
	assert.Equal(t, models.CategoryGroceries, got.Category,
		"explicit registry entry beats the coffee keyword")
}

func TestCategorizeMappingNormalizesMerchant(t *testing.T) {
	registry := &store.MockRegistry{
		MerchantMappings: map[string]string{"CoffeeCo Inc.": models.CategoryDining},
	}
	c := newCategorizer(t, registry, nil, Options{})

	got, err := c.Categorize(context.Background(),
		record(t, "coffeeco", "4.50", day(2024, time.March, 10), models.KindPurchase))

	require.NoError(t, err)
	assert.Equal(t, models.CategoryDining, got.Category)
}

func TestCategorizeKeywordFallback(t *testing.T) {
	tests := []struct {
		merchant string
		want     string
	}{
		{"CoffeeCo", models.CategoryDining},
		{"FreshMart Supermarket", models.CategoryGroceries},
		{"City Power & Light", models.CategoryUtilities},
		{"Sunrise Airlines", models.CategoryTravel},
	}

	for _, tt := range tests {
		t.Run(tt.merchant, func(t *testing.T) {
			c := newCategorizer(t, nil, nil, Options{})
			got, err := c.Categorize(context.Background(),
				record(t, tt.merchant, "20.00", day(2024, time.March, 10), models.KindPurchase))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestCategorizeKindFallback(t *testing.T) {
	tests := []struct {
		kind models.Kind
		want string
	}{
		{models.KindIncome, models.CategoryIncome},
		{models.KindInvestment, models.CategoryInvestments},
		{models.KindTravel, models.CategoryTravel},
		{models.KindSubscription, models.CategorySubscriptions},
		{models.KindBill, models.CategoryUtilities},
		{models.KindPurchase, models.CategoryOther},
		{models.KindUnknown, models.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c := newCategorizer(t, nil, nil, Options{})
			got, err := c.Categorize(context.Background(),
				record(t, "Zxqvw Holdings", "20.00", day(2024, time.March, 10), tt.kind))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestCategorizeAutoLearn(t *testing.T) {
	registry := &store.MockRegistry{}
	c := newCategorizer(t, registry, nil, Options{AutoLearn: true})

	_, err := c.Categorize(context.Background(),
		record(t, "CoffeeCo", "4.50", day(2024, time.March, 10), models.KindPurchase))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	assert.Equal(t, models.CategoryDining, registry.MerchantMappings["coffeeco"],
		"keyword match should be learned under the normalized merchant key")
}

func TestCategorizeAutoLearnSkipsOther(t *testing.T) {
	registry := &store.MockRegistry{}
	c := newCategorizer(t, registry, nil, Options{AutoLearn: true})

	_, err := c.Categorize(context.Background(),
		record(t, "Zxqvw Holdings", "20.00", day(2024, time.March, 10), models.KindPurchase))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	assert.NotContains(t, registry.MerchantMappings, "zxqvw holdings",
		"the fallback category is not worth learning")
}

func TestCategorizeAutoLearnDisabled(t *testing.T) {
	registry := &store.MockRegistry{}
	c := newCategorizer(t, registry, nil, Options{})

	_, err := c.Categorize(context.Background(),
		record(t, "CoffeeCo", "4.50", day(2024, time.March, 10), models.KindPurchase))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	assert.Empty(t, registry.MerchantMappings)
}

func TestSubtypeMonthlyCadence(t *testing.T) {
	ledger := store.NewMemoryLedger()
	for _, d := range []time.Time{day(2024, time.January, 10), day(2024, time.February, 10)} {
		_, err := ledger.Insert(context.Background(), record(t, "StreamFlix", "12.99", d, models.KindPurchase))
		require.NoError(t, err)
	}
	c := newCategorizer(t, nil, ledger, Options{})

	got, err := c.Categorize(context.Background(),
		record(t, "StreamFlix", "12.99", day(2024, time.March, 10), models.KindPurchase))

	require.NoError(t, err)
	assert.Equal(t, models.SubtypeSubscription, got.Subtype)
}

func TestSubtypeNeedsEnoughHistory(t *testing.T) {
	ledger := store.NewMemoryLedger()
	_, err := ledger.Insert(context.Background(),
		record(t, "StreamFlix", "12.99", day(2024, time.February, 10), models.KindPurchase))
	require.NoError(t, err)
	c := newCategorizer(t, nil, ledger, Options{})

	got, err := c.Categorize(context.Background(),
		record(t, "StreamFlix", "12.99", day(2024, time.March, 10), models.KindPurchase))

	require.NoError(t, err)
	assert.Equal(t, models.SubtypeOneOff, got.Subtype,
		"a single prior renewal is not a cadence yet")
}

func TestSubtypeAmountDriftBreaksCadence(t *testing.T) {
	ledger := store.NewMemoryLedger()
	for _, seed := range []struct {
		amount string
		date   time.Time
	}{
		{"12.99", day(2024, time.January, 10)},
		{"15.49", day(2024, time.February, 10)},
	} {
		_, err := ledger.Insert(context.Background(), record(t, "StreamFlix", seed.amount, seed.date, models.KindPurchase))
		require.NoError(t, err)
	}
	c := newCategorizer(t, nil, ledger, Options{})

	got, err := c.Categorize(context.Background(),
		record(t, "StreamFlix", "12.99", day(2024, time.March, 10), models.KindPurchase))

	require.NoError(t, err)
	assert.Equal(t, models.SubtypeOneOff, got.Subtype)
}

func TestSubtypeIrregularIntervalsBreakCadence(t *testing.T) {
	ledger := store.NewMemoryLedger()
	for _, d := range []time.Time{day(2024, time.January, 10), day(2024, time.January, 27)} {
		_, err := ledger.Insert(context.Background(), record(t, "CoffeeCo", "4.50", d, models.KindPurchase))
		require.NoError(t, err)
	}
	c := newCategorizer(t, nil, ledger, Options{})

	got, err := c.Categorize(context.Background(),
		record(t, "CoffeeCo", "4.50", day(2024, time.March, 2), models.KindPurchase))

	require.NoError(t, err)
	assert.Equal(t, models.SubtypeOneOff, got.Subtype)
}

func TestSubtypeWeeklyAndAnnualCadence(t *testing.T) {
	tests := []struct {
		name  string
		dates []time.Time
		next  time.Time
	}{
		{
			"weekly",
			[]time.Time{day(2024, time.March, 1), day(2024, time.March, 8)},
			day(2024, time.March, 15),
		},
		{
			"annual",
			[]time.Time{day(2022, time.March, 10), day(2023, time.March, 10)},
			day(2024, time.March, 9),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := store.NewMemoryLedger()
			for _, d := range tt.dates {
				_, err := ledger.Insert(context.Background(), record(t, "BoxClub", "29.00", d, models.KindPurchase))
				require.NoError(t, err)
			}
			c := newCategorizer(t, nil, ledger, Options{})

			got, err := c.Categorize(context.Background(),
				record(t, "BoxClub", "29.00", tt.next, models.KindPurchase))

			require.NoError(t, err)
			assert.Equal(t, models.SubtypeSubscription, got.Subtype)
		})
	}
}

func TestSubtypeNeverRetroactive(t *testing.T) {
	ledger := store.NewMemoryLedger()
	ctx := context.Background()
	c := newCategorizer(t, nil, ledger, Options{})

	var subtypes []models.Subtype
	for _, d := range []time.Time{
		day(2024, time.January, 10),
		day(2024, time.February, 10),
		day(2024, time.March, 10),
	} {
		rec, err := c.Categorize(ctx, record(t, "StreamFlix", "12.99", d, models.KindPurchase))
		require.NoError(t, err)
		subtypes = append(subtypes, rec.Subtype)
		_, err = ledger.Insert(ctx, rec)
		require.NoError(t, err)
	}

	assert.Equal(t, []models.Subtype{
		models.SubtypeOneOff,
		models.SubtypeOneOff,
		models.SubtypeSubscription,
	}, subtypes, "only the record that completes the cadence is promoted")

	history, err := ledger.AcceptedByMerchant(ctx, "alice", "streamflix")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.SubtypeOneOff, history[0].Subtype)
	assert.Equal(t, models.SubtypeOneOff, history[1].Subtype)
}

func TestSubtypeKindBased(t *testing.T) {
	tests := []struct {
		kind models.Kind
		want models.Subtype
	}{
		{models.KindSubscription, models.SubtypeSubscription},
		{models.KindBill, models.SubtypeBill},
		{models.KindInvestment, models.SubtypeInvestment},
		{models.KindTravel, models.SubtypeTravel},
		{models.KindPurchase, models.SubtypeOneOff},
		{models.KindIncome, models.SubtypeOneOff},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c := newCategorizer(t, nil, nil, Options{})
			got, err := c.Categorize(context.Background(),
				record(t, "Acme", "50.00", day(2024, time.March, 10), tt.kind))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Subtype)
		})
	}
}

func TestCategorizeRegistryRulesOverrideBuiltins(t *testing.T) {
	registry := &store.MockRegistry{
		Rules: []store.CategoryRule{
			{Name: models.CategoryGroceries, Keywords: []string{"coffee"}},
		},
	}
	c := newCategorizer(t, registry, nil, Options{})

	got, err := c.Categorize(context.Background(),
		record(t, "CoffeeCo", "4.50", day(2024, time.March, 10), models.KindPurchase))

	require.NoError(t, err)
	assert.Equal(t, models.CategoryGroceries, got.Category)
}
