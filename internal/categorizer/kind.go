package categorizer

import "fjacquet/mail-ledger/internal/models"

// KindStrategy maps the extracted transaction kind straight to a
// category. It runs after merchant-based strategies: a merchant match
// is more specific than what the email's wording implied.
type KindStrategy struct{}

var kindCategories = map[models.Kind]string{
	models.KindIncome:       models.CategoryIncome,
	models.KindInvestment:   models.CategoryInvestments,
	models.KindTravel:       models.CategoryTravel,
	models.KindSubscription: models.CategorySubscriptions,
	models.KindBill:         models.CategoryUtilities,
}

func (KindStrategy) Name() string {
	return "kind"
}

func (KindStrategy) Categorize(rec models.TransactionRecord) (string, bool) {
	category, found := kindCategories[rec.Kind]
	return category, found
}
