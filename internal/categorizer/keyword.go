package categorizer

import (
	"strings"

	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/store"
)

// KeywordStrategy categorizes by substring match of rule keywords
// against the merchant name. Rules come from the category registry;
// built-in rules cover common merchants when no registry file exists.
type KeywordStrategy struct {
	rules  []store.CategoryRule
	logger logging.Logger
}

var builtinRules = []store.CategoryRule{
	{Name: models.CategoryGroceries, Keywords: []string{"grocery", "supermarket", "market", "mart", "foods"}},
	{Name: models.CategoryDining, Keywords: []string{"coffee", "cafe", "restaurant", "pizza", "burger", "kitchen", "bakery", "bar", "grill"}},
	{Name: models.CategoryTravel, Keywords: []string{"airline", "airways", "hotel", "rail", "railways", "taxi", "rental"}},
	{Name: models.CategoryUtilities, Keywords: []string{"electric", "power", "water", "gas", "telecom", "mobile", "broadband", "internet", "energy"}},
	{Name: models.CategorySubscriptions, Keywords: []string{"stream", "premium", "cloud", "news", "plus", "music"}},
	{Name: models.CategoryInvestments, Keywords: []string{"broker", "securities", "mutual fund", "capital", "invest"}},
}

// NewKeywordStrategy loads keyword rules from the registry, falling
// back to built-ins when the registry has none.
func NewKeywordStrategy(registry store.Registry, logger logging.Logger) *KeywordStrategy {
	rules, err := registry.LoadCategoryRules()
	if err != nil {
		logger.WithError(err).Warn("failed to load category rules")
	}
	if len(rules) == 0 {
		rules = builtinRules
	}
	return &KeywordStrategy{rules: rules, logger: logger}
}

func (s *KeywordStrategy) Name() string {
	return "keyword"
}

// Categorize scans rules in declaration order and returns the first
// category whose keyword appears in the merchant name.
func (s *KeywordStrategy) Categorize(rec models.TransactionRecord) (string, bool) {
	merchant := strings.ToLower(rec.Merchant)
	if strings.TrimSpace(merchant) == "" {
		return "", false
	}

	for _, rule := range s.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(merchant, strings.ToLower(keyword)) {
				s.logger.Debug("merchant matched keyword rule",
					logging.Field{Key: logging.FieldMerchant, Value: rec.Merchant},
					logging.Field{Key: "keyword", Value: keyword},
					logging.Field{Key: logging.FieldCategory, Value: rule.Name})
				return rule.Name, true
			}
		}
	}
	return "", false
}
