package extractor

import (
	"regexp"
	"strings"

	"fjacquet/mail-ledger/internal/currencyutils"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// The rule strategy is a pattern library, not a class hierarchy: new
// locale or merchant support is a table addition.

// amountPatterns match a currency marker plus a numeric token in either
// order. Group 1 or 2 carries the number.
var amountPatterns = []*regexp.Regexp{
	// symbol before amount: "$4.50", "₹1,234"
	regexp.MustCompile(`[₹$€£]\s*([0-9][0-9.,']*[0-9]|[0-9])`),
	// code before amount: "Rs. 500", "CHF 1'234.56", "US$ 5"
	regexp.MustCompile(`(?i)\b(?:Rs\.?|INR|USD|EUR|GBP|CHF|US\$)\s*([0-9][0-9.,']*[0-9]|[0-9])`),
	// amount before code: "4.50 USD", "500 Rs."
	regexp.MustCompile(`(?i)([0-9][0-9.,']*[0-9]|[0-9])\s*(?:₹|(?:INR|USD|EUR|GBP|CHF)\b|Rs\.|Rs\b)`),
}

// contextRadius is how far around an amount match currency detection
// looks for a symbol.
const contextRadius = 24

// amount sanity bounds shared with the oracle validation.
var (
	minRuleAmount = decimal.New(1, -2) // 0.01
	maxRuleAmount = decimal.New(1000000, 0)
)

// kindRules map keyword hits to a transaction kind, checked in order;
// the first matching rule wins.
var kindRules = []struct {
	Kind     models.Kind
	Keywords []string
}{
	{models.KindSubscription, []string{"subscription", "renewed", "renewal", "membership", "auto-renew"}},
	{models.KindIncome, []string{"salary", "payroll", "payout", "credited to your account", "you received", "payment received from"}},
	{models.KindInvestment, []string{"investment", "dividend", "shares purchased", "sip installment", "units allotted"}},
	{models.KindTravel, []string{"flight", "airline", "hotel", "itinerary", "boarding pass", "reservation confirmed"}},
	{models.KindBill, []string{"bill", "utility", "statement", "amount due", "due date", "electricity", "broadband"}},
	{models.KindPurchase, []string{"receipt", "order", "purchase", "charged", "paid", "transaction", "checkout"}},
}

// genericSenders are local parts that never name the merchant.
var genericSenders = map[string]bool{
	"noreply": true, "no-reply": true, "donotreply": true, "do-not-reply": true,
	"info": true, "support": true, "hello": true, "mail": true, "notify": true,
	"notifications": true, "alerts": true, "alert": true, "billing": true,
	"receipts": true, "statements": true, "orders": true, "service": true,
}

// amountMatch is one numeric hit in the text with its location.
type amountMatch struct {
	money models.Money
	start int
	end   int
}

// findAmounts returns every plausible amount in the text, in order of
// appearance, deduplicated by value and currency.
func findAmounts(text string) []amountMatch {
	var matches []amountMatch
	seen := make(map[string]bool)

	for _, pattern := range amountPatterns {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			numStart, numEnd := loc[2], loc[3]
			if numStart < 0 {
				continue
			}
			raw := text[numStart:numEnd]

			ctxStart := max(0, loc[0]-contextRadius)
			ctxEnd := min(len(text), loc[1]+contextRadius)
			currency, ok := currencyutils.DetectCurrency(text[ctxStart:ctxEnd])
			if !ok {
				continue
			}

			amount, err := currencyutils.ParseAmount(raw, currency)
			if err != nil {
				continue
			}
			if amount.LessThan(minRuleAmount) || amount.GreaterThan(maxRuleAmount) {
				continue
			}

			key := amount.String() + currency
			if seen[key] {
				continue
			}
			seen[key] = true
			matches = append(matches, amountMatch{
				money: models.NewMoney(amount, currency),
				start: loc[0],
				end:   loc[1],
			})
		}
	}
	return matches
}

// FindAmountsInText returns the currency amounts found in free text, in
// order of appearance. Used by the scorer to corroborate a candidate's
// amount against the subject line.
func FindAmountsInText(text string) []models.Money {
	var amounts []models.Money
	for _, m := range findAmounts(text) {
		amounts = append(amounts, m.money)
	}
	return amounts
}

// detectKind classifies the email text against the kind rule table.
func detectKind(text string) models.Kind {
	lowered := strings.ToLower(text)
	for _, rule := range kindRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				return rule.Kind
			}
		}
	}
	return models.KindUnknown
}

// ruleMerchant derives a merchant name from sender and subject. Sender
// display name wins when it is not boilerplate, then capitalized subject
// tokens, then the sender domain's first label.
func ruleMerchant(email models.NormalizedEmail) string {
	if name := textutils.SenderDisplayName(email.Sender); name != "" && !genericDisplayName(name) {
		return name
	}

	if m := textutils.MerchantFromSubject(email.Subject); m != "" {
		return m
	}

	domain := textutils.SenderDomain(email.Sender)
	if domain == "" {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	if genericSenders[label] || label == "" {
		return ""
	}
	return label
}

func genericDisplayName(name string) bool {
	for _, word := range strings.Fields(strings.ToLower(name)) {
		if genericSenders[word] {
			return true
		}
	}
	return false
}

// lineAround returns the text line containing the byte range.
func lineAround(text string, start, end int) string {
	lineStart := strings.LastIndexByte(text[:start], '\n') + 1
	lineEnd := strings.IndexByte(text[end:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text)
	} else {
		lineEnd += end
	}
	return text[lineStart:lineEnd]
}
