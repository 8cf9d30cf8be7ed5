// Package filter decides whether a normalized email plausibly describes
// a financial transaction. The decision is a weighted rule set; ties
// lean toward inclusion because a false positive is caught downstream
// while a false negative is a silently lost transaction.
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/textutils"
)

// bodyPrefixLen bounds how much body text the filter inspects. Signals
// worth having appear early in transactional mail.
const bodyPrefixLen = 200

var amountRe = regexp.MustCompile(`[₹$€£]\s*\d|\d+[.,]\d{2}\b|\bchf\s*\d`)

// keywordWeights are the positive signal words with their weights.
var keywordWeights = map[string]int{
	"receipt":      2,
	"invoice":      2,
	"statement":    2,
	"charged":      2,
	"debited":      2,
	"credited":     2,
	"payment":      1,
	"purchase":     1,
	"transaction":  1,
	"confirmation": 1,
	"order":        1,
	"subscription": 1,
	"renewed":      1,
	"refund":       1,
	"salary":       1,
	"payout":       1,
}

// strongPatterns mark an email as transactional on their own.
var strongPatterns = []struct {
	Name string
	Re   *regexp.Regexp
}{
	{"card-ending", regexp.MustCompile(`\b(card ending|xxxx\d{4}|\*{4}\d{4})\b`)},
	{"txn-confirmed", regexp.MustCompile(`\b(transaction\s+successful|payment\s+(completed|received)|purchase\s+confirmed|bill\s+paid)\b`)},
	{"auto-debit", regexp.MustCompile(`\b(auto.?debit|auto.?pay|emi\s+deducted|standing\s+instruction)\b`)},
}

// negativeMarkers are marketing and notification tells. Each hit
// subtracts its weight.
var negativeMarkers = map[string]int{
	"unsubscribe":   2,
	"newsletter":    2,
	"promotional":   2,
	"advertisement": 2,
	"sale":          1,
	"discount":      1,
	"offer":         1,
	"coupon":        1,
	"webinar":       1,
}

const (
	domainWeight      = 3
	amountComboWeight = 3
	strongWeight      = 3
)

// Decision is the filter verdict for one email. Reason is a stable,
// machine-checkable summary of the signals that produced the verdict,
// e.g. "domain:coffeeco.com+kw:receipt+amount".
type Decision struct {
	IsCandidate bool
	Score       int
	Reason      string
}

// Filter gates emails before extraction.
type Filter struct {
	domains map[string]bool
	logger  logging.Logger
}

// New creates a filter over the known financial sender domains.
func New(financialDomains []string, logger logging.Logger) *Filter {
	if logger == nil {
		logger = logging.GetLogger()
	}
	domains := make(map[string]bool, len(financialDomains))
	for _, d := range financialDomains {
		domains[strings.ToLower(d)] = true
	}
	return &Filter{domains: domains, logger: logger}
}

// Check evaluates one email. The same email always yields the same
// decision.
func (f *Filter) Check(email models.NormalizedEmail) Decision {
	body := email.PlainText
	if len(body) > bodyPrefixLen {
		body = body[:bodyPrefixLen]
	}
	text := strings.ToLower(email.Subject + " " + email.Sender + " " + body)

	var (
		score   int
		reasons []string
	)

	if domain := textutils.SenderDomain(email.Sender); domain != "" && f.domains[domain] {
		score += domainWeight
		reasons = append(reasons, "domain:"+domain)
	}

	for _, sp := range strongPatterns {
		if sp.Re.MatchString(text) {
			score += strongWeight
			reasons = append(reasons, "strong:"+sp.Name)
		}
	}

	hasAmount := amountRe.MatchString(text)

	var kwHits []string
	for kw, weight := range keywordWeights {
		if strings.Contains(text, kw) {
			score += weight
			kwHits = append(kwHits, kw)
		}
	}
	sort.Strings(kwHits)
	for _, kw := range kwHits {
		reasons = append(reasons, "kw:"+kw)
	}

	if hasAmount && len(kwHits) > 0 {
		score += amountComboWeight
		reasons = append(reasons, "amount")
	}

	var negHits []string
	for marker, weight := range negativeMarkers {
		if strings.Contains(text, marker) {
			score -= weight
			negHits = append(negHits, marker)
		}
	}
	sort.Strings(negHits)
	for _, marker := range negHits {
		reasons = append(reasons, "neg:"+marker)
	}

	decision := Decision{
		Score:  score,
		Reason: strings.Join(reasons, "+"),
	}
	if decision.Reason == "" {
		decision.Reason = "no-signals"
	}

	// Inclusion requires at least one positive signal; among signals a
	// tied score still passes.
	positives := len(reasons) - len(negHits)
	decision.IsCandidate = positives > 0 && score >= 0

	f.logger.Debug("filter decision",
		logging.Field{Key: logging.FieldEmailID, Value: email.ID},
		logging.Field{Key: logging.FieldStatus, Value: fmt.Sprintf("candidate=%t", decision.IsCandidate)},
		logging.Field{Key: logging.FieldReason, Value: decision.Reason})
	return decision
}
