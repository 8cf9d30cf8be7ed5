// Package textutils provides merchant-name normalization and sender
// parsing helpers shared by the extraction and deduplication stages.
package textutils

import (
	"regexp"
	"strings"
)

var (
	addressRe    = regexp.MustCompile(`<([^<>]+)>`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9 ]+`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
	capTokenRe   = regexp.MustCompile(`\b[A-Z][A-Za-z0-9&'.-]+\b`)
)

// corporateSuffixes are trailing legal forms stripped during
// normalization so "CoffeeCo Inc." and "COFFEECO" compare equal.
var corporateSuffixes = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "gmbh": true, "ag": true,
	"sa": true, "co": true, "corp": true, "plc": true,
}

// noiseWords are capitalized tokens that show up in subjects without
// naming a merchant.
var noiseWords = map[string]bool{
	"Your": true, "You": true, "Order": true, "Receipt": true,
	"Invoice": true, "Payment": true, "Purchase": true, "Thanks": true,
	"Thank": true, "Confirmation": true, "Confirmed": true, "New": true,
	"The": true, "From": true, "For": true, "Re": true, "Fwd": true,
	"Statement": true, "Transaction": true, "Alert": true, "Update": true,
	"Subscription": true, "Renewal": true, "Monthly": true, "Annual": true,
}

// NormalizeMerchant reduces a merchant name to a canonical comparison
// key: lowercase, punctuation compacted so "Coffee-Co" and "CoffeeCo"
// agree, whitespace collapsed, trailing corporate suffixes removed.
// Suffix stripping never consumes the last remaining word, so a
// merchant whose whole name happens to be a legal form survives.
func NormalizeMerchant(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlnumRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")

	tokens := strings.Fields(s)
	for len(tokens) > 1 && corporateSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// SenderAddress extracts the bare address from a From header value such
// as `CoffeeCo Receipts <receipts@coffeeco.com>`. A header that is
// already a bare address passes through lowercased.
func SenderAddress(from string) string {
	if m := addressRe.FindStringSubmatch(from); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// SenderDomain returns the domain portion of a From header value, or ""
// when none is present.
func SenderDomain(from string) string {
	addr := SenderAddress(from)
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		return addr[at+1:]
	}
	return ""
}

// SenderDisplayName returns the display-name portion of a From header,
// or "" for a bare address.
func SenderDisplayName(from string) string {
	if i := strings.Index(from, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return ""
}

// MerchantFromSubject pulls a best-effort merchant name out of a
// subject line by taking leading capitalized tokens that are not
// boilerplate. Returns "" when nothing plausible remains.
func MerchantFromSubject(subject string) string {
	tokens := capTokenRe.FindAllString(subject, -1)

	var kept []string
	for _, tok := range tokens {
		if noiseWords[tok] {
			if len(kept) > 0 {
				break
			}
			continue
		}
		kept = append(kept, tok)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, " ")
}
