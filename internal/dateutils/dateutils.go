// Package dateutils provides common date operations used throughout the
// application, chiefly multi-format parsing of dates found in email text.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Common date format constants.
const (
	DateLayoutISO      = "2006-01-02"
	DateLayoutEuropean = "02.01.2006"
	DateLayoutUS       = "01/02/2006"
	DateLayoutMonth    = "2006-01"
)

// parseFormats is the fixed priority order for parsing dates pulled out
// of email bodies. ISO first (unambiguous), then day-first European
// forms, then US forms, then spelled-out months. The first format that
// yields an internally consistent parse wins; later formats are never
// consulted for a string an earlier one accepted.
var parseFormats = []string{
	DateLayoutISO,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"02-01-2006",
	DateLayoutUS,
	"01-02-2006",
	"2 January 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan 02, 2006",
}

// dateTokenRe matches substrings that look like dates so they can be
// handed to Parse. Covers numeric forms and spelled-out month forms.
var dateTokenRe = regexp.MustCompile(
	`\d{4}-\d{2}-\d{2}` +
		`|\d{1,2}[./-]\d{1,2}[./-]\d{2,4}` +
		`|\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}` +
		`|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}`)

// Parse attempts to parse a date string using the fixed format priority.
func Parse(dateStr string) (time.Time, error) {
	cleaned := Clean(dateStr)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	for _, format := range parseFormats {
		if t, err := time.Parse(format, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// FindInText scans free text for the first parseable date token.
// Returns the zero time and false when no token parses.
func FindInText(text string) (time.Time, bool) {
	for _, token := range dateTokenRe.FindAllString(text, 8) {
		if t, err := Parse(token); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clean trims and collapses whitespace in a date string.
func Clean(dateStr string) string {
	dateStr = strings.TrimSpace(dateStr)
	return strings.Join(strings.Fields(dateStr), " ")
}

// ToISO formats a time as YYYY-MM-DD.
func ToISO(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// Month returns the YYYY-MM period key for a date.
func Month(date time.Time) string {
	return date.Format(DateLayoutMonth)
}

// DayDelta returns the absolute difference between two dates in whole
// days, ignoring the time-of-day component.
func DayDelta(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	delta := int(a.Sub(b).Hours() / 24)
	if delta < 0 {
		delta = -delta
	}
	return delta
}
