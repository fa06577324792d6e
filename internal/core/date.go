package core

import (
	"regexp"
	"strings"
)

// DateLayout is the canonical wire representation of dates.
const DateLayout = "DD/MM/YYYY"

var (
	dmyPattern = regexp.MustCompile(`^(\d{2})[-/](\d{2})[-/](\d{4})$`)
	ymdPattern = regexp.MustCompile(`^(\d{4})[-/](\d{2})[-/](\d{2})$`)

	// dateInputPattern is stricter than the normalizer: day 01-31 and month 01-12.
	dateInputPattern = regexp.MustCompile(`^(?:(?:(0[1-9]|[12]\d|3[01])[-/](0[1-9]|1[0-2])[-/](\d{4}))|((\d{4})[-/](0[1-9]|1[0-2])[-/](0[1-9]|[12]\d|3[01])))$`)
)

// NormalizeDate rewrites a user entered date into DD/MM/YYYY.
//
// DD-MM-YYYY and DD/MM/YYYY keep their field order, YYYY-MM-DD and
// YYYY/MM/DD are reordered. Anything else only gets its dashes replaced by
// slashes, so the result is not guaranteed to be a calendar date.
func NormalizeDate(input string) string {
	if m := dmyPattern.FindStringSubmatch(input); m != nil {
		return m[1] + "/" + m[2] + "/" + m[3]
	}
	if m := ymdPattern.FindStringSubmatch(input); m != nil {
		return m[3] + "/" + m[2] + "/" + m[1]
	}
	return strings.ReplaceAll(input, "-", "/")
}

// ValidDateInput reports whether s is acceptable in a date form field.
func ValidDateInput(s string) bool {
	return dateInputPattern.MatchString(s)
}
