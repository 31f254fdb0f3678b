// Package parser repairs raw spreadsheet cells before they are stored.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Role is the semantic meaning of a spreadsheet column.
type Role int

const (
	RoleText Role = iota
	RoleRating
	RoleCount
	RolePrice
	RoleDate
	RoleVerified
	RoleFreeText
	RoleName
)

func (r Role) String() string {
	switch r {
	case RoleRating:
		return "rating"
	case RoleCount:
		return "count"
	case RolePrice:
		return "price"
	case RoleDate:
		return "date"
	case RoleVerified:
		return "verified"
	case RoleFreeText:
		return "free_text"
	case RoleName:
		return "name"
	default:
		return "text"
	}
}

// Numeric reports whether missing values of the role default to zero.
func (r Role) Numeric() bool {
	return r == RoleRating || r == RoleCount || r == RolePrice
}

// Sentinels substituted for missing cells.
const (
	NotAvailable = "N/A"
	Anonymous    = "Anonymous"
)

// roleKeywords is evaluated in order; the first keyword contained in the
// lower-cased header selects the role.
var roleKeywords = []struct {
	keyword string
	role    Role
}{
	{"rating", RoleRating},
	{"total", RoleCount},
	{"price", RolePrice},
	{"helpful", RoleCount},
	{"date", RoleDate},
	{"verified", RoleVerified},
	{"title", RoleFreeText},
	{"body", RoleFreeText},
	{"name", RoleName},
}

// RoleFor infers a column role from its header text.
func RoleFor(header string) Role {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, rk := range roleKeywords {
		if strings.Contains(h, rk.keyword) {
			return rk.role
		}
	}
	return RoleText
}

var (
	reHumanDate = regexp.MustCompile(`(?i)^([a-z]+)\.? ([0-9]{1,2}), ([0-9]{4})$`)

	currencySymbols = []string{"$", "£", "€", "¥"}

	months = map[string]time.Month{
		"jan": time.January, "january": time.January,
		"feb": time.February, "february": time.February,
		"mar": time.March, "march": time.March,
		"apr": time.April, "april": time.April,
		"may": time.May,
		"jun": time.June, "june": time.June,
		"jul": time.July, "july": time.July,
		"aug": time.August, "august": time.August,
		"sep": time.September, "sept": time.September, "september": time.September,
		"oct": time.October, "october": time.October,
		"nov": time.November, "november": time.November,
		"dec": time.December, "december": time.December,
	}
)

const maxHumanDateLen = 18

// Normalize repairs a raw cell for the given role. Missing cells receive the
// role default; prices keep the first listed amount; "Month Day, Year" dates
// become a time.Time. Values that are already normalized are returned as is.
func Normalize(role Role, raw any) (any, error) {
	switch v := raw.(type) {
	case int64, float64, bool, time.Time:
		return v, nil
	case int:
		return int64(v), nil
	}

	text := ""
	if raw != nil {
		text = strings.TrimSpace(fmt.Sprint(raw))
	}
	if text == "" {
		return missing(role)
	}

	if role == RoleFreeText || role == RoleName {
		return text, nil
	}

	if amount, ok := stripCurrency(text); ok {
		return amount, nil
	}
	if looksLikeHumanDate(text) {
		return ParseHumanDate(text)
	}
	return text, nil
}

func missing(role Role) (any, error) {
	switch {
	case role.Numeric():
		return int64(0), nil
	case role == RoleFreeText:
		return NotAvailable, nil
	case role == RoleName:
		return Anonymous, nil
	case role == RoleVerified:
		return false, nil
	default:
		return nil, &MissingValueError{Role: role}
	}
}

// stripCurrency drops a leading currency symbol and keeps the text before the
// first comma, so "$199.99, $249.99" yields "199.99".
func stripCurrency(text string) (string, bool) {
	for _, sym := range currencySymbols {
		if !strings.HasPrefix(text, sym) {
			continue
		}
		rest := text[len(sym):]
		if idx := strings.Index(rest, ","); idx >= 0 {
			rest = rest[:idx]
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

func looksLikeHumanDate(text string) bool {
	return len(text) <= maxHumanDateLen && reHumanDate.MatchString(text)
}

// ParseHumanDate parses "January 5, 2019", "Sept 3, 2020" and similar.
func ParseHumanDate(text string) (time.Time, error) {
	m := reHumanDate.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, &ParseError{Input: text, Reason: "expected Month Day, Year"}
	}

	month, err := MonthFromString(m[1])
	if err != nil {
		return time.Time{}, &ParseError{Input: text, Reason: "bad month", Err: err}
	}
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || date.Month() != month {
		return time.Time{}, &ParseError{Input: text, Reason: fmt.Sprintf("day %d out of range for %s", day, month)}
	}
	return date, nil
}

// MonthFromString resolves full month names and their abbreviations.
func MonthFromString(name string) (time.Month, error) {
	month, ok := months[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, &ParseError{Input: name, Reason: "unrecognized month"}
	}
	return month, nil
}
