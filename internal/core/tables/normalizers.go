package tables

import (
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/clinicimport/internal/core"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail performs a shape check only, no deliverability.
func IsEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(s string) any {
	return strings.ToLower(strings.TrimSpace(s))
}

// phoneDigits returns the digits of s, or "" if s holds anything other
// than digits and common phone punctuation.
func phoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(" .-()+/", r):
		default:
			return ""
		}
	}
	return b.String()
}

// IsPhone accepts 7 to 15 digits with spaces, dots, dashes, parentheses or a leading +.
func IsPhone(s string) bool {
	n := len(phoneDigits(s))
	return n >= 7 && n <= 15
}

// NormalizePhone formats North American numbers as 514-555-0134.
// Other numbers are returned trimmed, as written.
func NormalizePhone(s string) any {
	s = strings.TrimSpace(s)
	d := phoneDigits(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) == 10 {
		return d[:3] + "-" + d[3:6] + "-" + d[6:]
	}
	return s
}

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Day-first layouts, the way dates are written in the clinic's exports.
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "02-01-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"2 Jan 2006", "20060102",
	}
)

// ParseDate parses a day-first or ISO date. The second result is false
// when no layout matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// IsDate reports whether ParseDate accepts s.
func IsDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// ToDate converts a cell to a time.Time at midnight UTC, or nil.
func ToDate(s string) any {
	t, ok := ParseDate(s)
	if !ok {
		return nil
	}
	return t
}

// birthDate parses s and folds two-digit years back a century when they
// would land in the future, so "01/02/35" is 1935. Future dates are rejected.
func birthDate(s string) (time.Time, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return t, false
	}
	now := time.Now()
	if t.After(now) && hasTwoDigitYear(s) {
		t = t.AddDate(-100, 0, 0)
	}
	return t, !t.After(now)
}

// IsBirthDate accepts dates that are not in the future.
func IsBirthDate(s string) bool {
	_, ok := birthDate(s)
	return ok
}

// ToBirthDate converts a cell like ToDate, applying the birth date rules.
func ToBirthDate(s string) any {
	t, ok := birthDate(s)
	if !ok {
		return nil
	}
	return t
}

func hasTwoDigitYear(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range twoDigitYearLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

var timeLayouts = []string{"15:04", "15:04:05", "15h04", "3:04 PM", "3:04PM", "3 PM", "3PM"}

// ParseClock parses a time of day and returns it as HH:MM.
func ParseClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(strings.ToLower(s), "h") {
		s = s[:len(s)-1] + "h00"
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return t.Format("15:04"), true
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}

// IsClock reports whether ParseClock accepts s.
func IsClock(s string) bool {
	_, ok := ParseClock(s)
	return ok
}

// ToClock converts a cell to HH:MM, or nil.
func ToClock(s string) any {
	v, ok := ParseClock(s)
	if !ok {
		return nil
	}
	return v
}

// enum builds a validator and transformer pair over normalized spellings.
// An empty cell transforms to def.
func enum(values map[string]string, def string) (func(string) bool, func(string) any) {
	validate := func(s string) bool {
		_, ok := values[core.NormalizeHeader(s)]
		return ok
	}
	transform := func(s string) any {
		if v, ok := values[core.NormalizeHeader(s)]; ok {
			return v
		}
		return def
	}
	return validate, transform
}
