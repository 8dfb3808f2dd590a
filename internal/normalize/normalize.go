// Package normalize cleans raw registry field values. Every function is total:
// invalid input degrades to the absent value ("" for strings, ok=false for
// dates), never an error.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/shoppulse/registry-cli/internal/model"
)

// Text trims the value and maps the upstream absent sentinels (empty string,
// case-insensitive "na") to "".
func Text(v string) string {
	text := strings.TrimSpace(v)
	if text == "" || strings.EqualFold(text, "na") {
		return ""
	}
	return text
}

// Postal strips non-digit characters and left-pads to 6 digits. Anything that
// does not end up exactly 6 digits is absent.
func Postal(v string) string {
	text := Text(v)
	if text == "" {
		return ""
	}
	var digits strings.Builder
	for _, ch := range text {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	d := digits.String()
	if d == "" || len(d) > 6 {
		return ""
	}
	if len(d) < 6 {
		d = strings.Repeat("0", 6-len(d)) + d
	}
	return d
}

// IndustryCode zero-pads purely numeric codes shorter than 5 digits.
// Non-numeric codes pass through verbatim.
func IndustryCode(v string) string {
	text := Text(v)
	if text == "" {
		return ""
	}
	if isDigits(text) && len(text) < 5 {
		return strings.Repeat("0", 5-len(text)) + text
	}
	return text
}

// dateLayouts covers the ISO-8601 shapes the upstream datasets emit.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Date parses an ISO-8601-like date or timestamp and returns the calendar
// date portion in UTC. Unparseable input returns ok=false, not an error.
func Date(v string) (time.Time, bool) {
	text := Text(v)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, text)
		if err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// CleanRecord applies the per-field rules to one raw datastore record.
// Unknown keys are ignored; missing keys leave the field absent.
func CleanRecord(raw map[string]any) model.Entity {
	var e model.Entity
	e.UEN = Text(stringify(raw["uen"]))
	e.Name = Text(stringify(raw["entity_name"]))
	e.Status = Text(stringify(raw["entity_status_description"]))
	e.EntityType = Text(stringify(raw["entity_type_description"]))
	e.Constitution = Text(stringify(raw["business_constitution_description"]))
	e.CompanyType = Text(stringify(raw["company_type_description"]))
	e.PrimarySSIC = IndustryCode(stringify(raw["primary_ssic_code"]))
	e.SecondarySSIC = IndustryCode(stringify(raw["secondary_ssic_code"]))
	e.PostalCode = Postal(stringify(raw["postal_code"]))
	if d, ok := Date(stringify(raw["registration_incorporation_date"])); ok {
		e.RegistrationDate = &d
	}
	if d, ok := Date(stringify(raw["uen_issue_date"])); ok {
		e.UENIssueDate = &d
	}
	return e
}

func isDigits(s string) bool {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return s != ""
}

// stringify renders a decoded JSON value as the string the upstream intended.
// Integer-valued floats print without a fractional part.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
