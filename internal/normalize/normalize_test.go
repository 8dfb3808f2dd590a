package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"   ", ""},
		{"na", ""},
		{"NA", ""},
		{"Na", ""},
		{" na ", ""},
		{"LIVE", "LIVE"},
		{"  Acme Pte Ltd  ", "Acme Pte Ltd"},
		{"nah", "nah"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestPostal(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123456", "123456"},
		{"123", "000123"},
		{"S123", "000123"},
		{" 123 ", "000123"},
		{"NA", ""},
		{"", ""},
		{"no digits", ""},
		{"1234567", ""},
		{"Singapore 049145", "049145"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Postal(tt.input))
		})
	}
}

func TestIndustryCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"62", "00062"},
		{"62010", "62010"},
		{"620101", "620101"},
		{"62A", "62A"},
		{"NA", ""},
		{"", ""},
		{" 471 ", "00471"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IndustryCode(tt.input))
		})
	}
}

func TestDate(t *testing.T) {
	d, ok := Date("2021-03-05")
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC), d)

	d, ok = Date("2021-03-05T14:22:01")
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "NA", "not a date", "05/03/2021", "2021-13-40"} {
		_, ok := Date(bad)
		assert.False(t, ok, "expected %q to be absent", bad)
	}
}

func TestCleanRecord(t *testing.T) {
	rec := CleanRecord(map[string]any{
		"uen":                               "T1",
		"entity_name":                       "  Acme  ",
		"entity_status_description":         "Live",
		"entity_type_description":           "NA",
		"business_constitution_description": nil,
		"registration_incorporation_date":   "2021-03-05",
		"uen_issue_date":                    "garbage",
		"primary_ssic_code":                 "62",
		"secondary_ssic_code":               "62A",
		"postal_code":                       " 123 ",
	})

	assert.Equal(t, "T1", rec.UEN)
	assert.Equal(t, "Acme", rec.Name)
	assert.Equal(t, "Live", rec.Status)
	assert.Equal(t, "", rec.EntityType)
	assert.Equal(t, "", rec.Constitution)
	assert.Equal(t, "00062", rec.PrimarySSIC)
	assert.Equal(t, "62A", rec.SecondarySSIC)
	assert.Equal(t, "000123", rec.PostalCode)
	require.NotNil(t, rec.RegistrationDate)
	assert.Equal(t, time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC), *rec.RegistrationDate)
	assert.Nil(t, rec.UENIssueDate)
}

func TestCleanRecord_NumericJSONValues(t *testing.T) {
	// JSON decoding hands numeric columns over as float64.
	rec := CleanRecord(map[string]any{
		"uen":         "T2",
		"postal_code": float64(49145),
	})
	assert.Equal(t, "049145", rec.PostalCode)
}

func TestCleanRecord_Deterministic(t *testing.T) {
	raw := map[string]any{
		"uen":         "T3",
		"entity_name": " Beta ",
		"postal_code": "S123",
	}
	assert.Equal(t, CleanRecord(raw), CleanRecord(raw))
}
