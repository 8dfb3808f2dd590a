// Package model defines the data types shared across pipeline phases.
package model

import "time"

// EntityColumns lists the staging table columns in insert order.
var EntityColumns = []string{
	"uen",
	"entity_name",
	"entity_status",
	"entity_type",
	"business_constitution",
	"company_type",
	"registration_date",
	"uen_issue_date",
	"primary_ssic",
	"secondary_ssic",
	"postal_code",
}

// Entity is one normalized registry record. String fields use "" for absent;
// date fields use nil. Raw sentinel values ("NA", whitespace) never survive
// past internal/normalize.
type Entity struct {
	UEN              string
	Name             string
	Status           string
	EntityType       string
	Constitution     string
	CompanyType      string
	RegistrationDate *time.Time
	UENIssueDate     *time.Time
	PrimarySSIC      string
	SecondarySSIC    string
	PostalCode       string
}

// Values returns the entity as a row matching EntityColumns, with nil for
// absent fields so the store writes SQL NULLs.
func (e *Entity) Values() []any {
	return []any{
		e.UEN,
		nullable(e.Name),
		nullable(e.Status),
		nullable(e.EntityType),
		nullable(e.Constitution),
		nullable(e.CompanyType),
		nullableDate(e.RegistrationDate),
		nullableDate(e.UENIssueDate),
		nullable(e.PrimarySSIC),
		nullable(e.SecondarySSIC),
		nullable(e.PostalCode),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// GeoResolution maps one postal code to coordinates and the containing
// boundary regions. Created once per code; never updated after insert.
type GeoResolution struct {
	PostalCode     string
	Latitude       float64
	Longitude      float64
	SubzoneID      string // "" = no containing subzone
	PlanningAreaID string // "" = no containing planning area
	ResolvedAt     time.Time
}
