package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// schemaStatements holds the full schema as individual statements; pgx's
// extended protocol rejects multi-statement Exec calls, so Migrate runs them
// one at a time in order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS acra_entities (
		uen TEXT PRIMARY KEY,
		entity_name TEXT,
		entity_status TEXT,
		entity_type TEXT,
		business_constitution TEXT,
		company_type TEXT,
		registration_date DATE,
		uen_issue_date DATE,
		primary_ssic TEXT,
		secondary_ssic TEXT,
		postal_code TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_acra_entities_postal
		ON acra_entities (postal_code) WHERE postal_code IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_acra_entities_registration
		ON acra_entities (registration_date)`,

	`CREATE TABLE IF NOT EXISTS dim_postal_geo (
		postal_code TEXT PRIMARY KEY,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		subzone_id TEXT,
		planning_area_id TEXT,
		resolved_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS dim_subzone (
		subzone_id TEXT PRIMARY KEY,
		subzone_name TEXT,
		planning_area_id TEXT,
		geometry BYTEA
	)`,
	`CREATE TABLE IF NOT EXISTS dim_planning_area (
		planning_area_id TEXT PRIMARY KEY,
		planning_area_name TEXT,
		geometry BYTEA
	)`,
	`CREATE TABLE IF NOT EXISTS dim_ssic (
		ssic_code TEXT PRIMARY KEY,
		ssic_title TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS acra_entities_enriched (
		uen TEXT PRIMARY KEY,
		entity_name TEXT,
		entity_status TEXT,
		entity_type TEXT,
		business_constitution TEXT,
		company_type TEXT,
		registration_date DATE,
		uen_issue_date DATE,
		primary_ssic TEXT,
		secondary_ssic TEXT,
		postal_code TEXT,
		registration_month INTEGER,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		subzone_id TEXT,
		planning_area_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_enriched_month
		ON acra_entities_enriched (registration_month)`,
	`CREATE INDEX IF NOT EXISTS idx_enriched_subzone
		ON acra_entities_enriched (subzone_id)`,
	`CREATE INDEX IF NOT EXISTS idx_enriched_planning_area
		ON acra_entities_enriched (planning_area_id)`,
	`CREATE INDEX IF NOT EXISTS idx_enriched_ssic
		ON acra_entities_enriched (primary_ssic)`,

	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		detail JSONB
	)`,
}

// Migrate creates every table and index the pipeline needs. Statements are
// idempotent, so running it repeatedly is safe.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: apply schema statement")
		}
	}
	zap.L().Info("schema migrated", zap.Int("statements", len(schemaStatements)))
	return nil
}
