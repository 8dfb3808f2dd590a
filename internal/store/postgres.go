// Package store persists staged registry facts, the geo-resolution dimension,
// and the enriched output table in Postgres.
package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/shoppulse/registry-cli/internal/db"
	"github.com/shoppulse/registry-cli/internal/model"
)

// psql builds queries with Postgres placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore implements all pipeline persistence against a single pool.
type PostgresStore struct {
	pool db.Pool
}

// New creates a store over an existing pool. The store does not own the pool.
func New(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// upsertEntitySQL merges one record by UEN. The WHERE clause encodes the
// "latest registration date wins, ties and dateless updates keep the existing
// row" policy, so re-fetching unchanged upstream data never mutates the table.
const upsertEntitySQL = `
INSERT INTO acra_entities (
	uen, entity_name, entity_status, entity_type, business_constitution,
	company_type, registration_date, uen_issue_date, primary_ssic,
	secondary_ssic, postal_code
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (uen) DO UPDATE SET
	entity_name = EXCLUDED.entity_name,
	entity_status = EXCLUDED.entity_status,
	entity_type = EXCLUDED.entity_type,
	business_constitution = EXCLUDED.business_constitution,
	company_type = EXCLUDED.company_type,
	registration_date = EXCLUDED.registration_date,
	uen_issue_date = EXCLUDED.uen_issue_date,
	primary_ssic = EXCLUDED.primary_ssic,
	secondary_ssic = EXCLUDED.secondary_ssic,
	postal_code = EXCLUDED.postal_code
WHERE EXCLUDED.registration_date IS NOT NULL
  AND (acra_entities.registration_date IS NULL
       OR EXCLUDED.registration_date > acra_entities.registration_date)`

// UpsertEntity inserts or merges one normalized record. Records without a UEN
// are dropped silently; the identifier is the only required field. Returns
// true when a row was written.
func (s *PostgresStore) UpsertEntity(ctx context.Context, e *model.Entity) (bool, error) {
	if e.UEN == "" {
		return false, nil
	}

	tag, err := s.pool.Exec(ctx, upsertEntitySQL, e.Values()...)
	if err != nil {
		return false, eris.Wrapf(err, "store: upsert entity %s", e.UEN)
	}
	return tag.RowsAffected() > 0, nil
}

// UnresolvedPostalCodes returns up to limit distinct postal codes present in
// the staging table but absent from the geo-resolution dimension.
func (s *PostgresStore) UnresolvedPostalCodes(ctx context.Context, limit int) ([]string, error) {
	builder := psql.
		Select("postal_code").
		Distinct().
		From("acra_entities").
		Where("postal_code IS NOT NULL").
		Where("postal_code NOT IN (SELECT postal_code FROM dim_postal_geo)").
		OrderBy("postal_code")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "store: build unresolved codes query")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query unresolved codes")
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, eris.Wrap(err, "store: scan unresolved code")
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate unresolved codes")
	}

	return codes, nil
}

// geoColumns lists dim_postal_geo columns in insert order.
var geoColumns = []string{
	"postal_code", "latitude", "longitude", "subzone_id", "planning_area_id", "resolved_at",
}

// InsertGeoResolutions flushes one resolved sub-batch. Existing rows are left
// untouched: a resolution is written once and never updated.
func (s *PostgresStore) InsertGeoResolutions(ctx context.Context, resolutions []model.GeoResolution) (int64, error) {
	if len(resolutions) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(resolutions))
	for _, r := range resolutions {
		resolvedAt := r.ResolvedAt
		if resolvedAt.IsZero() {
			resolvedAt = time.Now().UTC()
		}
		rows = append(rows, []any{
			r.PostalCode,
			r.Latitude,
			r.Longitude,
			nullable(r.SubzoneID),
			nullable(r.PlanningAreaID),
			resolvedAt,
		})
	}

	sqlStr, args := db.InsertIgnoreSQL("dim_postal_geo", geoColumns, []string{"postal_code"}, rows)
	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert geo resolutions")
	}
	return tag.RowsAffected(), nil
}

// EntityCount returns the number of staged records.
func (s *PostgresStore) EntityCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM acra_entities").Scan(&n); err != nil {
		return 0, eris.Wrap(err, "store: count entities")
	}
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
