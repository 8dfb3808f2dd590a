package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// enrichedSelect joins the staging table against the geo-resolution dimension
// and derives the YYYYMM registration bucket. Rows without coordinates still
// appear in the enriched table with NULL geo columns.
const enrichedSelect = `
SELECT
	e.uen, e.entity_name, e.entity_status, e.entity_type,
	e.business_constitution, e.company_type, e.registration_date,
	e.uen_issue_date, e.primary_ssic, e.secondary_ssic, e.postal_code,
	CAST(to_char(e.registration_date, 'YYYYMM') AS INTEGER),
	g.latitude, g.longitude, g.subzone_id, g.planning_area_id
FROM acra_entities e
LEFT JOIN dim_postal_geo g ON g.postal_code = e.postal_code`

const enrichedInsert = `
INSERT INTO acra_entities_enriched (
	uen, entity_name, entity_status, entity_type, business_constitution,
	company_type, registration_date, uen_issue_date, primary_ssic,
	secondary_ssic, postal_code, registration_month, latitude, longitude,
	subzone_id, planning_area_id
)`

// RebuildEnriched drops and fully regenerates the enriched table from the
// staging table and whatever geo resolutions exist at the time.
func (s *PostgresStore) RebuildEnriched(ctx context.Context) (int64, error) {
	if _, err := s.pool.Exec(ctx, "TRUNCATE acra_entities_enriched"); err != nil {
		return 0, eris.Wrap(err, "store: truncate enriched")
	}

	tag, err := s.pool.Exec(ctx, enrichedInsert+enrichedSelect)
	if err != nil {
		return 0, eris.Wrap(err, "store: rebuild enriched")
	}

	zap.L().Info("enriched table rebuilt", zap.Int64("rows", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// RefreshEnrichedMonths rebuilds only the given YYYYMM buckets. A zero value
// in months refreshes the rows with no registration date.
func (s *PostgresStore) RefreshEnrichedMonths(ctx context.Context, months []int) (int64, error) {
	var total int64
	for _, month := range months {
		var deleteSQL, insertSQL string
		var args []any
		if month == 0 {
			deleteSQL = "DELETE FROM acra_entities_enriched WHERE registration_month IS NULL"
			insertSQL = enrichedInsert + enrichedSelect + " WHERE e.registration_date IS NULL"
		} else {
			deleteSQL = "DELETE FROM acra_entities_enriched WHERE registration_month = $1"
			insertSQL = enrichedInsert + enrichedSelect +
				" WHERE CAST(to_char(e.registration_date, 'YYYYMM') AS INTEGER) = $1"
			args = []any{month}
		}

		if _, err := s.pool.Exec(ctx, deleteSQL, args...); err != nil {
			return total, eris.Wrapf(err, "store: clear enriched month %d", month)
		}
		tag, err := s.pool.Exec(ctx, insertSQL, args...)
		if err != nil {
			return total, eris.Wrapf(err, "store: refresh enriched month %d", month)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// StagedMonths returns every distinct YYYYMM bucket present in the staging
// table, with 0 appended when dateless rows exist.
func (s *PostgresStore) StagedMonths(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT CAST(to_char(registration_date, 'YYYYMM') AS INTEGER)
		FROM acra_entities
		WHERE registration_date IS NOT NULL
		ORDER BY 1`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query staged months")
	}
	defer rows.Close()

	var months []int
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			return nil, eris.Wrap(err, "store: scan staged month")
		}
		months = append(months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate staged months")
	}

	var dateless int64
	err = s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM acra_entities WHERE registration_date IS NULL").Scan(&dateless)
	if err != nil {
		return nil, eris.Wrap(err, "store: count dateless entities")
	}
	if dateless > 0 {
		months = append(months, 0)
	}

	return months, nil
}
