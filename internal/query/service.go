// Package query serves read-only analytics over the enriched table. It never
// re-enriches data; every endpoint issues parameterized selects.
package query

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/shoppulse/registry-cli/internal/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Service answers analytics queries from the enriched table and the small
// lookup dimensions.
type Service struct {
	pool db.Pool
}

func NewService(pool db.Pool) *Service {
	return &Service{pool: pool}
}

// Overview is the registry-wide headline summary.
type Overview struct {
	TotalEntities int64 `json:"total_entities"`
	WithGeo       int64 `json:"with_geo"`
	WithSubzone   int64 `json:"with_subzone"`
	PlanningAreas int64 `json:"planning_areas"`
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	const q = `
		SELECT
			COUNT(*),
			COUNT(latitude),
			COUNT(subzone_id),
			COUNT(DISTINCT planning_area_id)
		FROM acra_entities_enriched`

	var o Overview
	err := s.pool.QueryRow(ctx, q).Scan(&o.TotalEntities, &o.WithGeo, &o.WithSubzone, &o.PlanningAreas)
	if err != nil {
		return nil, eris.Wrap(err, "query: overview")
	}
	return &o, nil
}

// TrendPoint is one month of registrations.
type TrendPoint struct {
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// TrendFilter narrows a trend query. Zero values mean no filter.
type TrendFilter struct {
	PlanningAreaID string
	SSICPrefix     string
	FromMonth      int
	ToMonth        int
}

func (s *Service) Trends(ctx context.Context, filter TrendFilter) ([]TrendPoint, error) {
	builder := psql.
		Select("registration_month", "COUNT(*)").
		From("acra_entities_enriched").
		Where("registration_month IS NOT NULL").
		GroupBy("registration_month").
		OrderBy("registration_month")
	if filter.PlanningAreaID != "" {
		builder = builder.Where(sq.Eq{"planning_area_id": filter.PlanningAreaID})
	}
	if filter.SSICPrefix != "" {
		builder = builder.Where(sq.Like{"primary_ssic": filter.SSICPrefix + "%"})
	}
	if filter.FromMonth > 0 {
		builder = builder.Where(sq.GtOrEq{"registration_month": filter.FromMonth})
	}
	if filter.ToMonth > 0 {
		builder = builder.Where(sq.LtOrEq{"registration_month": filter.ToMonth})
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "query: build trends")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query: trends")
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Month, &p.Count); err != nil {
			return nil, eris.Wrap(err, "query: scan trend point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "query: iterate trends")
}

// RankRow is one entry of a top-N ranking.
type RankRow struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Ranking dimensions.
const (
	RankBySubzone      = "subzone"
	RankByPlanningArea = "planning_area"
	RankBySSIC         = "ssic"
)

func (s *Service) Rankings(ctx context.Context, dimension string, limit int) ([]RankRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var builder sq.SelectBuilder
	switch dimension {
	case RankBySubzone:
		builder = psql.
			Select("e.subzone_id", "COALESCE(z.subzone_name, e.subzone_id)", "COUNT(*)").
			From("acra_entities_enriched e").
			LeftJoin("dim_subzone z ON z.subzone_id = e.subzone_id").
			Where("e.subzone_id IS NOT NULL").
			GroupBy("e.subzone_id", "z.subzone_name")
	case RankByPlanningArea:
		builder = psql.
			Select("e.planning_area_id", "COALESCE(p.planning_area_name, e.planning_area_id)", "COUNT(*)").
			From("acra_entities_enriched e").
			LeftJoin("dim_planning_area p ON p.planning_area_id = e.planning_area_id").
			Where("e.planning_area_id IS NOT NULL").
			GroupBy("e.planning_area_id", "p.planning_area_name")
	case RankBySSIC:
		builder = psql.
			Select("e.primary_ssic", "COALESCE(s.ssic_title, e.primary_ssic)", "COUNT(*)").
			From("acra_entities_enriched e").
			LeftJoin("dim_ssic s ON s.ssic_code = e.primary_ssic").
			Where("e.primary_ssic IS NOT NULL").
			GroupBy("e.primary_ssic", "s.ssic_title")
	default:
		return nil, eris.Errorf("query: unknown ranking dimension %q", dimension)
	}
	builder = builder.OrderBy("COUNT(*) DESC").Limit(uint64(limit))

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "query: build rankings")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query: rankings")
	}
	defer rows.Close()

	var ranks []RankRow
	for rows.Next() {
		var r RankRow
		if err := rows.Scan(&r.Key, &r.Label, &r.Count); err != nil {
			return nil, eris.Wrap(err, "query: scan rank row")
		}
		ranks = append(ranks, r)
	}
	return ranks, eris.Wrap(rows.Err(), "query: iterate rankings")
}

// EntityRow is one enriched registry record as served to clients.
type EntityRow struct {
	UEN              string     `json:"uen"`
	Name             string     `json:"entity_name,omitempty"`
	Status           string     `json:"entity_status,omitempty"`
	RegistrationDate *time.Time `json:"registration_date,omitempty"`
	PrimarySSIC      string     `json:"primary_ssic,omitempty"`
	PostalCode       string     `json:"postal_code,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	SubzoneID        string     `json:"subzone_id,omitempty"`
	PlanningAreaID   string     `json:"planning_area_id,omitempty"`
}

var entitySelect = psql.Select(
	"uen", "COALESCE(entity_name, '')", "COALESCE(entity_status, '')",
	"registration_date", "COALESCE(primary_ssic, '')", "COALESCE(postal_code, '')",
	"latitude", "longitude", "COALESCE(subzone_id, '')", "COALESCE(planning_area_id, '')",
).From("acra_entities_enriched")

func scanEntity(row pgx.Row) (*EntityRow, error) {
	var e EntityRow
	err := row.Scan(&e.UEN, &e.Name, &e.Status, &e.RegistrationDate, &e.PrimarySSIC,
		&e.PostalCode, &e.Latitude, &e.Longitude, &e.SubzoneID, &e.PlanningAreaID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SearchEntities finds records whose name contains the term, case-insensitively.
func (s *Service) SearchEntities(ctx context.Context, term string, limit int) ([]*EntityRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sqlStr, args, err := entitySelect.
		Where(sq.ILike{"entity_name": "%" + term + "%"}).
		OrderBy("entity_name").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "query: build entity search")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query: search entities")
	}
	defer rows.Close()

	var entities []*EntityRow
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "query: scan entity")
		}
		entities = append(entities, e)
	}
	return entities, eris.Wrap(rows.Err(), "query: iterate entities")
}

// GetEntity loads one record by UEN. Returns nil when absent.
func (s *Service) GetEntity(ctx context.Context, uen string) (*EntityRow, error) {
	sqlStr, args, err := entitySelect.Where(sq.Eq{"uen": uen}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "query: build entity lookup")
	}

	e, err := scanEntity(s.pool.QueryRow(ctx, sqlStr, args...))
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "query: get entity %s", uen)
	}
	return e, nil
}
