package store

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shoppulse/registry-cli/internal/boundary"
	"github.com/shoppulse/registry-cli/internal/db"
)

// LoadSubzones replaces the subzone dimension with the layer's regions,
// storing each geometry as EWKB so downstream tools can read it back.
func (s *PostgresStore) LoadSubzones(ctx context.Context, layer *boundary.Layer) (int64, error) {
	return s.loadBoundaryDim(ctx, layer, "dim_subzone",
		[]string{"subzone_id", "subzone_name", "planning_area_id", "geometry"}, true)
}

// LoadPlanningAreas replaces the planning-area dimension with the layer's regions.
func (s *PostgresStore) LoadPlanningAreas(ctx context.Context, layer *boundary.Layer) (int64, error) {
	return s.loadBoundaryDim(ctx, layer, "dim_planning_area",
		[]string{"planning_area_id", "planning_area_name", "geometry"}, false)
}

func (s *PostgresStore) loadBoundaryDim(ctx context.Context, layer *boundary.Layer, table string, columns []string, withParent bool) (int64, error) {
	if _, err := s.pool.Exec(ctx, "TRUNCATE "+table); err != nil {
		return 0, eris.Wrapf(err, "store: truncate %s", table)
	}

	rows := make([][]any, 0, len(layer.Regions))
	for _, region := range layer.Regions {
		wkb, err := boundary.EncodeEWKB(region.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "store: encode geometry for %s", region.ID)
		}
		if withParent {
			rows = append(rows, []any{region.ID, region.Name, nullable(region.ParentID), wkb})
		} else {
			rows = append(rows, []any{region.ID, region.Name, wkb})
		}
	}

	n, err := db.CopyFrom(ctx, s.pool, table, columns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "store: load %s", table)
	}
	zap.L().Info("boundary dimension loaded", zap.String("table", table), zap.Int64("rows", n))
	return n, nil
}

// LoadSSIC replaces the industry-code lookup from a two-column CSV of
// code,title. A header row is detected by a non-numeric first field and skipped.
func (s *PostgresStore) LoadSSIC(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "store: open ssic file %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]any
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, eris.Wrap(err, "store: read ssic csv")
		}
		if len(record) < 2 {
			continue
		}
		if first {
			first = false
			if !isNumeric(record[0]) {
				continue
			}
		}
		rows = append(rows, []any{record[0], record[1]})
	}
	if len(rows) == 0 {
		return 0, eris.Errorf("store: no ssic rows in %s", path)
	}

	if _, err := s.pool.Exec(ctx, "TRUNCATE dim_ssic"); err != nil {
		return 0, eris.Wrap(err, "store: truncate dim_ssic")
	}

	n, err := db.CopyFrom(ctx, s.pool, "dim_ssic", []string{"ssic_code", "ssic_title"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: load dim_ssic")
	}
	zap.L().Info("ssic lookup loaded", zap.Int64("rows", n))
	return n, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
