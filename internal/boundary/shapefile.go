package boundary

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads an ESRI shapefile into a Layer. Attribute names are
// matched case-insensitively against the alias keys. Records with no
// resolvable ID or an unsupported shape are skipped.
func LoadShapefile(path, name string, keys Keys) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		fieldName := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(fieldName)] = i
	}

	layer := &Layer{Name: name}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		props := make(map[string]any)
		readAliases(reader, fieldIdx, keys.ID, props)
		readAliases(reader, fieldIdx, keys.Name, props)
		readAliases(reader, fieldIdx, keys.Parent, props)

		id := pickProperty(props, keys.ID)
		g := polygonToMultiPolygon(poly)
		if id == "" || g == nil {
			skipped++
			continue
		}

		region := Region{
			ID:       id,
			Name:     pickProperty(props, keys.Name),
			ParentID: pickProperty(props, keys.Parent),
			Geometry: g,
		}
		if region.Name == "" {
			region.Name = id
		}
		layer.Regions = append(layer.Regions, region)
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("layer", name),
			zap.Int("skipped", skipped),
		)
	}
	if layer.Len() == 0 {
		return nil, eris.Errorf("boundary: %s: no usable records in %s", name, path)
	}

	return layer, nil
}

// readAliases copies DBF attribute values for the given alias keys into
// props, matching field names case-insensitively.
func readAliases(reader *shp.Reader, fieldIdx map[string]int, keys []string, props map[string]any) {
	for _, key := range keys {
		idx, ok := fieldIdx[strings.ToLower(key)]
		if !ok {
			continue
		}
		if _, done := props[key]; done {
			continue
		}
		val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		if val != "" {
			props[key] = val
		}
	}
}

// polygonToMultiPolygon converts a shapefile polygon to a geom.MultiPolygon.
// Each shapefile part becomes its own single-ring polygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
