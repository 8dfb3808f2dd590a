package boundary

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// EncodeEWKB serializes a region geometry as EWKB with SRID 4326 for the
// boundary dimension tables.
func EncodeEWKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}

	switch t := g.(type) {
	case *geom.Polygon:
		g = t.SetSRID(4326)
	case *geom.MultiPolygon:
		g = t.SetSRID(4326)
	default:
		return nil, eris.Errorf("boundary: unsupported geometry type %T", g)
	}

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode EWKB")
	}
	return data, nil
}
