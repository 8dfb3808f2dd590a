// Package boundary loads administrative boundary layers and answers
// point-in-polygon containment queries against them.
package boundary

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Region is one boundary polygon with its identifier. ParentID carries the
// planning-area code on subzone features; it is empty on other layers.
type Region struct {
	ID       string
	Name     string
	ParentID string
	Geometry geom.T
}

// Layer is an ordered, immutable collection of boundary regions. Containment
// checks iterate in load order and the first match wins, which makes overlap
// resolution deterministic.
type Layer struct {
	Name    string
	Regions []Region
}

// Contains returns the ID of the first region containing the point, or
// ("", false) when no region contains it.
func (l *Layer) Contains(lat, lon float64) (string, bool) {
	p := geom.Coord{lon, lat}
	for _, r := range l.Regions {
		if geometryContains(r.Geometry, p) {
			return r.ID, true
		}
	}
	return "", false
}

// Len returns the number of regions in the layer.
func (l *Layer) Len() int {
	return len(l.Regions)
}

func geometryContains(g geom.T, p geom.Coord) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, p)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), p) {
				return true
			}
		}
	}
	return false
}

// polygonContains tests the exterior ring and then excludes holes.
func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// pickProperty returns the first non-empty property value among the alias
// keys. Boundary files from different vintages name the same attribute
// differently, so each lookup carries its own alias list.
func pickProperty(props map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := props[key]; ok {
			if s := stringValue(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
