package boundary

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Property-key aliases observed across boundary file vintages. The first
// present alias wins.
var (
	SubzoneIDKeys       = []string{"SUBZONE_C", "SUBZONE", "subzone_id", "id"}
	SubzoneNameKeys     = []string{"SUBZONE_N", "SUBZONE", "subzone", "name"}
	SubzoneParentKeys   = []string{"PLN_AREA_C", "planning_area_id", "planning_area"}
	PlanningIDKeys      = []string{"PLN_AREA_C", "planning_area_id", "id"}
	PlanningNameKeys    = []string{"PLN_AREA_N", "planning_area", "name"}
)

// Keys selects which feature properties map to Region fields.
type Keys struct {
	ID     []string
	Name   []string
	Parent []string
}

// LoadGeoJSON reads a FeatureCollection file into a Layer. Features with no
// resolvable ID or no usable polygon geometry are skipped, not fatal.
func LoadGeoJSON(path, name string, keys Keys) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "boundary: parse %s", path)
	}

	layer := &Layer{Name: name}
	var skipped int
	for _, feature := range fc.Features {
		id := pickProperty(feature.Properties, keys.ID)
		if id == "" || feature.Geometry == nil {
			skipped++
			continue
		}
		region := Region{
			ID:       id,
			Name:     pickProperty(feature.Properties, keys.Name),
			Geometry: feature.Geometry,
		}
		if region.Name == "" {
			region.Name = id
		}
		if len(keys.Parent) > 0 {
			region.ParentID = pickProperty(feature.Properties, keys.Parent)
		}
		layer.Regions = append(layer.Regions, region)
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped features without id or geometry",
			zap.String("layer", name),
			zap.Int("skipped", skipped),
		)
	}
	if layer.Len() == 0 {
		return nil, eris.Errorf("boundary: %s: no usable features in %s", name, path)
	}

	return layer, nil
}
