package utils

import (
	"os"

	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// LayerToGeoJSON converts the features of layer accepted by keep (all when
// keep is nil) to a GeoJSON feature collection. Null values are omitted from
// the properties.
func LayerToGeoJSON(layer *Layer, keep func(*Feature) bool) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i, f := range layer.Features {
		if f.Geom == nil || (keep != nil && !keep(f)) {
			continue
		}
		g, err := wkb.Unmarshal(f.Geom.ToWKB())
		if err != nil {
			return nil, WrapError(ErrCodeInternal, err, "feature %d of %s", i, layer.Name)
		}
		feature := geojson.NewFeature(g)
		for j, field := range layer.Fields {
			if j < len(f.Values) && f.Values[j] != nil {
				feature.Properties[field.Name] = f.Values[j]
			}
		}
		fc.Append(feature)
	}
	return fc, nil
}

// WriteGeoJSON writes the accepted features of layer to path and returns
// how many were written.
func WriteGeoJSON(path string, layer *Layer, keep func(*Feature) bool) (int, error) {
	fc, err := LayerToGeoJSON(layer, keep)
	if err != nil {
		return 0, err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return 0, WrapError(ErrCodeInternal, err, "failed to encode %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, WrapError(ErrCodeInternal, err, "failed to write %s", path)
	}
	return len(fc.Features), nil
}
