// Package geojson exports the rendered delivery-area layers as GeoJSON.
package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/MeKo-Tech/zonat/internal/mask"
	"github.com/MeKo-Tech/zonat/internal/search"
	"github.com/MeKo-Tech/zonat/internal/zone"
)

// LayerType names an exported layer.
type LayerType string

const (
	LayerZones   LayerType = "zones"
	LayerMask    LayerType = "mask"
	LayerMarkers LayerType = "markers"
)

// ShapeGeometry converts a zone shape back into a GeoJSON geometry. A leaf
// becomes a Polygon, a group of leaves a MultiPolygon and anything deeper a
// GeometryCollection.
func ShapeGeometry(s zone.Shape) orb.Geometry {
	switch s := s.(type) {
	case zone.Leaf:
		return orb.Polygon(s.Rings)
	case zone.Group:
		mp := make(orb.MultiPolygon, 0, len(s.Members))
		for _, m := range s.Members {
			leaf, ok := m.(zone.Leaf)
			if !ok {
				return shapeCollection(s)
			}
			mp = append(mp, orb.Polygon(leaf.Rings))
		}
		return mp
	default:
		return nil
	}
}

func shapeCollection(g zone.Group) orb.Collection {
	c := make(orb.Collection, 0, len(g.Members))
	for _, m := range g.Members {
		if geom := ShapeGeometry(m); geom != nil {
			c = append(c, geom)
		}
	}
	return c
}

// ZoneFeature converts zone i of o, carrying its source properties and
// current style.
func ZoneFeature(o *zone.Overlay, i int) (*geojson.Feature, error) {
	z, err := o.Zone(i)
	if err != nil {
		return nil, err
	}

	f := geojson.NewFeature(ShapeGeometry(z.Shape))
	if z.ID != "" {
		f.ID = z.ID
	}
	for key, value := range z.Properties {
		f.Properties[key] = value
	}

	st := o.Style(i)
	f.Properties["index"] = z.Index
	f.Properties["name"] = z.Name
	if z.Description != "" {
		f.Properties["description"] = z.Description
	}
	f.Properties["color"] = z.Color
	f.Properties["state"] = o.State(i).String()
	f.Properties["stroke"] = st.Color
	f.Properties["stroke-width"] = st.Weight
	f.Properties["fill"] = st.FillColor
	f.Properties["fill-opacity"] = st.FillOpacity
	f.Properties["layer"] = string(LayerZones)
	return f, nil
}

// Zones converts every zone of o, bottom of the paint order first.
func Zones(o *zone.Overlay) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, i := range o.PaintOrder() {
		f, err := ZoneFeature(o, i)
		if err != nil {
			continue
		}
		fc.Append(f)
	}
	return fc
}

// Mask wraps the inverse mask in a collection.
func Mask(m *mask.InverseMask) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if m == nil {
		return fc
	}
	f := m.Feature()
	f.Properties["layer"] = string(LayerMask)
	fc.Append(f)
	return fc
}

// Markers converts search markers.
func Markers(markers []*search.Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, mk := range markers {
		f := mk.Feature()
		f.Properties["layer"] = string(LayerMarkers)
		fc.Append(f)
	}
	return fc
}

// Combined stacks the layers in paint order: mask, zones, markers.
func Combined(o *zone.Overlay, m *mask.InverseMask, markers []*search.Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, Mask(m).Features...)
	if o != nil {
		fc.Features = append(fc.Features, Zones(o).Features...)
	}
	fc.Features = append(fc.Features, Markers(markers).Features...)
	return fc
}

// ToGeoJSONBytes marshals fc with indentation.
func ToGeoJSONBytes(fc *geojson.FeatureCollection) ([]byte, error) {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

// LayerCount returns the number of features in fc that belong to layer.
func LayerCount(fc *geojson.FeatureCollection, layer LayerType) int {
	n := 0
	for _, f := range fc.Features {
		if f.Properties.MustString("layer", "") == string(layer) {
			n++
		}
	}
	return n
}

// LayerSummary returns a one-line summary of the exported layers.
func LayerSummary(o *zone.Overlay, m *mask.InverseMask) string {
	holes := 0
	if m != nil {
		holes = m.Holes()
	}
	return fmt.Sprintf("Zones: %d, Skipped: %d, Rings: %d, Mask holes: %d",
		o.Len(), o.Skipped(), o.TotalRings(), holes)
}
