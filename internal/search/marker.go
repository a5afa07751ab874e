package search

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/MeKo-Tech/zonat/internal/hostmap"
)

// MarkerColor is the stroke color of search result markers.
const MarkerColor = "red"

// Marker is a circle marker with an open tooltip.
type Marker struct {
	Point   orb.Point
	Tooltip string
	Color   string

	host hostmap.HostMap
}

var _ hostmap.Layer = (*Marker)(nil)

// NewMarker creates a red marker at p.
func NewMarker(p orb.Point, tooltip string) *Marker {
	return &Marker{Point: p, Tooltip: tooltip, Color: MarkerColor}
}

func (m *Marker) OnAdd(h hostmap.HostMap) error {
	m.host = h
	return nil
}

func (m *Marker) OnRemove(hostmap.HostMap) {
	m.host = nil
}

// TooltipOpen reports whether the marker is on a map, which keeps its
// tooltip open.
func (m *Marker) TooltipOpen() bool { return m.host != nil }

// Feature returns the marker as a point feature.
func (m *Marker) Feature() *geojson.Feature {
	f := geojson.NewFeature(m.Point)
	f.Properties["marker-color"] = m.Color
	f.Properties["title"] = m.Tooltip
	return f
}
