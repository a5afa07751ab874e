// Package mask builds the inverse mask of a zone overlay: one polygon covering
// everything around the zones, with every zone ring cut out as a hole.
package mask

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/zonat/internal/hostmap"
	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/MeKo-Tech/zonat/internal/zone"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultPadFactor is the bounds padding used when none is configured.
const DefaultPadFactor = 1.0

// ErrEmptyOverlay is returned when the overlay has no zones to cut out.
var ErrEmptyOverlay = errors.New("overlay has no zones")

// Style is the fill applied to the area outside the zones.
type Style struct {
	Stroke      bool    `json:"stroke"`
	Fill        bool    `json:"fill"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// DefaultStyle shades the outside without an outline.
var DefaultStyle = Style{
	Stroke:      false,
	Fill:        true,
	FillColor:   "#333333",
	FillOpacity: 0.4,
}

// InverseMask is a snapshot of an overlay turned inside out. It is not
// updated when the overlay changes.
type InverseMask struct {
	polygon orb.Polygon
	bounds  types.BoundingBox
	pad     float64
	style   Style
	host    hostmap.HostMap
	logger  *slog.Logger
}

var _ hostmap.Layer = (*InverseMask)(nil)

// Option configures an InverseMask.
type Option func(*InverseMask)

// WithStyle overrides DefaultStyle.
func WithStyle(s Style) Option {
	return func(m *InverseMask) { m.style = s }
}

// WithLogger sets the logger used for attach events.
func WithLogger(l *slog.Logger) Option {
	return func(m *InverseMask) { m.logger = l }
}

// New builds the mask for o. The outer ring is the overlay bounds padded by
// padFactor on every side, wound SW, NW, NE, SE; the remaining rings are the
// flattened rings of every zone in zone order.
func New(o *zone.Overlay, padFactor float64, opts ...Option) (*InverseMask, error) {
	if padFactor < 0 {
		return nil, fmt.Errorf("pad factor %v must not be negative", padFactor)
	}
	bounds, ok := o.Bounds()
	if !ok {
		return nil, ErrEmptyOverlay
	}

	m := &InverseMask{
		bounds: bounds.ExpandByFraction(padFactor),
		pad:    padFactor,
		style:  DefaultStyle,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.polygon = make(orb.Polygon, 0, 1+o.TotalRings())
	m.polygon = append(m.polygon, m.bounds.Ring())
	for _, z := range o.Zones() {
		m.polygon = append(m.polygon, zone.Flatten(z.Shape)...)
	}

	return m, nil
}

func (m *InverseMask) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Polygon returns the mask polygon: the outer ring followed by the holes.
func (m *InverseMask) Polygon() orb.Polygon {
	return m.polygon
}

// Outer returns the padded rectangle.
func (m *InverseMask) Outer() types.BoundingBox {
	return m.bounds
}

// Holes returns the number of zone rings cut out of the mask.
func (m *InverseMask) Holes() int {
	return len(m.polygon) - 1
}

// PadFactor returns the padding used for the outer ring.
func (m *InverseMask) PadFactor() float64 {
	return m.pad
}

// Style returns the fill style of the mask.
func (m *InverseMask) Style() Style {
	return m.style
}

// Feature returns the mask as a GeoJSON feature carrying its style.
func (m *InverseMask) Feature() *geojson.Feature {
	f := geojson.NewFeature(m.polygon)
	f.Properties["stroke"] = m.style.Stroke
	f.Properties["fill"] = m.style.FillColor
	f.Properties["fill-opacity"] = m.style.FillOpacity
	f.Properties["pad"] = m.pad
	return f
}

// Attached reports whether the mask is currently on a host map.
func (m *InverseMask) Attached() bool {
	return m.host != nil
}

// OnAdd implements hostmap.Layer.
func (m *InverseMask) OnAdd(h hostmap.HostMap) error {
	m.host = h
	m.log().Debug("inverse mask attached", "holes", m.Holes(), "outer", m.bounds.String())
	return nil
}

// OnRemove implements hostmap.Layer.
func (m *InverseMask) OnRemove(hostmap.HostMap) {
	m.host = nil
}
