package types

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// BoundingBox represents a geographic bounding box in WGS84 (EPSG:4326)
type BoundingBox struct {
	MinLon float64 // Western edge (degrees)
	MinLat float64 // Southern edge (degrees)
	MaxLon float64 // Eastern edge (degrees)
	MaxLat float64 // Northern edge (degrees)
}

// FromBound converts an orb.Bound (lon/lat) into a BoundingBox.
func FromBound(b orb.Bound) BoundingBox {
	return BoundingBox{
		MinLon: b.Min.Lon(),
		MinLat: b.Min.Lat(),
		MaxLon: b.Max.Lon(),
		MaxLat: b.Max.Lat(),
	}
}

// Bound returns the box as an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// IsValid reports whether the box has ordered, finite edges.
// A single point (zero width and height) is valid.
func (b BoundingBox) IsValid() bool {
	for _, v := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinLon <= b.MaxLon && b.MinLat <= b.MaxLat
}

// ExpandByFraction grows the box by fraction*width on the west and east edges
// and fraction*height on the south and north edges.
func (b BoundingBox) ExpandByFraction(fraction float64) BoundingBox {
	if fraction == 0 {
		return b
	}
	dLon := b.Width() * fraction
	dLat := b.Height() * fraction
	return BoundingBox{
		MinLon: b.MinLon - dLon,
		MinLat: b.MinLat - dLat,
		MaxLon: b.MaxLon + dLon,
		MaxLat: b.MaxLat + dLat,
	}
}

// Extend returns the smallest box containing both b and o.
func (b BoundingBox) Extend(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinLon: math.Min(b.MinLon, o.MinLon),
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
	}
}

// Contains reports whether p lies inside or on the edge of the box.
func (b BoundingBox) Contains(p orb.Point) bool {
	return p.Lon() >= b.MinLon && p.Lon() <= b.MaxLon &&
		p.Lat() >= b.MinLat && p.Lat() <= b.MaxLat
}

// ContainsBox reports whether o lies fully inside b (edges may touch).
func (b BoundingBox) ContainsBox(o BoundingBox) bool {
	return o.MinLon >= b.MinLon && o.MaxLon <= b.MaxLon &&
		o.MinLat >= b.MinLat && o.MaxLat <= b.MaxLat
}

// StrictlyContains reports whether o lies inside b without touching any edge.
func (b BoundingBox) StrictlyContains(o BoundingBox) bool {
	return o.MinLon > b.MinLon && o.MaxLon < b.MaxLon &&
		o.MinLat > b.MinLat && o.MaxLat < b.MaxLat
}

// Corners returns the four corners in southwest, northwest, northeast,
// southeast order.
func (b BoundingBox) Corners() [4]orb.Point {
	return [4]orb.Point{
		{b.MinLon, b.MinLat},
		{b.MinLon, b.MaxLat},
		{b.MaxLon, b.MaxLat},
		{b.MaxLon, b.MinLat},
	}
}

// Ring returns the corners as a closed ring.
func (b BoundingBox) Ring() orb.Ring {
	c := b.Corners()
	return orb.Ring{c[0], c[1], c[2], c[3], c[0]}
}

// String returns a human-readable representation of the bounding box
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f)", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// CenterPoint returns the center as an orb.Point (lon, lat).
func (b BoundingBox) CenterPoint() orb.Point {
	lat, lon := b.Center()
	return orb.Point{lon, lat}
}

// Width returns the width of the bounding box in degrees
func (b BoundingBox) Width() float64 {
	return b.MaxLon - b.MinLon
}

// Height returns the height of the bounding box in degrees
func (b BoundingBox) Height() float64 {
	return b.MaxLat - b.MinLat
}
