// Package hostmap describes the map a zone overlay is attached to and provides
// a headless Web Mercator implementation of it.
package hostmap

import (
	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/paulmach/orb"
)

// Layer is anything that can be attached to a HostMap.
type Layer interface {
	// OnAdd is called once the layer has been inserted into the map's layer stack.
	OnAdd(m HostMap) error
	// OnRemove is called after the layer has been taken out of the layer stack.
	OnRemove(m HostMap)
}

// HostMap is the capability set the overlays need from the rendering map.
type HostMap interface {
	AddLayer(l Layer) error
	RemoveLayer(l Layer)
	HasLayer(l Layer) bool
	// BringToFront raises l to the top of the layer stack.
	BringToFront(l Layer)

	Bounds() types.BoundingBox
	SetMaxBounds(b types.BoundingBox)
	MaxBounds() (types.BoundingBox, bool)

	Zoom() float64
	SetZoom(z float64)
	MinZoom() float64
	SetMinZoom(z float64)
	// BoundsZoom returns the largest zoom at which b fits the viewport.
	BoundsZoom(b types.BoundingBox) float64

	SetView(center orb.Point, zoom float64)
	FlyToBounds(b types.BoundingBox)
	PanInsideBounds(b types.BoundingBox)
}
