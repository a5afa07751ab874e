package hostmap

import (
	"log/slog"
	"math"
	"sync"

	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	earthCircumference = 2 * math.Pi * 6378137.0
	maxMercatorLat     = 85.0511287798
)

// ViewportOptions configures a headless Viewport.
type ViewportOptions struct {
	Width    int // Viewport width in pixels (default: 1024)
	Height   int // Viewport height in pixels (default: 768)
	TileSize int // Base tile size in pixels (default: 256)

	MinZoom  float64
	MaxZoom  float64 // default: 21
	ZoomSnap float64 // Zoom levels are snapped down to multiples of this (default: 0.5)

	Center orb.Point
	Zoom   float64

	Logger *slog.Logger
}

// DefaultViewportOptions mirrors the delivery-area map defaults.
func DefaultViewportOptions() ViewportOptions {
	return ViewportOptions{
		Width:    1024,
		Height:   768,
		TileSize: 256,
		MinZoom:  0,
		MaxZoom:  21,
		ZoomSnap: 0.5,
		Center:   orb.Point{24.945831, 60.192059},
		Zoom:     13,
	}
}

// Flight records a FlyToBounds animation request.
type Flight struct {
	Target types.BoundingBox
	Center orb.Point
	Zoom   float64
}

// Viewport is a headless HostMap that keeps viewport state in Web Mercator
// pixel space.
type Viewport struct {
	mu        sync.Mutex
	opts      ViewportOptions
	center    orb.Point
	zoom      float64
	minZoom   float64
	maxBounds *types.BoundingBox
	layers    []Layer
	flights   []Flight
	logger    *slog.Logger
}

var _ HostMap = (*Viewport)(nil)

// NewViewport creates a viewport, filling unset options with defaults.
func NewViewport(opts ViewportOptions) *Viewport {
	def := DefaultViewportOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.TileSize <= 0 {
		opts.TileSize = def.TileSize
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = def.MaxZoom
	}
	if opts.ZoomSnap < 0 {
		opts.ZoomSnap = 0
	}
	if opts.Center == (orb.Point{}) && opts.Zoom == 0 {
		opts.Center = def.Center
		opts.Zoom = def.Zoom
	}

	return &Viewport{
		opts:    opts,
		center:  opts.Center,
		zoom:    opts.Zoom,
		minZoom: opts.MinZoom,
		logger:  opts.Logger,
	}
}

func (v *Viewport) log() *slog.Logger {
	if v.logger != nil {
		return v.logger
	}
	return slog.Default()
}

// AddLayer inserts l at the top of the layer stack and calls its OnAdd hook.
// If OnAdd fails the layer is taken out again.
func (v *Viewport) AddLayer(l Layer) error {
	v.mu.Lock()
	if v.indexOfLocked(l) >= 0 {
		v.mu.Unlock()
		return nil
	}
	v.layers = append(v.layers, l)
	v.mu.Unlock()

	if err := l.OnAdd(v); err != nil {
		v.mu.Lock()
		v.removeLocked(l)
		v.mu.Unlock()
		return err
	}
	return nil
}

// RemoveLayer takes l out of the layer stack and calls its OnRemove hook.
func (v *Viewport) RemoveLayer(l Layer) {
	v.mu.Lock()
	removed := v.removeLocked(l)
	v.mu.Unlock()

	if removed {
		l.OnRemove(v)
	}
}

// HasLayer reports whether l is attached.
func (v *Viewport) HasLayer(l Layer) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.indexOfLocked(l) >= 0
}

// BringToFront moves l to the top of the layer stack.
func (v *Viewport) BringToFront(l Layer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.removeLocked(l) {
		v.layers = append(v.layers, l)
	}
}

// Layers returns the layer stack, bottom first.
func (v *Viewport) Layers() []Layer {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Layer, len(v.layers))
	copy(out, v.layers)
	return out
}

func (v *Viewport) indexOfLocked(l Layer) int {
	for i, existing := range v.layers {
		if existing == l {
			return i
		}
	}
	return -1
}

func (v *Viewport) removeLocked(l Layer) bool {
	i := v.indexOfLocked(l)
	if i < 0 {
		return false
	}
	v.layers = append(v.layers[:i], v.layers[i+1:]...)
	return true
}

// Center returns the current viewport center.
func (v *Viewport) Center() orb.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center
}

// Bounds returns the geographic area currently visible.
func (v *Viewport) Bounds() types.BoundingBox {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boundsLocked()
}

func (v *Viewport) boundsLocked() types.BoundingBox {
	cx, cy := v.project(v.center, v.zoom)
	hw, hh := float64(v.opts.Width)/2, float64(v.opts.Height)/2
	sw := v.unproject(cx-hw, cy+hh, v.zoom)
	ne := v.unproject(cx+hw, cy-hh, v.zoom)
	return types.BoundingBox{MinLon: sw.Lon(), MinLat: sw.Lat(), MaxLon: ne.Lon(), MaxLat: ne.Lat()}
}

// SetMaxBounds restricts panning to b and moves the view inside it.
func (v *Viewport) SetMaxBounds(b types.BoundingBox) {
	v.mu.Lock()
	defer v.mu.Unlock()
	mb := b
	v.maxBounds = &mb
	v.center = v.limitCenterLocked(v.center, v.zoom, mb)
	v.log().Debug("max bounds set", "bounds", b.String())
}

// MaxBounds returns the pan restriction, if any.
func (v *Viewport) MaxBounds() (types.BoundingBox, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.maxBounds == nil {
		return types.BoundingBox{}, false
	}
	return *v.maxBounds, true
}

// Zoom returns the current zoom level.
func (v *Viewport) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// SetZoom changes the zoom around the current center, clamped to the
// permitted zoom range.
func (v *Viewport) SetZoom(z float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zoom = v.clampZoomLocked(z)
	if v.maxBounds != nil {
		v.center = v.limitCenterLocked(v.center, v.zoom, *v.maxBounds)
	}
}

// MinZoom returns the smallest permitted zoom.
func (v *Viewport) MinZoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.minZoom
}

// SetMinZoom changes the smallest permitted zoom. The current zoom is raised
// if it falls below it.
func (v *Viewport) SetMinZoom(z float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.minZoom = z
	if v.zoom < z {
		v.zoom = z
	}
}

// MaxZoom returns the largest permitted zoom.
func (v *Viewport) MaxZoom() float64 {
	return v.opts.MaxZoom
}

// BoundsZoom returns the largest snapped zoom at which b fits entirely
// inside the viewport, clamped to the permitted zoom range.
func (v *Viewport) BoundsZoom(b types.BoundingBox) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boundsZoomLocked(b)
}

func (v *Viewport) boundsZoomLocked(b types.BoundingBox) float64 {
	swX, swY := v.project(orb.Point{b.MinLon, b.MinLat}, 0)
	neX, neY := v.project(orb.Point{b.MaxLon, b.MaxLat}, 0)
	bw, bh := math.Abs(neX-swX), math.Abs(swY-neY)
	if bw == 0 && bh == 0 {
		return v.clampZoomLocked(v.opts.MaxZoom)
	}

	scale := math.Inf(1)
	if bw > 0 {
		scale = float64(v.opts.Width) / bw
	}
	if bh > 0 {
		scale = math.Min(scale, float64(v.opts.Height)/bh)
	}

	zoom := math.Log2(scale)
	if snap := v.opts.ZoomSnap; snap > 0 {
		zoom = math.Floor(zoom/snap) * snap
	}
	return v.clampZoomLocked(zoom)
}

func (v *Viewport) clampZoomLocked(z float64) float64 {
	return math.Max(v.minZoom, math.Min(v.opts.MaxZoom, z))
}

// SetView centers the map on center at the given zoom.
func (v *Viewport) SetView(center orb.Point, zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zoom = v.clampZoomLocked(zoom)
	v.center = center
	if v.maxBounds != nil {
		v.center = v.limitCenterLocked(v.center, v.zoom, *v.maxBounds)
	}
}

// FlyToBounds moves the view to fit b. A request for bounds that are
// already fully visible at their fitting zoom is ignored.
func (v *Viewport) FlyToBounds(b types.BoundingBox) {
	v.mu.Lock()
	defer v.mu.Unlock()

	target := v.boundsZoomLocked(b)
	if v.zoom == target && v.boundsLocked().ContainsBox(b) {
		return
	}

	v.zoom = target
	v.center = b.CenterPoint()
	v.flights = append(v.flights, Flight{Target: b, Center: v.center, Zoom: target})
	v.log().Debug("flying to bounds", "bounds", b.String(), "zoom", target)
}

// Flights returns the recorded FlyToBounds animations.
func (v *Viewport) Flights() []Flight {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Flight, len(v.flights))
	copy(out, v.flights)
	return out
}

// PanInsideBounds moves the center the least amount needed so that the view
// lies inside b. If the view is larger than b it is centered on b.
func (v *Viewport) PanInsideBounds(b types.BoundingBox) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.center = v.limitCenterLocked(v.center, v.zoom, b)
}

func (v *Viewport) limitCenterLocked(center orb.Point, zoom float64, b types.BoundingBox) orb.Point {
	cx, cy := v.project(center, zoom)
	hw, hh := float64(v.opts.Width)/2, float64(v.opts.Height)/2

	// Pixel y grows southwards.
	minX, minY := v.project(orb.Point{b.MinLon, b.MaxLat}, zoom)
	maxX, maxY := v.project(orb.Point{b.MaxLon, b.MinLat}, zoom)

	dx := rebound(minX-(cx-hw), (cx+hw)-maxX)
	dy := rebound(minY-(cy-hh), (cy+hh)-maxY)
	if dx == 0 && dy == 0 {
		return center
	}
	return v.unproject(cx+dx, cy+dy, zoom)
}

// rebound returns the offset that moves a view overlapping the near edge by
// left and the far edge by right back inside the bounds. When the view is
// larger than the bounds on this axis it splits the difference.
func rebound(left, right float64) float64 {
	if left+right > 0 {
		return (left - right) / 2
	}
	return math.Max(0, left) - math.Max(0, right)
}

func (v *Viewport) scale(zoom float64) float64 {
	return float64(v.opts.TileSize) * math.Exp2(zoom) / earthCircumference
}

func (v *Viewport) project(p orb.Point, zoom float64) (float64, float64) {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, p.Lat()))
	m := project.WGS84.ToMercator(orb.Point{p.Lon(), lat})
	s := v.scale(zoom)
	return (m[0] + earthCircumference/2) * s, (earthCircumference/2 - m[1]) * s
}

func (v *Viewport) unproject(x, y, zoom float64) orb.Point {
	s := v.scale(zoom)
	m := orb.Point{x/s - earthCircumference/2, earthCircumference/2 - y/s}
	return project.Mercator.ToWGS84(m)
}
