package hostmap

import (
	"errors"
	"testing"

	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLayer struct {
	name    string
	addErr  error
	added   int
	removed int
}

func (l *recordingLayer) OnAdd(HostMap) error {
	l.added++
	return l.addErr
}

func (l *recordingLayer) OnRemove(HostMap) { l.removed++ }

var helsinki = types.BoundingBox{MinLon: 24.90, MinLat: 60.15, MaxLon: 25.00, MaxLat: 60.22}

func TestViewport_BoundsZoomFits(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())

	z := v.BoundsZoom(helsinki)
	require.Greater(t, z, 0.0)
	assert.Equal(t, 0.0, z-float64(int(z*2))/2, "zoom must be snapped to 0.5")

	v.SetView(helsinki.CenterPoint(), z)
	assert.True(t, v.Bounds().ContainsBox(helsinki), "bounds must fit at BoundsZoom")

	v.SetView(helsinki.CenterPoint(), z+0.5)
	assert.False(t, v.Bounds().ContainsBox(helsinki), "bounds must not fit one snap step deeper")
}

func TestViewport_BoundsZoomPointUsesMaxZoom(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	p := types.BoundingBox{MinLon: 25, MinLat: 60, MaxLon: 25, MaxLat: 60}
	assert.Equal(t, v.MaxZoom(), v.BoundsZoom(p))
}

func TestViewport_ZoomClamping(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())

	v.SetMinZoom(10)
	v.SetZoom(3)
	assert.Equal(t, 10.0, v.Zoom())

	v.SetZoom(40)
	assert.Equal(t, v.MaxZoom(), v.Zoom())

	world := types.BoundingBox{MinLon: -180, MinLat: -85, MaxLon: 180, MaxLat: 85}
	v.SetMinZoom(0)
	assert.Equal(t, 1.5, v.BoundsZoom(world))

	v.SetMinZoom(3)
	assert.Equal(t, 3.0, v.BoundsZoom(world), "BoundsZoom is clamped to the minimum zoom")
}

func TestViewport_PanInsideBounds(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	limit := types.BoundingBox{MinLon: -150, MinLat: -60, MaxLon: 150, MaxLat: 60}

	v.SetView(orb.Point{170, 0}, 5)
	require.False(t, limit.ContainsBox(v.Bounds()))

	v.PanInsideBounds(limit)
	got := v.Bounds()
	assert.LessOrEqual(t, got.MaxLon, limit.MaxLon+1e-6)
	assert.GreaterOrEqual(t, got.MinLon, limit.MinLon-1e-6)
}

func TestViewport_PanInsideSmallBoundsCenters(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetView(orb.Point{0, 0}, 2)

	v.PanInsideBounds(helsinki)
	c := v.Center()
	lat, lon := helsinki.Center()
	assert.InDelta(t, lon, c.Lon(), 1e-6)
	assert.InDelta(t, lat, c.Lat(), 1e-3)
}

func TestViewport_MaxBounds(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	_, ok := v.MaxBounds()
	assert.False(t, ok)

	v.SetMaxBounds(helsinki)
	mb, ok := v.MaxBounds()
	require.True(t, ok)
	assert.Equal(t, helsinki, mb)
}

func TestViewport_FlyToBounds(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetView(orb.Point{0, 0}, 3)

	v.FlyToBounds(helsinki)
	flights := v.Flights()
	require.Len(t, flights, 1)
	assert.Equal(t, helsinki, flights[0].Target)
	assert.True(t, v.Bounds().ContainsBox(helsinki))

	// Already fitted: no second animation.
	v.FlyToBounds(helsinki)
	assert.Len(t, v.Flights(), 1)
}

func TestViewport_LayerStack(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	a := &recordingLayer{name: "a"}
	b := &recordingLayer{name: "b"}

	require.NoError(t, v.AddLayer(a))
	require.NoError(t, v.AddLayer(b))
	require.NoError(t, v.AddLayer(a))
	assert.Equal(t, 1, a.added, "re-adding must not call OnAdd again")
	assert.Equal(t, []Layer{a, b}, v.Layers())

	v.BringToFront(a)
	assert.Equal(t, []Layer{b, a}, v.Layers())

	v.RemoveLayer(b)
	assert.False(t, v.HasLayer(b))
	assert.Equal(t, 1, b.removed)

	v.RemoveLayer(b)
	assert.Equal(t, 1, b.removed, "removing a detached layer is a no-op")
}

func TestViewport_AddLayerFailureDetaches(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	bad := &recordingLayer{addErr: errors.New("boom")}

	err := v.AddLayer(bad)
	require.Error(t, err)
	assert.False(t, v.HasLayer(bad))
}
