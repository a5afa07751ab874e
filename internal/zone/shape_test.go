package zone

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeFromGeometry(t *testing.T) {
	a := square(0, 0, 1)
	hole := orb.Ring{{0.2, 0.2}, {0.4, 0.2}, {0.4, 0.4}, {0.2, 0.2}}
	b := square(5, 5, 1)

	tests := []struct {
		name    string
		geom    orb.Geometry
		rings   int
		wantErr bool
	}{
		{name: "polygon", geom: orb.Polygon{a}, rings: 1},
		{name: "polygon with hole", geom: orb.Polygon{a, hole}, rings: 2},
		{name: "multipolygon", geom: orb.MultiPolygon{{a}, {b, hole}}, rings: 3},
		{name: "collection drops points", geom: orb.Collection{orb.Point{1, 1}, orb.Polygon{a}, orb.MultiPolygon{{b}}}, rings: 2},
		{name: "nested collection", geom: orb.Collection{orb.Collection{orb.Polygon{a}}}, rings: 1},
		{name: "point", geom: orb.Point{1, 1}, wantErr: true},
		{name: "line", geom: orb.LineString{{0, 0}, {1, 1}}, wantErr: true},
		{name: "empty polygon", geom: orb.Polygon{}, wantErr: true},
		{name: "short ring", geom: orb.Polygon{{{0, 0}, {1, 1}}}, wantErr: true},
		{name: "short ring in multipolygon", geom: orb.MultiPolygon{{a}, {{{0, 0}}}}, wantErr: true},
		{name: "collection of points", geom: orb.Collection{orb.Point{1, 1}}, wantErr: true},
		{name: "NaN coordinate", geom: orb.Polygon{{{24.9, 60.1}, {math.NaN(), 60.1}, {25, 60.2}, {24.9, 60.1}}}, wantErr: true},
		{name: "infinite coordinate", geom: orb.Polygon{{{24.9, 60.1}, {math.Inf(1), 60.1}, {25, 60.2}, {24.9, 60.1}}}, wantErr: true},
		{name: "collinear sliver", geom: orb.Polygon{{{24.9, 60.1}, {24.9, 60.2}, {24.9, 60.3}}}, wantErr: true},
		{name: "repeated point", geom: orb.Polygon{{{25, 60}, {25, 60}, {25, 60}, {25, 60}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ShapeFromGeometry(tt.geom)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rings, RingCount(s))
			assert.Len(t, Flatten(s), tt.rings)
		})
	}
}

func TestFlatten_DepthFirstOrder(t *testing.T) {
	r1 := square(0, 0, 1)
	r2 := square(2, 0, 1)
	r3 := square(4, 0, 1)
	s := Group{Members: []Shape{
		Leaf{Rings: []orb.Ring{r1}},
		Group{Members: []Shape{Leaf{Rings: []orb.Ring{r2}}}},
		Leaf{Rings: []orb.Ring{r3}},
	}}

	assert.Equal(t, []orb.Ring{r1, r2, r3}, Flatten(s))
}

func TestShapeBounds(t *testing.T) {
	s, err := ShapeFromGeometry(orb.MultiPolygon{{square(0, 0, 1)}, {square(4, 2, 1)}})
	require.NoError(t, err)

	b, ok := ShapeBounds(s)
	require.True(t, ok)
	assert.Equal(t, 0.0, b.MinLon)
	assert.Equal(t, 0.0, b.MinLat)
	assert.Equal(t, 5.0, b.MaxLon)
	assert.Equal(t, 3.0, b.MaxLat)

	_, ok = ShapeBounds(Group{})
	assert.False(t, ok)
}

func TestShapeFromGeometry_RejectsUnusableRings(t *testing.T) {
	_, err := ShapeFromGeometry(orb.Polygon{{{24.9, 60.1}, {math.NaN(), 60.1}, {25, 60.2}, {24.9, 60.1}}})
	assert.ErrorIs(t, err, ErrNonFiniteCoordinate)

	_, err = ShapeFromGeometry(orb.MultiPolygon{{square(0, 0, 1)}, {{{24.9, 60.1}, {24.9, 60.2}, {24.9, 60.3}}}})
	assert.ErrorIs(t, err, ErrDegenerateRing)
}
