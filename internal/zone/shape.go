package zone

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/paulmach/orb"
)

// MinRingPoints is the smallest number of points a zone ring may have.
const MinRingPoints = 3

// ErrUnsupportedGeometry is returned for geometries that carry no polygon rings.
var ErrUnsupportedGeometry = errors.New("geometry has no polygon rings")

// ErrNonFiniteCoordinate is returned for rings holding NaN or infinite coordinates.
var ErrNonFiniteCoordinate = errors.New("non-finite coordinate")

// ErrDegenerateRing is returned for rings with zero width or zero height.
var ErrDegenerateRing = errors.New("ring has zero area extent")

// Shape is the geometry of a zone: either a Leaf holding rings or a Group
// of nested shapes.
type Shape interface {
	isShape()
}

// Leaf is a single polygon: an outer ring followed by its holes.
type Leaf struct {
	Rings []orb.Ring
}

// Group is a shape made of several member shapes (multi-polygons,
// geometry collections).
type Group struct {
	Members []Shape
}

func (Leaf) isShape()  {}
func (Group) isShape() {}

// Flatten returns every ring in s, depth first, in member order.
func Flatten(s Shape) []orb.Ring {
	switch s := s.(type) {
	case Leaf:
		out := make([]orb.Ring, len(s.Rings))
		copy(out, s.Rings)
		return out
	case Group:
		var out []orb.Ring
		for _, m := range s.Members {
			out = append(out, Flatten(m)...)
		}
		return out
	default:
		return nil
	}
}

// RingCount returns len(Flatten(s)) without allocating.
func RingCount(s Shape) int {
	switch s := s.(type) {
	case Leaf:
		return len(s.Rings)
	case Group:
		n := 0
		for _, m := range s.Members {
			n += RingCount(m)
		}
		return n
	default:
		return 0
	}
}

// ShapeBounds returns the extent of all rings in s. ok is false when s has
// no points.
func ShapeBounds(s Shape) (b types.BoundingBox, ok bool) {
	for _, r := range Flatten(s) {
		if len(r) == 0 {
			continue
		}
		rb := types.FromBound(r.Bound())
		if !ok {
			b, ok = rb, true
			continue
		}
		b = b.Extend(rb)
	}
	return b, ok
}

// ShapeFromGeometry converts a GeoJSON geometry into a Shape.
// Polygons become leaves, multi-polygons and collections become groups.
// Non-polygonal members of a collection are dropped; a geometry that ends up
// with no rings, or with a ring shorter than MinRingPoints, is rejected.
func ShapeFromGeometry(g orb.Geometry) (Shape, error) {
	switch g := g.(type) {
	case orb.Polygon:
		return leafFromPolygon(g)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, fmt.Errorf("empty multipolygon: %w", ErrUnsupportedGeometry)
		}
		members := make([]Shape, 0, len(g))
		for i, p := range g {
			leaf, err := leafFromPolygon(p)
			if err != nil {
				return nil, fmt.Errorf("polygon %d: %w", i, err)
			}
			members = append(members, leaf)
		}
		return Group{Members: members}, nil
	case orb.Collection:
		var members []Shape
		for i, sub := range g {
			s, err := ShapeFromGeometry(sub)
			if errors.Is(err, ErrUnsupportedGeometry) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
			members = append(members, s)
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("collection: %w", ErrUnsupportedGeometry)
		}
		return Group{Members: members}, nil
	case nil:
		return nil, fmt.Errorf("missing geometry: %w", ErrUnsupportedGeometry)
	default:
		return nil, fmt.Errorf("%s: %w", g.GeoJSONType(), ErrUnsupportedGeometry)
	}
}

func leafFromPolygon(p orb.Polygon) (Leaf, error) {
	if len(p) == 0 {
		return Leaf{}, fmt.Errorf("empty polygon: %w", ErrUnsupportedGeometry)
	}
	for i, r := range p {
		if len(r) < MinRingPoints {
			return Leaf{}, fmt.Errorf("ring %d has %d points, need at least %d", i, len(r), MinRingPoints)
		}
		for _, pt := range r {
			if !finite(pt[0]) || !finite(pt[1]) {
				return Leaf{}, fmt.Errorf("ring %d: %w", i, ErrNonFiniteCoordinate)
			}
		}
		// A ring collapsed onto a line or a point has no interior.
		if b := r.Bound(); b.Min[0] == b.Max[0] || b.Min[1] == b.Max[1] {
			return Leaf{}, fmt.Errorf("ring %d: %w", i, ErrDegenerateRing)
		}
	}
	return Leaf{Rings: []orb.Ring(p)}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
