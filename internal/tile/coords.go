// Package tile addresses XYZ map tiles and builds the URLs of the raster
// tile services the delivery-area maps are drawn on.
package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level accepted in tile paths.
const MaxZoom = 22

// ErrInvalidCoords is returned for coordinates outside the tile pyramid.
var ErrInvalidCoords = errors.New("invalid tile coordinates")

// Coords is an XYZ tile address.
type Coords struct {
	Z uint32
	X uint32
	Y uint32
}

// NewCoords creates Coords from zoom, x, y values.
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// String returns the coordinate as "z/x/y".
func (c Coords) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Valid reports whether x and y exist at zoom z.
func (c Coords) Valid() bool {
	if c.Z > MaxZoom {
		return false
	}
	n := uint32(1) << c.Z
	return c.X < n && c.Y < n
}

// TMSRow returns the row in the TMS scheme, where y grows northwards.
func (c Coords) TMSRow() uint32 {
	return (uint32(1) << c.Z) - 1 - c.Y
}

// Tile returns the maptile.Tile for this coordinate.
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Bounds returns the geographic extent of the tile.
func (c Coords) Bounds() types.BoundingBox {
	return types.FromBound(c.Tile().Bound())
}

// Parent returns the tile one zoom level up that contains c.
func (c Coords) Parent() Coords {
	if c.Z == 0 {
		return c
	}
	return Coords{Z: c.Z - 1, X: c.X / 2, Y: c.Y / 2}
}

// ParseCoords parses "z/x/y", optionally followed by a "@2x" retina suffix
// and a file extension, e.g. "13/4663/2371@2x.png".
func ParseCoords(s string) (c Coords, retina bool, err error) {
	s = strings.TrimPrefix(s, "/")
	if dot := strings.LastIndexByte(s, '.'); dot > strings.LastIndexByte(s, '/') {
		s = s[:dot]
	}
	if strings.HasSuffix(s, "@2x") {
		retina = true
		s = strings.TrimSuffix(s, "@2x")
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Coords{}, false, fmt.Errorf("%w: %q", ErrInvalidCoords, s)
	}
	var vals [3]uint32
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Coords{}, false, fmt.Errorf("%w: %q", ErrInvalidCoords, s)
		}
		vals[i] = uint32(v)
	}

	c = NewCoords(vals[0], vals[1], vals[2])
	if !c.Valid() {
		return Coords{}, false, fmt.Errorf("%w: %s out of range", ErrInvalidCoords, c)
	}
	return c, retina, nil
}

// tileSpan returns the inclusive x/y tile ranges covering bbox at zoom z.
func tileSpan(bbox types.BoundingBox, z int) (minX, maxX, minY, maxY uint32) {
	zoom := maptile.Zoom(z)
	minTile := maptile.At(orb.Point{bbox.MinLon, bbox.MinLat}, zoom)
	maxTile := maptile.At(orb.Point{bbox.MaxLon, bbox.MaxLat}, zoom)

	minX, maxX = minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	// Y is inverted relative to latitude.
	minY, maxY = minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return minX, maxX, minY, maxY
}

// TilesInBBox returns all tiles covering bbox for each zoom in
// [zoomMin, zoomMax], computing the tile span per zoom level.
func TilesInBBox(bbox types.BoundingBox, zoomMin, zoomMax int) []Coords {
	tiles := make([]Coords, 0, TileCount(bbox, zoomMin, zoomMax))
	for z := zoomMin; z <= zoomMax; z++ {
		minX, maxX, minY, maxY := tileSpan(bbox, z)
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, NewCoords(uint32(z), x, y))
			}
		}
	}
	return tiles
}

// TileCount returns len(TilesInBBox(bbox, zoomMin, zoomMax)) without
// allocating the list.
func TileCount(bbox types.BoundingBox, zoomMin, zoomMax int) int {
	count := 0
	for z := zoomMin; z <= zoomMax; z++ {
		minX, maxX, minY, maxY := tileSpan(bbox, z)
		count += int(maxX-minX+1) * int(maxY-minY+1)
	}
	return count
}
