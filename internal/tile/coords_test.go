package tile

import (
	"errors"
	"testing"

	"github.com/MeKo-Tech/zonat/internal/types"
)

func TestCoordsString(t *testing.T) {
	tests := []struct {
		coords   Coords
		expected string
	}{
		{Coords{Z: 13, X: 4663, Y: 2371}, "13/4663/2371"},
		{Coords{Z: 0, X: 0, Y: 0}, "0/0/0"},
		{Coords{Z: 18, X: 12345, Y: 67890}, "18/12345/67890"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.coords.String(); got != tt.expected {
				t.Errorf("String() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestCoordsBounds(t *testing.T) {
	// Tile covering central Helsinki.
	c := Coords{Z: 13, X: 4663, Y: 2371}
	b := c.Bounds()

	if !b.IsValid() {
		t.Fatalf("invalid bounds %s", b)
	}
	if !b.Contains(c.Bounds().CenterPoint()) {
		t.Errorf("bounds %s do not contain their center", b)
	}
	if b.MinLon < 24.5 || b.MaxLon > 25.5 || b.MinLat < 60 || b.MaxLat > 60.5 {
		t.Errorf("bounds %s not near Helsinki", b)
	}
}

func TestCoordsTMSRow(t *testing.T) {
	tests := []struct {
		coords Coords
		want   uint32
	}{
		{Coords{Z: 0, X: 0, Y: 0}, 0},
		{Coords{Z: 1, X: 0, Y: 0}, 1},
		{Coords{Z: 13, X: 4663, Y: 2371}, 8191 - 2371},
	}
	for _, tt := range tests {
		if got := tt.coords.TMSRow(); got != tt.want {
			t.Errorf("%s TMSRow() = %d, want %d", tt.coords, got, tt.want)
		}
	}
}

func TestCoordsParent(t *testing.T) {
	c := Coords{Z: 13, X: 4663, Y: 2371}
	if got, want := c.Parent(), (Coords{Z: 12, X: 2331, Y: 1185}); got != want {
		t.Errorf("Parent() = %s, want %s", got, want)
	}
	root := Coords{}
	if root.Parent() != root {
		t.Errorf("root tile must be its own parent")
	}
}

func TestParseCoords(t *testing.T) {
	tests := []struct {
		input   string
		want    Coords
		retina  bool
		wantErr bool
	}{
		{input: "13/4663/2371", want: Coords{13, 4663, 2371}},
		{input: "/13/4663/2371.png", want: Coords{13, 4663, 2371}},
		{input: "13/4663/2371@2x.png", want: Coords{13, 4663, 2371}, retina: true},
		{input: "0/0/0.png", want: Coords{}},
		{input: "1/2/0.png", wantErr: true},
		{input: "30/0/0", wantErr: true},
		{input: "13/4663", wantErr: true},
		{input: "a/b/c", wantErr: true},
		{input: "13/-1/2", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, retina, err := ParseCoords(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCoords) {
					t.Fatalf("ParseCoords(%q) error = %v, want ErrInvalidCoords", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCoords(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want || retina != tt.retina {
				t.Errorf("ParseCoords(%q) = %s retina=%v, want %s retina=%v", tt.input, got, retina, tt.want, tt.retina)
			}
		})
	}
}

func TestTilesInBBox(t *testing.T) {
	bbox := types.BoundingBox{MinLon: 24.90, MinLat: 60.15, MaxLon: 25.00, MaxLat: 60.22}

	tiles := TilesInBBox(bbox, 10, 13)
	if len(tiles) != TileCount(bbox, 10, 13) {
		t.Fatalf("TilesInBBox returned %d tiles, TileCount says %d", len(tiles), TileCount(bbox, 10, 13))
	}

	perZoom := map[uint32]int{}
	for _, c := range tiles {
		perZoom[c.Z]++
		if !c.Valid() {
			t.Errorf("tile %s out of range", c)
		}
	}
	for z := uint32(10); z <= 13; z++ {
		if perZoom[z] == 0 {
			t.Errorf("no tiles at zoom %d", z)
		}
	}
	if perZoom[13] < perZoom[10] {
		t.Errorf("deeper zooms must not need fewer tiles: z10=%d z13=%d", perZoom[10], perZoom[13])
	}

	// Every tile at the deepest zoom must intersect the box.
	for _, c := range tiles {
		b := c.Bounds()
		if b.MaxLon < bbox.MinLon || b.MinLon > bbox.MaxLon || b.MaxLat < bbox.MinLat || b.MinLat > bbox.MaxLat {
			t.Errorf("tile %s does not intersect %s", c, bbox)
		}
	}
}

func TestTileCountSingleTile(t *testing.T) {
	c := Coords{Z: 13, X: 4663, Y: 2371}
	b := c.Bounds()
	inner := types.BoundingBox{
		MinLon: b.MinLon + b.Width()/4,
		MinLat: b.MinLat + b.Height()/4,
		MaxLon: b.MaxLon - b.Width()/4,
		MaxLat: b.MaxLat - b.Height()/4,
	}

	tiles := TilesInBBox(inner, 13, 13)
	if len(tiles) != 1 || tiles[0] != c {
		t.Errorf("TilesInBBox(inner) = %v, want [%s]", tiles, c)
	}
}
