package mbtiles

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/MeKo-Tech/zonat/internal/tile"
	"github.com/MeKo-Tech/zonat/internal/types"
)

func openTemp(t *testing.T, meta *Metadata) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.mbtiles"), meta)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTemp(t, nil)
	c := tile.NewCoords(12, 2331, 1185)
	data := []byte("\x89PNG fake tile data")

	if err := s.WriteTile(c, data); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}

	// Buffered tiles are readable before a flush.
	got, err := s.ReadTile(c)
	if err != nil {
		t.Fatalf("ReadTile (buffered): %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("buffered data mismatch: %q", got)
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got, err = s.ReadTile(c)
	if err != nil {
		t.Fatalf("ReadTile (flushed): %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("flushed data mismatch: %q", got)
	}

	n, err := s.Count()
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}
}

func TestStore_TMSRows(t *testing.T) {
	s := openTemp(t, nil)
	c := tile.NewCoords(3, 2, 1)
	if err := s.WriteTile(c, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	var row int
	err := s.db.QueryRow("SELECT tile_row FROM tiles WHERE zoom_level=3 AND tile_column=2").Scan(&row)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if row != 6 {
		t.Errorf("tile_row = %d, want 6 (TMS of y=1 at z3)", row)
	}
}

func TestStore_TileNotFound(t *testing.T) {
	s := openTemp(t, nil)
	_, err := s.ReadTile(tile.NewCoords(5, 1, 1))
	if !errors.Is(err, ErrTileNotFound) {
		t.Errorf("ReadTile error = %v, want ErrTileNotFound", err)
	}

	ok, err := s.Has(tile.NewCoords(5, 1, 1))
	if err != nil || ok {
		t.Errorf("Has() = %v, %v; want false", ok, err)
	}
}

func TestStore_InvalidCoords(t *testing.T) {
	s := openTemp(t, nil)
	bad := tile.NewCoords(1, 5, 0)
	if err := s.WriteTile(bad, []byte("x")); !errors.Is(err, tile.ErrInvalidCoords) {
		t.Errorf("WriteTile error = %v, want ErrInvalidCoords", err)
	}
	if _, err := s.ReadTile(bad); !errors.Is(err, tile.ErrInvalidCoords) {
		t.Errorf("ReadTile error = %v, want ErrInvalidCoords", err)
	}
}

func TestStore_BatchFlush(t *testing.T) {
	s := openTemp(t, nil)
	s.batchSize = 10

	for i := 0; i < 25; i++ {
		if err := s.WriteTile(tile.NewCoords(10, uint32(i), 0), []byte(fmt.Sprintf("tile-%d", i))); err != nil {
			t.Fatalf("WriteTile %d: %v", i, err)
		}
	}

	n, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 20 {
		t.Errorf("Count() after auto flush = %d, want 20", n)
	}
	if ok, _ := s.Has(tile.NewCoords(10, 24, 0)); !ok {
		t.Error("buffered tile must be reported by Has")
	}

	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(); n != 25 {
		t.Errorf("Count() after flush = %d, want 25", n)
	}
}

func TestStore_ReplaceExisting(t *testing.T) {
	s := openTemp(t, nil)
	c := tile.NewCoords(8, 145, 74)

	for _, v := range []string{"old", "buffered", "new"} {
		if err := s.WriteTile(c, []byte(v)); err != nil {
			t.Fatal(err)
		}
		if v == "buffered" {
			continue
		}
		if err := s.Flush(); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ReadTile(c)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("ReadTile = %q, want %q", got, "new")
	}
	if n, _ := s.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestStore_Metadata(t *testing.T) {
	meta := Metadata{
		Name:        "hel-osm-bright",
		Format:      "png",
		Attribution: "City of Helsinki",
		Type:        "baselayer",
		Source:      "https://tiles.hel.ninja/styles/hel-osm-bright/{z}/{x}/{y}{r}@fi.png",
		Bounds:      types.BoundingBox{MinLon: 24.8, MinLat: 60.1, MaxLon: 25.1, MaxLat: 60.3},
		Center:      [3]float64{24.95, 60.2, 12},
		MinZoom:     9,
		MaxZoom:     16,
	}
	path := filepath.Join(t.TempDir(), "meta.mbtiles")

	s, err := Open(path, &meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening without metadata keeps the stored table.
	s, err = Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if got != meta {
		t.Errorf("Metadata() = %+v, want %+v", got, meta)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := openTemp(t, nil)
	s.batchSize = 7

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				c := tile.NewCoords(10, uint32(w), uint32(i))
				if err := s.WriteTile(c, []byte{byte(w), byte(i)}); err != nil {
					t.Errorf("WriteTile: %v", err)
					return
				}
				if _, err := s.ReadTile(c); err != nil {
					t.Errorf("ReadTile %s: %v", c, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(); n != 80 {
		t.Errorf("Count() = %d, want 80", n)
	}
}
