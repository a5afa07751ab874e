package tile

import "testing"

func TestHelNinjaURL(t *testing.T) {
	tests := []struct {
		style, lang string
		want        Template
	}{
		{"", "", "https://tiles.hel.ninja/styles/hel-osm-bright/{z}/{x}/{y}{r}@fi.png"},
		{"hel-osm-high-contrast", "sv", "https://tiles.hel.ninja/styles/hel-osm-high-contrast/{z}/{x}/{y}{r}@sv.png"},
		{"hel-osm-light", "", "https://tiles.hel.ninja/styles/hel-osm-light/{z}/{x}/{y}{r}@fi.png"},
	}
	for _, tt := range tests {
		if got := HelNinjaURL(tt.style, tt.lang); got != tt.want {
			t.Errorf("HelNinjaURL(%q, %q) = %s, want %s", tt.style, tt.lang, got, tt.want)
		}
	}
}

func TestTemplateExpand(t *testing.T) {
	tmpl := HelNinjaURL("", "")
	c := Coords{Z: 12, X: 2331, Y: 1185}

	if got, want := tmpl.Expand(c, false), "https://tiles.hel.ninja/styles/hel-osm-bright/12/2331/1185@fi.png"; got != want {
		t.Errorf("Expand() = %s, want %s", got, want)
	}
	if got, want := tmpl.Expand(c, true), "https://tiles.hel.ninja/styles/hel-osm-bright/12/2331/1185@2x@fi.png"; got != want {
		t.Errorf("Expand(retina) = %s, want %s", got, want)
	}
	if got, want := Template("https://{s}.tile.example/{z}/{x}/{y}.png").Expand(c, false), "https://a.tile.example/12/2331/1185.png"; got != want {
		t.Errorf("Expand(subdomain) = %s, want %s", got, want)
	}
}

func TestServiceZooms(t *testing.T) {
	opts := HelNinjaLayerOptions()
	if opts.TileSize != 512 || opts.ZoomOffset != -1 || opts.MaxZoom != 21 || opts.MaxNativeZoom != 21 {
		t.Fatalf("unexpected HelNinja options %+v", opts)
	}

	tests := []struct {
		min, max         int
		wantMin, wantMax int
	}{
		{0, 5, 0, 4},
		{10, 16, 9, 15},
		{20, 23, 19, 21},
	}
	for _, tt := range tests {
		gotMin, gotMax := opts.ServiceZooms(tt.min, tt.max)
		if gotMin != tt.wantMin || gotMax != tt.wantMax {
			t.Errorf("ServiceZooms(%d, %d) = %d, %d, want %d, %d", tt.min, tt.max, gotMin, gotMax, tt.wantMin, tt.wantMax)
		}
	}
}
