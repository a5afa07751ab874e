package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/zonat/internal/datasource"
	"github.com/MeKo-Tech/zonat/internal/hostmap"
	"github.com/MeKo-Tech/zonat/internal/pipeline"
	"github.com/MeKo-Tech/zonat/internal/search"
	"github.com/MeKo-Tech/zonat/internal/tile"
	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/MeKo-Tech/zonat/internal/zone"
)

// setConfig overrides viper keys for the duration of a test.
func setConfig(t *testing.T, values map[string]any) {
	t.Helper()
	for k, v := range values {
		viper.Set(k, v)
	}
	t.Cleanup(func() {
		for k := range values {
			viper.Set(k, nil)
		}
	})
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.BoundingBox
		wantErr bool
	}{
		{
			name:  "valid bbox",
			input: "24.9,60.1,25.0,60.2",
			want:  types.BoundingBox{MinLon: 24.9, MinLat: 60.1, MaxLon: 25.0, MaxLat: 60.2},
		},
		{
			name:  "valid bbox with spaces",
			input: "24.9, 60.1, 25.0, 60.2",
			want:  types.BoundingBox{MinLon: 24.9, MinLat: 60.1, MaxLon: 25.0, MaxLat: 60.2},
		},
		{
			name:  "negative coordinates",
			input: "-122.5,37.7,-122.3,37.9",
			want:  types.BoundingBox{MinLon: -122.5, MinLat: 37.7, MaxLon: -122.3, MaxLat: 37.9},
		},
		{name: "too few values", input: "24.9,60.1,25.0", wantErr: true},
		{name: "too many values", input: "24.9,60.1,25.0,60.2,1", wantErr: true},
		{name: "invalid number", input: "abc,60.1,25.0,60.2", wantErr: true},
		{name: "minLon >= maxLon", input: "25.1,60.1,25.0,60.2", wantErr: true},
		{name: "minLat >= maxLat", input: "24.9,60.3,25.0,60.2", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBBox(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBBox(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseBBox(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMapOptions(t *testing.T) {
	setConfig(t, map[string]any{
		"map.mid":            "1AbC",
		"map.lid":            "layer",
		"map.colors":         "f00--blue",
		"map.color_strategy": "palette",
		"map.mask_pad":       0.5,
	})

	opts, err := mapOptions()
	require.NoError(t, err)
	assert.Equal(t, "1AbC", opts.MapID)
	assert.Equal(t, "layer", opts.LayerID)
	assert.Equal(t, []string{"#f00", "", "blue"}, opts.Colors)
	assert.Equal(t, zone.ColorFromPalette, opts.ColorStrategy)
	assert.Equal(t, 0.5, opts.MaskPad)
	assert.Zero(t, opts.ViewportPad)
}

func TestMapOptions_Errors(t *testing.T) {
	t.Run("missing map id", func(t *testing.T) {
		setConfig(t, map[string]any{"map.mid": ""})
		_, err := mapOptions()
		assert.ErrorIs(t, err, datasource.ErrMissingMapID)
	})

	t.Run("unknown color strategy", func(t *testing.T) {
		setConfig(t, map[string]any{"map.mid": "1AbC", "map.color_strategy": "rainbow"})
		_, err := mapOptions()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rainbow")
	})
}

func TestTileTemplate(t *testing.T) {
	setConfig(t, map[string]any{"tiles.url": "", "tiles.style": "", "tiles.language": "sv"})
	assert.Equal(t, tile.HelNinjaURL("", "sv"), tileTemplate())

	setConfig(t, map[string]any{"tiles.url": "https://tiles.example.com/{z}/{x}/{y}{r}.png"})
	assert.Equal(t, tile.Template("https://tiles.example.com/{z}/{x}/{y}{r}.png"), tileTemplate())
}

func TestSearchConfig(t *testing.T) {
	setConfig(t, map[string]any{
		"search.url":     "",
		"search.api_key": "secret",
		"search.lang":    "en",
		"redis.addr":     "",
	})
	b := &types.BoundingBox{MinLon: 24.9, MinLat: 60.1, MaxLon: 25.0, MaxLat: 60.2}

	cfg := searchConfig(b)
	assert.Equal(t, search.DigitransitURL, cfg.URL)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "en", cfg.Lang)
	assert.Same(t, b, cfg.Boundary)
	assert.Nil(t, cfg.Cache)

	setConfig(t, map[string]any{"redis.addr": "127.0.0.1:6379"})
	assert.IsType(t, &search.RedisCache{}, searchConfig(nil).Cache)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "json", false)
	l.Debug("hidden")
	l.Info("shown", "zones", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	assert.Equal(t, "shown", line["msg"])

	buf.Reset()
	newLogger(&buf, "text", true).Debug("visible")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

type staticSource struct{ data *datasource.MapData }

func (s staticSource) FetchMapData(context.Context, string, string) (*datasource.MapData, error) {
	return s.data, nil
}

func loadFixture(t *testing.T, fc *orbjson.FeatureCollection) *pipeline.Result {
	t.Helper()
	host := hostmap.NewViewport(hostmap.DefaultViewportOptions())
	ds := staticSource{data: &datasource.MapData{Name: "Kotiinkuljetus", Features: fc}}
	res, err := pipeline.NewLoader(ds, nil).Load(context.Background(), host, pipeline.Options{MapID: "mid"})
	require.NoError(t, err)
	return res
}

func TestExportFiles(t *testing.T) {
	fc := orbjson.NewFeatureCollection()
	f := orbjson.NewFeature(orb.Polygon{{{24.94, 60.18}, {24.96, 60.18}, {24.96, 60.20}, {24.94, 60.20}, {24.94, 60.18}}})
	f.Properties["name"] = "Kallio"
	fc.Append(f)

	dir := filepath.Join(t.TempDir(), "out")
	files, err := exportFiles(loadFixture(t, fc), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"zones.geojson", "mask.geojson", "layers.geojson", "legend.json"}, files)

	data, err := os.ReadFile(filepath.Join(dir, "layers.geojson"))
	require.NoError(t, err)
	layers, err := orbjson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, layers.Features, 2)
	assert.Equal(t, "mask", layers.Features[0].Properties.MustString("layer", ""))
	assert.Equal(t, "zones", layers.Features[1].Properties.MustString("layer", ""))

	data, err = os.ReadFile(filepath.Join(dir, "legend.json"))
	require.NoError(t, err)
	var entries []zone.LegendEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Kallio", entries[0].Name)
}

func TestExportFiles_EmptyArea(t *testing.T) {
	dir := t.TempDir()
	files, err := exportFiles(loadFixture(t, orbjson.NewFeatureCollection()), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"zones.geojson", "layers.geojson", "legend.json"}, files)

	_, err = os.Stat(filepath.Join(dir, "mask.geojson"))
	assert.True(t, os.IsNotExist(err))
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, nil))
	assert.Equal(t, "No results\n", buf.String())

	buf.Reset()
	require.NoError(t, printResults(&buf, []search.Result{
		{Label: "Kallio, Helsinki", Layer: "neighbourhood", Point: orb.Point{24.95, 60.19}},
	}))
	out := buf.String()
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "Kallio, Helsinki")
	assert.Contains(t, out, "24.950000")
	assert.Contains(t, out, "60.190000")
}
