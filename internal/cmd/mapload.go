package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/zonat/internal/datasource"
	"github.com/MeKo-Tech/zonat/internal/hostmap"
	"github.com/MeKo-Tech/zonat/internal/mbtiles"
	"github.com/MeKo-Tech/zonat/internal/pipeline"
	"github.com/MeKo-Tech/zonat/internal/search"
	"github.com/MeKo-Tech/zonat/internal/tile"
	"github.com/MeKo-Tech/zonat/internal/tilecache"
	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/MeKo-Tech/zonat/internal/zone"
)

// mapOptions builds the load options from the map.* config keys.
func mapOptions() (pipeline.Options, error) {
	strategy, ok := zone.ParseColorStrategy(viper.GetString("map.color_strategy"))
	if !ok {
		return pipeline.Options{}, fmt.Errorf("invalid color-strategy %q: must be 'properties' or 'palette'", viper.GetString("map.color_strategy"))
	}

	opts := pipeline.Options{
		MapID:         viper.GetString("map.mid"),
		LayerID:       viper.GetString("map.lid"),
		Colors:        datasource.ParseColors(viper.GetString("map.colors")),
		ColorStrategy: strategy,
		ViewportPad:   viper.GetFloat64("map.viewport_pad"),
		MaskPad:       viper.GetFloat64("map.mask_pad"),
	}
	if opts.MapID == "" {
		return pipeline.Options{}, fmt.Errorf("--mid is required: %w", datasource.ErrMissingMapID)
	}
	return opts, nil
}

// loadMap fetches the configured My Maps document into a fresh viewport.
func loadMap(ctx context.Context) (*hostmap.Viewport, *pipeline.Result, error) {
	opts, err := mapOptions()
	if err != nil {
		return nil, nil, err
	}

	dsCfg := datasource.DefaultMyMapsConfig()
	dsCfg.Logger = logger
	ds := datasource.NewMyMapsDataSource(dsCfg)

	vpOpts := hostmap.DefaultViewportOptions()
	vpOpts.Logger = logger
	host := hostmap.NewViewport(vpOpts)

	logger.Info("Loading delivery area", "mid", opts.MapID, "lid", opts.LayerID)
	res, err := pipeline.NewLoader(ds, logger).Load(ctx, host, opts)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Delivery area loaded",
		"name", res.Name,
		"zones", res.Overlay.Len(),
		"skipped", res.Overlay.Skipped(),
	)
	return host, res, nil
}

// tileTemplate returns the configured base map URL template.
func tileTemplate() tile.Template {
	if u := viper.GetString("tiles.url"); u != "" {
		return tile.Template(u)
	}
	return tile.HelNinjaURL(viper.GetString("tiles.style"), viper.GetString("tiles.language"))
}

// openTileCache opens the MBTiles store and wraps it in a tile cache. The
// caller closes the returned store.
func openTileCache(bounds *types.BoundingBox, maxConcurrent int) (*tilecache.Cache, *mbtiles.Store, error) {
	tmpl := tileTemplate()
	opts := tile.HelNinjaLayerOptions()

	meta := &mbtiles.Metadata{
		Name:        "zonat base map",
		Format:      "png",
		Attribution: opts.Attribution,
		Type:        "baselayer",
		Version:     "1.0",
		Source:      string(tmpl),
		MinZoom:     opts.MinZoom,
		MaxZoom:     opts.MaxNativeZoom,
	}
	if bounds != nil {
		meta.Bounds = *bounds
		c := bounds.CenterPoint()
		meta.Center = [3]float64{c[0], c[1], 13}
	}

	path := viper.GetString("tiles.cache")
	store, err := mbtiles.Open(path, meta)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open tile cache %s: %w", path, err)
	}

	cache := tilecache.New(tilecache.Config{
		Template:             tmpl,
		Store:                store,
		Retina:               viper.GetBool("tiles.retina"),
		MaxConcurrentFetches: maxConcurrent,
		Logger:               logger,
	})
	return cache, store, nil
}

// searchConfig builds the geocoder config from the search.* keys.
func searchConfig(boundary *types.BoundingBox) search.Config {
	cfg := search.DefaultConfig()
	if u := viper.GetString("search.url"); u != "" {
		cfg.URL = u
	}
	cfg.APIKey = viper.GetString("search.api_key")
	cfg.Lang = viper.GetString("search.lang")
	cfg.Boundary = boundary
	cfg.CacheTTL = viper.GetDuration("search.cache_ttl")
	cfg.Logger = logger
	if rdb := search.OpenRedis(viper.GetString("redis.addr"), viper.GetString("redis.password"), viper.GetInt("redis.db")); rdb != nil {
		cfg.Cache = search.NewRedisCache(rdb)
	}
	return cfg
}

// parseBBox parses a bounding box string "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) (types.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.BoundingBox{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return types.BoundingBox{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		v[i] = val
	}

	if v[0] >= v[2] {
		return types.BoundingBox{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", v[0], v[2])
	}
	if v[1] >= v[3] {
		return types.BoundingBox{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", v[1], v[3])
	}

	return types.BoundingBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}, nil
}
