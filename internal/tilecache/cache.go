// Package tilecache proxies raster tiles from an upstream tile service and
// keeps them in an MBTiles store.
package tilecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/zonat/internal/mbtiles"
	"github.com/MeKo-Tech/zonat/internal/metrics"
	"github.com/MeKo-Tech/zonat/internal/tile"
)

// ErrNotFound is returned when the upstream service has no such tile.
var ErrNotFound = errors.New("tile not found upstream")

// UpstreamError reports an unexpected upstream response status.
type UpstreamError struct {
	URL    string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d for %s", e.Status, e.URL)
}

// Config configures a Cache.
type Config struct {
	// Template is the upstream URL template
	Template tile.Template
	// Store caches fetched tiles; nil disables caching
	Store *mbtiles.Store
	// Retina selects the tile density kept in Store; the other density is
	// passed through uncached
	Retina bool
	// MaxConcurrentFetches bounds parallel upstream requests (default: 4)
	MaxConcurrentFetches int
	// Timeout bounds a single upstream request (default: 30s)
	Timeout time.Duration
	// MaxTileBytes limits accepted tile size (default: 4MB)
	MaxTileBytes int64
	// UserAgent is sent upstream
	UserAgent string
	// Client overrides the HTTP client
	Client *http.Client
	Logger *slog.Logger
}

// Status is a snapshot of cache activity.
type Status struct {
	ActiveFetches int      `json:"active_fetches"`
	TotalFetched  int64    `json:"total_fetched"`
	TotalFailed   int64    `json:"total_failed"`
	CacheHits     int64    `json:"cache_hits"`
	CurrentTiles  []string `json:"current_tiles"`
	MaxConcurrent int      `json:"max_concurrent"`
}

// Cache serves tiles from the store and fetches missing ones upstream.
type Cache struct {
	cfg    Config
	client *http.Client
	sem    chan struct{}
	locks  sync.Map // tile key -> *sync.Mutex

	activeFetches atomic.Int32
	totalFetched  atomic.Int64
	totalFailed   atomic.Int64
	cacheHits     atomic.Int64
	currentTiles  sync.Map // tile key -> start time
}

// New creates a Cache, filling unset config with defaults.
func New(cfg Config) *Cache {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTileBytes <= 0 {
		cfg.MaxTileBytes = 4 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "zonat"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Cache{
		cfg:    cfg,
		client: client,
		sem:    make(chan struct{}, cfg.MaxConcurrentFetches),
	}
}

func (c *Cache) log() *slog.Logger {
	if c.cfg.Logger != nil {
		return c.cfg.Logger
	}
	return slog.Default()
}

func key(coords tile.Coords, retina bool) string {
	if retina {
		return coords.String() + "@2x"
	}
	return coords.String()
}

func (c *Cache) cacheable(retina bool) bool {
	return c.cfg.Store != nil && retina == c.cfg.Retina
}

// Get returns the tile at coords, from the store when possible. cached
// reports whether the upstream service was skipped.
func (c *Cache) Get(ctx context.Context, coords tile.Coords, retina bool) (data []byte, cached bool, err error) {
	if !coords.Valid() {
		return nil, false, fmt.Errorf("%s: %w", coords, tile.ErrInvalidCoords)
	}

	if c.cacheable(retina) {
		if data, err := c.cfg.Store.ReadTile(coords); err == nil {
			c.hit()
			return data, true, nil
		} else if !errors.Is(err, mbtiles.ErrTileNotFound) {
			c.log().Warn("tile cache read failed", "tile", coords.String(), "error", err)
		}
		metrics.TileCacheMissesTotal.Inc()
	}

	k := key(coords, retina)
	mu := c.lock(k)
	mu.Lock()
	defer mu.Unlock()

	// Another request may have fetched the tile while we waited.
	if c.cacheable(retina) {
		if data, err := c.cfg.Store.ReadTile(coords); err == nil {
			c.hit()
			return data, true, nil
		}
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	data, err = c.fetch(ctx, coords, retina)
	if err != nil {
		return nil, false, err
	}

	if c.cacheable(retina) {
		if err := c.cfg.Store.WriteTile(coords, data); err != nil {
			c.log().Warn("failed to cache tile", "tile", coords.String(), "error", err)
		}
	}
	return data, false, nil
}

// Prefetch makes sure coords is in the store. It reports whether the tile
// was already cached and the tile size in bytes.
func (c *Cache) Prefetch(ctx context.Context, coords tile.Coords) (cached bool, size int, err error) {
	if c.cfg.Store == nil {
		return false, 0, errors.New("prefetch needs a tile store")
	}
	data, cached, err := c.Get(ctx, coords, c.cfg.Retina)
	return cached, len(data), err
}

func (c *Cache) hit() {
	c.cacheHits.Add(1)
	metrics.TileCacheHitsTotal.Inc()
}

func (c *Cache) fetch(ctx context.Context, coords tile.Coords, retina bool) ([]byte, error) {
	k := key(coords, retina)
	c.currentTiles.Store(k, time.Now())
	c.activeFetches.Add(1)
	defer func() {
		c.activeFetches.Add(-1)
		c.currentTiles.Delete(k)
	}()

	start := time.Now()
	url := c.cfg.Template.Expand(coords, retina)
	data, err := c.get(ctx, url)
	elapsed := time.Since(start)
	metrics.UpstreamFetchDuration.Observe(elapsed.Seconds())

	if err != nil {
		c.totalFailed.Add(1)
		metrics.UpstreamFetchesTotal.WithLabelValues(metrics.ResultError).Inc()
		if errors.Is(err, ErrNotFound) {
			c.log().Debug("tile missing upstream", "tile", k)
		} else {
			c.log().Error("upstream tile fetch failed", "tile", k, "error", err, "duration_ms", elapsed.Milliseconds())
		}
		return nil, err
	}

	c.totalFetched.Add(1)
	metrics.UpstreamFetchesTotal.WithLabelValues(metrics.ResultOK).Inc()
	c.log().Debug("tile fetched", "tile", k, "bytes", len(data), "duration_ms", elapsed.Milliseconds())
	return data, nil
}

func (c *Cache) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, &UpstreamError{URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxTileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read tile: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxTileBytes {
		return nil, fmt.Errorf("tile from %s exceeds %d bytes", url, c.cfg.MaxTileBytes)
	}
	return data, nil
}

func (c *Cache) lock(k string) *sync.Mutex {
	if v, ok := c.locks.Load(k); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := c.locks.LoadOrStore(k, mu)
	return actual.(*sync.Mutex)
}

// Status returns current fetch activity.
func (c *Cache) Status() Status {
	var current []string
	c.currentTiles.Range(func(k, _ any) bool {
		current = append(current, k.(string))
		return true
	})
	return Status{
		ActiveFetches: int(c.activeFetches.Load()),
		TotalFetched:  c.totalFetched.Load(),
		TotalFailed:   c.totalFailed.Load(),
		CacheHits:     c.cacheHits.Load(),
		CurrentTiles:  current,
		MaxConcurrent: c.cfg.MaxConcurrentFetches,
	}
}
