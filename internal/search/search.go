// Package search geocodes free text against a Pelias service and places
// result markers on the host map.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/time/rate"

	"github.com/MeKo-Tech/zonat/internal/hostmap"
	"github.com/MeKo-Tech/zonat/internal/metrics"
	"github.com/MeKo-Tech/zonat/internal/types"
)

// DigitransitURL is the Pelias endpoint of the Finnish Digitransit service.
const DigitransitURL = "https://api.digitransit.fi/geocoding/v1/"

// Attribution credits the Digitransit geocoder.
const Attribution = `<a href="https://digitransit.fi/">HSL</a>`

// DefaultZoom is used by ShowMarker when the host map reports no zoom.
const DefaultZoom = 8

// DefaultLayers are the Pelias layers searched when none are configured.
var DefaultLayers = []string{"address", "street", "neighbourhood", "localadmin", "locality", "postalcode"}

// ErrEmptyQuery is returned for blank search text.
var ErrEmptyQuery = errors.New("empty search text")

// Config configures a Client.
type Config struct {
	// URL is the Pelias base URL, ending in a slash
	URL string
	// APIKey is sent as the api_key parameter when set
	APIKey string
	Layers []string
	// Boundary restricts results to a rectangle
	Boundary *types.BoundingBox
	// Size is the maximum number of results (default: 10)
	Size int
	// Lang is the preferred result language
	Lang string
	// RateLimit is the sustained request rate per second (default: 5)
	RateLimit float64
	// Burst is the rate limiter bucket size (default: 1)
	Burst   int
	Timeout time.Duration
	// Cache serves repeated queries without hitting the geocoder
	Cache ResultCache
	// CacheTTL is the cache entry lifetime (default: DefaultCacheTTL)
	CacheTTL time.Duration
	Client   *http.Client
	Logger   *slog.Logger
}

// DefaultConfig returns the Digitransit configuration.
func DefaultConfig() Config {
	return Config{
		URL:       DigitransitURL,
		Layers:    append([]string(nil), DefaultLayers...),
		Size:      10,
		RateLimit: 5,
		Burst:     1,
		Timeout:   10 * time.Second,
	}
}

// Result is a single geocoding hit.
type Result struct {
	Label      string    `json:"label"`
	Name       string    `json:"name,omitempty"`
	Layer      string    `json:"layer,omitempty"`
	Point      orb.Point `json:"point"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Client talks to a Pelias service and tracks the markers it placed.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter

	mu      sync.Mutex
	markers []*Marker
}

// New creates a Client, filling unset config with defaults.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if !strings.HasSuffix(cfg.URL, "/") {
		cfg.URL += "/"
	}
	if len(cfg.Layers) == 0 {
		cfg.Layers = def.Layers
	}
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
}

func (c *Client) log() *slog.Logger {
	if c.cfg.Logger != nil {
		return c.cfg.Logger
	}
	return slog.Default()
}

// SetBoundary restricts later searches to b. A nil b lifts the restriction.
func (c *Client) SetBoundary(b *types.BoundingBox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b == nil {
		c.cfg.Boundary = nil
		return
	}
	bb := *b
	c.cfg.Boundary = &bb
}

// Boundary returns the current search rectangle.
func (c *Client) Boundary() (types.BoundingBox, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Boundary == nil {
		return types.BoundingBox{}, false
	}
	return *c.cfg.Boundary, true
}

// Search runs a full text search.
func (c *Client) Search(ctx context.Context, text string) ([]Result, error) {
	return c.query(ctx, "search", text)
}

// Autocomplete runs a type-ahead search.
func (c *Client) Autocomplete(ctx context.Context, text string) ([]Result, error) {
	return c.query(ctx, "autocomplete", text)
}

// URL returns the request URL for an endpoint and text.
func (c *Client) URL(endpoint, text string) string {
	q := c.params(text)
	if c.cfg.APIKey != "" {
		q.Set("api_key", c.cfg.APIKey)
	}
	return c.cfg.URL + endpoint + "?" + q.Encode()
}

// cacheKey identifies a request without its API key.
func (c *Client) cacheKey(endpoint, text string) string {
	return c.cfg.URL + endpoint + "?" + c.params(strings.ToLower(text)).Encode()
}

func (c *Client) params(text string) url.Values {
	q := url.Values{}
	q.Set("text", text)
	q.Set("size", strconv.Itoa(c.cfg.Size))
	q.Set("layers", strings.Join(c.cfg.Layers, ","))
	if c.cfg.Lang != "" {
		q.Set("lang", c.cfg.Lang)
	}
	if b, ok := c.Boundary(); ok {
		q.Set("boundary.rect.min_lon", formatCoord(b.MinLon))
		q.Set("boundary.rect.min_lat", formatCoord(b.MinLat))
		q.Set("boundary.rect.max_lon", formatCoord(b.MaxLon))
		q.Set("boundary.rect.max_lat", formatCoord(b.MaxLat))
	}
	return q
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func (c *Client) query(ctx context.Context, endpoint, text string) (results []Result, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			metrics.SearchRequestsTotal.WithLabelValues(metrics.ResultError).Inc()
		case len(results) == 0:
			metrics.SearchRequestsTotal.WithLabelValues(metrics.ResultEmpty).Inc()
		default:
			metrics.SearchRequestsTotal.WithLabelValues(metrics.ResultOK).Inc()
		}
	}()

	var key string
	if c.cfg.Cache != nil {
		key = c.cacheKey(endpoint, text)
		if cached, ok := c.cfg.Cache.Get(ctx, key); ok {
			metrics.SearchCacheHitsTotal.Inc()
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.URL(endpoint, text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read geocoding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geocoding response: %w", err)
	}

	results = make([]Result, 0, len(fc.Features))
	for _, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			c.log().Debug("skipping non-point geocoding result", "text", text)
			continue
		}
		results = append(results, Result{
			Label:      f.Properties.MustString("label", ""),
			Name:       f.Properties.MustString("name", ""),
			Layer:      f.Properties.MustString("layer", ""),
			Point:      p,
			Confidence: f.Properties.MustFloat64("confidence", 0),
		})
	}

	c.log().Debug("geocoding finished", "endpoint", endpoint, "text", text, "results", len(results))
	if c.cfg.Cache != nil {
		c.cfg.Cache.Set(ctx, key, results, c.cfg.CacheTTL)
	}
	return results, nil
}

// ShowMarker centers the host map on r, keeping its zoom or falling back to
// DefaultZoom, and adds a marker labelled with the result.
func (c *Client) ShowMarker(h hostmap.HostMap, r Result) (*Marker, error) {
	zoom := h.Zoom()
	if zoom == 0 {
		zoom = DefaultZoom
	}
	h.SetView(r.Point, zoom)

	m := NewMarker(r.Point, r.Label)
	if err := h.AddLayer(m); err != nil {
		return nil, fmt.Errorf("failed to add marker: %w", err)
	}

	c.mu.Lock()
	c.markers = append(c.markers, m)
	c.mu.Unlock()
	return m, nil
}

// Markers returns the markers currently placed by ShowMarker.
func (c *Client) Markers() []*Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Marker(nil), c.markers...)
}

// RemoveMarkers removes every placed marker from h.
func (c *Client) RemoveMarkers(h hostmap.HostMap) {
	c.mu.Lock()
	markers := c.markers
	c.markers = nil
	c.mu.Unlock()

	for _, m := range markers {
		h.RemoveLayer(m)
	}
}
