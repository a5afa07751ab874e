// Package datasource loads delivery-area documents from Google My Maps.
package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultKMLEndpoint is the My Maps KML export endpoint.
const DefaultKMLEndpoint = "https://www.google.com/maps/d/kml"

// ErrMissingMapID is returned when no My Maps id was configured.
var ErrMissingMapID = errors.New("google map id wasn't provided")

// ErrEmptyResponse is returned when the export returns no body.
var ErrEmptyResponse = errors.New("empty KML response")

// KMLURL returns the KML export URL for map mid, optionally restricted to
// layer lid.
func KMLURL(mid, lid string) string {
	return kmlURL(DefaultKMLEndpoint, mid, lid)
}

func kmlURL(endpoint, mid, lid string) string {
	u := endpoint + "?forcekml=1&mid=" + url.QueryEscape(mid)
	if lid != "" {
		u += "&lid=" + url.QueryEscape(lid)
	}
	return u
}

// MyMapsConfig configures a MyMapsDataSource.
type MyMapsConfig struct {
	// Endpoint is the KML export endpoint (default: DefaultKMLEndpoint)
	Endpoint string
	// Timeout bounds a single fetch (default: 30s)
	Timeout time.Duration
	// MaxBytes limits the accepted response size (default: 32MB)
	MaxBytes int64
	// Client overrides the HTTP client
	Client *http.Client
	// Logger for fetch operations
	Logger *slog.Logger
}

// DefaultMyMapsConfig returns sensible defaults.
func DefaultMyMapsConfig() MyMapsConfig {
	return MyMapsConfig{
		Endpoint: DefaultKMLEndpoint,
		Timeout:  30 * time.Second,
		MaxBytes: 32 * 1024 * 1024,
	}
}

// MyMapsDataSource fetches and converts My Maps KML exports.
type MyMapsDataSource struct {
	cfg    MyMapsConfig
	client *http.Client
}

// NewMyMapsDataSource creates a data source, filling unset config with defaults.
func NewMyMapsDataSource(cfg MyMapsConfig) *MyMapsDataSource {
	def := DefaultMyMapsConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &MyMapsDataSource{cfg: cfg, client: client}
}

func (ds *MyMapsDataSource) log() *slog.Logger {
	if ds.cfg.Logger != nil {
		return ds.cfg.Logger
	}
	return slog.Default()
}

// URL returns the export URL this data source requests for mid and lid.
func (ds *MyMapsDataSource) URL(mid, lid string) string {
	return kmlURL(ds.cfg.Endpoint, mid, lid)
}

// FetchMapData downloads map mid (layer lid, if set) and converts it.
func (ds *MyMapsDataSource) FetchMapData(ctx context.Context, mid, lid string) (*MapData, error) {
	if mid == "" {
		return nil, ErrMissingMapID
	}

	u := ds.URL(mid, lid)
	log := ds.log().With("mid", mid, "url", u)

	body, err := ds.fetch(ctx, u)
	if err != nil {
		log.Error("failed to load data from Google My Maps", "error", err)
		return nil, err
	}

	log.Info("converting KML document to GeoJSON", "bytes", len(body))
	md, err := ParseKML(bytes.NewReader(body))
	if err != nil {
		log.Error("failed to parse KML document", "error", err)
		return nil, fmt.Errorf("map %s: %w", mid, err)
	}

	for _, perr := range md.Invalid {
		log.Warn("placemark geometry could not be parsed", "error", perr)
	}
	log.Info("map data loaded",
		"name", md.Name,
		"features", len(md.Features.Features),
		"invalid", len(md.Invalid),
	)
	return md, nil
}

func (ds *MyMapsDataSource) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.google-earth.kml+xml, application/xml;q=0.9, */*;q=0.5")

	resp, err := ds.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, ds.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > ds.cfg.MaxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", ds.cfg.MaxBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyResponse
	}
	return body, nil
}
