// Package server exposes a loaded delivery-area map over HTTP: zone and mask
// GeoJSON, legend state, zone interaction, geocoding and a caching base map
// tile proxy.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MeKo-Tech/zonat/internal/hostmap"
	"github.com/MeKo-Tech/zonat/internal/metrics"
	"github.com/MeKo-Tech/zonat/internal/pipeline"
	"github.com/MeKo-Tech/zonat/internal/search"
	"github.com/MeKo-Tech/zonat/internal/tile"
	"github.com/MeKo-Tech/zonat/internal/tilecache"
)

// Config configures a Server.
type Config struct {
	// Host is the viewport the map was loaded into
	Host *hostmap.Viewport
	// Map is the loaded delivery area
	Map *pipeline.Result
	// Search enables /api/search when set
	Search *search.Client
	// Tiles enables the /tiles/ proxy when set
	Tiles       *tilecache.Cache
	TileOptions tile.LayerOptions
	// CacheControl is sent with served tiles (default: "public, max-age=86400")
	CacheControl string
	Logger       *slog.Logger
}

// Server serves one loaded map. The zone overlay and the viewport are not
// safe for concurrent use, so every handler touching them holds mu.
type Server struct {
	cfg Config
	mu  sync.Mutex
}

var errNoMap = errors.New("server needs a host viewport and a loaded map")

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Host == nil || cfg.Map == nil {
		return nil, errNoMap
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=86400"
	}
	if cfg.TileOptions == (tile.LayerOptions{}) {
		cfg.TileOptions = tile.HelNinjaLayerOptions()
	}
	return &Server{cfg: cfg}, nil
}

func (s *Server) log() *slog.Logger {
	if s.cfg.Logger != nil {
		return s.cfg.Logger
	}
	return slog.Default()
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(route, withCORS(h)))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	handle("GET /api/map", "/api/map", s.handleMap)
	handle("GET /api/zones", "/api/zones", s.handleZones)
	handle("GET /api/mask", "/api/mask", s.handleMask)
	handle("GET /api/legend", "/api/legend", s.handleLegend)
	handle("GET /api/layers", "/api/layers", s.handleLayers)
	handle("POST /api/zones/{index}/{action}", "/api/zones/action", s.handleZoneAction)
	handle("OPTIONS /api/", "/api/options", func(w http.ResponseWriter, r *http.Request) {})

	if s.cfg.Search != nil {
		handle("GET /api/search", "/api/search", s.handleSearch)
		handle("GET /api/markers", "/api/markers", s.handleMarkers)
		handle("DELETE /api/markers", "/api/markers", s.handleRemoveMarkers)
	}

	if s.cfg.Tiles != nil {
		handle("GET /tiles/", "/tiles", s.handleTile)
		handle("OPTIONS /tiles/", "/tiles", func(w http.ResponseWriter, r *http.Request) {})
		handle("GET /api/tiles/status", "/api/tiles/status", s.handleTileStatus)
		mux.Handle("GET /api/tiles/status/stream", withCORS(s.tileStatusStream()))
	}

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
