// Package metrics holds the Prometheus collectors of the zonat server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonat_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zonat_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"route"})

	TileCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonat_tile_cache_hits_total",
		Help: "Tiles served from the MBTiles cache",
	})
	TileCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonat_tile_cache_misses_total",
		Help: "Tiles not found in the MBTiles cache",
	})
	UpstreamFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonat_upstream_tile_fetches_total",
		Help: "Tiles fetched from the upstream tile service by result",
	}, []string{"result"})
	UpstreamFetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zonat_upstream_tile_fetch_duration_seconds",
		Help:    "Upstream tile fetch duration in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	MapLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonat_map_loads_total",
		Help: "My Maps document loads by result",
	}, []string{"result"})
	Zones = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zonat_zones",
		Help: "Number of zones in the loaded delivery area",
	})
	ZonesSkipped = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zonat_zones_skipped",
		Help: "Number of malformed features skipped in the loaded delivery area",
	})

	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonat_search_requests_total",
		Help: "Geocoding requests by result",
	}, []string{"result"})
	SearchCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonat_search_cache_hits_total",
		Help: "Geocoding requests answered from the result cache",
	})
	SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zonat_search_duration_seconds",
		Help:    "Geocoding request duration in seconds, including rate limit waits",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(TileCacheHitsTotal)
	prometheus.MustRegister(TileCacheMissesTotal)
	prometheus.MustRegister(UpstreamFetchesTotal)
	prometheus.MustRegister(UpstreamFetchDuration)
	prometheus.MustRegister(MapLoadsTotal)
	prometheus.MustRegister(Zones)
	prometheus.MustRegister(ZonesSkipped)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchCacheHitsTotal)
	prometheus.MustRegister(SearchDuration)
}

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultEmpty = "empty"
)

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
