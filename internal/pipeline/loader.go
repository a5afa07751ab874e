// Package pipeline wires the My Maps datasource, the zone overlay, the
// inverse mask and the legend into a single fetch-then-render step.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/zonat/internal/datasource"
	"github.com/MeKo-Tech/zonat/internal/hostmap"
	"github.com/MeKo-Tech/zonat/internal/mask"
	"github.com/MeKo-Tech/zonat/internal/metrics"
	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/MeKo-Tech/zonat/internal/zone"
)

// DefaultSearchPad pads the delivery area bounds to get the geocoding
// search rectangle.
const DefaultSearchPad = 1.0

// DataSource fetches a My Maps document.
type DataSource interface {
	FetchMapData(ctx context.Context, mid, lid string) (*datasource.MapData, error)
}

// Options configures a Load.
type Options struct {
	MapID   string
	LayerID string
	// Colors override zone colors by position; empty entries keep the
	// document color
	Colors        []string
	Palette       zone.Palette
	ColorStrategy zone.ColorStrategy
	// ViewportPad is the pan limit margin (default: zone.DefaultViewportPad)
	ViewportPad float64
	// MaskPad pads the inverse mask outer ring (default: mask.DefaultPadFactor)
	MaskPad float64
	// SearchPad pads the search rectangle (default: DefaultSearchPad)
	SearchPad float64
	MaskStyle *mask.Style
}

// Result holds the components built by a Load.
type Result struct {
	Name        string
	Description string
	Data        *datasource.MapData
	Overlay     *zone.Overlay
	// Mask is nil for an empty delivery area
	Mask   *mask.InverseMask
	Legend *zone.Legend
	// SearchBounds is nil for an empty delivery area
	SearchBounds *types.BoundingBox
}

// Loader builds delivery area maps.
type Loader struct {
	ds     DataSource
	logger *slog.Logger
}

// NewLoader creates a Loader reading from ds.
func NewLoader(ds DataSource, logger *slog.Logger) *Loader {
	return &Loader{ds: ds, logger: logger}
}

func (l *Loader) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

// Load fetches the document and attaches the overlay and mask to host. A
// fetch or parse failure returns before host is touched.
func (l *Loader) Load(ctx context.Context, host hostmap.HostMap, opts Options) (*Result, error) {
	l.log().Info("Fetching map data", "mid", opts.MapID, "lid", opts.LayerID)
	data, err := l.ds.FetchMapData(ctx, opts.MapID, opts.LayerID)
	if err != nil {
		metrics.MapLoadsTotal.WithLabelValues(metrics.ResultError).Inc()
		l.log().Error("Failed to load map data", "mid", opts.MapID, "error", err)
		return nil, fmt.Errorf("failed to fetch map data: %w", err)
	}

	if len(opts.Colors) > 0 {
		datasource.ApplyColors(data.Features, opts.Colors)
	}

	zoneOpts := []zone.Option{zone.WithColorStrategy(opts.ColorStrategy)}
	if opts.Palette != nil {
		zoneOpts = append(zoneOpts, zone.WithPalette(opts.Palette))
	}
	if opts.ViewportPad > 0 {
		zoneOpts = append(zoneOpts, zone.WithViewportPad(opts.ViewportPad))
	}
	zoneOpts = append(zoneOpts, zone.WithLogger(l.logger))

	overlay := zone.New(data.Features, zoneOpts...)
	metrics.Zones.Set(float64(overlay.Len()))
	metrics.ZonesSkipped.Set(float64(overlay.Skipped()))

	res := &Result{
		Name:        data.Name,
		Description: data.Description,
		Data:        data,
		Overlay:     overlay,
	}

	if err := host.AddLayer(overlay); err != nil {
		metrics.MapLoadsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to attach zone overlay: %w", err)
	}

	if overlay.Len() == 0 {
		metrics.MapLoadsTotal.WithLabelValues(metrics.ResultEmpty).Inc()
		l.log().Warn("Map has no renderable zones", "mid", opts.MapID, "skipped", overlay.Skipped())
		res.Legend = zone.NewLegend(overlay)
		return res, nil
	}

	maskPad := opts.MaskPad
	if maskPad <= 0 {
		maskPad = mask.DefaultPadFactor
	}
	maskOpts := []mask.Option{mask.WithLogger(l.logger)}
	if opts.MaskStyle != nil {
		maskOpts = append(maskOpts, mask.WithStyle(*opts.MaskStyle))
	}
	m, err := mask.New(overlay, maskPad, maskOpts...)
	if err != nil {
		host.RemoveLayer(overlay)
		metrics.MapLoadsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to build inverse mask: %w", err)
	}
	if err := host.AddLayer(m); err != nil {
		host.RemoveLayer(overlay)
		metrics.MapLoadsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to attach inverse mask: %w", err)
	}
	// Zones stay above the mask so their strokes are not dimmed.
	host.BringToFront(overlay)
	res.Mask = m

	res.Legend = zone.NewLegend(overlay)

	bounds, _ := overlay.Bounds()
	searchPad := opts.SearchPad
	if searchPad <= 0 {
		searchPad = DefaultSearchPad
	}
	sb := bounds.ExpandByFraction(searchPad)
	res.SearchBounds = &sb

	metrics.MapLoadsTotal.WithLabelValues(metrics.ResultOK).Inc()
	l.log().Info("Map loaded",
		"name", data.Name,
		"zones", overlay.Len(),
		"skipped", overlay.Skipped(),
		"bounds", bounds.String())
	return res, nil
}

// Detach removes the overlay and mask from host and closes the legend.
func (r *Result) Detach(host hostmap.HostMap) {
	if r.Legend != nil {
		r.Legend.Close()
	}
	if r.Mask != nil {
		host.RemoveLayer(r.Mask)
	}
	host.RemoveLayer(r.Overlay)
}
