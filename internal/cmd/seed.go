package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/zonat/internal/tile"
	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/MeKo-Tech/zonat/internal/worker"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Prefetch base map tiles covering the delivery area into the tile cache",
	Long: `Prefetch base map tiles into the MBTiles cache so that serve answers from disk.

By default the area is the zone bounds padded like the search rectangle and the
zoom range runs from the zoom that fits all zones up to --zoom-max. Map zoom
levels are translated to tile service zoom levels using the layer's zoom offset.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("bbox", "", "Bounding box: minLon,minLat,maxLon,maxLat (default: padded zone bounds, requires --mid otherwise)")
	seedCmd.Flags().Int("zoom-min", -1, "Minimum map zoom level (default: zoom fitting all zones)")
	seedCmd.Flags().Int("zoom-max", 16, "Maximum map zoom level")
	seedCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	seedCmd.Flags().Bool("progress", true, "Show progress bar")
	seedCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some tiles fail")
	seedCmd.Flags().Int("max-tiles", 50000, "Refuse to seed more tiles than this")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"seed.bbox", "bbox"},
		{"seed.zoom_min", "zoom-min"},
		{"seed.zoom_max", "zoom-max"},
		{"seed.workers", "workers"},
		{"seed.progress", "progress"},
		{"seed.allow_failures", "allow-failures"},
		{"seed.max_tiles", "max-tiles"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, seedCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	bboxStr := viper.GetString("seed.bbox")
	zoomMin := viper.GetInt("seed.zoom_min")
	zoomMax := viper.GetInt("seed.zoom_max")
	workers := viper.GetInt("seed.workers")
	showProgress := viper.GetBool("seed.progress")
	allowFailures := viper.GetBool("seed.allow_failures")
	maxTiles := viper.GetInt("seed.max_tiles")

	if logger == nil {
		initLogging()
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bbox, fitZoom, err := seedArea(ctx, bboxStr)
	if err != nil {
		return err
	}
	if zoomMin < 0 {
		zoomMin = fitZoom
	}
	if zoomMin > zoomMax {
		return fmt.Errorf("--zoom-min (%d) must be <= --zoom-max (%d)", zoomMin, zoomMax)
	}

	svcMin, svcMax := tile.HelNinjaLayerOptions().ServiceZooms(zoomMin, zoomMax)
	if n := tile.TileCount(bbox, svcMin, svcMax); n > maxTiles {
		return fmt.Errorf("seeding %s at zoom %d-%d needs %d tiles, more than --max-tiles %d", bbox, svcMin, svcMax, n, maxTiles)
	}
	tiles := tile.TilesInBBox(bbox, svcMin, svcMax)

	cache, store, err := openTileCache(&bbox, workers)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close tile cache", "error", err)
		}
	}()

	logger.Info("Starting tile prefetch",
		"bbox", bbox.String(),
		"map_zoom_range", fmt.Sprintf("%d-%d", zoomMin, zoomMax),
		"service_zoom_range", fmt.Sprintf("%d-%d", svcMin, svcMax),
		"tiles", len(tiles),
		"workers", workers,
		"cache", store.Path(),
	)

	tasks := worker.TasksFor(tiles)
	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Fetcher:    cache,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	for _, r := range results {
		if r.Err != nil {
			logger.Debug("Tile prefetch failed", "coords", r.Task.Coords.String(), "error", r.Err)
		}
	}

	if err := store.Flush(); err != nil {
		return fmt.Errorf("failed to flush tile cache: %w", err)
	}

	summary := worker.Summarize(results)
	logger.Info(progress.Summary(summary))

	if summary.Failed > 0 {
		if allowFailures {
			logger.Warn("Some tiles failed to prefetch, but continuing due to --allow-failures flag", "failed_count", summary.Failed)
			return nil
		}
		return fmt.Errorf("%d tiles failed to prefetch", summary.Failed)
	}
	return nil
}

// seedArea returns the area to seed and the zoom that fits it. An explicit
// bbox wins over the loaded delivery area.
func seedArea(ctx context.Context, bboxStr string) (types.BoundingBox, int, error) {
	if bboxStr != "" {
		bbox, err := parseBBox(bboxStr)
		if err != nil {
			return types.BoundingBox{}, 0, fmt.Errorf("invalid bbox: %w", err)
		}
		return bbox, 0, nil
	}

	host, res, err := loadMap(ctx)
	if err != nil {
		return types.BoundingBox{}, 0, fmt.Errorf("failed to load delivery area: %w", err)
	}
	if res.SearchBounds == nil {
		return types.BoundingBox{}, 0, fmt.Errorf("delivery area %q has no zones to seed", res.Name)
	}
	return *res.SearchBounds, int(math.Floor(host.MinZoom())), nil
}
