package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/zonat/internal/search"
	"github.com/MeKo-Tech/zonat/internal/server"
	"github.com/MeKo-Tech/zonat/internal/tile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the delivery area map API, geocoding and cached base map tiles",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Bool("tiles", true, "Proxy and cache base map tiles under /tiles/")
	serveCmd.Flags().Bool("search", true, "Enable address search under /api/search")
	serveCmd.Flags().Int("max-concurrent-fetches", 4, "Max concurrent upstream tile fetches")
	serveCmd.Flags().String("cache-control", "public, max-age=86400", "Cache-Control header for served tiles")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.tiles", "tiles")
	mustBind("serve.search", "search")
	mustBind("serve.max_concurrent_fetches", "max-concurrent-fetches")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.shutdown_timeout", "shutdown-timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	withTiles := viper.GetBool("serve.tiles")
	withSearch := viper.GetBool("serve.search")
	maxConc := viper.GetInt("serve.max_concurrent_fetches")
	cacheControl := viper.GetString("serve.cache_control")
	shutdownTimeout := viper.GetDuration("serve.shutdown_timeout")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, res, err := loadMap(ctx)
	if err != nil {
		return fmt.Errorf("failed to load delivery area: %w", err)
	}

	cfg := server.Config{
		Host:         host,
		Map:          res,
		TileOptions:  tile.HelNinjaLayerOptions(),
		CacheControl: cacheControl,
		Logger:       logger,
	}

	if withSearch {
		cfg.Search = search.New(searchConfig(res.SearchBounds))
	}

	if withTiles {
		cache, store, err := openTileCache(res.SearchBounds, maxConc)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close tile cache", "error", err)
			}
		}()
		cfg.Tiles = cache
	}

	s, err := server.New(cfg)
	if err != nil {
		return err
	}

	logger.Info("zonat server listening",
		"addr", addr,
		"map", res.Name,
		"zones", res.Overlay.Len(),
		"tiles", withTiles,
		"search", withSearch,
		"tile_cache", viper.GetString("tiles.cache"),
	)

	return startServer(ctx, s.Handler(), addr, shutdownTimeout)
}

// startServer serves handler on addr until ctx is cancelled, then shuts the
// server down gracefully.
func startServer(ctx context.Context, handler http.Handler, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if logger != nil {
			logger.Info("Shutting down server")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
