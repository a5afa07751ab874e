package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/zonat/internal/tile"
	"github.com/MeKo-Tech/zonat/internal/tilecache"
)

// parseTilePath parses /tiles/13/4663/2371.png or /tiles/13/4663/2371@2x.png.
func parseTilePath(requestPath string) (tile.Coords, bool, bool) {
	rest, ok := strings.CutPrefix(requestPath, "/tiles/")
	if !ok || !strings.HasSuffix(rest, ".png") {
		return tile.Coords{}, false, false
	}
	coords, retina, err := tile.ParseCoords(rest)
	if err != nil {
		return tile.Coords{}, false, false
	}
	return coords, retina, true
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	coords, retina, ok := parseTilePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, cached, err := s.cfg.Tiles.Get(r.Context(), coords, retina)
	if err != nil {
		status := tileErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.log().Error("Failed to serve tile", "coords", coords.String(), "retina", retina, "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	if cached {
		w.Header().Set("X-Tile-Cache", "hit")
	} else {
		w.Header().Set("X-Tile-Cache", "miss")
	}
	if _, err := w.Write(data); err != nil {
		s.log().Error("Failed to write response", "error", err)
	}
}

func tileErrorStatus(err error) int {
	switch {
	case errors.Is(err, tilecache.ErrNotFound), errors.Is(err, tile.ErrInvalidCoords):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleTileStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Tiles.Status())
}

// tileStatusStream pushes tile cache status as server-sent events.
func (s *Server) tileStatusStream() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		s.sendStatusEvent(w, flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				s.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (s *Server) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(s.cfg.Tiles.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
