package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/zonat/internal/geojson"
	"github.com/MeKo-Tech/zonat/internal/search"
	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/MeKo-Tech/zonat/internal/zone"
)

type viewportState struct {
	Center    orb.Point          `json:"center"`
	Zoom      float64            `json:"zoom"`
	MinZoom   float64            `json:"min_zoom"`
	Bounds    types.BoundingBox  `json:"bounds"`
	MaxBounds *types.BoundingBox `json:"max_bounds,omitempty"`
}

type tileLayerInfo struct {
	URL           string `json:"url"`
	Attribution   string `json:"attribution,omitempty"`
	TileSize      int    `json:"tile_size"`
	ZoomOffset    int    `json:"zoom_offset"`
	MinZoom       int    `json:"min_zoom"`
	MaxZoom       int    `json:"max_zoom"`
	MaxNativeZoom int    `json:"max_native_zoom"`
}

type mapInfo struct {
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Zones        int                `json:"zones"`
	Skipped      int                `json:"skipped"`
	Bounds       *types.BoundingBox `json:"bounds,omitempty"`
	SearchBounds *types.BoundingBox `json:"search_bounds,omitempty"`
	Focused      *int               `json:"focused,omitempty"`
	Viewport     viewportState      `json:"viewport"`
	Tiles        *tileLayerInfo     `json:"tiles,omitempty"`
}

// viewportLocked snapshots the host viewport. Callers hold s.mu.
func (s *Server) viewportLocked() viewportState {
	h := s.cfg.Host
	st := viewportState{
		Center:  h.Center(),
		Zoom:    h.Zoom(),
		MinZoom: h.MinZoom(),
		Bounds:  h.Bounds(),
	}
	if b, ok := h.MaxBounds(); ok {
		st.MaxBounds = &b
	}
	return st
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	m := s.cfg.Map
	info := mapInfo{
		Name:         m.Name,
		Description:  m.Description,
		Zones:        m.Overlay.Len(),
		Skipped:      m.Overlay.Skipped(),
		SearchBounds: m.SearchBounds,
		Viewport:     s.viewportLocked(),
	}
	if b, ok := m.Overlay.Bounds(); ok {
		info.Bounds = &b
	}
	if i, ok := m.Overlay.Focused(); ok {
		info.Focused = &i
	}
	s.mu.Unlock()

	if s.cfg.Tiles != nil {
		o := s.cfg.TileOptions
		info.Tiles = &tileLayerInfo{
			URL:           "/tiles/{z}/{x}/{y}{r}.png",
			Attribution:   o.Attribution,
			TileSize:      o.TileSize,
			ZoomOffset:    o.ZoomOffset,
			MinZoom:       o.MinZoom,
			MaxZoom:       o.MaxZoom,
			MaxNativeZoom: o.MaxNativeZoom,
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fc := geojson.Zones(s.cfg.Map.Overlay)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Map.Mask == nil {
		writeError(w, http.StatusNotFound, errors.New("map has no zones to mask"))
		return
	}
	writeJSON(w, http.StatusOK, geojson.Mask(s.cfg.Map.Mask))
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := s.cfg.Map.Legend.Entries()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var markers []*search.Marker
	if s.cfg.Search != nil {
		markers = s.cfg.Search.Markers()
	}
	fc := geojson.Combined(s.cfg.Map.Overlay, s.cfg.Map.Mask, markers)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, fc)
}

type zoneActionResponse struct {
	Legend   []zone.LegendEntry `json:"legend"`
	Focused  *int               `json:"focused,omitempty"`
	Order    []int              `json:"paint_order"`
	Viewport viewportState      `json:"viewport"`
}

func (s *Server) handleZoneAction(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid zone index %q", r.PathValue("index")))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	legend := s.cfg.Map.Legend
	switch action := r.PathValue("action"); action {
	case "focus":
		err = legend.Hover(index)
	case "blur":
		err = legend.Leave(index)
	case "activate":
		err = legend.Click(index)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown zone action %q", action))
		return
	}
	if errors.Is(err, zone.ErrNoSuchZone) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := zoneActionResponse{
		Legend:   legend.Entries(),
		Order:    s.cfg.Map.Overlay.PaintOrder(),
		Viewport: s.viewportLocked(),
	}
	if i, ok := s.cfg.Map.Overlay.Focused(); ok {
		resp.Focused = &i
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchResponse struct {
	Results  []search.Result `json:"results"`
	Viewport *viewportState  `json:"viewport,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := strings.TrimSpace(q.Get("q"))
	if text == "" {
		writeError(w, http.StatusBadRequest, search.ErrEmptyQuery)
		return
	}

	var (
		results []search.Result
		err     error
	)
	if q.Get("autocomplete") == "1" {
		results, err = s.cfg.Search.Autocomplete(r.Context(), text)
	} else {
		results, err = s.cfg.Search.Search(r.Context(), text)
	}
	if err != nil {
		s.log().Error("search failed", "text", text, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	resp := searchResponse{Results: results}
	if q.Get("mark") == "1" && len(results) > 0 {
		s.mu.Lock()
		if _, err := s.cfg.Search.ShowMarker(s.cfg.Host, results[0]); err != nil {
			s.mu.Unlock()
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		vp := s.viewportLocked()
		s.mu.Unlock()
		resp.Viewport = &vp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, geojson.Markers(s.cfg.Search.Markers()))
}

func (s *Server) handleRemoveMarkers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.cfg.Search.RemoveMarkers(s.cfg.Host)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
