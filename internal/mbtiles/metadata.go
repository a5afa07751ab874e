// Package mbtiles stores raster tiles fetched from the upstream tile service
// in an MBTiles (SQLite) database.
package mbtiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/zonat/internal/types"
)

// Metadata contains MBTiles metadata fields.
type Metadata struct {
	Name        string // Human-readable tileset identifier
	Format      string // Tile data type (png, jpg, webp)
	Attribution string
	Description string
	Type        string // "baselayer" or "overlay"
	Version     string
	Source      string // Upstream URL template the tiles were fetched from
	Bounds      types.BoundingBox
	Center      [3]float64 // lon, lat, zoom
	MinZoom     int
	MaxZoom     int
}

// ToMap converts Metadata to name/value rows. Empty fields are omitted.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			result[k] = v
		}
	}

	set("name", m.Name)
	set("format", m.Format)
	set("attribution", m.Attribution)
	set("description", m.Description)
	set("type", m.Type)
	set("version", m.Version)
	set("source", m.Source)

	if m.MinZoom > 0 {
		result["minzoom"] = strconv.Itoa(m.MinZoom)
	}
	if m.MaxZoom > 0 {
		result["maxzoom"] = strconv.Itoa(m.MaxZoom)
	}
	if m.Bounds != (types.BoundingBox{}) {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds.MinLon, m.Bounds.MinLat, m.Bounds.MaxLon, m.Bounds.MaxLat)
	}
	if m.Center != [3]float64{} {
		result["center"] = fmt.Sprintf("%.6f,%.6f,%d", m.Center[0], m.Center[1], int(m.Center[2]))
	}
	return result
}

// metadataFromMap is the inverse of ToMap. Unparseable numeric values are
// ignored.
func metadataFromMap(rows map[string]string) Metadata {
	m := Metadata{
		Name:        rows["name"],
		Format:      rows["format"],
		Attribution: rows["attribution"],
		Description: rows["description"],
		Type:        rows["type"],
		Version:     rows["version"],
		Source:      rows["source"],
	}

	if i, err := strconv.Atoi(rows["minzoom"]); err == nil {
		m.MinZoom = i
	}
	if i, err := strconv.Atoi(rows["maxzoom"]); err == nil {
		m.MaxZoom = i
	}
	if f, ok := parseFloats(rows["bounds"], 4); ok {
		m.Bounds = types.BoundingBox{MinLon: f[0], MinLat: f[1], MaxLon: f[2], MaxLat: f[3]}
	}
	if f, ok := parseFloats(rows["center"], 3); ok {
		copy(m.Center[:], f)
	}
	return m
}

func parseFloats(s string, n int) ([]float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
