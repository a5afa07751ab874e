package tile

import (
	"strconv"
	"strings"
)

const (
	// DefaultHelNinjaStyle is the tiles.hel.ninja style used when none is set.
	DefaultHelNinjaStyle = "hel-osm-bright"
	// DefaultHelNinjaLanguage is the label language used when none is set.
	DefaultHelNinjaLanguage = "fi"

	helNinjaBase = "https://tiles.hel.ninja/styles/"
)

// LayerOptions are the tile layer parameters handed to the map client.
type LayerOptions struct {
	MinZoom       int    `json:"minZoom"`
	MaxZoom       int    `json:"maxZoom"`
	MaxNativeZoom int    `json:"maxNativeZoom"`
	TileSize      int    `json:"tileSize"`
	ZoomOffset    int    `json:"zoomOffset"`
	Attribution   string `json:"attribution,omitempty"`
}

// HelNinjaLayerOptions are the options of the tiles.hel.ninja raster layer:
// 512px tiles addressed one zoom level up.
func HelNinjaLayerOptions() LayerOptions {
	return LayerOptions{
		MinZoom:       0,
		MaxZoom:       21,
		MaxNativeZoom: 21,
		TileSize:      512,
		ZoomOffset:    -1,
		Attribution:   `<a href="https://dev.hel.fi/maps">City of Helsinki</a>`,
	}
}

// Template is a Leaflet style tile URL template with {z}, {x}, {y}, {s}
// and {r} placeholders.
type Template string

// HelNinjaURL returns the tiles.hel.ninja template for a style and label
// language, falling back to the defaults for empty values.
func HelNinjaURL(style, language string) Template {
	if style == "" {
		style = DefaultHelNinjaStyle
	}
	if language == "" {
		language = DefaultHelNinjaLanguage
	}
	return Template(helNinjaBase + style + "/{z}/{x}/{y}{r}@" + language + ".png")
}

// Expand fills in the template for c. {r} becomes "@2x" for retina requests
// and {s} the first subdomain letter.
func (t Template) Expand(c Coords, retina bool) string {
	r := ""
	if retina {
		r = "@2x"
	}
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(c.Z), 10),
		"{x}", strconv.FormatUint(uint64(c.X), 10),
		"{y}", strconv.FormatUint(uint64(c.Y), 10),
		"{r}", r,
		"{s}", "a",
	).Replace(string(t))
}

// ServiceZooms maps a range of map zoom levels to the range of zoom levels
// requested from the tile service, applying the zoom offset and capping at
// the native zoom.
func (o LayerOptions) ServiceZooms(minZoom, maxZoom int) (int, int) {
	clamp := func(z int) int {
		z += o.ZoomOffset
		if z < 0 {
			z = 0
		}
		if o.MaxNativeZoom > 0 && z > o.MaxNativeZoom {
			z = o.MaxNativeZoom
		}
		return z
	}
	return clamp(minZoom), clamp(maxZoom)
}
