package datasource

import (
	"regexp"
	"strings"

	"github.com/paulmach/orb/geojson"
)

var hexColor = regexp.MustCompile(`^(?i:[0-9a-f]{3}|[0-9a-f]{6})$`)

// ParseColors splits a "-" separated color list as used in map URLs.
// Bare hex triplets get a "#" prefix, anything else is kept as a color name.
// Empty positions stay empty so that the zone keeps its own color.
func ParseColors(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, "-")
	colors := make([]string, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if hexColor.MatchString(p) {
			p = "#" + p
		}
		colors[i] = p
	}
	return colors
}

// ApplyColors sets the color property of feature i to colors[i] for every
// non-empty entry.
func ApplyColors(fc *geojson.FeatureCollection, colors []string) {
	if fc == nil {
		return
	}
	for i, f := range fc.Features {
		if i >= len(colors) {
			return
		}
		if f == nil || colors[i] == "" {
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["color"] = colors[i]
	}
}
