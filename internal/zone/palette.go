package zone

import (
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Palette is an ordered table of zone colors.
type Palette []string

// DefaultPalette is a ten-color categorical palette.
var DefaultPalette = Palette{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// At returns the color for position i. Colors repeat once the palette is
// exhausted; an empty palette yields "".
func (p Palette) At(i int) string {
	if len(p) == 0 || i < 0 {
		return ""
	}
	return p[i%len(p)]
}

// ColorStrategy selects how zone colors are assigned.
type ColorStrategy int

const (
	// ColorFromProperties uses the feature's color or fill property and falls
	// back to the palette.
	ColorFromProperties ColorStrategy = iota
	// ColorFromPalette ignores feature properties.
	ColorFromPalette
)

// ParseColorStrategy maps a config value to a ColorStrategy.
func ParseColorStrategy(s string) (ColorStrategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "properties", "explicit":
		return ColorFromProperties, true
	case "palette":
		return ColorFromPalette, true
	default:
		return ColorFromProperties, false
	}
}

// colorProperties are checked in order for an explicit zone color.
var colorProperties = []string{"color", "fill"}

func explicitColor(props geojson.Properties) string {
	for _, key := range colorProperties {
		if c := strings.TrimSpace(props.MustString(key, "")); c != "" {
			return c
		}
	}
	return ""
}

func (o *Overlay) assignColor(props geojson.Properties, position int) string {
	if o.strategy == ColorFromProperties {
		if c := explicitColor(props); c != "" {
			return c
		}
	}
	return o.palette.At(position)
}
