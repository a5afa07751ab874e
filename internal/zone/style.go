package zone

// State is the interaction state of a zone.
type State int

const (
	StateNormal State = iota
	StateFocused
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateFocused:
		return "focused"
	default:
		return "unknown"
	}
}

// Style holds the path options handed to the renderer.
type Style struct {
	Stroke      bool    `json:"stroke"`
	Color       string  `json:"color,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Fill        bool    `json:"fill"`
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity"`
}

const (
	normalWeight       = 3
	normalFillOpacity  = 0.5
	focusedWeight      = 6
	focusedFillOpacity = 0.2
)

// ZoneStyle returns the style of a zone with the given color in state s.
// Focused zones get a heavier outline and a lighter fill.
func ZoneStyle(color string, s State) Style {
	st := Style{
		Stroke:      true,
		Color:       color,
		Weight:      normalWeight,
		Fill:        true,
		FillColor:   color,
		FillOpacity: normalFillOpacity,
	}
	if s == StateFocused {
		st.Weight = focusedWeight
		st.FillOpacity = focusedFillOpacity
	}
	return st
}
