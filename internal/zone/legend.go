package zone

// LegendEntry is one legend row. Focused mirrors the overlay state.
type LegendEntry struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Focused bool   `json:"focused"`
}

// Legend lists one entry per zone and forwards entry interaction to the
// overlay. It holds no state of its own besides the mirrored focus flags.
type Legend struct {
	overlay *Overlay
	entries []LegendEntry
	cancel  func()
}

// NewLegend builds the legend for o and subscribes to its focus changes.
// Close must be called when the legend is discarded.
func NewLegend(o *Overlay) *Legend {
	l := &Legend{overlay: o}

	fallback := ""
	for _, z := range o.zones {
		if z.Color != "" {
			fallback = z.Color
			break
		}
	}

	for i, z := range o.zones {
		color := z.Color
		if color == "" {
			color = fallback
		}
		l.entries = append(l.entries, LegendEntry{
			Index:   i,
			Name:    z.Name,
			Color:   color,
			Focused: o.states[i] == StateFocused,
		})
	}

	l.cancel = o.OnFocusChange(func(ev FocusEvent) {
		if ev.Index >= 0 && ev.Index < len(l.entries) {
			l.entries[ev.Index].Focused = ev.State == StateFocused
		}
	})
	return l
}

// Entries returns a copy of the legend rows in zone order.
func (l *Legend) Entries() []LegendEntry {
	out := make([]LegendEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Hover focuses the zone behind entry i.
func (l *Legend) Hover(i int) error { return l.overlay.Focus(i) }

// Leave blurs the zone behind entry i.
func (l *Legend) Leave(i int) error { return l.overlay.Blur(i) }

// Click fits the host map to the zone behind entry i.
func (l *Legend) Click(i int) error { return l.overlay.Activate(i) }

// Close stops mirroring overlay focus changes.
func (l *Legend) Close() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}
