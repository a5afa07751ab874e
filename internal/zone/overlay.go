// Package zone turns delivery-area features into an interactive overlay of
// colored zones with focus state, paint order and a mirrored legend.
package zone

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/zonat/internal/hostmap"
	"github.com/MeKo-Tech/zonat/internal/types"
	"github.com/paulmach/orb/geojson"
)

// DefaultViewportPad is the fraction by which the zone bounds are grown
// before being used as the host map's pan limit.
const DefaultViewportPad = 0.25

// ErrNoSuchZone is returned for zone indexes outside the overlay.
var ErrNoSuchZone = errors.New("no such zone")

// Zone is one rendered delivery-area polygon.
type Zone struct {
	Index       int
	ID          string
	Name        string
	Description string
	Color       string
	Shape       Shape
	Properties  geojson.Properties

	bounds types.BoundingBox
}

// Bounds returns the extent of the zone geometry.
func (z Zone) Bounds() types.BoundingBox {
	return z.bounds
}

// RingCount returns the number of rings the zone contributes.
func (z Zone) RingCount() int {
	return RingCount(z.Shape)
}

// FocusEvent describes a zone entering or leaving the focused state.
type FocusEvent struct {
	Index int
	Name  string
	State State
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithPalette sets the palette used for zones without an explicit color.
func WithPalette(p Palette) Option {
	return func(o *Overlay) {
		o.palette = p
	}
}

// WithColorStrategy selects between explicit feature colors and the palette.
func WithColorStrategy(s ColorStrategy) Option {
	return func(o *Overlay) {
		o.strategy = s
	}
}

// WithViewportPad sets the pan-limit padding applied in OnAdd.
func WithViewportPad(pad float64) Option {
	return func(o *Overlay) {
		if pad >= 0 {
			o.viewportPad = pad
		}
	}
}

// WithLogger sets the logger used for skipped features and attach events.
func WithLogger(l *slog.Logger) Option {
	return func(o *Overlay) {
		o.logger = l
	}
}

// Overlay is the interactive collection of zones. It owns every zone's focus
// state and paint order; callers request transitions through its methods.
//
// An Overlay is not safe for concurrent use.
type Overlay struct {
	zones   []Zone
	states  []State
	order   []int // paint order, bottom first
	focused int
	skipped int

	host hostmap.HostMap

	palette     Palette
	strategy    ColorStrategy
	viewportPad float64
	logger      *slog.Logger

	nextListener      int
	focusListeners    map[int]func(FocusEvent)
	activateListeners map[int]func(int)
}

var _ hostmap.Layer = (*Overlay)(nil)

// New builds an overlay from a feature collection, keeping input order.
// Features without usable polygon rings are logged and skipped.
func New(fc *geojson.FeatureCollection, opts ...Option) *Overlay {
	o := &Overlay{
		focused:           -1,
		palette:           DefaultPalette,
		strategy:          ColorFromProperties,
		viewportPad:       DefaultViewportPad,
		focusListeners:    make(map[int]func(FocusEvent)),
		activateListeners: make(map[int]func(int)),
	}
	for _, opt := range opts {
		opt(o)
	}

	if fc == nil {
		return o
	}

	for i, f := range fc.Features {
		if f == nil {
			o.skip(i, "", errors.New("nil feature"))
			continue
		}
		name := f.Properties.MustString("name", "")

		shape, err := ShapeFromGeometry(f.Geometry)
		if err != nil {
			o.skip(i, name, err)
			continue
		}
		bounds, ok := ShapeBounds(shape)
		if !ok {
			o.skip(i, name, errors.New("geometry has no points"))
			continue
		}
		if !bounds.IsValid() {
			o.skip(i, name, fmt.Errorf("invalid bounds %v", bounds))
			continue
		}

		z := Zone{
			Index:       len(o.zones),
			Name:        name,
			Description: f.Properties.MustString("description", ""),
			Color:       o.assignColor(f.Properties, i),
			Shape:       shape,
			Properties:  f.Properties.Clone(),
			bounds:      bounds,
		}
		if f.ID != nil {
			z.ID = fmt.Sprint(f.ID)
		}

		o.order = append(o.order, z.Index)
		o.states = append(o.states, StateNormal)
		o.zones = append(o.zones, z)
	}

	return o
}

func (o *Overlay) skip(position int, name string, err error) {
	o.skipped++
	o.log().Warn("skipping malformed zone feature",
		"feature_index", position,
		"name", name,
		"error", err,
	)
}

func (o *Overlay) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

// Len returns the number of rendered zones.
func (o *Overlay) Len() int { return len(o.zones) }

// Skipped returns the number of input features that were not rendered.
func (o *Overlay) Skipped() int { return o.skipped }

// Zones returns a copy of the rendered zones in input order.
func (o *Overlay) Zones() []Zone {
	out := make([]Zone, len(o.zones))
	copy(out, o.zones)
	return out
}

// Zone returns the zone at index i.
func (o *Overlay) Zone(i int) (Zone, error) {
	if err := o.check(i); err != nil {
		return Zone{}, err
	}
	return o.zones[i], nil
}

// State returns the interaction state of zone i.
func (o *Overlay) State(i int) State {
	if o.check(i) != nil {
		return StateNormal
	}
	return o.states[i]
}

// Style returns the current style of zone i.
func (o *Overlay) Style(i int) Style {
	if o.check(i) != nil {
		return Style{}
	}
	return ZoneStyle(o.zones[i].Color, o.states[i])
}

// Focused returns the index of the focused zone, if any.
func (o *Overlay) Focused() (int, bool) {
	return o.focused, o.focused >= 0
}

// PaintOrder returns zone indexes bottom first; the last one is drawn on top.
func (o *Overlay) PaintOrder() []int {
	out := make([]int, len(o.order))
	copy(out, o.order)
	return out
}

// Bounds returns the union of all zone extents. ok is false for an empty
// overlay.
func (o *Overlay) Bounds() (b types.BoundingBox, ok bool) {
	for i, z := range o.zones {
		if i == 0 {
			b = z.bounds
			continue
		}
		b = b.Extend(z.bounds)
	}
	return b, len(o.zones) > 0
}

// TotalRings returns the number of rings across all zones.
func (o *Overlay) TotalRings() int {
	n := 0
	for _, z := range o.zones {
		n += z.RingCount()
	}
	return n
}

// Host returns the map the overlay is attached to, or nil.
func (o *Overlay) Host() hostmap.HostMap { return o.host }

func (o *Overlay) check(i int) error {
	if i < 0 || i >= len(o.zones) {
		return fmt.Errorf("zone %d: %w", i, ErrNoSuchZone)
	}
	return nil
}

// OnFocusChange registers fn for focus transitions and returns a function
// that unregisters it.
func (o *Overlay) OnFocusChange(fn func(FocusEvent)) (cancel func()) {
	id := o.nextListener
	o.nextListener++
	o.focusListeners[id] = fn
	return func() { delete(o.focusListeners, id) }
}

// OnActivate registers fn for zone activations and returns a function that
// unregisters it.
func (o *Overlay) OnActivate(fn func(index int)) (cancel func()) {
	id := o.nextListener
	o.nextListener++
	o.activateListeners[id] = fn
	return func() { delete(o.activateListeners, id) }
}

func (o *Overlay) emitFocus(i int) {
	ev := FocusEvent{Index: i, Name: o.zones[i].Name, State: o.states[i]}
	for id := 0; id < o.nextListener; id++ {
		if fn, ok := o.focusListeners[id]; ok {
			fn(ev)
		}
	}
}

// Focus moves zone i into the focused state and raises it to the top of the
// paint order. A previously focused zone is blurred first.
func (o *Overlay) Focus(i int) error {
	if err := o.check(i); err != nil {
		return err
	}
	if o.focused == i {
		return nil
	}
	if o.focused >= 0 {
		o.blur(o.focused)
	}

	o.states[i] = StateFocused
	o.focused = i
	o.order = moveToTop(o.order, i)
	o.emitFocus(i)
	return nil
}

// Blur returns zone i to the normal state, pushes it to the bottom of the
// paint order and raises the whole overlay in the host's layer stack.
func (o *Overlay) Blur(i int) error {
	if err := o.check(i); err != nil {
		return err
	}
	if o.states[i] != StateFocused {
		return nil
	}
	o.blur(i)
	return nil
}

func (o *Overlay) blur(i int) {
	o.states[i] = StateNormal
	if o.focused == i {
		o.focused = -1
	}
	o.order = moveToBottom(o.order, i)
	if o.host != nil {
		o.host.BringToFront(o)
	}
	o.emitFocus(i)
}

// Activate asks the host map to fit zone i. It is a no-op while the overlay
// is detached.
func (o *Overlay) Activate(i int) error {
	if err := o.check(i); err != nil {
		return err
	}
	if o.host == nil {
		return nil
	}
	o.host.FlyToBounds(o.zones[i].bounds)
	for id := 0; id < o.nextListener; id++ {
		if fn, ok := o.activateListeners[id]; ok {
			fn(i)
		}
	}
	return nil
}

// OnAdd constrains the host viewport to the zones: pan limit to the padded
// bounds, minimum zoom to the zoom that fits the bounds, current zoom to that
// minimum, then pans inside the bounds. An empty overlay leaves the host
// untouched.
func (o *Overlay) OnAdd(m hostmap.HostMap) error {
	o.host = m

	bounds, ok := o.Bounds()
	if !ok {
		o.log().Info("zone overlay attached without zones; viewport left unconstrained")
		return nil
	}

	m.SetMaxBounds(bounds.ExpandByFraction(o.viewportPad))
	m.SetMinZoom(m.BoundsZoom(bounds))
	m.SetZoom(m.MinZoom())
	m.PanInsideBounds(bounds)

	o.log().Info("zone overlay attached",
		"zones", len(o.zones),
		"skipped", o.skipped,
		"bounds", bounds.String(),
		"min_zoom", m.MinZoom(),
	)
	return nil
}

// OnRemove detaches the overlay and clears focus.
func (o *Overlay) OnRemove(hostmap.HostMap) {
	o.host = nil
	prev := o.focused
	for i := range o.states {
		o.states[i] = StateNormal
	}
	o.focused = -1
	if prev >= 0 {
		o.emitFocus(prev)
	}
}

func moveToTop(order []int, idx int) []int {
	out := make([]int, 0, len(order))
	for _, v := range order {
		if v != idx {
			out = append(out, v)
		}
	}
	return append(out, idx)
}

func moveToBottom(order []int, idx int) []int {
	out := make([]int, 0, len(order))
	out = append(out, idx)
	for _, v := range order {
		if v != idx {
			out = append(out, v)
		}
	}
	return out
}
