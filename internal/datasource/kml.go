package datasource

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrNoDocument is returned when the input is not a KML document.
var ErrNoDocument = errors.New("kml: no document")

// MapData is a converted My Maps document.
type MapData struct {
	Name        string
	Description string
	Features    *geojson.FeatureCollection

	// Invalid holds one error per placemark whose geometry could not be
	// parsed. Those placemarks are still in Features, with nil geometry.
	Invalid []error
}

// FeatureCollection returns the features with the document name and
// description attached as foreign members.
func (md *MapData) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if md.Features != nil {
		fc.Features = md.Features.Features
	}
	fc.ExtraMembers = geojson.Properties{}
	if md.Name != "" {
		fc.ExtraMembers["name"] = md.Name
	}
	if md.Description != "" {
		fc.ExtraMembers["description"] = md.Description
	}
	return fc
}

type kmlFile struct {
	XMLName  xml.Name     `xml:"kml"`
	Document kmlContainer `xml:"Document"`
}

// kmlContainer is a Document or Folder.
type kmlContainer struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	Styles      []kmlStyle     `xml:"Style"`
	StyleMaps   []kmlStyleMap  `xml:"StyleMap"`
	Folders     []kmlContainer `xml:"Folder"`
	Placemarks  []kmlPlacemark `xml:"Placemark"`
}

type kmlStyle struct {
	ID        string `xml:"id,attr"`
	LineStyle *struct {
		Color string  `xml:"color"`
		Width float64 `xml:"width"`
	} `xml:"LineStyle"`
	PolyStyle *struct {
		Color string `xml:"color"`
		Fill  *int   `xml:"fill"`
	} `xml:"PolyStyle"`
}

type kmlStyleMap struct {
	ID    string `xml:"id,attr"`
	Pairs []struct {
		Key      string `xml:"key"`
		StyleURL string `xml:"styleUrl"`
	} `xml:"Pair"`
}

type kmlPlacemark struct {
	ID            string            `xml:"id,attr"`
	Name          string            `xml:"name"`
	Description   string            `xml:"description"`
	StyleURL      string            `xml:"styleUrl"`
	Data          []kmlData         `xml:"ExtendedData>Data"`
	Polygon       *kmlPolygon       `xml:"Polygon"`
	MultiGeometry *kmlMultiGeometry `xml:"MultiGeometry"`
	LineString    *kmlCoordinates   `xml:"LineString"`
	Point         *kmlCoordinates   `xml:"Point"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlPolygon struct {
	Outer string   `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner []string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

type kmlCoordinates struct {
	Coordinates string `xml:"coordinates"`
}

type kmlMultiGeometry struct {
	Polygons    []kmlPolygon       `xml:"Polygon"`
	LineStrings []kmlCoordinates   `xml:"LineString"`
	Points      []kmlCoordinates   `xml:"Point"`
	Children    []kmlMultiGeometry `xml:"MultiGeometry"`
}

// ParseKML converts a KML document into GeoJSON features. Placemarks in
// nested folders are included in document order. Shared styles are resolved
// into fill, fill-opacity, stroke, stroke-opacity and stroke-width
// properties.
func ParseKML(r io.Reader) (*MapData, error) {
	var doc kmlFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoDocument
		}
		return nil, fmt.Errorf("failed to decode KML: %w", err)
	}

	styles := make(map[string]geojson.Properties)
	collectStyles(&doc.Document, styles)

	md := &MapData{
		Name:        strings.TrimSpace(doc.Document.Name),
		Description: strings.TrimSpace(doc.Document.Description),
		Features:    geojson.NewFeatureCollection(),
	}
	var walk func(c *kmlContainer)
	walk = func(c *kmlContainer) {
		for i := range c.Placemarks {
			f, err := placemarkFeature(&c.Placemarks[i], styles)
			if err != nil {
				md.Invalid = append(md.Invalid, fmt.Errorf("placemark %d %q: %w", len(md.Features.Features), c.Placemarks[i].Name, err))
			}
			md.Features.Append(f)
		}
		for i := range c.Folders {
			walk(&c.Folders[i])
		}
	}
	walk(&doc.Document)

	return md, nil
}

func collectStyles(c *kmlContainer, styles map[string]geojson.Properties) {
	for _, s := range c.Styles {
		if s.ID == "" {
			continue
		}
		props := geojson.Properties{}
		if s.PolyStyle != nil {
			if color, opacity, ok := parseKMLColor(s.PolyStyle.Color); ok {
				props["fill"] = color
				props["fill-opacity"] = opacity
			}
			if s.PolyStyle.Fill != nil && *s.PolyStyle.Fill == 0 {
				props["fill-opacity"] = 0.0
			}
		}
		if s.LineStyle != nil {
			if color, opacity, ok := parseKMLColor(s.LineStyle.Color); ok {
				props["stroke"] = color
				props["stroke-opacity"] = opacity
			}
			if s.LineStyle.Width > 0 {
				props["stroke-width"] = s.LineStyle.Width
			}
		}
		styles["#"+s.ID] = props
	}

	// Style maps point at a normal and a highlight style; features render
	// with the normal one.
	for _, sm := range c.StyleMaps {
		for _, p := range sm.Pairs {
			if strings.TrimSpace(p.Key) != "normal" {
				continue
			}
			if props, ok := styles[strings.TrimSpace(p.StyleURL)]; ok {
				styles["#"+sm.ID] = props
			}
		}
	}

	for i := range c.Folders {
		collectStyles(&c.Folders[i], styles)
	}
}

// placemarkFeature always returns a feature. When the geometry cannot be
// parsed the feature has nil geometry and the parse error is returned too.
func placemarkFeature(pm *kmlPlacemark, styles map[string]geojson.Properties) (*geojson.Feature, error) {
	geom, err := placemarkGeometry(pm)
	if err != nil {
		geom = nil
	}

	f := geojson.NewFeature(geom)
	if pm.ID != "" {
		f.ID = pm.ID
	}
	if name := strings.TrimSpace(pm.Name); name != "" {
		f.Properties["name"] = name
	}
	if desc := strings.TrimSpace(pm.Description); desc != "" {
		f.Properties["description"] = desc
	}
	for _, d := range pm.Data {
		if d.Name != "" {
			f.Properties[d.Name] = strings.TrimSpace(d.Value)
		}
	}
	if url := strings.TrimSpace(pm.StyleURL); url != "" {
		f.Properties["styleUrl"] = url
		for k, v := range styles[url] {
			f.Properties[k] = v
		}
	}
	return f, err
}

// placemarkGeometry returns nil geometry for placemarks without one; such
// features are kept so that consumers can decide what to do with them.
func placemarkGeometry(pm *kmlPlacemark) (orb.Geometry, error) {
	switch {
	case pm.Polygon != nil:
		return parsePolygon(pm.Polygon)
	case pm.MultiGeometry != nil:
		return parseMultiGeometry(pm.MultiGeometry)
	case pm.LineString != nil:
		pts, err := parseCoordinates(pm.LineString.Coordinates)
		if err != nil {
			return nil, err
		}
		return orb.LineString(pts), nil
	case pm.Point != nil:
		pts, err := parseCoordinates(pm.Point.Coordinates)
		if err != nil {
			return nil, err
		}
		if len(pts) == 0 {
			return nil, errors.New("point without coordinates")
		}
		return pts[0], nil
	default:
		return nil, nil
	}
}

func parsePolygon(p *kmlPolygon) (orb.Polygon, error) {
	outer, err := parseRing(p.Outer)
	if err != nil {
		return nil, fmt.Errorf("outer boundary: %w", err)
	}
	poly := orb.Polygon{outer}
	for i, in := range p.Inner {
		ring, err := parseRing(in)
		if err != nil {
			return nil, fmt.Errorf("inner boundary %d: %w", i, err)
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

// parseMultiGeometry returns a MultiPolygon when every member is a polygon
// and a Collection otherwise.
func parseMultiGeometry(mg *kmlMultiGeometry) (orb.Geometry, error) {
	if len(mg.LineStrings) == 0 && len(mg.Points) == 0 && len(mg.Children) == 0 {
		mp := make(orb.MultiPolygon, 0, len(mg.Polygons))
		for i := range mg.Polygons {
			p, err := parsePolygon(&mg.Polygons[i])
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	}

	var c orb.Collection
	for i := range mg.Polygons {
		p, err := parsePolygon(&mg.Polygons[i])
		if err != nil {
			return nil, err
		}
		c = append(c, p)
	}
	for _, ls := range mg.LineStrings {
		pts, err := parseCoordinates(ls.Coordinates)
		if err != nil {
			return nil, err
		}
		c = append(c, orb.LineString(pts))
	}
	for _, pt := range mg.Points {
		pts, err := parseCoordinates(pt.Coordinates)
		if err != nil {
			return nil, err
		}
		if len(pts) > 0 {
			c = append(c, pts[0])
		}
	}
	for i := range mg.Children {
		g, err := parseMultiGeometry(&mg.Children[i])
		if err != nil {
			return nil, err
		}
		c = append(c, g)
	}
	return c, nil
}

// parseRing parses a linear ring and closes it if the last point does not
// repeat the first.
func parseRing(s string) (orb.Ring, error) {
	pts, err := parseCoordinates(s)
	if err != nil {
		return nil, err
	}
	ring := orb.Ring(pts)
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// parseCoordinates parses whitespace separated "lon,lat[,alt]" tuples.
func parseCoordinates(s string) ([]orb.Point, error) {
	fields := strings.Fields(s)
	pts := make([]orb.Point, 0, len(fields))
	for _, tuple := range fields {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			return nil, fmt.Errorf("invalid coordinate tuple %q", tuple)
		}
		lon, err := strconv.ParseFloat(vals[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", tuple, err)
		}
		lat, err := strconv.ParseFloat(vals[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", tuple, err)
		}
		if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
			return nil, fmt.Errorf("non-finite coordinate %q", tuple)
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts, nil
}

// parseKMLColor converts a KML aabbggrr color to #rrggbb and an opacity.
func parseKMLColor(s string) (color string, opacity float64, ok bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 8 {
		return "", 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return "", 0, false
	}
	a := float64(v>>24&0xff) / 255
	b, g, r := v>>16&0xff, v>>8&0xff, v&0xff
	return fmt.Sprintf("#%02x%02x%02x", r, g, b), roundOpacity(a), true
}

func roundOpacity(a float64) float64 {
	return float64(int(a*1000+0.5)) / 1000
}
