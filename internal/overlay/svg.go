package overlay

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type svgDoc struct {
	XMLName xml.Name `xml:"svg"`
	NS      string   `xml:"xmlns,attr"`
	Width   string   `xml:"width,attr"`
	Height  string   `xml:"height,attr"`
	ViewBox string   `xml:"viewBox,attr"`
	Class   string   `xml:"class,attr"`
	Shapes  []any
}

type svgCircle struct {
	XMLName     xml.Name `xml:"circle"`
	Class       string   `xml:"class,attr,omitempty"`
	LocationID  string   `xml:"data-location-id,attr,omitempty"`
	CX          string   `xml:"cx,attr"`
	CY          string   `xml:"cy,attr"`
	R           string   `xml:"r,attr"`
	Fill        string   `xml:"fill,attr"`
	Stroke      string   `xml:"stroke,attr,omitempty"`
	StrokeWidth string   `xml:"stroke-width,attr,omitempty"`
}

type svgPolygon struct {
	XMLName     xml.Name `xml:"polygon"`
	Class       string   `xml:"class,attr,omitempty"`
	LocationID  string   `xml:"data-location-id,attr,omitempty"`
	Points      string   `xml:"points,attr"`
	Fill        string   `xml:"fill,attr"`
	FillOpacity string   `xml:"fill-opacity,attr"`
	Stroke      string   `xml:"stroke,attr"`
	StrokeWidth string   `xml:"stroke-width,attr"`
}

type svgLine struct {
	XMLName     xml.Name `xml:"line"`
	Class       string   `xml:"class,attr,omitempty"`
	X1          string   `xml:"x1,attr"`
	Y1          string   `xml:"y1,attr"`
	X2          string   `xml:"x2,attr"`
	Y2          string   `xml:"y2,attr"`
	Stroke      string   `xml:"stroke,attr"`
	StrokeWidth string   `xml:"stroke-width,attr"`
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func classes(base string, p *Primitive) string {
	c := []string{base}
	if p.Hovered {
		c = append(c, "wim-hover")
	}
	if p.Active {
		c = append(c, "wim-active")
	}
	return strings.Join(c, " ")
}

func locationAttr(p *Primitive) string {
	if p.Location == nil {
		return ""
	}
	return strconv.FormatUint(uint64(p.LocationID()), 10)
}

func (s *Scene) document() svgDoc {
	doc := svgDoc{
		NS:      "http://www.w3.org/2000/svg",
		Width:   num(s.Frame.Width),
		Height:  num(s.Frame.Height),
		ViewBox: fmt.Sprintf("0 0 %s %s", num(s.Frame.Width), num(s.Frame.Height)),
		Class:   "wim-overlay",
	}

	// Hover targets go first so the visible markers paint over them.
	for _, p := range s.Primitives {
		if p.Kind != KindMarker || p.Location == nil || p.HoverRadius <= p.Radius {
			continue
		}
		doc.Shapes = append(doc.Shapes, svgCircle{
			Class:      "wim-marker-hit",
			LocationID: locationAttr(p),
			CX:         num(p.Center.X),
			CY:         num(p.Center.Y),
			R:          num(p.HoverRadius),
			Fill:       "transparent",
		})
	}

	for _, p := range s.Primitives {
		switch p.Kind {
		case KindMarker:
			r := p.Radius
			if p.Hovered && p.HoverRadius > r {
				r = p.HoverRadius
			}
			doc.Shapes = append(doc.Shapes, svgCircle{
				Class:       classes("wim-marker", p),
				LocationID:  locationAttr(p),
				CX:          num(p.Center.X),
				CY:          num(p.Center.Y),
				R:           num(r),
				Fill:        p.Fill,
				Stroke:      p.Stroke,
				StrokeWidth: num(p.StrokeWidth),
			})
		case KindVertex:
			doc.Shapes = append(doc.Shapes, svgCircle{
				Class:       "wim-vertex",
				CX:          num(p.Center.X),
				CY:          num(p.Center.Y),
				R:           num(p.Radius),
				Fill:        p.Fill,
				Stroke:      p.Stroke,
				StrokeWidth: num(p.StrokeWidth),
			})
		case KindArea, KindDraftArea:
			base := "wim-area"
			if p.Kind == KindDraftArea {
				base = "wim-draft"
			}
			doc.Shapes = append(doc.Shapes, svgPolygon{
				Class:       classes(base, p),
				LocationID:  locationAttr(p),
				Points:      pointsAttr(p),
				Fill:        p.Fill,
				FillOpacity: num(p.FillOpacity),
				Stroke:      p.Stroke,
				StrokeWidth: num(p.StrokeWidth),
			})
		case KindEdge:
			doc.Shapes = append(doc.Shapes, svgLine{
				Class:       "wim-edge",
				X1:          num(p.From.X),
				Y1:          num(p.From.Y),
				X2:          num(p.To.X),
				Y2:          num(p.To.Y),
				Stroke:      p.Stroke,
				StrokeWidth: num(p.StrokeWidth),
			})
		}
	}
	return doc
}

func pointsAttr(p *Primitive) string {
	parts := make([]string, len(p.Points))
	for i, pt := range p.Points {
		parts[i] = num(pt.X) + "," + num(pt.Y)
	}
	return strings.Join(parts, " ")
}

// WriteSVG encodes the scene as a standalone SVG document sized to the render frame.
func (s *Scene) WriteSVG(w io.Writer) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(s.document()); err != nil {
		return fmt.Errorf("encode svg: %w", err)
	}
	return enc.Flush()
}

// SVG returns the scene as an SVG string.
func (s *Scene) SVG() (string, error) {
	var buf bytes.Buffer
	if err := s.WriteSVG(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
