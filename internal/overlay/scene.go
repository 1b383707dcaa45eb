// Package overlay turns locations stored in native space into vector primitives
// positioned over the rendered map image, and maps pointer positions back to locations.
package overlay

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/pkg/core"
)

// Kind identifies the shape of a primitive.
type Kind int

const (
	KindMarker Kind = iota
	KindArea
	KindVertex
	KindEdge
	KindDraftArea
)

func (k Kind) String() string {
	switch k {
	case KindMarker:
		return "marker"
	case KindArea:
		return "area"
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	case KindDraftArea:
		return "draft-area"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Primitive is one drawable shape in display space.
// Location is a lookup reference to the record the shape was built from; it is
// nil for editor draft shapes.
type Primitive struct {
	Kind     Kind
	Location *core.Location

	Center      core.Point
	Radius      float64
	HoverRadius float64

	Points []core.Point
	From   core.Point
	To     core.Point

	Fill        string
	Stroke      string
	StrokeWidth float64
	FillOpacity float64

	Hovered bool
	Active  bool

	baseOpacity float64
	shape       geom.Polygon
}

// LocationID returns the ID of the source location, or 0 for draft shapes.
func (p *Primitive) LocationID() uint {
	if p.Location == nil {
		return 0
	}
	return p.Location.ID
}

func (p *Primitive) hit(at core.Point) bool {
	switch p.Kind {
	case KindMarker:
		r := p.HoverRadius
		if r < p.Radius {
			r = p.Radius
		}
		return math.Hypot(at.X-p.Center.X, at.Y-p.Center.Y) <= r
	case KindArea:
		return geo.ContainsPoint(p.shape, at)
	default:
		return false
	}
}

// Scene is a complete overlay for one render frame. It is never patched after a
// resize or a change to the location set; a new Scene is built instead.
type Scene struct {
	Frame      geo.RenderFrame
	Primitives []*Primitive

	// Skipped lists locations whose coordinates could not be drawn.
	Skipped []uint

	style      Style
	byLocation map[uint]*Primitive
	hovered    *Primitive
	active     *Primitive
}

// NewScene creates an empty scene for a frame.
func NewScene(frame geo.RenderFrame, style Style) *Scene {
	return &Scene{
		Frame:      frame,
		style:      style.Merge(),
		byLocation: make(map[uint]*Primitive),
	}
}

// Build creates the overlay for a set of locations. Locations that are not
// drawable (legacy or corrupt payloads, shapes that cannot be built) are skipped
// and listed in Skipped; only a mapper that is not ready fails the build.
// The primitives reference the elements of locations, which must outlive the scene.
func Build(locations []core.Location, m geo.Mapper, style Style) (*Scene, error) {
	if !m.Ready() {
		return nil, geo.ErrDimensionsNotReady
	}

	s := NewScene(m.Frame, style)
	for i := range locations {
		loc := &locations[i]
		if loc.CoordinatesErr != nil || !loc.Coordinates.Drawable() || loc.Coordinates.Kind != loc.Type {
			s.Skipped = append(s.Skipped, loc.ID)
			continue
		}

		var err error
		switch loc.Type {
		case core.Place:
			err = s.addMarker(loc, m)
		case core.Area:
			err = s.addArea(loc, m)
		}
		if err != nil {
			s.Skipped = append(s.Skipped, loc.ID)
		}
	}
	return s, nil
}

func (s *Scene) addMarker(loc *core.Location, m geo.Mapper) error {
	center, err := m.ToDisplay(*loc.Coordinates.Point)
	if err != nil {
		return err
	}
	fill := loc.Color
	if fill == "" {
		fill = s.style.MarkerColor
	}
	s.add(&Primitive{
		Kind:        KindMarker,
		Location:    loc,
		Center:      center,
		Radius:      s.style.MarkerRadius,
		HoverRadius: s.style.MarkerHoverRadius,
		Fill:        fill,
		Stroke:      s.style.MarkerStroke,
		StrokeWidth: s.style.MarkerStrokeWidth,
		FillOpacity: 1,
		baseOpacity: 1,
	})
	return nil
}

func (s *Scene) addArea(loc *core.Location, m geo.Mapper) error {
	points, err := m.ToDisplayAll(loc.Coordinates.Points)
	if err != nil {
		return err
	}
	shape, err := geo.Polygon(points)
	if err != nil {
		return err
	}
	fill := loc.Color
	if fill == "" {
		fill = s.style.AreaFillColor
	}
	s.add(&Primitive{
		Kind:        KindArea,
		Location:    loc,
		Points:      points,
		Fill:        fill,
		Stroke:      s.style.AreaStrokeColor,
		StrokeWidth: s.style.AreaStrokeWidth,
		FillOpacity: s.style.AreaFillOpacity,
		baseOpacity: s.style.AreaFillOpacity,
		shape:       shape,
	})
	return nil
}

func (s *Scene) add(p *Primitive) {
	s.Primitives = append(s.Primitives, p)
	if id := p.LocationID(); id != 0 {
		s.byLocation[id] = p
	}
}

// AddDraftMarker adds the editor's single place marker.
func (s *Scene) AddDraftMarker(at core.Point) {
	s.add(&Primitive{
		Kind:        KindMarker,
		Center:      at,
		Radius:      s.style.MarkerRadius,
		Fill:        s.style.MarkerColor,
		Stroke:      s.style.MarkerStroke,
		StrokeWidth: s.style.MarkerStrokeWidth,
		FillOpacity: 1,
		baseOpacity: 1,
	})
}

// AddDraftPolygon adds an in-progress polygon: a dot per vertex, a line between
// consecutive vertices and, once finished, a filled closed shape beneath them.
func (s *Scene) AddDraftPolygon(display []core.Point, finished bool) {
	if len(display) == 0 {
		return
	}
	if finished && len(display) >= core.MinAreaPoints {
		pts := make([]core.Point, len(display))
		copy(pts, display)
		s.add(&Primitive{
			Kind:        KindDraftArea,
			Points:      pts,
			Fill:        s.style.MarkerColor,
			Stroke:      s.style.MarkerColor,
			StrokeWidth: s.style.MarkerStrokeWidth,
			FillOpacity: s.style.DraftFillOpacity,
			baseOpacity: s.style.DraftFillOpacity,
		})
	}
	for i, p := range display {
		s.add(&Primitive{
			Kind:        KindVertex,
			Center:      p,
			Radius:      s.style.VertexRadius,
			Fill:        s.style.MarkerColor,
			Stroke:      s.style.MarkerStroke,
			StrokeWidth: s.style.MarkerStrokeWidth,
			FillOpacity: 1,
			baseOpacity: 1,
		})
		if i < len(display)-1 {
			s.add(&Primitive{
				Kind:        KindEdge,
				From:        p,
				To:          display[i+1],
				Stroke:      s.style.MarkerColor,
				StrokeWidth: s.style.MarkerStrokeWidth,
			})
		}
	}
}

// Len returns the number of primitives.
func (s *Scene) Len() int {
	return len(s.Primitives)
}

// Primitive returns the primitive drawn for a location.
func (s *Scene) Primitive(locationID uint) (*Primitive, bool) {
	p, ok := s.byLocation[locationID]
	return p, ok
}

// HitTest returns the topmost location primitive under a display-space point.
func (s *Scene) HitTest(at core.Point) (*Primitive, bool) {
	for i := len(s.Primitives) - 1; i >= 0; i-- {
		p := s.Primitives[i]
		if p.Location == nil {
			continue
		}
		if p.hit(at) {
			return p, true
		}
	}
	return nil, false
}

// SetHover marks a location as hovered, clearing any previous hover.
// A hovered area's fill opacity is raised by the style's boost, capped at 1.
func (s *Scene) SetHover(locationID uint) bool {
	p, ok := s.byLocation[locationID]
	if !ok {
		s.ClearHover()
		return false
	}
	if s.hovered == p {
		return true
	}
	s.ClearHover()
	p.Hovered = true
	if p.Kind == KindArea {
		p.FillOpacity = math.Min(p.baseOpacity+s.style.HoverOpacityBoost, 1)
	}
	s.hovered = p
	return true
}

// ClearHover restores the hovered primitive to its resting opacity.
func (s *Scene) ClearHover() {
	if s.hovered == nil {
		return
	}
	s.hovered.Hovered = false
	s.hovered.FillOpacity = s.hovered.baseOpacity
	s.hovered = nil
}

// Hovered returns the hovered location ID, if any.
func (s *Scene) Hovered() (uint, bool) {
	if s.hovered == nil {
		return 0, false
	}
	return s.hovered.LocationID(), true
}

// SetActive highlights one location. At most one location is active at a time.
func (s *Scene) SetActive(locationID uint) bool {
	s.ClearActive()
	p, ok := s.byLocation[locationID]
	if !ok {
		return false
	}
	p.Active = true
	s.active = p
	return true
}

// ClearActive removes the highlight.
func (s *Scene) ClearActive() {
	if s.active == nil {
		return
	}
	s.active.Active = false
	s.active = nil
}

// Active returns the highlighted location ID, if any.
func (s *Scene) Active() (uint, bool) {
	if s.active == nil {
		return 0, false
	}
	return s.active.LocationID(), true
}
