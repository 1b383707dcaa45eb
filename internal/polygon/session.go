// Package polygon accumulates the vertices of an area while it is being drawn.
package polygon

import (
	"errors"
	"fmt"

	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/pkg/core"
)

// ErrInsufficientVertices is returned by Finish when fewer than three vertices exist.
var ErrInsufficientVertices = errors.New("a polygon needs at least 3 points")

// Vertex is one polygon corner in both coordinate spaces.
// Native is persisted; Display is derived from the current render frame.
type Vertex struct {
	Native  core.Point
	Display core.Point
}

// Session is the in-progress polygon of a single editor. The zero value is an
// empty, editable session.
type Session struct {
	vertices []Vertex
	finished bool
}

// New creates an empty session.
func New() *Session {
	return &Session{}
}

// AddVertex appends a vertex and reopens the polygon for input.
func (s *Session) AddVertex(native, display core.Point) {
	s.vertices = append(s.vertices, Vertex{Native: native, Display: display})
	s.finished = false
}

// Clear drops all vertices and leaves the session open for input.
func (s *Session) Clear() {
	s.vertices = nil
	s.finished = false
}

// Finish closes the polygon. With fewer than three vertices it returns
// ErrInsufficientVertices and leaves the session untouched.
func (s *Session) Finish() error {
	if len(s.vertices) < core.MinAreaPoints {
		return fmt.Errorf("%w: have %d", ErrInsufficientVertices, len(s.vertices))
	}
	s.finished = true
	return nil
}

// Finished reports whether the polygon is closed.
func (s *Session) Finished() bool {
	return s.finished
}

// Len returns the vertex count.
func (s *Session) Len() int {
	return len(s.vertices)
}

// Vertices returns a copy of the vertex list in draw order.
func (s *Session) Vertices() []Vertex {
	out := make([]Vertex, len(s.vertices))
	copy(out, s.vertices)
	return out
}

// StoragePayload returns the native points in order. Display positions are never persisted.
func (s *Session) StoragePayload() []core.Point {
	points := make([]core.Point, len(s.vertices))
	for i, v := range s.vertices {
		points[i] = v.Native
	}
	return points
}

// Payload returns the session as Area coordinates.
func (s *Session) Payload() core.Coordinates {
	return core.AreaOf(s.StoragePayload())
}

// Load replaces the session with persisted native points, deriving display
// positions from the mapper. A loaded polygon with enough vertices is shown closed.
// If the mapper is not ready the session is left unchanged.
func (s *Session) Load(points []core.Point, m geo.Mapper) error {
	if !m.Ready() {
		return geo.ErrDimensionsNotReady
	}
	vertices := make([]Vertex, len(points))
	for i, p := range points {
		d, err := m.ToDisplay(p)
		if err != nil {
			return err
		}
		vertices[i] = Vertex{Native: p, Display: d}
	}
	s.vertices = vertices
	s.finished = len(vertices) >= core.MinAreaPoints
	return nil
}

// Reproject recomputes display positions after the render frame changed.
func (s *Session) Reproject(m geo.Mapper) error {
	display := make([]core.Point, len(s.vertices))
	for i, v := range s.vertices {
		d, err := m.ToDisplay(v.Native)
		if err != nil {
			return err
		}
		display[i] = d
	}
	for i := range s.vertices {
		s.vertices[i].Display = display[i]
	}
	return nil
}
