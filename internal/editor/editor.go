// Package editor captures the coordinates of one location against one map:
// a single point for a place or a polygon for an area.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/internal/overlay"
	"github.com/wim-maps/engine/internal/polygon"
	"github.com/wim-maps/engine/pkg/core"
)

// MinPointsMessage is shown when an area is finished with too few vertices.
const MinPointsMessage = "A polygon needs at least 3 points."

var (
	// ErrStale is returned by SelectMap when a newer selection was made while
	// the fetch was in flight. The response is discarded.
	ErrStale = errors.New("map selection superseded")

	// ErrDataUnavailable is returned when the selected map's metadata cannot be used.
	ErrDataUnavailable = errors.New("map data unavailable")

	// ErrNoMap is returned for input while no map is shown.
	ErrNoMap = errors.New("no map selected")
)

// Message returns the user-facing text for an editor error, or "" if the
// error is not meant for the user.
func Message(err error) string {
	if errors.Is(err, polygon.ErrInsufficientVertices) {
		return MinPointsMessage
	}
	return ""
}

// Source provides map metadata.
type Source interface {
	GetMapData(ctx context.Context, id uint) (core.MapData, error)
}

// Option configures an Editor.
type Option func(*Editor)

// WithStyle sets the draft overlay presentation.
func WithStyle(s overlay.Style) Option {
	return func(e *Editor) {
		e.style = s.Merge()
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.log = l
	}
}

// Editor is the coordinate editor of a single location form. All state is
// owned by the instance. Methods are safe for concurrent use.
type Editor struct {
	id    string
	src   Source
	style overlay.Style
	log   *slog.Logger

	mu      sync.Mutex
	gen     uint64
	mapID   uint
	data    core.MapData
	visible bool
	frame   geo.RenderFrame

	kind    core.LocationType
	place   *core.Point
	session *polygon.Session

	// pending holds area coordinates waiting for the first ready frame.
	pending *core.Coordinates
}

// New creates an editor for a place location with no map selected.
func New(src Source, opts ...Option) *Editor {
	e := &Editor{
		id:      uuid.NewString(),
		src:     src,
		style:   overlay.DefaultStyle(),
		log:     slog.Default(),
		kind:    core.Place,
		session: polygon.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("editor", e.id)
	return e
}

// ID returns the instance identifier.
func (e *Editor) ID() string {
	return e.id
}

// SelectMap fetches the metadata of a map and shows the editor surface for
// it. Selecting map 0 hides the surface. A failed fetch hides the surface and
// returns ErrDataUnavailable. Only the most recent selection is applied.
func (e *Editor) SelectMap(ctx context.Context, mapID uint) error {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	if mapID == 0 {
		e.hide()
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	data, err := e.src.GetMapData(ctx, mapID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		e.log.Debug("Discarding stale map data", "map", mapID)
		return ErrStale
	}

	if err == nil && !data.Valid() {
		err = fmt.Errorf("incomplete metadata %+v", data)
	}
	if err != nil {
		e.hide()
		e.log.Error("Map data error", "map", mapID, "error", err)
		return fmt.Errorf("%w: map %d: %v", ErrDataUnavailable, mapID, err)
	}

	e.mapID = mapID
	e.data = data
	e.visible = true
	// The surface shows a new image; display positions wait for its frame.
	e.frame = geo.RenderFrame{}
	e.log.Debug("Map selected", "map", mapID, "width", data.Width, "height", data.Height)
	return nil
}

func (e *Editor) hide() {
	e.mapID = 0
	e.data = core.MapData{}
	e.visible = false
	e.frame = geo.RenderFrame{}
}

// SetType switches between place and area. All coordinate state is discarded.
func (e *Editor) SetType(kind core.LocationType) error {
	if _, err := core.ParseLocationType(string(kind)); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.kind = kind
	e.reset()
	return nil
}

func (e *Editor) reset() {
	e.place = nil
	e.pending = nil
	e.session.Clear()
}

// FrameReady records the rendered image size. The first ready frame hydrates
// coordinates passed to LoadExisting; later frames reproject the drawing.
// Frames without a size are ignored.
func (e *Editor) FrameReady(frame geo.RenderFrame) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !frame.Ready() {
		return nil
	}
	e.frame = frame
	if !e.visible {
		return nil
	}

	m := e.mapper()
	if e.pending != nil {
		return e.hydrate(m)
	}
	if err := e.session.Reproject(m); err != nil {
		return fmt.Errorf("reproject polygon: %w", err)
	}
	return nil
}

// Resize reprojects the drawing onto a new rendered size.
func (e *Editor) Resize(frame geo.RenderFrame) error {
	return e.FrameReady(frame)
}

func (e *Editor) mapper() geo.Mapper {
	return geo.NewMapper(e.frame, e.data.Width, e.data.Height)
}

func (e *Editor) hydrate(m geo.Mapper) error {
	coords := e.pending
	if err := e.session.Load(coords.Points, m); err != nil {
		return fmt.Errorf("load polygon: %w", err)
	}
	e.pending = nil
	return nil
}

// LoadExisting sets the location type and the stored coordinates being edited.
// A malformed payload is logged and the editor starts empty; the returned error
// wraps core.ErrInvalidCoordinatePayload. Area vertices are placed once the
// image frame is ready.
func (e *Editor) LoadExisting(kind core.LocationType, raw []byte) error {
	if _, err := core.ParseLocationType(string(kind)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidCoordinatePayload, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.kind = kind
	e.reset()

	coords, err := core.DecodeCoordinates(kind, raw)
	if err != nil {
		e.log.Warn("Error parsing existing coordinates", "type", kind, "error", err)
		return err
	}
	if coords.Empty() {
		return nil
	}

	switch kind {
	case core.Place:
		p := *coords.Point
		e.place = &p
	case core.Area:
		e.pending = &coords
		if e.visible && e.frame.Ready() {
			return e.hydrate(e.mapper())
		}
	}
	return nil
}

// Click handles a click on the rendered image at a display-space position and
// returns the captured native coordinate. A place click replaces the stored
// point, rounded to whole pixels; an area click appends a vertex at full precision.
func (e *Editor) Click(display core.Point) (core.Point, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.visible {
		return core.Point{}, ErrNoMap
	}
	m := e.mapper()

	switch e.kind {
	case core.Place:
		native, err := m.ToNative(display)
		if err != nil {
			return core.Point{}, err
		}
		e.place = &native
		return native, nil
	default:
		native, err := m.ToNativeExact(display)
		if err != nil {
			return core.Point{}, err
		}
		e.session.AddVertex(native, display)
		return native, nil
	}
}

// ClearPolygon removes every vertex and keeps the polygon open for input.
func (e *Editor) ClearPolygon() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = nil
	e.session.Clear()
}

// FinishPolygon closes the polygon. With fewer than three vertices the error
// wraps polygon.ErrInsufficientVertices and the polygon stays editable; see Message.
func (e *Editor) FinishPolygon() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.session.Finish(); err != nil {
		return err
	}
	e.log.Debug("Polygon finished", "vertices", e.session.Len(), "area", geo.PolygonArea(e.session.StoragePayload()))
	return nil
}

// Payload returns the coordinates to persist. The second result is false when
// nothing has been captured.
func (e *Editor) Payload() (core.Coordinates, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.kind {
	case core.Place:
		if e.place == nil {
			return core.Coordinates{Kind: core.Place}, false
		}
		return core.PlaceAt(e.place.X, e.place.Y), true
	default:
		if e.pending != nil {
			return core.AreaOf(e.pending.Points), true
		}
		if e.session.Len() == 0 {
			return core.Coordinates{Kind: core.Area}, false
		}
		return e.session.Payload(), true
	}
}

// Scene draws the in-progress coordinates for the current frame: one marker for
// a place, or the vertices and path of an area. A fresh scene is built per call.
func (e *Editor) Scene() (*overlay.Scene, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.visible {
		return nil, ErrNoMap
	}
	m := e.mapper()
	if !m.Ready() {
		return nil, geo.ErrDimensionsNotReady
	}

	s := overlay.NewScene(e.frame, e.style)
	switch e.kind {
	case core.Place:
		if e.place != nil {
			at, err := m.ToDisplay(*e.place)
			if err != nil {
				return nil, err
			}
			s.AddDraftMarker(at)
		}
	default:
		vertices := e.session.Vertices()
		display := make([]core.Point, len(vertices))
		for i, v := range vertices {
			display[i] = v.Display
		}
		s.AddDraftPolygon(display, e.session.Finished())
	}
	return s, nil
}

// Visible reports whether the editor surface is shown.
func (e *Editor) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// MapID returns the selected map, or 0.
func (e *Editor) MapID() uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mapID
}

// MapData returns the metadata of the selected map.
func (e *Editor) MapData() core.MapData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// Type returns the location type being edited.
func (e *Editor) Type() core.LocationType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kind
}

// Frame returns the last ready render frame of the current surface.
func (e *Editor) Frame() geo.RenderFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// Finished reports whether the area polygon is closed.
func (e *Editor) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Finished()
}

// Vertices returns the number of area vertices placed.
func (e *Editor) Vertices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Len()
}
