// Package viewer drives the public map display: it loads a map, keeps the
// overlay in step with the rendered image and shows location content on click.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/internal/overlay"
	"github.com/wim-maps/engine/pkg/core"
)

// LoadFailedMessage is shown inline in place of the map when loading fails.
const LoadFailedMessage = "Failed to load map. Please try again later."

var (
	// ErrDataUnavailable is returned when the map or its image cannot be loaded.
	ErrDataUnavailable = errors.New("map data unavailable")

	// ErrSuperseded is returned by an Init whose result was discarded because a
	// newer Init started while it was fetching.
	ErrSuperseded = errors.New("load superseded by a newer request")

	// ErrNotReady is returned for interactions before the map has loaded.
	ErrNotReady = errors.New("viewer is not ready")
)

// Source provides the map and its locations.
type Source interface {
	GetMap(ctx context.Context, id uint) (*core.Map, error)
}

// Interaction is a single user action reported to a Recorder.
type Interaction struct {
	Instance   string
	MapID      uint
	LocationID uint
	Type       core.LocationType
	Action     string
	Time       time.Time
}

// Recorder receives viewer interactions, e.g. for telemetry.
type Recorder interface {
	Record(Interaction)
}

// Image is a content image with its resolved alt text.
type Image struct {
	URL string
	Alt string
}

// Panel is the content shown for the active location. Content is passed
// through verbatim.
type Panel struct {
	LocationID uint
	Title      string
	Content    string
	Images     []Image
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithStyle sets the overlay presentation defaults.
func WithStyle(s overlay.Style) Option {
	return func(v *Viewer) {
		v.style = s.Merge()
	}
}

// WithLayout sets where content is presented.
func WithLayout(l Layout) Option {
	return func(v *Viewer) {
		v.layout = l
	}
}

// WithRecorder reports activations to r.
func WithRecorder(r Recorder) Option {
	return func(v *Viewer) {
		v.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Viewer) {
		v.log = l
	}
}

// Viewer is one map display. It owns all of its state; separate viewers never
// share anything. Methods are safe for concurrent use.
type Viewer struct {
	id       string
	src      Source
	mapID    uint
	style    overlay.Style
	layout   Layout
	recorder Recorder
	log      *slog.Logger

	rebuilds metric.Int64Counter

	mu    sync.Mutex
	gen   uint64
	state State
	err   error
	m     *core.Map
	frame geo.RenderFrame
	scene *overlay.Scene
	panel *Panel
}

// New creates a viewer for mapID. Nothing is fetched until Init.
func New(src Source, mapID uint, opts ...Option) (*Viewer, error) {
	v := &Viewer{
		id:     uuid.NewString(),
		src:    src,
		mapID:  mapID,
		style:  overlay.DefaultStyle(),
		layout: LayoutSide,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With("viewer", v.id, "map", mapID)

	var err error
	v.rebuilds, err = meter().Int64Counter(
		"viewer.overlay.rebuilds",
		metric.WithDescription("Total overlay rebuilds"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rebuild counter: %w", err)
	}
	return v, nil
}

// ID returns the instance identifier.
func (v *Viewer) ID() string {
	return v.id
}

// Init loads the map. Calling it again retries after an error. If a newer Init
// starts before this one completes, this result is discarded and ErrSuperseded
// is returned.
func (v *Viewer) Init(ctx context.Context) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.state = Loading
	v.err = nil
	v.mu.Unlock()

	m, fetchErr := v.src.GetMap(ctx, v.mapID)

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen {
		return ErrSuperseded
	}

	if fetchErr == nil && (m == nil || m.ImageURL == "") {
		fetchErr = errors.New("map has no image")
	}
	if fetchErr != nil {
		v.state = Error
		v.err = fmt.Errorf("%w: %v", ErrDataUnavailable, fetchErr)
		v.m, v.scene, v.panel = nil, nil, nil
		v.log.Error("Failed to load map", "error", fetchErr)
		return v.err
	}

	v.m = m
	v.panel = nil
	v.scene = nil
	v.state = Ready
	v.log.Debug("Map loaded", "locations", len(m.Locations))
	return v.rebuild()
}

// FrameReady records the rendered image size and draws the overlay. Frames
// without a size are ignored.
func (v *Viewer) FrameReady(frame geo.RenderFrame) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !frame.Ready() {
		v.log.Debug("Ignoring frame without dimensions", "width", frame.Width, "height", frame.Height)
		return nil
	}
	v.frame = frame
	return v.rebuild()
}

// Resize redraws the overlay for a new rendered size.
func (v *Viewer) Resize(frame geo.RenderFrame) error {
	return v.FrameReady(frame)
}

// rebuild discards the overlay and builds a fresh one. Hover and highlight
// carry over by location ID.
func (v *Viewer) rebuild() error {
	if v.m == nil || !v.frame.Ready() {
		return nil
	}

	mapper := geo.NewMapper(v.frame, v.m.NativeWidth, v.m.NativeHeight)
	scene, err := overlay.Build(v.m.Locations, mapper, v.style)
	if errors.Is(err, geo.ErrDimensionsNotReady) {
		v.scene = nil
		v.log.Warn("Map has no native dimensions, overlay not drawn")
		return nil
	}
	if err != nil {
		v.scene = nil
		return fmt.Errorf("build overlay: %w", err)
	}

	if v.scene != nil {
		if id, ok := v.scene.Hovered(); ok {
			scene.SetHover(id)
		}
	}
	if v.panel != nil {
		scene.SetActive(v.panel.LocationID)
	}
	for _, id := range scene.Skipped {
		v.log.Debug("Location not drawn", "location", id)
	}

	v.scene = scene
	v.rebuilds.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("map", int(v.mapID))))
	return nil
}

// Click activates the location under the display point. A miss changes nothing.
func (v *Viewer) Click(display core.Point) (uint, bool) {
	v.mu.Lock()
	if v.scene == nil {
		v.mu.Unlock()
		return 0, false
	}
	p, ok := v.scene.HitTest(display)
	if !ok {
		v.mu.Unlock()
		return 0, false
	}
	id := p.LocationID()
	interaction, err := v.activate(id)
	v.mu.Unlock()

	if err != nil {
		return 0, false
	}
	v.record(interaction)
	return id, true
}

// Activate shows the content of a location and moves the highlight to it.
func (v *Viewer) Activate(locationID uint) error {
	v.mu.Lock()
	interaction, err := v.activate(locationID)
	v.mu.Unlock()

	if err != nil {
		return err
	}
	v.record(interaction)
	return nil
}

func (v *Viewer) activate(locationID uint) (Interaction, error) {
	if v.state != Ready && v.state != ContentShown {
		return Interaction{}, ErrNotReady
	}
	loc, ok := v.m.Location(locationID)
	if !ok {
		return Interaction{}, fmt.Errorf("location %d: %w", locationID, core.ErrNotFound)
	}

	panel := &Panel{
		LocationID: loc.ID,
		Title:      loc.Title,
		Content:    loc.Content,
	}
	for _, img := range loc.Images {
		panel.Images = append(panel.Images, Image{URL: img.URL, Alt: loc.ImageAlt(img)})
	}
	v.panel = panel
	if v.scene != nil {
		v.scene.SetActive(loc.ID)
	}
	v.state = ContentShown

	return Interaction{
		Instance:   v.id,
		MapID:      v.mapID,
		LocationID: loc.ID,
		Type:       loc.Type,
		Action:     "activate",
		Time:       time.Now(),
	}, nil
}

func (v *Viewer) record(i Interaction) {
	if v.recorder != nil {
		v.recorder.Record(i)
	}
}

// Close hides the content panel and removes the highlight.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.panel = nil
	if v.scene != nil {
		v.scene.ClearActive()
	}
	if v.state == ContentShown {
		v.state = Ready
	}
}

// Hover highlights the location under the display point, or clears the hover on a miss.
func (v *Viewer) Hover(display core.Point) (uint, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.scene == nil {
		return 0, false
	}
	p, ok := v.scene.HitTest(display)
	if !ok {
		v.scene.ClearHover()
		return 0, false
	}
	id := p.LocationID()
	v.scene.SetHover(id)
	return id, true
}

// HoverLocation highlights a location by ID, e.g. from a list entry.
func (v *Viewer) HoverLocation(locationID uint) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.scene == nil {
		return false
	}
	return v.scene.SetHover(locationID)
}

// Unhover clears the hover highlight.
func (v *Viewer) Unhover() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.scene != nil {
		v.scene.ClearHover()
	}
}

// State returns the current lifecycle state.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the load error while in the Error state.
func (v *Viewer) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Message returns the inline message for the current state, if any.
func (v *Viewer) Message() string {
	if v.State() == Error {
		return LoadFailedMessage
	}
	return ""
}

// Map returns the loaded map. The caller must not modify it.
func (v *Viewer) Map() (*core.Map, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.m, v.m != nil
}

// Scene returns the current overlay, or nil before the first build. Hover and
// highlight changes mutate it, so it must not be read concurrently with them.
func (v *Viewer) Scene() *overlay.Scene {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scene
}

// SVG renders the current overlay.
func (v *Viewer) SVG() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.scene == nil {
		return "", geo.ErrDimensionsNotReady
	}
	return v.scene.SVG()
}

// Panel returns the content panel while a location is active.
func (v *Viewer) Panel() (Panel, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.panel == nil {
		return Panel{}, false
	}
	p := *v.panel
	p.Images = append([]Image(nil), v.panel.Images...)
	return p, true
}

// Frame returns the last ready render frame.
func (v *Viewer) Frame() geo.RenderFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame
}

// Layout returns the content layout.
func (v *Viewer) Layout() Layout {
	return v.layout
}
