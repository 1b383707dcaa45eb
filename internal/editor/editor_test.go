package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/internal/overlay"
	"github.com/wim-maps/engine/internal/polygon"
	"github.com/wim-maps/engine/pkg/core"
)

type dataSource struct {
	mu    sync.Mutex
	maps  map[uint]core.MapData
	gates map[uint]chan struct{}
	calls map[uint]chan struct{}
}

func newDataSource() *dataSource {
	return &dataSource{
		maps: map[uint]core.MapData{
			1: {ImageURL: "campus.png", Width: 2000, Height: 1000},
			2: {ImageURL: "harbour.png", Width: 800, Height: 600},
			3: {ImageURL: "", Width: 10, Height: 10},
		},
		gates: map[uint]chan struct{}{},
		calls: map[uint]chan struct{}{},
	}
}

// gate makes the fetch for id block until the returned release func is called.
func (s *dataSource) gate(id uint) (started <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := make(chan struct{})
	c := make(chan struct{})
	s.gates[id] = g
	s.calls[id] = c
	return c, func() { close(g) }
}

func (s *dataSource) GetMapData(_ context.Context, id uint) (core.MapData, error) {
	s.mu.Lock()
	g, gated := s.gates[id]
	c := s.calls[id]
	d, ok := s.maps[id]
	s.mu.Unlock()

	if gated {
		close(c)
		<-g
	}
	if !ok {
		return core.MapData{}, core.ErrNotFound
	}
	return d, nil
}

var halfFrame = geo.RenderFrame{Width: 1000, Height: 500}

func campusEditor(t *testing.T) *Editor {
	t.Helper()
	e := New(newDataSource())
	require.NoError(t, e.SelectMap(context.Background(), 1))
	require.NoError(t, e.FrameReady(halfFrame))
	return e
}

func TestSelectMap(t *testing.T) {
	e := New(newDataSource())
	assert.False(t, e.Visible())
	assert.Equal(t, core.Place, e.Type())

	require.NoError(t, e.SelectMap(context.Background(), 1))

	assert.True(t, e.Visible())
	assert.Equal(t, uint(1), e.MapID())
	assert.Equal(t, core.MapData{ImageURL: "campus.png", Width: 2000, Height: 1000}, e.MapData())
}

func TestSelectMap_UnavailableHidesSurface(t *testing.T) {
	tests := []struct {
		name string
		id   uint
	}{
		{"not found", 42},
		{"missing image", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := campusEditor(t)

			err := e.SelectMap(context.Background(), tt.id)

			require.ErrorIs(t, err, ErrDataUnavailable)
			assert.False(t, e.Visible())
			assert.Equal(t, uint(0), e.MapID())
			_, err = e.Scene()
			assert.ErrorIs(t, err, ErrNoMap)
		})
	}
}

func TestSelectMap_ZeroHides(t *testing.T) {
	e := campusEditor(t)
	require.NoError(t, e.SelectMap(context.Background(), 0))
	assert.False(t, e.Visible())

	_, err := e.Click(core.Point{X: 1, Y: 1})
	assert.ErrorIs(t, err, ErrNoMap)
}

func TestSelectMap_LastSelectionWins(t *testing.T) {
	src := newDataSource()
	e := New(src)
	started, release := src.gate(1)

	staleErr := make(chan error, 1)
	go func() { staleErr <- e.SelectMap(context.Background(), 1) }()
	<-started

	require.NoError(t, e.SelectMap(context.Background(), 2))
	release()

	select {
	case err := <-staleErr:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(2 * time.Second):
		t.Fatal("stale selection did not return")
	}

	assert.Equal(t, uint(2), e.MapID())
	assert.Equal(t, "harbour.png", e.MapData().ImageURL)
	assert.True(t, e.Visible())
}

func TestSelectMap_StaleFailureDoesNotHide(t *testing.T) {
	src := newDataSource()
	e := New(src)
	started, release := src.gate(42)

	staleErr := make(chan error, 1)
	go func() { staleErr <- e.SelectMap(context.Background(), 42) }()
	<-started

	require.NoError(t, e.SelectMap(context.Background(), 2))
	release()

	assert.ErrorIs(t, <-staleErr, ErrStale)
	assert.True(t, e.Visible())
}

func TestClick_PlaceAtHalfScale(t *testing.T) {
	e := campusEditor(t)

	native, err := e.Click(core.Point{X: 100, Y: 50})
	require.NoError(t, err)
	assert.Equal(t, core.Point{X: 200, Y: 100}, native)

	payload, ok := e.Payload()
	require.True(t, ok)
	assert.Equal(t, core.PlaceAt(200, 100), payload)
}

func TestClick_PlaceOverwritesAndRounds(t *testing.T) {
	e := campusEditor(t)

	_, err := e.Click(core.Point{X: 100, Y: 50})
	require.NoError(t, err)
	native, err := e.Click(core.Point{X: 10.3, Y: 20.2})
	require.NoError(t, err)
	assert.Equal(t, core.Point{X: 21, Y: 40}, native)

	s, err := e.Scene()
	require.NoError(t, err)
	require.Equal(t, 1, s.Len(), "one marker only")
	assert.Equal(t, overlay.KindMarker, s.Primitives[0].Kind)
	assert.InDelta(t, 10.5, s.Primitives[0].Center.X, 1e-9)
}

func TestClick_AreaKeepsPrecision(t *testing.T) {
	e := campusEditor(t)
	require.NoError(t, e.SetType(core.Area))

	native, err := e.Click(core.Point{X: 10.3, Y: 20.2})
	require.NoError(t, err)
	assert.InDelta(t, 20.6, native.X, 1e-9)
	assert.InDelta(t, 40.4, native.Y, 1e-9)
	assert.Equal(t, 1, e.Vertices())
}

func TestClick_BeforeFrame(t *testing.T) {
	e := New(newDataSource())
	require.NoError(t, e.SelectMap(context.Background(), 1))

	_, err := e.Click(core.Point{X: 1, Y: 1})
	assert.ErrorIs(t, err, geo.ErrDimensionsNotReady)
	_, ok := e.Payload()
	assert.False(t, ok)
}

func TestSetType_IsDestructive(t *testing.T) {
	e := campusEditor(t)

	_, err := e.Click(core.Point{X: 100, Y: 50})
	require.NoError(t, err)

	require.NoError(t, e.SetType(core.Area))
	_, ok := e.Payload()
	assert.False(t, ok, "a place is never converted into a polygon seed")

	for _, p := range []core.Point{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}} {
		_, err := e.Click(p)
		require.NoError(t, err)
	}
	require.NoError(t, e.SetType(core.Place))
	_, ok = e.Payload()
	assert.False(t, ok, "switching back must not resurrect the old place")

	require.NoError(t, e.SetType(core.Area))
	assert.Equal(t, 0, e.Vertices())
}

func TestSetType_Unknown(t *testing.T) {
	e := campusEditor(t)
	assert.Error(t, e.SetType("circle"))
	assert.Equal(t, core.Place, e.Type())
}

func TestPolygon_FinishNeedsThreeVertices(t *testing.T) {
	e := campusEditor(t)
	require.NoError(t, e.SetType(core.Area))

	_, _ = e.Click(core.Point{X: 10, Y: 10})
	_, _ = e.Click(core.Point{X: 50, Y: 10})

	err := e.FinishPolygon()
	require.ErrorIs(t, err, polygon.ErrInsufficientVertices)
	assert.Equal(t, MinPointsMessage, Message(err))
	assert.Equal(t, 2, e.Vertices())
	assert.False(t, e.Finished())

	_, _ = e.Click(core.Point{X: 50, Y: 50})
	require.NoError(t, e.FinishPolygon())
	assert.True(t, e.Finished())

	s, err := e.Scene()
	require.NoError(t, err)
	assert.Equal(t, overlay.KindDraftArea, s.Primitives[0].Kind)

	payload, ok := e.Payload()
	require.True(t, ok)
	assert.Equal(t, []core.Point{{X: 20, Y: 20}, {X: 100, Y: 20}, {X: 100, Y: 100}}, payload.Points)
}

func TestPolygon_UnfinishedIsStillPayload(t *testing.T) {
	e := campusEditor(t)
	require.NoError(t, e.SetType(core.Area))
	_, _ = e.Click(core.Point{X: 10, Y: 10})

	payload, ok := e.Payload()
	require.True(t, ok)
	assert.Len(t, payload.Points, 1)
}

func TestPolygon_Clear(t *testing.T) {
	e := campusEditor(t)
	require.NoError(t, e.SetType(core.Area))
	for _, p := range []core.Point{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}} {
		_, _ = e.Click(p)
	}
	require.NoError(t, e.FinishPolygon())

	e.ClearPolygon()

	payload, ok := e.Payload()
	assert.False(t, ok)
	assert.Empty(t, payload.Points)
	assert.False(t, e.Finished())

	s, err := e.Scene()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestLoadExisting_AreaWaitsForFrame(t *testing.T) {
	e := New(newDataSource())
	require.NoError(t, e.SelectMap(context.Background(), 1))

	require.NoError(t, e.LoadExisting(core.Area, []byte(`{"points":[[10,10],[20,10],[20,20]]}`)))
	assert.Equal(t, core.Area, e.Type())
	assert.Equal(t, 0, e.Vertices(), "vertices wait for the image frame")

	payload, ok := e.Payload()
	require.True(t, ok)
	assert.Equal(t, []core.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}}, payload.Points)

	require.NoError(t, e.FrameReady(halfFrame))
	assert.Equal(t, 3, e.Vertices())
	assert.True(t, e.Finished())

	payload, ok = e.Payload()
	require.True(t, ok)
	assert.Equal(t, []core.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}}, payload.Points)
}

func TestLoadExisting_Place(t *testing.T) {
	e := campusEditor(t)

	require.NoError(t, e.LoadExisting(core.Place, []byte(`{"x":200,"y":100}`)))

	payload, ok := e.Payload()
	require.True(t, ok)
	assert.Equal(t, core.PlaceAt(200, 100), payload)

	s, err := e.Scene()
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, core.Point{X: 100, Y: 50}, s.Primitives[0].Center)
}

func TestLoadExisting_InvalidStartsEmpty(t *testing.T) {
	tests := []struct {
		name string
		kind core.LocationType
		raw  string
	}{
		{"broken json", core.Area, `{"points":[[1,2],`},
		{"wrong shape", core.Area, `{"points":[[1]]}`},
		{"place without y", core.Place, `{"x":4}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := campusEditor(t)
			_, _ = e.Click(core.Point{X: 5, Y: 5})

			err := e.LoadExisting(tt.kind, []byte(tt.raw))

			require.ErrorIs(t, err, core.ErrInvalidCoordinatePayload)
			_, ok := e.Payload()
			assert.False(t, ok)
			assert.Equal(t, tt.kind, e.Type())
		})
	}
}

func TestLoadExisting_Empty(t *testing.T) {
	e := campusEditor(t)
	require.NoError(t, e.LoadExisting(core.Area, nil))
	_, ok := e.Payload()
	assert.False(t, ok)
}

func TestResize_Reprojects(t *testing.T) {
	e := campusEditor(t)
	require.NoError(t, e.SetType(core.Area))
	for _, p := range []core.Point{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}} {
		_, _ = e.Click(p)
	}

	require.NoError(t, e.Resize(geo.RenderFrame{Width: 2000, Height: 1000}))

	s, err := e.Scene()
	require.NoError(t, err)
	var vertices []core.Point
	for _, p := range s.Primitives {
		if p.Kind == overlay.KindVertex {
			vertices = append(vertices, p.Center)
		}
	}
	assert.Equal(t, []core.Point{{X: 20, Y: 20}, {X: 100, Y: 20}, {X: 100, Y: 100}}, vertices)

	payload, _ := e.Payload()
	assert.Equal(t, []core.Point{{X: 20, Y: 20}, {X: 100, Y: 20}, {X: 100, Y: 100}}, payload.Points)
}

func TestSelectMap_NewSurfaceWaitsForFrame(t *testing.T) {
	e := campusEditor(t)
	_, err := e.Click(core.Point{X: 100, Y: 50})
	require.NoError(t, err)

	require.NoError(t, e.SelectMap(context.Background(), 2))
	_, err = e.Scene()
	assert.ErrorIs(t, err, geo.ErrDimensionsNotReady)

	require.NoError(t, e.FrameReady(geo.RenderFrame{Width: 400, Height: 300}))
	s, err := e.Scene()
	require.NoError(t, err)
	assert.Equal(t, core.Point{X: 100, Y: 50}, s.Primitives[0].Center)
}

func TestEditors_ShareNothing(t *testing.T) {
	a := campusEditor(t)
	b := campusEditor(t)
	require.NotEqual(t, a.ID(), b.ID())

	_, err := a.Click(core.Point{X: 100, Y: 50})
	require.NoError(t, err)

	_, ok := b.Payload()
	assert.False(t, ok)
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Empty(t, Message(errors.New("boom")))
}
