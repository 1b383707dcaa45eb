package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/internal/dispatcher"
	"github.com/wim-maps/engine/internal/editor"
	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/internal/handlers"
	"github.com/wim-maps/engine/internal/imagery"
	"github.com/wim-maps/engine/internal/logging"
	"github.com/wim-maps/engine/internal/storage/memory"
	"github.com/wim-maps/engine/internal/viewer"
	"github.com/wim-maps/engine/pkg/core"
)

func testBackend(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New(config.MemoryConfig{})
	require.NoError(t, b.Load([]core.Map{{
		ID: 1, Title: "Campus", ImageURL: "campus.png", NativeWidth: 2000, NativeHeight: 1000,
		Locations: []core.Location{
			{ID: 5, Title: "Library", Content: "<p>Books</p>", Type: core.Place, Coordinates: core.PlaceAt(1000, 600)},
		},
	}}))
	return b
}

func TestParseFrameArgs(t *testing.T) {
	frame, err := parseFrameArgs("800", "450.5")
	require.NoError(t, err)
	assert.Equal(t, geo.RenderFrame{Width: 800, Height: 450.5}, frame)

	_, err = parseFrameArgs("wide", "450")
	assert.ErrorContains(t, err, "invalid width")
}

func TestRenderMap(t *testing.T) {
	svg, err := renderMap(context.Background(), testBackend(t), 1, geo.RenderFrame{Width: 1000, Height: 500}, 5)
	require.NoError(t, err)
	assert.Contains(t, svg, `data-location-id="5"`)
	assert.Contains(t, svg, `width="1000"`)

	_, err = renderMap(context.Background(), testBackend(t), 42, geo.RenderFrame{Width: 1000, Height: 500}, 0)
	assert.ErrorIs(t, err, viewer.ErrDataUnavailable)
}

func TestClickMap(t *testing.T) {
	panel, ok, err := clickMap(context.Background(), testBackend(t), 1, geo.RenderFrame{Width: 1000, Height: 500}, core.Point{X: 500, Y: 300})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Library", panel.Title)
	assert.Equal(t, "<p>Books</p>", panel.Content)

	_, ok, err = clickMap(context.Background(), testBackend(t), 1, geo.RenderFrame{Width: 1000, Height: 500}, core.Point{X: 10, Y: 10})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSeedMaps(t *testing.T) {
	store := memory.New(config.MemoryConfig{})
	probed := 0
	probe := func(_ context.Context, loc string) (imagery.Info, error) {
		probed++
		assert.Equal(t, "harbour.png", loc)
		return imagery.Info{Width: 640, Height: 480, Format: "png"}, nil
	}

	maps := []core.Map{
		{Title: "Campus", ImageURL: "campus.png", NativeWidth: 2000, NativeHeight: 1000,
			Locations: []core.Location{
				{Title: "Library", Type: core.Place, Coordinates: core.PlaceAt(10, 20)},
				{Title: "Broken", Type: core.Area, CoordinatesErr: core.ErrInvalidCoordinatePayload},
			}},
		{Title: "Harbour", ImageURL: "harbour.png"},
	}

	nMaps, nLocations, err := seedMaps(context.Background(), store, maps, probe)
	require.NoError(t, err)
	assert.Equal(t, 2, nMaps)
	assert.Equal(t, 1, nLocations)
	assert.Equal(t, 1, probed)

	data, err := store.GetMapData(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, core.MapData{ImageURL: "harbour.png", Width: 640, Height: 480}, data)

	m, err := store.GetMap(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, m.Locations, 1)
	assert.Equal(t, "Library", m.Locations[0].Title)
}

func TestSeedMaps_ProbeFailure(t *testing.T) {
	probe := func(context.Context, string) (imagery.Info, error) {
		return imagery.Info{}, imagery.ErrUnsupportedFormat
	}
	_, _, err := seedMaps(context.Background(), memory.New(config.MemoryConfig{}),
		[]core.Map{{Title: "Blank", ImageURL: "blank.svg"}}, probe)
	assert.ErrorIs(t, err, imagery.ErrUnsupportedFormat)
}

func TestRunProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 30, 12))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	var out bytes.Buffer
	require.NoError(t, runProbe(context.Background(), &out, []string{path}))
	assert.Equal(t, path+"\tpng\t30x12\n", out.String())

	out.Reset()
	err := runProbe(context.Background(), &out, []string{filepath.Join(t.TempDir(), "missing.png")})
	assert.Error(t, err)
	assert.Empty(t, out.String())

	assert.True(t, errors.Is(runProbe(context.Background(), &out, nil), errUsage))
}

func newREPLDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	b := testBackend(t)
	v, err := viewer.New(b, 1)
	require.NoError(t, err)

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	handlers.NewService(handlers.Dependencies{Viewer: v, Editor: editor.New(b)}).RegisterHandlers(d)
	return d
}

func TestRunREPL(t *testing.T) {
	d := newREPLDispatcher(t)

	script := strings.Join([]string{
		"# viewer",
		"viewer.init",
		"viewer.frame 1000 500",
		"viewer.click 500 300",
		"",
		"editor.select 1",
		"editor.frame 1000 500",
		"editor.load place '{\"x\": 4, \"y\": 8}'",
		"editor.payload",
		"bogus.command",
		"editor.type 'unterminated",
		"quit",
		"viewer.close",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, runREPL(context.Background(), strings.NewReader(script), &out, d, slog.Default()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "ready", lines[0])
	assert.Equal(t, "ok", lines[1])
	assert.Contains(t, out.String(), `"locationId": 5`)
	assert.Contains(t, out.String(), `"width": 2000`)
	assert.Contains(t, out.String(), `{"x":4,"y":8}`)
	assert.Contains(t, out.String(), "error: unknown command: bogus.command")
	assert.Contains(t, out.String(), "error: unterminated quote")

	assert.Equal(t, "content-shown", mustDispatch(t, d, "viewer.state"), "commands after quit are not run")
}

func TestRunREPL_CanceledContext(t *testing.T) {
	d := newREPLDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runREPL(ctx, strings.NewReader("viewer.init\n"), &out, d, slog.Default())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestReplAttrs(t *testing.T) {
	assert.Nil(t, replAttrs(context.Background()))

	attrs := replAttrs(context.WithValue(context.Background(), replLineKey{}, 7))
	require.Len(t, attrs, 1)
	assert.Equal(t, "line", attrs[0].Key)
	assert.Equal(t, int64(7), attrs[0].Value.Int64())
}

func mustDispatch(t *testing.T, d *dispatcher.Dispatcher, command string) any {
	t.Helper()
	result, err := d.Dispatch(context.Background(), dispatcher.Event{Command: command})
	require.NoError(t, err)
	return result
}
