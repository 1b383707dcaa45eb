package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/internal/imagery"
	"github.com/wim-maps/engine/internal/storage"
	"github.com/wim-maps/engine/internal/viewer"
	"github.com/wim-maps/engine/pkg/core"
)

var errUsage = errors.New("wrong number of arguments")

func parseUint(s, name string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return uint(n), nil
}

func parseFloat(s, name string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return f, nil
}

func parseFrameArgs(w, h string) (geo.RenderFrame, error) {
	width, err := parseFloat(w, "width")
	if err != nil {
		return geo.RenderFrame{}, err
	}
	height, err := parseFloat(h, "height")
	if err != nil {
		return geo.RenderFrame{}, err
	}
	return geo.RenderFrame{Width: width, Height: height}, nil
}

// loadViewer initializes a viewer and delivers the render frame.
func loadViewer(ctx context.Context, src viewer.Source, mapID uint, frame geo.RenderFrame, opts ...viewer.Option) (*viewer.Viewer, error) {
	v, err := viewer.New(src, mapID, opts...)
	if err != nil {
		return nil, err
	}
	if err := v.Init(ctx); err != nil {
		return nil, err
	}
	if err := v.FrameReady(frame); err != nil {
		return nil, err
	}
	return v, nil
}

// renderMap returns the overlay SVG of a map, optionally with one location active.
func renderMap(ctx context.Context, src viewer.Source, mapID uint, frame geo.RenderFrame, active uint, opts ...viewer.Option) (string, error) {
	v, err := loadViewer(ctx, src, mapID, frame, opts...)
	if err != nil {
		return "", err
	}
	if active != 0 {
		if err := v.Activate(active); err != nil {
			return "", err
		}
	}
	return v.SVG()
}

// clickMap resolves a click on a rendered map to the content panel it opens.
func clickMap(ctx context.Context, src viewer.Source, mapID uint, frame geo.RenderFrame, at core.Point, opts ...viewer.Option) (viewer.Panel, bool, error) {
	v, err := loadViewer(ctx, src, mapID, frame, opts...)
	if err != nil {
		return viewer.Panel{}, false, err
	}
	if _, ok := v.Click(at); !ok {
		return viewer.Panel{}, false, nil
	}
	p, ok := v.Panel()
	return p, ok, nil
}

func runRender(ctx context.Context, out io.Writer, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return fmt.Errorf("%w: render <map> <width> <height> [location]", errUsage)
	}
	mapID, err := parseUint(args[0], "map")
	if err != nil {
		return err
	}
	frame, err := parseFrameArgs(args[1], args[2])
	if err != nil {
		return err
	}
	var active uint
	if len(args) == 4 {
		if active, err = parseUint(args[3], "location"); err != nil {
			return err
		}
	}

	src, closeSrc, err := openSource()
	if err != nil {
		return err
	}
	defer closeSrc()
	rec, closeRec := openRecorder(ctx)
	defer closeRec()

	svg, err := renderMap(ctx, src, mapID, frame, active, viewerOptions(rec)...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, svg)
	return err
}

func runClick(ctx context.Context, out io.Writer, args []string) error {
	if len(args) != 5 {
		return fmt.Errorf("%w: click <map> <width> <height> <x> <y>", errUsage)
	}
	mapID, err := parseUint(args[0], "map")
	if err != nil {
		return err
	}
	frame, err := parseFrameArgs(args[1], args[2])
	if err != nil {
		return err
	}
	x, err := parseFloat(args[3], "x")
	if err != nil {
		return err
	}
	y, err := parseFloat(args[4], "y")
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource()
	if err != nil {
		return err
	}
	defer closeSrc()
	rec, closeRec := openRecorder(ctx)
	defer closeRec()

	panel, ok, err := clickMap(ctx, src, mapID, frame, core.Point{X: x, Y: y}, viewerOptions(rec)...)
	if err != nil {
		return err
	}
	if !ok {
		_, err = fmt.Fprintln(out, "no location at this position")
		return err
	}
	return writeJSON(out, panel)
}

// prober reads the native size of a map image.
type prober func(ctx context.Context, location string) (imagery.Info, error)

// seedMaps saves maps and their locations. A map without native dimensions is
// measured with probe first. Locations whose stored coordinates could not be
// decoded are skipped. It returns the number of maps and locations saved.
func seedMaps(ctx context.Context, w storage.Writer, maps []core.Map, probe prober) (int, int, error) {
	var savedMaps, savedLocations int
	for i := range maps {
		m := maps[i]
		if m.NativeWidth <= 0 || m.NativeHeight <= 0 {
			info, err := probe(ctx, m.ImageURL)
			if err != nil {
				return savedMaps, savedLocations, fmt.Errorf("map %q: probe image: %w", m.Title, err)
			}
			m.NativeWidth, m.NativeHeight = info.Width, info.Height
			Logger.Info("Captured native dimensions", "map", m.Title, "width", info.Width, "height", info.Height, "format", info.Format)
		}

		locations := m.Locations
		m.Locations = nil
		if err := w.SaveMap(ctx, &m); err != nil {
			return savedMaps, savedLocations, fmt.Errorf("map %q: %w", m.Title, err)
		}
		savedMaps++

		for j := range locations {
			l := locations[j]
			if l.CoordinatesErr != nil {
				Logger.Warn("Skipping location with invalid coordinates", "map", m.ID, "location", l.Title, "error", l.CoordinatesErr)
				continue
			}
			l.MapID = m.ID
			if err := w.SaveLocation(ctx, &l); err != nil {
				return savedMaps, savedLocations, fmt.Errorf("location %q: %w", l.Title, err)
			}
			savedLocations++
		}
	}
	return savedMaps, savedLocations, nil
}

func runSeed(ctx context.Context, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: seed <file.json>", errUsage)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var maps []core.Map
	if err := json.Unmarshal(data, &maps); err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}

	cfg := config.GetStorageConfig()
	if cfg.Type == "memory" {
		Logger.Warn("Seeding the memory store only validates the input")
	}
	backend, err := storage.NewBackend(cfg, ZLogger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.Type, err)
	}
	defer backend.Close()

	nMaps, nLocations, err := seedMaps(ctx, backend, maps, imagery.Probe)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "seeded %d maps and %d locations into %s storage\n", nMaps, nLocations, cfg.Type)
	return err
}

func runProbe(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: probe <url|path>...", errUsage)
	}
	var errs []error
	for _, loc := range args {
		info, err := imagery.Probe(ctx, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", loc, err))
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%dx%d\n", loc, info.Format, info.Width, info.Height)
	}
	return errors.Join(errs...)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
