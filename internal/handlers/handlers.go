// Package handlers exposes a viewer and an editor as dispatcher commands.
// Every command takes string arguments so the same handlers serve the
// interactive shell and scripted input.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wim-maps/engine/internal/dispatcher"
	"github.com/wim-maps/engine/internal/editor"
	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/internal/viewer"
	"github.com/wim-maps/engine/pkg/core"
)

// ErrInvalidArgs is returned when a command receives malformed arguments.
var ErrInvalidArgs = errors.New("invalid arguments")

// hoverQueueSize bounds pending hover events; hovers are dropped when it fills.
const hoverQueueSize = 64

// Dependencies holds the sessions commands act on. Either may be nil, in
// which case its commands are not registered.
type Dependencies struct {
	Viewer *viewer.Viewer
	Editor *editor.Editor
	Logger *slog.Logger
}

// Service handles viewer and editor commands.
type Service struct {
	deps Dependencies
	log  *slog.Logger
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{deps: deps, log: log}
}

// ClickResult is returned by viewer.click and viewer.hover.
type ClickResult struct {
	LocationID uint `json:"locationId"`
	Hit        bool `json:"hit"`
}

// FinishResult is returned by editor.finish. Message is the text to show the
// user when the polygon could not be closed.
type FinishResult struct {
	Finished bool   `json:"finished"`
	Message  string `json:"message,omitempty"`
}

// RegisterHandlers registers all commands with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	if s.deps.Viewer != nil {
		d.Register("viewer.init", s.handleViewerInit, dispatcher.Logged())
		d.Register("viewer.frame", s.handleViewerFrame, dispatcher.Logged())
		d.Register("viewer.resize", s.handleViewerResize, dispatcher.Logged())
		d.Register("viewer.click", s.handleViewerClick, dispatcher.Logged())
		d.Register("viewer.activate", s.handleViewerActivate, dispatcher.Logged())
		d.Register("viewer.close", s.handleViewerClose, dispatcher.Logged())
		d.Register("viewer.hover", s.handleViewerHover, dispatcher.Buffered(hoverQueueSize))
		d.Register("viewer.highlight", s.handleViewerHighlight, dispatcher.Logged())
		d.Register("viewer.unhover", s.handleViewerUnhover)
		d.Register("viewer.panel", s.handleViewerPanel)
		d.Register("viewer.svg", s.handleViewerSVG)
		d.Register("viewer.state", s.handleViewerState)
	}

	if s.deps.Editor != nil {
		d.Register("editor.select", s.handleEditorSelect, dispatcher.Logged())
		d.Register("editor.type", s.handleEditorType, dispatcher.Logged())
		d.Register("editor.load", s.handleEditorLoad, dispatcher.Logged())
		d.Register("editor.frame", s.handleEditorFrame, dispatcher.Logged())
		d.Register("editor.resize", s.handleEditorResize, dispatcher.Logged())
		d.Register("editor.click", s.handleEditorClick, dispatcher.Logged())
		d.Register("editor.clear", s.handleEditorClear, dispatcher.Logged())
		d.Register("editor.finish", s.handleEditorFinish, dispatcher.Logged())
		d.Register("editor.payload", s.handleEditorPayload)
		d.Register("editor.svg", s.handleEditorSVG)
	}
}

// Viewer commands

func (s *Service) handleViewerInit(ctx context.Context, _ dispatcher.Event) (any, error) {
	v := s.deps.Viewer
	if err := v.Init(ctx); err != nil {
		if errors.Is(err, viewer.ErrDataUnavailable) {
			// The failure is part of the viewer state; callers read the message.
			s.log.Warn("Map unavailable", "error", err)
			return v.Message(), nil
		}
		return nil, err
	}
	return v.State().String(), nil
}

func (s *Service) handleViewerFrame(_ context.Context, e dispatcher.Event) (any, error) {
	frame, err := parseFrame(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	return nil, s.deps.Viewer.FrameReady(frame)
}

func (s *Service) handleViewerResize(_ context.Context, e dispatcher.Event) (any, error) {
	frame, err := parseFrame(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	return nil, s.deps.Viewer.Resize(frame)
}

func (s *Service) handleViewerClick(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := parsePoint(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse click: %w", err)
	}
	id, ok := s.deps.Viewer.Click(p)
	return ClickResult{LocationID: id, Hit: ok}, nil
}

func (s *Service) handleViewerActivate(_ context.Context, e dispatcher.Event) (any, error) {
	id, err := parseID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse location: %w", err)
	}
	if err := s.deps.Viewer.Activate(id); err != nil {
		return nil, err
	}
	p, _ := s.deps.Viewer.Panel()
	return p, nil
}

func (s *Service) handleViewerClose(_ context.Context, _ dispatcher.Event) (any, error) {
	s.deps.Viewer.Close()
	return nil, nil
}

func (s *Service) handleViewerHover(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := parsePoint(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hover: %w", err)
	}
	id, ok := s.deps.Viewer.Hover(p)
	return ClickResult{LocationID: id, Hit: ok}, nil
}

// handleViewerHighlight hovers a location by ID, as a list entry does.
func (s *Service) handleViewerHighlight(_ context.Context, e dispatcher.Event) (any, error) {
	id, err := parseID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse highlight: %w", err)
	}
	return ClickResult{LocationID: id, Hit: s.deps.Viewer.HoverLocation(id)}, nil
}

func (s *Service) handleViewerUnhover(_ context.Context, _ dispatcher.Event) (any, error) {
	s.deps.Viewer.Unhover()
	return nil, nil
}

func (s *Service) handleViewerPanel(_ context.Context, _ dispatcher.Event) (any, error) {
	p, ok := s.deps.Viewer.Panel()
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (s *Service) handleViewerSVG(_ context.Context, _ dispatcher.Event) (any, error) {
	return s.deps.Viewer.SVG()
}

func (s *Service) handleViewerState(_ context.Context, _ dispatcher.Event) (any, error) {
	return s.deps.Viewer.State().String(), nil
}

// Editor commands

func (s *Service) handleEditorSelect(ctx context.Context, e dispatcher.Event) (any, error) {
	id, err := parseOptionalID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse map: %w", err)
	}
	if err := s.deps.Editor.SelectMap(ctx, id); err != nil {
		return nil, err
	}
	return s.deps.Editor.MapData(), nil
}

func (s *Service) handleEditorType(_ context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("%w: expected 1 arg, got %d", ErrInvalidArgs, len(e.Args))
	}
	kind, err := core.ParseLocationType(e.Args[0])
	if err != nil {
		return nil, err
	}
	return nil, s.deps.Editor.SetType(kind)
}

func (s *Service) handleEditorLoad(_ context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 && len(e.Args) != 2 {
		return nil, fmt.Errorf("%w: expected 1 or 2 args, got %d", ErrInvalidArgs, len(e.Args))
	}
	kind, err := core.ParseLocationType(e.Args[0])
	if err != nil {
		return nil, err
	}
	var raw []byte
	if len(e.Args) == 2 {
		raw = []byte(e.Args[1])
	}
	return nil, s.deps.Editor.LoadExisting(kind, raw)
}

func (s *Service) handleEditorFrame(_ context.Context, e dispatcher.Event) (any, error) {
	frame, err := parseFrame(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	return nil, s.deps.Editor.FrameReady(frame)
}

func (s *Service) handleEditorResize(_ context.Context, e dispatcher.Event) (any, error) {
	frame, err := parseFrame(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	return nil, s.deps.Editor.Resize(frame)
}

func (s *Service) handleEditorClick(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := parsePoint(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse click: %w", err)
	}
	return s.deps.Editor.Click(p)
}

func (s *Service) handleEditorClear(_ context.Context, _ dispatcher.Event) (any, error) {
	s.deps.Editor.ClearPolygon()
	return nil, nil
}

func (s *Service) handleEditorFinish(_ context.Context, _ dispatcher.Event) (any, error) {
	err := s.deps.Editor.FinishPolygon()
	if msg := editor.Message(err); msg != "" {
		return FinishResult{Finished: false, Message: msg}, nil
	}
	if err != nil {
		return nil, err
	}
	return FinishResult{Finished: true}, nil
}

func (s *Service) handleEditorPayload(_ context.Context, _ dispatcher.Event) (any, error) {
	coords, ok := s.deps.Editor.Payload()
	if !ok {
		return "", nil
	}
	raw, err := coords.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *Service) handleEditorSVG(_ context.Context, _ dispatcher.Event) (any, error) {
	scene, err := s.deps.Editor.Scene()
	if err != nil {
		return nil, err
	}
	return scene.SVG()
}

// Argument parsing

func parseFloats(args []string, want int) ([]float64, error) {
	if len(args) != want {
		return nil, fmt.Errorf("%w: expected %d args, got %d", ErrInvalidArgs, want, len(args))
	}
	out := make([]float64, want)
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: arg %d: %v", ErrInvalidArgs, i, err)
		}
		out[i] = f
	}
	return out, nil
}

func parsePoint(args []string) (core.Point, error) {
	f, err := parseFloats(args, 2)
	if err != nil {
		return core.Point{}, err
	}
	return core.Point{X: f[0], Y: f[1]}, nil
}

func parseFrame(args []string) (geo.RenderFrame, error) {
	f, err := parseFloats(args, 2)
	if err != nil {
		return geo.RenderFrame{}, err
	}
	return geo.RenderFrame{Width: f[0], Height: f[1]}, nil
}

func parseID(args []string) (uint, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected 1 arg, got %d", ErrInvalidArgs, len(args))
	}
	id, err := strconv.ParseUint(args[0], 10, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return uint(id), nil
}

func parseOptionalID(args []string) (uint, error) {
	if len(args) == 0 {
		return 0, nil
	}
	return parseID(args)
}
