package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/internal/dispatcher"
	"github.com/wim-maps/engine/internal/editor"
	"github.com/wim-maps/engine/internal/handlers"
	"github.com/wim-maps/engine/internal/logging"
	"github.com/wim-maps/engine/internal/overlay"
	"github.com/wim-maps/engine/internal/storage"
	"github.com/wim-maps/engine/internal/util"
	"github.com/wim-maps/engine/internal/viewer"
)

type replLineKey struct{}

// replAttrs tags records logged while a shell line is handled with its number.
func replAttrs(ctx context.Context) []slog.Attr {
	if n, ok := ctx.Value(replLineKey{}).(int); ok {
		return []slog.Attr{slog.Int("line", n)}
	}
	return nil
}

func runEdit(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: edit [map]", errUsage)
	}

	src, closeSrc, err := openSource()
	if err != nil {
		return err
	}
	defer closeSrc()
	rec, closeRec := openRecorder(ctx)
	defer closeRec()

	log := slog.New(logging.NewContextHandler(Logger.Handler(), replAttrs))

	d, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return err
	}
	defer d.Close()

	deps, err := newSessions(src, args, rec, log)
	if err != nil {
		return err
	}
	handlers.NewService(deps).RegisterHandlers(d)

	fmt.Fprintln(out, "commands:", strings.Join(d.Commands(), " "))
	return runREPL(ctx, in, out, d, log)
}

// newSessions creates an editor and, when a map is given, a viewer for it.
func newSessions(src storage.Source, args []string, rec viewer.Recorder, log *slog.Logger) (handlers.Dependencies, error) {
	style := overlay.StyleFromDisplay(config.GetDisplayConfig())
	deps := handlers.Dependencies{
		Editor: editor.New(src, editor.WithStyle(style), editor.WithLogger(log)),
		Logger: log,
	}
	if len(args) == 1 {
		mapID, err := parseUint(args[0], "map")
		if err != nil {
			return deps, err
		}
		opts := append(viewerOptions(rec), viewer.WithLogger(log))
		v, err := viewer.New(src, mapID, opts...)
		if err != nil {
			return deps, err
		}
		deps.Viewer = v
	}
	return deps, nil
}

// runREPL reads one command per line, dispatches it and prints the result.
// Blank lines and lines starting with # are ignored. A failing command is
// reported and the loop continues; it ends at EOF, "quit" or when ctx is done.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, d *dispatcher.Dispatcher, log *slog.Logger) error {
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if text == "quit" || text == "exit" {
			return nil
		}

		fields, err := util.SplitArgs(text)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		lineCtx := context.WithValue(ctx, replLineKey{}, line)
		log.DebugContext(lineCtx, "Dispatching", "command", fields[0], "args", len(fields)-1)

		result, err := d.Dispatch(lineCtx, dispatcher.Event{Command: fields[0], Args: fields[1:]})
		if err != nil {
			log.WarnContext(lineCtx, "Command failed", "command", fields[0], "error", err)
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := printResult(out, result); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func printResult(out io.Writer, result any) error {
	switch r := result.(type) {
	case nil:
		_, err := fmt.Fprintln(out, "ok")
		return err
	case string:
		if r == "" {
			r = "(none)"
		}
		_, err := fmt.Fprintln(out, r)
		return err
	default:
		return writeJSON(out, r)
	}
}
