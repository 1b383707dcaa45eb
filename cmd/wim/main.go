package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/internal/influx"
	"github.com/wim-maps/engine/internal/logging"
	"github.com/wim-maps/engine/internal/overlay"
	"github.com/wim-maps/engine/internal/storage"
	"github.com/wim-maps/engine/internal/viewer"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "wim"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// ZLogger is used by the storage, influx and dispatcher layers
	ZLogger zerolog.Logger

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()
)

const usage = `usage: wim <command> [args]

commands:
  render <map> <width> <height> [location]   print the overlay SVG of a map
  click <map> <width> <height> <x> <y>       print the location shown for a click
  edit [map]                                 interactive viewer/editor shell
  seed <file.json>                           import maps into the configured store
  probe <url|path>...                        print the native size of images
  version                                    print the version
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command := strings.ToLower(args[0])
	if command == "version" {
		fmt.Println(CurrentVersion, BuildDate)
		return
	}

	setupLogging(command)
	defer closeLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch command {
	case "render":
		err = runRender(ctx, os.Stdout, args[1:])
	case "click":
		err = runClick(ctx, os.Stdout, args[1:])
	case "edit":
		err = runEdit(ctx, os.Stdin, os.Stdout, args[1:])
	case "seed":
		err = runSeed(ctx, os.Stdout, args[1:])
	case "probe":
		err = runProbe(ctx, os.Stdout, args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		Logger.Error("Command failed", "command", command, "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		closeLogging()
		os.Exit(1)
	}
}

// setupLogging loads the configuration and opens the log sinks. Records go to
// a per-run file in logsDir, falling back to the console when it cannot be created.
func setupLogging(command string) {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	configDir, err := os.Getwd()
	if err != nil {
		configDir = "."
	}
	if env := os.Getenv("WIM_CONFIG_DIR"); env != "" {
		configDir = env
	}
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			Logger.Warn("Failed to create logs directory", "path", logsDir, "error", err)
		}
	}

	LogFilePath = logging.LogFilePath(logsDir, command, SessionStartTime)
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Warn("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	var graylog logging.MessageWriter
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address, AppName)
		if err != nil {
			Logger.Warn("Failed to connect to Graylog", "address", gl.Address, "error", err)
		} else {
			graylog = w
		}
	}

	var out io.Writer = os.Stderr
	if LogFile != nil {
		out = LogFile
		SlogManager.Setup(LogFile, config.GetString("logLevel"), graylog)
	} else {
		SlogManager.Setup(nil, config.GetString("logLevel"), graylog)
	}
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	level, err := zerolog.ParseLevel(strings.ToLower(config.GetString("logLevel")))
	if err != nil {
		level = zerolog.InfoLevel
	}
	ZLogger = zerolog.New(out).Level(level).With().Timestamp().Str("app", AppName).Logger()

	Logger.Info("Starting", "command", command, "version", CurrentVersion, "log", LogFilePath)
}

func closeLogging() {
	if SlogManager != nil {
		if err := SlogManager.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close graylog writer:", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
		LogFile = nil
	}
}

// openSource returns the configured read side, wrapped in the cache if enabled.
func openSource() (storage.Source, func() error, error) {
	return storage.NewSource(
		config.GetStorageConfig(),
		config.GetAPIConfig(),
		config.GetCacheConfig(),
		ZLogger,
	)
}

// openRecorder connects interaction telemetry. It returns nil when telemetry
// is disabled or could not be set up; the close function is always safe to call.
func openRecorder(ctx context.Context) (viewer.Recorder, func()) {
	backup := filepath.Join(config.GetString("logsDir"), fmt.Sprintf("%s_influx_%s.gz", AppName, SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(ZLogger, config.GetInfluxConfig(), backup)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.Connect(connectCtx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			Logger.Warn("Interaction telemetry unavailable", "error", err)
		}
		return nil, func() {}
	}
	return m, func() {
		if err := m.Close(); err != nil {
			Logger.Warn("Failed to close telemetry", "error", err)
		}
	}
}

// viewerOptions builds the viewer options from the display configuration.
func viewerOptions(rec viewer.Recorder) []viewer.Option {
	display := config.GetDisplayConfig()
	opts := []viewer.Option{
		viewer.WithStyle(overlay.StyleFromDisplay(display)),
		viewer.WithLayout(viewer.ParseLayout(display.Layout)),
		viewer.WithLogger(Logger),
	}
	if rec != nil {
		opts = append(opts, viewer.WithRecorder(rec))
	}
	return opts
}
