package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// Options selects the sinks used by SlogManager.Setup.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Console receives text output. Nil means os.Stdout unless File is set.
	Console io.Writer
	// File receives text output in addition to the console.
	File io.Writer
	// GraylogAddress enables a GELF UDP sink when non-empty.
	GraylogAddress string
	// Context adds dynamic attributes to every record.
	Context ContextProvider
}

// SlogManager manages slog-based logging with an optional Graylog sink.
type SlogManager struct {
	logger *slog.Logger
	gelf   *gelf.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup (re)builds the logger. Calling it again closes the previous Graylog
// writer.
func (m *SlogManager) Setup(opts Options) error {
	if err := m.Close(); err != nil {
		return err
	}

	hopts := handlerOptions(parseLevel(opts.Level))

	var handlers []slog.Handler

	console := opts.Console
	if console == nil && opts.File == nil {
		console = os.Stdout
	}
	if console != nil {
		handlers = append(handlers, slog.NewTextHandler(console, hopts))
	}
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, hopts))
	}

	if opts.GraylogAddress != "" {
		w, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			return fmt.Errorf("failed to connect to graylog at %s: %w", opts.GraylogAddress, err)
		}
		m.gelf = w
		handlers = append(handlers, slog.NewJSONHandler(w, hopts))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}

	m.logger = slog.New(h)
	m.logger.Debug("logging initialized", "level", parseLevel(opts.Level).String(), "graylog", m.gelf != nil)
	return nil
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Close releases the Graylog connection if one is open.
func (m *SlogManager) Close() error {
	if m.gelf == nil {
		return nil
	}
	err := m.gelf.Close()
	m.gelf = nil
	return err
}
