// Package logging configures structured logging with slog: tint for readable console output,
// JSON for shipping, and lumberjack for rotated log files.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/config"
	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds the logger described by cfg and installs it as the slog default, which also
// routes the standard log package through it. The returned sink receives every log line and
// is shared with the HTTP access log; close it on shutdown.
func Setup(cfg config.LoggingConfig) (*slog.Logger, io.WriteCloser) {
	sink := newSink(cfg)
	logger := slog.New(newHandler(cfg, sink))

	slog.SetDefault(logger)
	log.SetFlags(0)

	return logger, sink
}

func newHandler(cfg config.LoggingConfig, w io.Writer) slog.Handler {
	level := ParseLevel(cfg.Level)
	if strings.EqualFold(cfg.Format, "text") {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			AddSource:  cfg.AddSource,
			NoColor:    cfg.Output != "stdout",
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	})
}

func newSink(cfg config.LoggingConfig) io.WriteCloser {
	var file *lumberjack.Logger
	if cfg.Output == "file" || cfg.Output == "both" {
		file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}

	switch {
	case file != nil && cfg.Output == "both":
		return sink{Writer: io.MultiWriter(os.Stdout, file), closer: file}
	case file != nil:
		return file
	default:
		return sink{Writer: os.Stdout}
	}
}

// sink pairs a writer with the file that must be closed, if any
type sink struct {
	io.Writer
	closer io.Closer
}

func (s sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ParseLevel maps debug, info, warn and error to slog levels, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
