// Package logging builds the zerolog loggers used across phonecheck.
//
// Loggers are values: callers create one from a Config at startup and hand
// derived component loggers to the packages that need them. Every run gets a
// ULID run ID so log lines from a single invocation can be correlated, even
// when several runs append to the same log file.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Supported log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// logFileMode is the permission used when creating log files.
const logFileMode = 0600

// runIDKey is the context key for the run ID.
type runIDKey struct{}

// Config describes how a logger is built.
type Config struct {
	// Level is a zerolog level name ("debug", "info", ...). Defaults to info.
	Level string

	// Format is "console" (human readable) or "json".
	Format string

	// File, when set, receives log output in addition to the console writer.
	File string
}

// Result carries a built logger plus the file handle that must be closed.
type Result struct {
	Logger zerolog.Logger
	file   *os.File
}

// Close releases the log file, if one was opened.
func (r *Result) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NewLogger builds a logger writing to w (and to cfg.File when set).
// An unknown level falls back to info; an unknown format falls back to console.
func NewLogger(cfg Config, w io.Writer) (*Result, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	if strings.EqualFold(cfg.Format, FormatJSON) {
		writers = append(writers, w)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}

	result := &Result{}
	if cfg.File != "" {
		f, openErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode)
		if openErr != nil {
			return nil, fmt.Errorf("opening log file %s: %w", cfg.File, openErr)
		}
		result.file = f
		writers = append(writers, f)
	}

	result.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return result, nil
}

// ComponentLogger returns a child logger tagged with the component name.
func ComponentLogger(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// NewRunID returns a fresh, time-ordered run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// ContextWithRunID stores runID in ctx.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetOrGenerateRunID returns the run ID in ctx, generating one when absent.
func GetOrGenerateRunID(ctx context.Context) string {
	if id := RunIDFromContext(ctx); id != "" {
		return id
	}
	return NewRunID()
}

// FromContext returns the logger attached to ctx with zerolog.Ctx, enriched
// with the run ID when one is present.
func FromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if id := RunIDFromContext(ctx); id != "" {
		enriched := l.With().Str("run_id", id).Logger()
		return &enriched
	}
	return l
}
