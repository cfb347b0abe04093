// Package logging builds the zerolog logger shared by the service
// components.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/viant/sqlite-dedup/config"
)

// Field keys used across packages.
const (
	KeyAssetID     = "asset_id"
	KeyJob         = "job"
	KeyStatus      = "status"
	KeyDuplicateID = "duplicate_id"
	KeyCandidates  = "candidates"
)

// New returns a logger writing to stderr with the configured level and
// format.
func New(cfg config.Log) zerolog.Logger {
	return NewWriter(os.Stderr, cfg)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, cfg config.Log) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
