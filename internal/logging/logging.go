// Package logging provides the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

var level = new(slog.LevelVar)

var logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

// Logger returns the process logger.
func Logger() *slog.Logger {
	return logger
}

// SetLevel adjusts the minimum level of the process logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}
