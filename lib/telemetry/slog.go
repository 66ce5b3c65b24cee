package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the default logger. Verbose mode lowers the level
// to debug and adds source locations.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})))
}
