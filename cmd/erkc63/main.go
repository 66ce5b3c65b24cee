package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"erkc63/cmd/erkc63/commands"
	"erkc63/lib/telemetry"
)

func main() {
	telemetry.InitSlog(false)
	// a missing telemetry.json5 just means telemetry is off
	_, err := telemetry.SetupFromEnv(context.Background(), "erkc63")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to set up telemetry", "err", err)
	}
	commands.ExecuteContext(context.Background())
}
