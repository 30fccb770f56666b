package logger

import (
	"log/slog"
	"os"
)

const serviceName = "catalog-api"

// New builds the process-wide logger. Output is always JSON, tagged with the
// service name; local and dev environments log at debug so renewal and
// selection-reconciliation traces show up.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", serviceName, "env", appEnv)
}
