// Package logging configures the process-wide slog logger shared by the
// rendezvous server and the CLI. Output goes to stderr so it never
// interleaves with the CLI's terminal rendering on stdout.
package logging

import (
	"log/slog"
	"os"
)

// Init installs the default logger. The level comes from LOG_LEVEL; unset
// or unrecognized values keep the production default of errors only.
func Init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	slog.SetDefault(slog.New(handler))
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
