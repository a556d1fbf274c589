package log

import (
	"log/slog"
	"os"
	"slices"
	"strings"
)

// InitFromEnv installs the debug text handler as the default slog logger
// when DEBUG is set to a truthy value. Otherwise the standard library
// default logger (info level, stderr) is left untouched.
func InitFromEnv() {
	debugValues := []string{"1", "true", "yes"}
	if slices.Contains(debugValues, strings.ToLower(os.Getenv("DEBUG"))) {
		logger := slog.New(NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		slog.SetDefault(logger)
	}
	slog.Debug("logger initialized")
}
