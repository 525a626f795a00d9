package logs

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

const logFile = "quasar.log"

// FileLogger returns a logger that appends JSON records to the debug log file.
func FileLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}

	f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return ConsoleLogger()
	}

	return slog.New(slog.NewJSONHandler(f, opts))
}

func ConsoleLogger() *slog.Logger {
	w := os.Stderr

	logger := slog.New(tint.NewHandler(w, nil))

	// set global logger with custom options
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelWarn,
			TimeFormat: time.Kitchen,
		}),
	))
	return logger
}

// SetLevel reconfigures the default logger's console level.
func SetLevel(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}
