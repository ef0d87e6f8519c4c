package logger

import (
	"io"
	"os"
	"strings"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is usable before Init; it falls back to the process default logger.
var Log = slog.Default()

func Init(logFilePath string, level string) {
	var writer io.Writer = os.Stdout
	if logFilePath != "" {
		writer = io.MultiWriter(os.Stdout, rotator(logFilePath))
	}
	install(writer, level)
}

// InitFileOnly keeps stdout clean for commands that own the terminal. Without
// a path, logs are discarded.
func InitFileOnly(logFilePath string, level string) {
	writer := io.Discard
	if logFilePath != "" {
		writer = rotator(logFilePath)
	}
	install(writer, level)
}

func rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 0,  // only one file
		MaxAge:     0,  // ignore age
		Compress:   false,
	}
}

func install(w io.Writer, level string) {
	Log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(Log)
}

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
