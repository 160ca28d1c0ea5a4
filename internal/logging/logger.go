package logging

import (
	"log/slog"
	"os"
)

// Logger is the application-wide structured logger instance.
var Logger *slog.Logger

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// WithBrand returns a logger with brand_id field. Uses the process-wide
// default handler, so it works before InitLogger has run.
func WithBrand(brandID string) *slog.Logger {
	return slog.Default().With("brand_id", brandID)
}

// WithBooth returns a logger with booth_id field.
func WithBooth(boothID string) *slog.Logger {
	return slog.Default().With("booth_id", boothID)
}

// WithSale returns a logger with sale_id field.
func WithSale(saleID string) *slog.Logger {
	return slog.Default().With("sale_id", saleID)
}
