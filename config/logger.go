package config

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

type contextKey string

const loggerKey = contextKey("logger")

// NewLogger returns a logger at level writing text or json to file, or to
// stderr when file is empty.
func NewLogger(level, format, file string) (*logrus.Logger, error) {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: file == ""})
	default:
		return nil, fmt.Errorf("unknown log format %q, want text or json", format)
	}

	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file: %w", err)
		}
		logger.SetOutput(f)
	} else {
		logger.SetOutput(os.Stderr)
	}
	return logger, nil
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the logger of ctx, or a warn level stderr
// logger when there is none.
func LoggerFromContext(ctx context.Context) *logrus.Logger {
	logger, ok := ctx.Value(loggerKey).(*logrus.Logger)
	if !ok {
		fallback := logrus.New()
		fallback.SetLevel(logrus.WarnLevel)
		fallback.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		return fallback
	}
	return logger
}
