package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "kerkhof"

// New builds the process logger. The local environment gets a human readable
// console writer, every other environment logs JSON lines to stdout.
func New(environment, level string) (zerolog.Logger, error) {
	var writer io.Writer = os.Stdout
	if isLocal(environment) {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	return NewWithWriter(writer, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(writer io.Writer, level string) (zerolog.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}
	if writer == nil {
		writer = io.Discard
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return logger, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return zerolog.InfoLevel, nil
	}
	parsed, err := zerolog.ParseLevel(normalized)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
	}
	return parsed, nil
}

func isLocal(environment string) bool {
	return strings.EqualFold(strings.TrimSpace(environment), "local")
}
