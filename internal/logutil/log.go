package logutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	key byte

	UnknownFormat struct {
		Format string
	}
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	loggerKey = key(1)
)

func (u UnknownFormat) Error() string {
	return fmt.Sprintf("logutil: unknown log format %q, use %v or %v", u.Format, FormatConsole, FormatJSON)
}

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func GetOrDefault(ctx context.Context) zerolog.Logger {
	v := ctx.Value(loggerKey)
	if v == nil {
		return log.Logger
	}
	return v.(zerolog.Logger)
}

// New builds the process logger. out defaults to stderr.
func New(out io.Writer, level, format string) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("logutil: invalid level %q, cause %w", level, err)
		}
	}
	switch strings.ToLower(format) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), UnknownFormat{Format: format}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
