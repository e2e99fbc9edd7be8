package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Options controls logger construction. Environment and RunID are
// added as context fields when non-empty.
type Options struct {
	Level       string
	Format      string // "json" or "console"
	Environment string
	RunID       string
}

// New creates a structured zerolog.Logger writing to stderr so that
// command output on stdout stays machine-readable.
func New(opts Options) zerolog.Logger {
	var out io.Writer = os.Stderr
	if opts.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.Environment != "" {
		ctx = ctx.Str("environment", opts.Environment)
	}
	if opts.RunID != "" {
		ctx = ctx.Str("run_id", opts.RunID)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
