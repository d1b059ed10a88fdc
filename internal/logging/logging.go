// Package logging builds the manager's logger.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options controls log construction.
type Options struct {
	// NoColor forces plain output regardless of terminal detection.
	NoColor bool
	// Verbose lowers the level to debug.
	Verbose bool
	// Out defaults to stdout.
	Out io.Writer
}

// New returns a zerolog logger. Interactive runs get the console
// writer; cron and pipes get JSON lines.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	writer := out
	if file, ok := out.(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		writer = zerolog.ConsoleWriter{
			Out:     out,
			NoColor: opts.NoColor || os.Getenv("TERM") == "dumb",
		}
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
