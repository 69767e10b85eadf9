package logger

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Setup returns the process logger. Debug mode switches to a human
// readable console writer when stderr is a terminal.
func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

// New returns a logger writing to out.
func New(out io.Writer, dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:     out,
			NoColor: !IsTerminal(out),
			FormatTimestamp: func(i any) string {
				return time.Now().Format(time.RFC3339)
			},
		}).Level(level).With().Caller().Stack().Logger()
	}

	return logger
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
