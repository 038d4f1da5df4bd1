package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var (
	diag     *zerolog.Logger
	diagFile *os.File
)

// Init configures the diagnostic logger. Output goes to stderr, and to file
// as well when one is given, so stdout stays free for command results.
func Init(level string, file string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if err := Close(); err != nil {
		return err
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		diagFile = f
		out = zerolog.MultiLevelWriter(out, f)
	}

	l := zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	diag = &l
	return nil
}

// Close releases the log file opened by Init, if any, and drops back to the
// discarding logger.
func Close() error {
	diag = nil
	if diagFile == nil {
		return nil
	}
	err := diagFile.Close()
	diagFile = nil
	return err
}

// Get returns the diagnostic logger, or a discarding one before Init.
func Get() *zerolog.Logger {
	if diag == nil {
		l := zerolog.New(io.Discard)
		diag = &l
	}
	return diag
}
