// Package logger is the process-wide structured logger. It writes to stderr so
// that operator output on stdout stays clean.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kajih/proto-zmq/pkg/utils"
)

const EnvProduction = "production"

var log = zerolog.New(utils.ZerologConsoleWriter(os.Stderr)).
	With().Timestamp().Logger().
	Level(zerolog.InfoLevel)

// Init configures the global logger. Production writes JSON lines, every other
// environment uses the console writer.
func Init(environment string, debug bool) {
	var out io.Writer = os.Stderr
	if environment != EnvProduction {
		out = utils.ZerologConsoleWriter(os.Stderr)
	}
	InitWithWriter(out, debug)
}

// InitWithWriter replaces the logger output; used by tests.
func InitWithWriter(out io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	log = zerolog.New(out).With().Timestamp().Logger().Level(level)
}

// SetLevel sets the minimum level from its name (debug, info, warn, error).
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log = log.Level(lvl)
	return nil
}

func Debug(msg string, keyvals ...interface{}) {
	withFields(log.Debug(), keyvals).Msg(msg)
}

func Info(msg string, keyvals ...interface{}) {
	withFields(log.Info(), keyvals).Msg(msg)
}

func Warn(msg string, keyvals ...interface{}) {
	withFields(log.Warn(), keyvals).Msg(msg)
}

// Error logs msg with err attached. err may be nil.
func Error(msg string, err error, keyvals ...interface{}) {
	withFields(log.Error().Err(err), keyvals).Msg(msg)
}

func withFields(e *zerolog.Event, keyvals []interface{}) *zerolog.Event {
	if len(keyvals) == 0 {
		return e
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "(MISSING)")
	}
	return e.Fields(keyvals)
}
