// Package logger holds the process-wide zerolog logger.
//
// Call Init once from main; packages then take a zerolog.Logger through
// their constructors, or call Get / Component when they have none.
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger behaviour at initialisation time.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Anything else is info.
	Level string
	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service is attached to every entry as the "service" field.
	Service string
}

var current atomic.Pointer[zerolog.Logger]

// Init builds the process logger. Only the first call has an effect; later
// calls return the logger already in place.
func Init(opts Options) zerolog.Logger {
	if l := current.Load(); l != nil {
		return *l
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := parseLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(lvl)

	lctx := zerolog.New(out).Level(lvl).With().Timestamp().Caller()
	if opts.Service != "" {
		lctx = lctx.Str("service", opts.Service)
	}
	l := lctx.Logger()

	if !current.CompareAndSwap(nil, &l) {
		return *current.Load()
	}
	return l
}

// Get returns the process logger. It panics before Init.
func Get() zerolog.Logger {
	l := current.Load()
	if l == nil {
		panic("logger: Get() called before Init()")
	}
	return *l
}

// Component returns the process logger tagged with a "component" field.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset drops the process logger so the next Init rebuilds it. Tests only.
func Reset() {
	current.Store(nil)
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	switch lvl {
	case zerolog.TraceLevel, zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel:
		return lvl
	default:
		return zerolog.InfoLevel
	}
}
