// Package logger owns the process zerolog root and request scoped children
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"arledger/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the logging type handed to every package
type Logger = zerolog.Logger

// Options shape the root logger
type Options struct {
	Level   string
	Format  string // console or json
	Service string
	Caller  bool
	Writer  io.Writer
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE and LOG_CALLER
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:   rc.Get("LEVEL", "debug"),
		Format:  strings.ToLower(rc.Get("FORMAT", "console")),
		Service: rc.Get("SERVICE", ""),
		Caller:  rc.GetBool("CALLER", false),
	}
}

var (
	once sync.Once
	root atomic.Pointer[zerolog.Logger]
)

// Init builds the root logger, only the first call has an effect
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var w io.Writer = os.Stdout
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}
		zc := zerolog.New(w).Level(level(opt.Level)).With().Timestamp()
		if opt.Service != "" {
			zc = zc.Str("service", opt.Service)
		}
		if opt.Caller {
			zc = zc.Caller()
		}
		l := zc.Logger()
		root.Store(&l)
	})
}

// level falls back to debug for anything zerolog does not know
func level(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.DebugLevel
	}
	return lvl
}

// Get returns the root, initializing it from the environment on first use
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return root.Load()
}

// Named returns a child tagged with component
func Named(component string) *Logger {
	l := Get().With().Str("component", component).Logger()
	return &l
}

type fieldsKey struct{}

// With adds a string field that C attaches to every line logged under ctx
func With(ctx context.Context, key, value string) context.Context {
	if value == "" {
		return ctx
	}
	prev, _ := ctx.Value(fieldsKey{}).([][2]string)
	next := make([][2]string, len(prev), len(prev)+1)
	copy(next, prev)
	return context.WithValue(ctx, fieldsKey{}, append(next, [2]string{key, value}))
}

// C returns a child of the root carrying the fields set with With
func C(ctx context.Context) *Logger {
	fields, _ := ctx.Value(fieldsKey{}).([][2]string)
	if len(fields) == 0 {
		return Get()
	}
	zc := Get().With()
	for _, f := range fields {
		zc = zc.Str(f[0], f[1])
	}
	l := zc.Logger()
	return &l
}
