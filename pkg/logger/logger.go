// Package logger provides the process-wide logr logger of ccs, backed by zap,
// and helpers to carry it through a context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oakwood-commons/ccs/pkg/settings"
)

type loggerContextKey struct{}

// Structured log keys shared across packages.
const (
	RootCommandKey = "root_command"
	SubCommandKey  = "sub_command"
	CommitKey      = "commit"
	VersionKey     = "version"
	BuildTimeKey   = "build_time"
	GoVersionKey   = "go_version"
	TimeStampKey   = "timestamp"
	MessageKey     = "message"
	SourceKey      = "source"
	PathKey        = "path"
)

// Log encodings accepted by Options.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options controls the global logger built by Get.
type Options struct {
	// Level is the minimum zap level. Use LevelFromVerbosity for -v counts.
	Level int8
	// Format is FormatJSON (default) or FormatConsole.
	Format string
	// Sampling drops repeats of the same message within one second.
	Sampling bool
}

// LevelFromVerbosity maps a -v count to a zap level: errors only by default,
// then warn, info and debug. Higher counts enable deeper logr V-levels.
func LevelFromVerbosity(v int) int8 {
	if v <= 0 {
		return int8(zapcore.ErrorLevel)
	}
	if v > 100 {
		v = 100
	}
	return int8(zapcore.ErrorLevel) - int8(v)
}

var (
	once sync.Once

	// zapLogger is kept for Sync.
	zapLogger  *zap.Logger
	logrLogger *logr.Logger

	noopLogger = logr.Discard()
)

// newCore builds the zap core writing to w. Build metadata is attached to
// every entry.
func newCore(opts Options, w zapcore.WriteSyncer) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.TimeKey = TimeStampKey
	cfg.MessageKey = MessageKey

	var enc zapcore.Encoder
	if opts.Format == FormatConsole {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(cfg)
	}

	goVersion := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		goVersion = info.GoVersion
	}
	core := zapcore.NewCore(enc, w, zap.NewAtomicLevelAt(zapcore.Level(opts.Level))).With([]zapcore.Field{
		zap.String(CommitKey, settings.VersionInformation.Commit),
		zap.String(VersionKey, settings.VersionInformation.BuildVersion),
		zap.String(BuildTimeKey, settings.VersionInformation.BuildTime),
		zap.String(GoVersionKey, goVersion),
	})
	if opts.Sampling {
		// first entry per message and second, repeats dropped
		core = zapcore.NewSamplerWithOptions(core, time.Second, 1, 0)
	}
	return core
}

// Get builds the global logger on first use, writing to stderr. Later calls
// return the same logger and ignore opts.
func Get(opts Options) *logr.Logger {
	once.Do(func() {
		zapLogger = zap.New(newCore(opts, zapcore.Lock(os.Stderr)),
			zap.AddCaller(),
			zap.AddStacktrace(zap.ErrorLevel),
		)
		l := zapr.NewLogger(zapLogger)
		logrLogger = &l
	})
	if logrLogger == nil {
		return &noopLogger
	}
	return logrLogger
}

// WithLogger attaches log to ctx. ctx is returned as is when it already
// carries log.
func WithLogger(ctx context.Context, log *logr.Logger) context.Context {
	if cur, ok := ctx.Value(loggerContextKey{}).(*logr.Logger); ok && cur == log {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, log)
}

// FromContext returns the logger attached to ctx, else the global logger,
// else a discarding logger.
func FromContext(ctx context.Context) *logr.Logger {
	if log, ok := ctx.Value(loggerContextKey{}).(*logr.Logger); ok {
		return log
	}
	return GetGlobalLogger()
}

// Sync flushes buffered entries. main calls it before exiting.
func Sync() {
	if zapLogger == nil {
		return
	}
	if err := zapLogger.Sync(); err != nil && !isIgnorableSyncError(err) {
		fmt.Fprintf(os.Stderr, "WARNING: failed to sync logger: %v\n", err)
	}
}

// isIgnorableSyncError reports errors stderr returns when it is a pipe or a
// terminal. Windows reports an invalid handle that wraps no errno.
func isIgnorableSyncError(err error) bool {
	for _, errno := range []error{syscall.ENOTTY, syscall.EINVAL, syscall.EIO, syscall.EBADF} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return strings.Contains(err.Error(), "The handle is invalid")
}

// GetGlobalLogger returns the logger built by Get, or a discarding logger
// before Get ran.
func GetGlobalLogger() *logr.Logger {
	if logrLogger != nil {
		return logrLogger
	}
	return &noopLogger
}

// GetNoopLogger returns a logger that drops everything.
func GetNoopLogger() *logr.Logger {
	return &noopLogger
}

// WithValues returns a copy of lgr carrying the given key/value pairs.
func WithValues(lgr *logr.Logger, keysAndValues ...any) *logr.Logger {
	l := lgr.WithValues(keysAndValues...)
	return &l
}
