// Package logger provides the process-wide structured slog logger, the
// per-component loggers and the context helpers that carry update metadata.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/gatebot/core/buildinfo"
	coreconfig "github.com/m3rciful/gatebot/core/config"
)

var (
	initOnce sync.Once

	sinkMu    sync.Mutex
	sink      *asyncWriter
	sinkFiles []io.Closer
	closed    bool

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(defaultSampleNum, defaultSampleDen)
	traceOverride bool

	// L is the root logger; component loggers derive from it.
	L *slog.Logger

	// DB logs database-related events.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// SEED logs database seeding operations.
	SEED *slog.Logger
	// SVCCatalog logs catalog lookups and mutations.
	SVCCatalog *slog.Logger
	// SVCGate logs subscription gate decisions.
	SVCGate *slog.Logger
	// SVCWorkflow logs admin workflow transitions.
	SVCWorkflow *slog.Logger
	// SVCBroadcast logs broadcast progress.
	SVCBroadcast *slog.Logger
)

func init() {
	L = slog.Default()
	wireLegacyComponents()
}

// InitLogger installs the structured handler described by cfg as the global
// and slog default logger. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := settingsFrom(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleNum, s.sampleDen)
		traceOverride = s.trace

		var outputs []io.Writer
		outputs, sinkFiles, err = openOutputs(s.dir, s.file)
		if err != nil {
			return
		}
		sink = newAsyncWriter(outputs, 64*1024)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   sink,
			format:   s.format,
			keyOrder: s.keyOrder,
		}))
		slog.SetDefault(L)
		wireLegacyComponents()

		attrs := []slog.Attr{
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		}
		if cfg != nil {
			attrs = append(attrs,
				slog.String("mode", cfg.Telegram.RunMode),
				slog.Int("admins", len(cfg.Telegram.AdminIDs)),
			)
		}
		LogEvent(context.Background(), L.With("component", "app"), slog.LevelInfo, "startup", attrs...)
	})
	return err
}

func wireLegacyComponents() {
	if L == nil {
		return
	}
	for target, name := range map[**slog.Logger]string{
		&DB:           "db",
		&TG:           "tg",
		&MIG:          "db.migrate",
		&TWire:        "tg.wire",
		&SEED:         "db.seed",
		&SVCCatalog:   "service.catalog",
		&SVCGate:      "service.gate",
		&SVCWorkflow:  "service.workflow",
		&SVCBroadcast: "service.broadcast",
	} {
		*target = L.With("component", name)
	}
}

// Shutdown flushes buffered log output and closes opened log files.
// Calls after the first are no-ops.
func Shutdown() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Flush(), sink.Close())
	}
	for _, f := range sinkFiles {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Component returns L scoped to the named component.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes one record whose event attribute is event. A nil logg falls
// back to the logger carried by ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

func logAt(ctx context.Context, level slog.Level, component, event string, attrs []slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	logAt(ctx, slog.LevelDebug, component, event, attrs)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	logAt(ctx, slog.LevelInfo, component, event, attrs)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	logAt(ctx, slog.LevelWarn, component, event, attrs)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	logAt(ctx, slog.LevelError, component, event, attrs)
}

// ShouldSampleDebug reports whether a high-volume debug detail should be
// logged. TRACE=1 in the environment lets every detail through.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
