package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/gatebot/core/logger"
)

const previewFiles = 6

// RunMigrations applies every pending up migration found at the root of files.
func RunMigrations(ctx context.Context, cfg Config, files fs.FS) error {
	if files == nil {
		return errors.New("migrations: nil source filesystem")
	}
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("migrations config: %w", err)
	}
	if cfg.Driver == DriverPostgres {
		if err := WaitForPostgres(ctx, cfg.DSN(), 30*time.Second); err != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
				slog.String("status", "fail"), slog.String("err", err.Error()))
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	set := upMigrations(files)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "resolve",
		append([]slog.Attr{slog.String("driver", cfg.Driver)}, set.summary()...)...)

	src, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
			slog.String("status", "fail"), slog.String("err", err.Error()))
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelWarn, "db.migrate.close",
				slog.String("err", errors.Join(srcErr, dbErr).Error()))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	err = m.Up()
	took := logger.RoundMS(time.Since(start))
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "apply",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}
	to, _, _ := m.Version()

	applied := set.between(uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "apply", applied.summary()...)
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

// migrationSet is a sorted list of "<version>_<name>.up.sql" file names.
type migrationSet []string

func upMigrations(files fs.FS) migrationSet {
	names, _ := fs.Glob(files, "*.up.sql")
	slices.Sort(names)
	return names
}

// between returns the files with from < version <= to.
func (s migrationSet) between(from, to uint64) migrationSet {
	var out migrationSet
	for _, name := range s {
		if v := fileVersion(name); v > from && v <= to {
			out = append(out, name)
		}
	}
	return out
}

func (s migrationSet) summary() []slog.Attr {
	attrs := []slog.Attr{slog.Int("files_total", len(s))}
	if len(s) == 0 {
		return attrs
	}
	shown := s[:min(len(s), previewFiles)]
	attrs = append(attrs, slog.String("files_preview", strings.Join(shown, ", ")))
	if len(shown) < len(s) {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(path.Base(name), "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}
