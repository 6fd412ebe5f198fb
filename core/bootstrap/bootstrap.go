// Package bootstrap prepares the infrastructure a bot needs before it starts
// polling: logger, database connection, schema and seed data.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/gatebot/core/config"
	coredatabase "github.com/m3rciful/gatebot/core/database"
	"github.com/m3rciful/gatebot/core/logger"
)

// Options control the bootstrap pipeline. Nil hooks use the core defaults.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Migrations fs.FS
	Modules    Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, fs.FS) error
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, connects to the database, applies migrations
// and runs the seeders in order. The connection is closed on any later failure.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.defaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	db, err := opts.Connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if err := prepare(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Result{DB: db}, nil
}

func prepare(ctx context.Context, db *sqlx.DB, opts Options) error {
	if opts.Migrations != nil {
		if err := opts.Migrate(ctx, opts.Database, opts.Migrations); err != nil {
			return fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}
	for i, seeder := range opts.Modules.Seeders {
		if seeder == nil {
			continue
		}
		start := time.Now()
		err := seeder.Seed(ctx, db)
		attrs := []slog.Attr{
			slog.Int("seeder", i),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		}
		if err != nil {
			logger.LogEvent(ctx, logger.SEED, slog.LevelError, "db.seed",
				append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
			return fmt.Errorf("bootstrap: seeder %d failed: %w", i, err)
		}
		logger.LogEvent(ctx, logger.SEED, slog.LevelDebug, "db.seed", append(attrs, slog.String("status", "ok"))...)
	}
	return nil
}
