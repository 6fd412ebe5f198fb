// Package bootstrap assembles the bot: infrastructure from the core pipeline,
// the domain services, and the telebot wiring handed to the runner.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/gatebot/app/broadcast"
	appconfig "github.com/m3rciful/gatebot/app/config"
	"github.com/m3rciful/gatebot/app/dispatch"
	"github.com/m3rciful/gatebot/app/gate"
	"github.com/m3rciful/gatebot/app/metrics"
	"github.com/m3rciful/gatebot/app/store"
	apptelegram "github.com/m3rciful/gatebot/app/telegram"
	"github.com/m3rciful/gatebot/app/workflow"
	corebootstrap "github.com/m3rciful/gatebot/core/bootstrap"
	"github.com/m3rciful/gatebot/core/logger"
	tg "github.com/m3rciful/gatebot/core/telegram"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"
	"github.com/m3rciful/gatebot/core/telegram/router"
	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/migrations"
)

const expiryNoticeTimeout = 10 * time.Second

// App is the assembled bot.
type App struct {
	cfg       *appconfig.Config
	db        *sqlx.DB
	store     *store.Store
	transport *apptelegram.Transport
	sessions  state.Manager
	engine    *workflow.Engine
	router    *dispatch.Router
}

// New runs the core bootstrap pipeline (logger, database, migrations, seeding)
// and assembles the bot on top of it.
func New(ctx context.Context, cfg *appconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	res, err := corebootstrap.Run(ctx, corebootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Modules: corebootstrap.Modules{
			Seeders: []corebootstrap.Seeder{SeedChannels(cfg.Gate.SeedChannels)},
		},
	})
	if err != nil {
		return nil, err
	}
	return Build(cfg, res.DB), nil
}

// Build wires the domain services over an initialized database.
func Build(cfg *appconfig.Config, db *sqlx.DB) *App {
	a := &App{
		cfg:       cfg,
		db:        db,
		store:     store.New(db),
		transport: apptelegram.NewTransport(),
	}

	a.sessions = state.NewMemoryManager(state.Options{
		TTL:      cfg.Session.TTL,
		OnExpire: a.sessionExpired,
	})

	g := gate.New(a.store.Channels, a.transport, gate.Options{
		CacheTTL:  cfg.Gate.CacheTTL,
		CacheSize: cfg.Gate.CacheSize,
	})
	b := broadcast.New(a.store.Users, a.transport.Broadcaster(), broadcast.Options{
		Pacing:      cfg.Broadcast.Pacing,
		SendTimeout: cfg.Broadcast.SendTimeout,
	})
	a.engine = workflow.New(a.sessions, workflow.Deps{
		Catalog:     a.store.Catalog,
		Channels:    a.store.Channels,
		Broadcaster: b,
	})
	a.router = dispatch.New(dispatch.Deps{
		Transport: a.transport,
		Gate:      g,
		Catalog:   a.store.Catalog,
		Users:     a.store.Users,
		Stats:     a.store,
		Workflow:  a.engine,
		IsAdmin:   cfg.Core.IsAdmin,
	})
	return a
}

// TelegramRunOptions builds the registry, middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	reg := tg.NewRegistry()
	reg.SetAdminIDs(core.Telegram.AdminIDs)
	bindings := apptelegram.Bindings{
		Handler:  a.router,
		Sessions: a.engine,
		IsAdmin:  core.IsAdmin,
	}
	if err := bindings.Register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	return tg.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      bindings.Routes(reg),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		a.transport.Bind(rt.Bot)
	}
	router.SetObserver(metrics.ObserveHandler)
	if rt.Dispatcher != nil {
		metrics.TrackSendFailures(rt.Dispatcher.ErrorCount)
	}
	go state.RunJanitor(ctx, a.sessions, a.cfg.Session.SweepInterval)

	if addr := a.cfg.Metrics.Listen; addr != "" && a.db != nil {
		srv := metrics.NewServer(addr, a.db)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.L.Error("metrics server stopped",
					slog.String("event", "metrics.serve"),
					slog.String("err", err.Error()),
				)
			}
		}()
	}
	return nil
}

func (a *App) onStop(context.Context, tg.Runtime) error {
	router.SetObserver(nil)
	metrics.TrackSendFailures(nil)
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// sessionExpired runs from inside the session registry, possibly while the
// engine holds the admin's lock, so the notice is sent asynchronously.
func (a *App) sessionExpired(adminID int64, st state.State) {
	a.engine.Expired(adminID, st)
	f, _, ok := workflow.ParseState(st)
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(tghelpers.BaseContext(), expiryNoticeTimeout)
		defer cancel()
		if err := a.router.SessionExpired(ctx, adminID, f); err != nil {
			logger.SVCWorkflow.WarnContext(ctx, "expiry notice failed",
				slog.String("event", "workflow.expire"),
				slog.Int64("user_id", adminID),
				slog.String("err", err.Error()),
			)
		}
	}()
}
