// cmd/main.go is the application entry point.
// It wires together all layers, recovers state and starts the front ends.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/config"
	"github.com/Shivanand-hulikatti/eventbot/internal/database"
	"github.com/Shivanand-hulikatti/eventbot/internal/gateway"
	"github.com/Shivanand-hulikatti/eventbot/internal/handler"
	"github.com/Shivanand-hulikatti/eventbot/internal/logging"
	"github.com/Shivanand-hulikatti/eventbot/internal/notifier"
	"github.com/Shivanand-hulikatti/eventbot/internal/recovery"
	"github.com/Shivanand-hulikatti/eventbot/internal/registry"
	"github.com/Shivanand-hulikatti/eventbot/internal/repository"
	"github.com/Shivanand-hulikatti/eventbot/internal/scheduler"
	"github.com/Shivanand-hulikatti/eventbot/internal/telegram"
)

func main() {
	cfg, err := config.Load(os.Getenv("EVENTBOT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := exitCode(log, run(ctx, cfg, log))
	stop()
	_ = log.Sync()
	os.Exit(code)
}

// exitCode logs how run ended. os.Exit skips deferred calls, so main flushes
// the logger itself before exiting.
func exitCode(log *zap.Logger, err error) int {
	if err != nil {
		log.Error("eventbot stopped", zap.Error(err))
		return 1
	}
	log.Info("eventbot stopped")
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// ── 1. Open the store ─────────────────────────────────────────────────
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 2. Notifier ───────────────────────────────────────────────────────
	var (
		bot     *telegram.Bot
		botAPI  telegram.API
		names   = telegram.NewNames()
		backend notifier.Notifier
	)
	switch cfg.Notifier.Driver {
	case "telegram":
		api, err := telegram.Connect(cfg.Telegram.Token, log)
		if err != nil {
			return err
		}
		botAPI = api
		backend = telegram.NewNotifier(api, cfg.Telegram.ChatID, names, log)
	case "queue":
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer client.Close()
		backend = notifier.NewQueue(client, cfg.Queue.Name, log)
	default:
		backend = notifier.NewLog(log)
	}
	notif := notifier.NewGuard(backend, cfg.Notifier.Timeout, log)

	// ── 3. Core: registry + scheduler ─────────────────────────────────────
	timers := scheduler.NewTable()
	reg := registry.New(store, notif, timers,
		registry.WithPolicy(registry.Policy{
			AllowOngoingJoins: cfg.Policy.AllowOngoingJoins,
			RejectPastStart:   cfg.Policy.RejectPastStart,
		}),
		registry.WithReminderLead(cfg.Scheduler.ReminderLead),
		registry.WithLogger(log),
	)
	sched, err := scheduler.New(timers, reg, scheduler.Config{
		Interval:     cfg.Scheduler.Interval,
		ReminderLead: cfg.Scheduler.ReminderLead,
		Workers:      cfg.Scheduler.Workers,
	}, log)
	if err != nil {
		return err
	}

	// ── 4. Recover state before accepting commands ────────────────────────
	if err := recovery.New(store, reg, sched, log).Run(ctx); err != nil {
		return err
	}

	dispatch := gateway.NewDispatcher(reg, log)
	table := gateway.DefaultTable()
	if botAPI != nil && cfg.Telegram.Gateway {
		bot = telegram.NewBot(botAPI, dispatch, table, names, cfg.Telegram.Community, cfg.Telegram.Admins, log)
	}

	// ── 5. Start everything and wait for a signal ─────────────────────────
	// The first component to fail cancels the others.
	g := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()

	g.Go(sched.Run)

	if bot != nil {
		g.Go(bot.Run)
	}

	if cfg.HTTP.Enabled {
		srv := &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.HTTP.Port),
			Handler:      handler.NewRouter(handler.NewEventHandler(dispatch, table, cfg.HTTP.BaseURL, log), log),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func(context.Context) error {
			log.Info("server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func(ctx context.Context) error {
			<-ctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.Migrate {
			if err := database.RunMigrations(cfg.Store.Postgres, log); err != nil {
				return nil, nil, err
			}
		}
		pool, err := database.NewPool(ctx, cfg.Store.Postgres, log)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresStore(pool), pool.Close, nil
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		s := repository.NewSQLiteStore(db)
		if err := s.CreateTables(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("opened sqlite store", zap.String("path", cfg.Store.SQLite.Path))
		return s, func() { db.Close() }, nil
	}
	log.Warn("using in-memory store, events are lost on restart")
	return repository.NewMemoryStore(), func() {}, nil
}
