// Package scheduler drives the time-based part of the lifecycle: a timer per
// live event and a periodic cycle that ticks the events that are due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/lifecycle"
	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Ticker applies the due work of one event. The registry implements it.
type Ticker interface {
	Tick(ctx context.Context, id string, now time.Time) error
}

type Config struct {
	Interval     time.Duration
	ReminderLead time.Duration
	Workers      int
}

type Scheduler struct {
	timers *Table
	ticker Ticker
	cfg    Config
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(timers *Table, ticker Ticker, cfg Config, log *zap.Logger, opts ...Option) (*Scheduler, error) {
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = lifecycle.DefaultReminderLead
	}
	if cfg.Interval <= 0 || cfg.Interval > cfg.ReminderLead {
		return nil, fmt.Errorf("scheduler interval %s must be positive and at most the reminder lead %s",
			cfg.Interval, cfg.ReminderLead)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	s := &Scheduler{
		timers: timers,
		ticker: ticker,
		cfg:    cfg,
		now:    time.Now,
		log:    log.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunOnce ticks every due event once. Events are handled concurrently and a
// failure or panic in one does not stop the others. The returned error joins
// all failures and is meant for logging.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.now()
	due := s.timers.Due(now, s.cfg.ReminderLead)
	if len(due) == 0 {
		return nil
	}
	s.log.Debug("cycle", zap.Int("due", len(due)), zap.Time("now", now))

	p := pool.New().WithMaxGoroutines(s.cfg.Workers).WithErrors().WithContext(ctx)
	for _, id := range due {
		p.Go(func(ctx context.Context) error {
			return s.tick(ctx, id, now)
		})
	}
	return p.Wait()
}

func (s *Scheduler) tick(ctx context.Context, id string, now time.Time) error {
	var err error
	if r := panics.Try(func() { err = s.ticker.Tick(ctx, id, now) }); r != nil {
		err = r.AsError()
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrNotFound):
		s.timers.Disarm(id)
		return nil
	}
	s.log.Warn("tick failed", zap.String("event_id", id), zap.Error(err))
	return fmt.Errorf("event %s: %w", id, err)
}

// Run starts the periodic cycle and blocks until ctx is cancelled. It waits
// for a running cycle to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{s.log.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := c.AddFunc(spec, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("cycle finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	s.log.Info("scheduler started", zap.Duration("interval", s.cfg.Interval),
		zap.Duration("reminder_lead", s.cfg.ReminderLead), zap.Int("workers", s.cfg.Workers))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
