// Package recovery rebuilds the live state after a restart: it reloads the
// registry from the store, re-attaches event cards and runs one scheduler
// cycle so that anything missed while down is applied.
package recovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

type Source interface {
	ListNonTerminalEvents(ctx context.Context) ([]model.Event, error)
}

type Registry interface {
	Load(events []model.Event)
	Rebind(ctx context.Context, id string) error
}

type Cycle interface {
	RunOnce(ctx context.Context) error
}

type Bootstrapper struct {
	source Source
	reg    Registry
	cycle  Cycle
	log    *zap.Logger
}

func New(source Source, reg Registry, cycle Cycle, log *zap.Logger) *Bootstrapper {
	return &Bootstrapper{source: source, reg: reg, cycle: cycle, log: log.Named("recovery")}
}

// Run must finish before the gateway accepts commands. Only a failure to
// read the store is fatal; card and cycle failures are logged.
func (b *Bootstrapper) Run(ctx context.Context) error {
	events, err := b.source.ListNonTerminalEvents(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	b.reg.Load(events)

	rebound := 0
	for _, e := range events {
		if err := b.reg.Rebind(ctx, e.ID); err != nil {
			b.log.Warn("card not rebound", zap.String("event_id", e.ID), zap.Error(err))
			continue
		}
		rebound++
	}

	if err := b.cycle.RunOnce(ctx); err != nil {
		b.log.Warn("catch-up cycle finished with errors", zap.Error(err))
	}
	b.log.Info("recovered", zap.Int("events", len(events)), zap.Int("cards", rebound))
	return nil
}
