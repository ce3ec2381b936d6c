package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// DefaultTimeout bounds a single platform call.
const DefaultTimeout = 10 * time.Second

// Guard bounds every call of the wrapped Notifier with a timeout and logs
// failures. Errors are still returned so callers can decide whether to retry.
type Guard struct {
	next    Notifier
	timeout time.Duration
	log     *zap.Logger
}

// NewGuard wraps next. A non-positive timeout uses DefaultTimeout.
func NewGuard(next Notifier, timeout time.Duration, log *zap.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{next: next, timeout: timeout, log: log.Named("notifier")}
}

func (g *Guard) call(ctx context.Context, op, eventID string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		g.log.Warn("notifier call failed",
			zap.String("op", op), zap.String("event_id", eventID), zap.Error(err))
		return err
	}
	return nil
}

func (g *Guard) RenderEventCard(ctx context.Context, e model.Event) (model.DisplayRef, error) {
	var ref model.DisplayRef
	err := g.call(ctx, "render", e.ID, func(ctx context.Context) error {
		var err error
		ref, err = g.next.RenderEventCard(ctx, e)
		return err
	})
	return ref, err
}

func (g *Guard) UpdateEventCard(ctx context.Context, ref model.DisplayRef, e model.Event) error {
	if ref == "" {
		return nil
	}
	return g.call(ctx, "update", e.ID, func(ctx context.Context) error {
		return g.next.UpdateEventCard(ctx, ref, e)
	})
}

func (g *Guard) RebindEventCard(ctx context.Context, ref model.DisplayRef, e model.Event) (model.DisplayRef, error) {
	out := ref
	err := g.call(ctx, "rebind", e.ID, func(ctx context.Context) error {
		var err error
		out, err = g.next.RebindEventCard(ctx, ref, e)
		return err
	})
	if err != nil {
		return ref, err
	}
	return out, nil
}

func (g *Guard) RetractEventCard(ctx context.Context, ref model.DisplayRef) error {
	if ref == "" {
		return nil
	}
	return g.call(ctx, "retract", string(ref), func(ctx context.Context) error {
		return g.next.RetractEventCard(ctx, ref)
	})
}

func (g *Guard) AssignMembershipTag(ctx context.Context, eventID, userID string) error {
	return g.call(ctx, "assign_tag", eventID, func(ctx context.Context) error {
		return g.next.AssignMembershipTag(ctx, eventID, userID)
	})
}

func (g *Guard) RevokeMembershipTag(ctx context.Context, eventID, userID string) error {
	return g.call(ctx, "revoke_tag", eventID, func(ctx context.Context) error {
		return g.next.RevokeMembershipTag(ctx, eventID, userID)
	})
}

func (g *Guard) SendReminder(ctx context.Context, e model.Event, participantIDs []string) error {
	return g.call(ctx, "reminder", e.ID, func(ctx context.Context) error {
		return g.next.SendReminder(ctx, e, participantIDs)
	})
}

func (g *Guard) AnnounceStart(ctx context.Context, e model.Event, participantIDs []string) error {
	return g.call(ctx, "announce_start", e.ID, func(ctx context.Context) error {
		return g.next.AnnounceStart(ctx, e, participantIDs)
	})
}
