package notifier

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Log records every call instead of reaching a platform. It is the default
// driver for local development.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log.Named("notifier.log")}
}

func (l *Log) RenderEventCard(_ context.Context, e model.Event) (model.DisplayRef, error) {
	ref := model.DisplayRef("log:" + uuid.NewString())
	l.log.Info("render card", zap.String("event_id", e.ID), zap.String("title", e.Title),
		zap.String("ref", string(ref)))
	return ref, nil
}

func (l *Log) UpdateEventCard(_ context.Context, ref model.DisplayRef, e model.Event) error {
	l.log.Info("update card", zap.String("event_id", e.ID), zap.String("ref", string(ref)),
		zap.String("status", string(e.Status)), zap.Int("participants", len(e.Participants)))
	return nil
}

func (l *Log) RebindEventCard(ctx context.Context, ref model.DisplayRef, e model.Event) (model.DisplayRef, error) {
	if ref == "" {
		return l.RenderEventCard(ctx, e)
	}
	l.log.Info("rebind card", zap.String("event_id", e.ID), zap.String("ref", string(ref)))
	return ref, nil
}

func (l *Log) RetractEventCard(_ context.Context, ref model.DisplayRef) error {
	l.log.Info("retract card", zap.String("ref", string(ref)))
	return nil
}

func (l *Log) AssignMembershipTag(_ context.Context, eventID, userID string) error {
	l.log.Info("assign tag", zap.String("event_id", eventID), zap.String("user_id", userID))
	return nil
}

func (l *Log) RevokeMembershipTag(_ context.Context, eventID, userID string) error {
	l.log.Info("revoke tag", zap.String("event_id", eventID), zap.String("user_id", userID))
	return nil
}

func (l *Log) SendReminder(_ context.Context, e model.Event, participantIDs []string) error {
	l.log.Info("send reminder", zap.String("event_id", e.ID), zap.String("title", e.Title),
		zap.Strings("participants", participantIDs))
	return nil
}

func (l *Log) AnnounceStart(_ context.Context, e model.Event, participantIDs []string) error {
	l.log.Info("announce start", zap.String("event_id", e.ID), zap.String("title", e.Title),
		zap.Strings("participants", participantIDs))
	return nil
}
