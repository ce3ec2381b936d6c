// Package notifier defines the outbound port the core uses to render event
// cards and reach participants on the external platform. Every call is
// best-effort: display state is not authoritative.
package notifier

import (
	"context"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Notifier is implemented by each platform adapter.
type Notifier interface {
	// RenderEventCard posts a new interactive card and returns its handle.
	RenderEventCard(ctx context.Context, e model.Event) (model.DisplayRef, error)
	UpdateEventCard(ctx context.Context, ref model.DisplayRef, e model.Event) error
	// RebindEventCard re-attaches live controls to an existing card after a
	// restart. It returns a new handle when the card had to be re-posted.
	RebindEventCard(ctx context.Context, ref model.DisplayRef, e model.Event) (model.DisplayRef, error)
	RetractEventCard(ctx context.Context, ref model.DisplayRef) error
	AssignMembershipTag(ctx context.Context, eventID, userID string) error
	RevokeMembershipTag(ctx context.Context, eventID, userID string) error
	SendReminder(ctx context.Context, e model.Event, participantIDs []string) error
	// AnnounceStart tells the participants the event has begun.
	AnnounceStart(ctx context.Context, e model.Event, participantIDs []string) error
}
