// Package repository implements the durable store of events and their
// participants. Every write is synchronous: a mutation is committed only once
// the store call returns nil.
package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Store is the persistence contract the registry writes through to.
// Implementations wrap every failure so that errors.Is(err, model.ErrIO) holds.
type Store interface {
	// UpsertEvent writes the event row, including its display reference.
	// Participants are written separately.
	UpsertEvent(ctx context.Context, e model.Event) error
	// DeleteEvent removes the event, its participants and its display
	// reference in one transaction. Deleting a missing event is not an error.
	DeleteEvent(ctx context.Context, id string) error
	UpsertParticipant(ctx context.Context, eventID string, p model.Participant) error
	DeleteParticipant(ctx context.Context, eventID, userID string) error
	// ListNonTerminalEvents returns every event whose status is not
	// Completed, with participants in join order.
	ListNonTerminalEvents(ctx context.Context) ([]model.Event, error)
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrIO, err)
}

// capacityColumn maps the Unlimited sentinel to NULL.
func capacityColumn(c model.Capacity) *int {
	if c == model.Unlimited {
		return nil
	}
	v := int(c)
	return &v
}

func capacityFromColumn(v *int) model.Capacity {
	if v == nil {
		return model.Unlimited
	}
	return model.Capacity(*v)
}

func displayRefColumn(ref model.DisplayRef) *string {
	if ref == "" {
		return nil
	}
	s := string(ref)
	return &s
}

func displayRefFromColumn(v *string) model.DisplayRef {
	if v == nil {
		return ""
	}
	return model.DisplayRef(*v)
}
