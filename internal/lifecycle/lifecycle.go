// Package lifecycle holds the pure transition rules of an event:
// Upcoming -> Ongoing -> Completed. Nothing here reads the clock or does I/O.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// DefaultReminderLead is how long before the start the reminder fires.
const DefaultReminderLead = 30 * time.Minute

// Transition validates a single status change. Only the two forward steps
// are legal; Completed is terminal.
func Transition(from, to model.Status) error {
	switch {
	case from == model.StatusUpcoming && to == model.StatusOngoing:
		return nil
	case from == model.StatusOngoing && to == model.StatusCompleted:
		return nil
	case from == model.StatusUpcoming && to == model.StatusCompleted:
		return model.ErrNotStarted
	case from.Terminal():
		return model.ErrEventClosed
	}
	return fmt.Errorf("%w: %s -> %s", model.ErrEventClosed, from, to)
}

// Decision is the outcome of evaluating one event at one instant.
type Decision struct {
	Remind bool
	Start  bool
}

// None reports whether the evaluation has nothing to apply.
func (d Decision) None() bool {
	return !d.Remind && !d.Start
}

// ReminderAt is the instant from which the reminder is due.
func ReminderAt(start time.Time, lead time.Duration) time.Time {
	return start.Add(-lead)
}

// Evaluate decides which time-driven signals are due for e at now. It is
// guarded by ReminderSent and Status, so evaluating an already-applied
// snapshot again yields no work.
func Evaluate(e model.Event, now time.Time, lead time.Duration) Decision {
	if e.Status.Terminal() {
		return Decision{}
	}
	return Decision{
		Remind: !e.ReminderSent && !now.Before(ReminderAt(e.Start, lead)),
		Start:  e.Status == model.StatusUpcoming && !now.Before(e.Start),
	}
}

// Apply returns e with the status part of d applied. The reminder flag is
// set separately once delivery succeeded.
func Apply(e model.Event, d Decision) (model.Event, error) {
	if !d.Start {
		return e, nil
	}
	if err := Transition(e.Status, model.StatusOngoing); err != nil {
		return e, err
	}
	e.Status = model.StatusOngoing
	return e, nil
}

// Complete returns e moved to Completed, or the reason it cannot be.
func Complete(e model.Event) (model.Event, error) {
	if err := Transition(e.Status, model.StatusCompleted); err != nil {
		return e, err
	}
	e.Status = model.StatusCompleted
	return e, nil
}

// CanJoin reports whether the status admits new participants.
func CanJoin(s model.Status, allowOngoing bool) bool {
	switch s {
	case model.StatusUpcoming:
		return true
	case model.StatusOngoing:
		return allowOngoing
	}
	return false
}

// CanReschedule reports whether the start instant may still change.
func CanReschedule(s model.Status) bool {
	return s == model.StatusUpcoming
}
