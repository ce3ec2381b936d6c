package model

import "errors"

// Rejected requests. These are returned synchronously and never retried.
var (
	ErrNotFound              = errors.New("event not found")
	ErrDuplicateTitle        = errors.New("an active event with this title already exists")
	ErrInvalidCapacity       = errors.New("invalid capacity")
	ErrCapacityExceeded      = errors.New("event is full")
	ErrAlreadyJoined         = errors.New("already joined this event")
	ErrNotAJoinedMember      = errors.New("not a participant of this event")
	ErrEventClosed           = errors.New("event is closed for this change")
	ErrForbidden             = errors.New("only the host or an admin can do this")
	ErrTargetNotAParticipant = errors.New("new host must be a participant")
	ErrNotStarted            = errors.New("event has not started yet")
	ErrInvalidInput          = errors.New("invalid input")
)

// ErrIO is returned when the store could not acknowledge a write.
// The in-memory state is left unchanged and the caller may retry.
var ErrIO = errors.New("storage failure")

// Retryable reports whether err is a transient storage failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrIO)
}
