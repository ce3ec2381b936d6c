// Package model defines the core domain types for the event lifecycle engine.
package model

import (
	"strconv"
	"time"
)

// Status is the lifecycle state of an event.
type Status string

const (
	StatusUpcoming  Status = "Upcoming"
	StatusOngoing   Status = "Ongoing"
	StatusCompleted Status = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition or mutation is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Capacity is the maximum number of participants an event admits.
// Unlimited is the only non-positive value that is valid.
type Capacity int

// Unlimited means the event has no upper bound on participants.
const Unlimited Capacity = -1

// Valid reports whether c is either Unlimited or a positive limit.
func (c Capacity) Valid() bool {
	return c == Unlimited || c > 0
}

// Admits reports whether n participants fit within the capacity.
func (c Capacity) Admits(n int) bool {
	if c == Unlimited {
		return true
	}
	return n <= int(c)
}

// Remaining returns the number of open slots, or -1 when unlimited.
func (c Capacity) Remaining(n int) int {
	if c == Unlimited {
		return -1
	}
	if r := int(c) - n; r > 0 {
		return r
	}
	return 0
}

func (c Capacity) String() string {
	if c == Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(int(c))
}

// DisplayRef is an opaque handle to the rendered card on the external platform.
type DisplayRef string

// Participant is a user who joined an event's membership ledger.
type Participant struct {
	UserID   string    `json:"user_id" db:"user_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// Event is a scheduled, capacity-bounded group activity.
type Event struct {
	ID           string        `json:"id"`
	CommunityID  string        `json:"community_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Start        time.Time     `json:"start"`
	Capacity     Capacity      `json:"capacity"`
	HostID       string        `json:"host_id"`
	Status       Status        `json:"status"`
	ReminderSent bool          `json:"reminder_sent"`
	DisplayRef   DisplayRef    `json:"display_ref,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	Participants []Participant `json:"participants"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (e Event) Clone() Event {
	c := e
	if e.Participants != nil {
		c.Participants = make([]Participant, len(e.Participants))
		copy(c.Participants, e.Participants)
	}
	return c
}

// ParticipantIDs returns the user IDs of all participants in join order.
func (e Event) ParticipantIDs() []string {
	ids := make([]string, len(e.Participants))
	for i, p := range e.Participants {
		ids[i] = p.UserID
	}
	return ids
}

// HasParticipant reports whether userID is in the membership set.
func (e Event) HasParticipant(userID string) bool {
	for _, p := range e.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether no slots remain.
func (e Event) IsFull() bool {
	return e.Capacity != Unlimited && len(e.Participants) >= int(e.Capacity)
}

// Requester identifies who issued a command, with the admin flag the
// gateway already resolved from the platform's permission model.
type Requester struct {
	UserID string
	Admin  bool
}

// CanManage reports whether the requester is the host of e or an admin.
func (r Requester) CanManage(e Event) bool {
	return r.Admin || (r.UserID != "" && r.UserID == e.HostID)
}

// Field names an editable attribute of an event.
type Field string

const (
	FieldStart       Field = "start"
	FieldDescription Field = "description"
	FieldCapacity    Field = "capacity"
	FieldTitle       Field = "title"
)

// Edit is a single-field change. Exactly one of the value fields is used,
// selected by Field.
type Edit struct {
	Field       Field
	Start       time.Time
	Description string
	Capacity    Capacity
	Title       string
}

// CreateInput carries the attributes of a new event.
type CreateInput struct {
	CommunityID string
	Title       string
	Description string
	Start       time.Time
	Capacity    Capacity
}

// CreateEventRequest is the payload for creating a new event.
// A nil capacity means unlimited.
type CreateEventRequest struct {
	CommunityID string    `json:"community_id" validate:"required,max=100"`
	Title       string    `json:"title" validate:"required,max=100"`
	Description string    `json:"description" validate:"max=2000"`
	Start       time.Time `json:"start" validate:"required"`
	Capacity    *int      `json:"capacity" validate:"omitempty,min=1"`
}

// EditEventRequest is the payload for a single-field edit.
type EditEventRequest struct {
	Field       string     `json:"field" validate:"required,oneof=start description capacity title"`
	Start       *time.Time `json:"start"`
	Description *string    `json:"description"`
	Capacity    *int       `json:"capacity"`
	Title       *string    `json:"title"`
}

// TransferHostRequest is the payload for handing the event to another participant.
type TransferHostRequest struct {
	NewHostID string `json:"new_host_id" validate:"required"`
}

// EventResponse is the JSON view of an event snapshot.
type EventResponse struct {
	ID           string        `json:"id"`
	CommunityID  string        `json:"community_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Start        time.Time     `json:"start"`
	Capacity     *int          `json:"capacity"`
	Remaining    *int          `json:"remaining"`
	HostID       string        `json:"host_id"`
	Status       string        `json:"status"`
	ReminderSent bool          `json:"reminder_sent"`
	CreatedAt    time.Time     `json:"created_at"`
	Participants []Participant `json:"participants"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}
