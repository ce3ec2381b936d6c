package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/eventbot/internal/lifecycle"
	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Timer is the scheduling view of one live event.
type Timer struct {
	EventID       string
	Start         time.Time
	RemindPending bool
	StartPending  bool
}

// Due reports whether any signal of t fires at now.
func (t Timer) Due(now time.Time, lead time.Duration) bool {
	if t.StartPending && !now.Before(t.Start) {
		return true
	}
	return t.RemindPending && !now.Before(lifecycle.ReminderAt(t.Start, lead))
}

// Table holds one timer per non-Completed event. It is safe for concurrent
// use.
type Table struct {
	mu     sync.Mutex
	timers map[string]Timer
}

func NewTable() *Table {
	return &Table{timers: make(map[string]Timer)}
}

// Arm sets the timer of e from its current state, replacing any previous
// one. Completed events are disarmed.
func (t *Table) Arm(e model.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.Status.Terminal() {
		delete(t.timers, e.ID)
		return
	}
	t.timers[e.ID] = Timer{
		EventID:       e.ID,
		Start:         e.Start,
		RemindPending: !e.ReminderSent,
		StartPending:  e.Status == model.StatusUpcoming,
	}
}

func (t *Table) Disarm(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timers, id)
}

func (t *Table) Armed(id string) (Timer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tm, ok := t.timers[id]
	return tm, ok
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Due returns the IDs of events with work at now, earliest start first.
func (t *Table) Due(now time.Time, lead time.Duration) []string {
	t.mu.Lock()
	due := make([]Timer, 0)
	for _, tm := range t.timers {
		if tm.Due(now, lead) {
			due = append(due, tm)
		}
	}
	t.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].Start.Equal(due[j].Start) {
			return due[i].EventID < due[j].EventID
		}
		return due[i].Start.Before(due[j].Start)
	})
	ids := make([]string, len(due))
	for i, tm := range due {
		ids[i] = tm.EventID
	}
	return ids
}
