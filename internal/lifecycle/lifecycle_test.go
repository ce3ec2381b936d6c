package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to model.Status
		err      error
	}{
		{model.StatusUpcoming, model.StatusOngoing, nil},
		{model.StatusOngoing, model.StatusCompleted, nil},
		{model.StatusUpcoming, model.StatusCompleted, model.ErrNotStarted},
		{model.StatusOngoing, model.StatusUpcoming, model.ErrEventClosed},
		{model.StatusCompleted, model.StatusOngoing, model.ErrEventClosed},
		{model.StatusCompleted, model.StatusUpcoming, model.ErrEventClosed},
		{model.StatusCompleted, model.StatusCompleted, model.ErrEventClosed},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEvaluate(t *testing.T) {
	start := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)
	ev := model.Event{Start: start, Status: model.StatusUpcoming}

	assert.True(t, Evaluate(ev, start.Add(-31*time.Minute), DefaultReminderLead).None())

	d := Evaluate(ev, start.Add(-30*time.Minute), DefaultReminderLead)
	assert.Equal(t, Decision{Remind: true}, d)

	d = Evaluate(ev, start, DefaultReminderLead)
	assert.Equal(t, Decision{Remind: true, Start: true}, d)

	ev.ReminderSent = true
	d = Evaluate(ev, start, DefaultReminderLead)
	assert.Equal(t, Decision{Start: true}, d)

	ev.Status = model.StatusOngoing
	assert.True(t, Evaluate(ev, start.Add(time.Hour), DefaultReminderLead).None())

	ev.ReminderSent = false
	ev.Status = model.StatusCompleted
	assert.True(t, Evaluate(ev, start.Add(time.Hour), DefaultReminderLead).None())
}

// Walking the clock forward and applying every decision only ever yields a
// prefix of Upcoming, Ongoing, Completed.
func TestStatusSequenceIsMonotonic(t *testing.T) {
	start := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)
	ev := model.Event{Start: start, Status: model.StatusUpcoming}
	seen := []model.Status{ev.Status}

	for now := start.Add(-time.Hour); now.Before(start.Add(time.Hour)); now = now.Add(7 * time.Minute) {
		next, err := Apply(ev, Evaluate(ev, now, DefaultReminderLead))
		require.NoError(t, err)
		if next.Status != ev.Status {
			seen = append(seen, next.Status)
		}
		ev = next
	}

	ev, err := Complete(ev)
	require.NoError(t, err)
	seen = append(seen, ev.Status)

	assert.Equal(t, []model.Status{model.StatusUpcoming, model.StatusOngoing, model.StatusCompleted}, seen)

	_, err = Complete(ev)
	assert.ErrorIs(t, err, model.ErrEventClosed)
}

func TestCanJoin(t *testing.T) {
	assert.True(t, CanJoin(model.StatusUpcoming, false))
	assert.True(t, CanJoin(model.StatusOngoing, true))
	assert.False(t, CanJoin(model.StatusOngoing, false))
	assert.False(t, CanJoin(model.StatusCompleted, true))
}
