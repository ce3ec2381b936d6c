package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	live := sampleEvent()
	done := sampleEvent()
	done.ID = "ev-2"
	done.Status = model.StatusCompleted

	require.NoError(t, s.UpsertEvent(ctx, live))
	require.NoError(t, s.UpsertEvent(ctx, done))
	require.NoError(t, s.UpsertParticipant(ctx, live.ID, model.Participant{UserID: "bob", JoinedAt: start.Add(time.Minute)}))
	require.NoError(t, s.UpsertParticipant(ctx, live.ID, model.Participant{UserID: "alice", JoinedAt: start}))

	events, err := s.ListNonTerminalEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"alice", "bob"}, events[0].ParticipantIDs())

	require.NoError(t, s.DeleteParticipant(ctx, live.ID, "alice"))
	require.NoError(t, s.DeleteEvent(ctx, live.ID))

	_, ok := s.Event(live.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}
