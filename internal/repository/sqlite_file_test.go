package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventbot/internal/database"
	"github.com/Shivanand-hulikatti/eventbot/internal/model"
	"github.com/Shivanand-hulikatti/eventbot/internal/repository"
)

func openFileStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := repository.NewSQLiteStore(db)
	require.NoError(t, s.CreateTables(ctx))
	return s
}

func TestSQLiteFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openFileStore(t)
	base := time.Date(2026, 10, 19, 12, 0, 5, 0, time.UTC)

	raid := model.Event{
		ID: "ev-1", CommunityID: "guild-1", Title: "Raid Night", Description: "Bring potions",
		Start: base.Add(6 * time.Hour), Capacity: 4, HostID: "host", Status: model.StatusUpcoming,
		CreatedAt: base,
	}
	mic := model.Event{
		ID: "ev-2", CommunityID: "guild-1", Title: "Open Mic",
		Start: base.Add(-time.Hour), Capacity: model.Unlimited, HostID: "host", Status: model.StatusOngoing,
		ReminderSent: true, DisplayRef: "42:7", CreatedAt: base,
	}
	done := mic
	done.ID, done.Title, done.Status = "ev-3", "Old", model.StatusCompleted

	for _, e := range []model.Event{raid, mic, done} {
		require.NoError(t, s.UpsertEvent(ctx, e))
	}

	// Fractional seconds of different widths must still sort by time.
	joins := []model.Participant{
		{UserID: "zed", JoinedAt: base},
		{UserID: "amy", JoinedAt: base.Add(120 * time.Millisecond)},
		{UserID: "bob", JoinedAt: base.Add(123 * time.Millisecond)},
		{UserID: "cat", JoinedAt: base.Add(time.Second + 5*time.Nanosecond)},
	}
	for _, p := range joins {
		require.NoError(t, s.UpsertParticipant(ctx, raid.ID, p))
	}

	events, err := s.ListNonTerminalEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	got := events[0]
	assert.Equal(t, "ev-2", got.ID)
	assert.Equal(t, model.Unlimited, got.Capacity)
	assert.True(t, got.ReminderSent)
	assert.Equal(t, model.DisplayRef("42:7"), got.DisplayRef)
	assert.Equal(t, model.StatusOngoing, got.Status)
	assert.True(t, mic.Start.Equal(got.Start))
	assert.Empty(t, got.Participants)

	got = events[1]
	assert.Equal(t, "ev-1", got.ID)
	assert.Equal(t, model.Capacity(4), got.Capacity)
	assert.False(t, got.ReminderSent)
	assert.Empty(t, got.DisplayRef)
	assert.Equal(t, "Bring potions", got.Description)
	assert.True(t, raid.Start.Equal(got.Start))
	assert.True(t, raid.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, []string{"zed", "amy", "bob", "cat"}, got.ParticipantIDs())
	for i, p := range got.Participants {
		assert.True(t, joins[i].JoinedAt.Equal(p.JoinedAt), p.UserID)
	}

	// Leaving and deleting are reflected on reload.
	require.NoError(t, s.DeleteParticipant(ctx, raid.ID, "amy"))
	require.NoError(t, s.DeleteEvent(ctx, mic.ID))
	events, err = s.ListNonTerminalEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"zed", "bob", "cat"}, events[0].ParticipantIDs())
}
