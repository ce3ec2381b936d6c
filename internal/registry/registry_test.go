package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
	"github.com/Shivanand-hulikatti/eventbot/internal/repository"
	"github.com/Shivanand-hulikatti/eventbot/internal/scheduler"
)

// ─── Test doubles ─────────────────────────────────────────────────────────────

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu           sync.Mutex
	rendered     int
	updates      int
	retracted    []model.DisplayRef
	assigned     []string
	revoked      []string
	reminders    map[string]int
	started      []string
	failReminder bool
	failAll      bool
}

func newRecorder() *recorder {
	return &recorder{reminders: make(map[string]int)}
}

var errPlatform = errors.New("platform unavailable")

func (n *recorder) RenderEventCard(_ context.Context, e model.Event) (model.DisplayRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return "", errPlatform
	}
	n.rendered++
	return model.DisplayRef("card-" + e.ID), nil
}

func (n *recorder) UpdateEventCard(context.Context, model.DisplayRef, model.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return errPlatform
	}
	n.updates++
	return nil
}

func (n *recorder) RebindEventCard(_ context.Context, ref model.DisplayRef, e model.Event) (model.DisplayRef, error) {
	if ref == "" {
		return n.RenderEventCard(context.Background(), e)
	}
	return ref, nil
}

func (n *recorder) RetractEventCard(_ context.Context, ref model.DisplayRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retracted = append(n.retracted, ref)
	return nil
}

func (n *recorder) AssignMembershipTag(_ context.Context, eventID, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return errPlatform
	}
	n.assigned = append(n.assigned, eventID+"/"+userID)
	return nil
}

func (n *recorder) RevokeMembershipTag(_ context.Context, eventID, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revoked = append(n.revoked, eventID+"/"+userID)
	return nil
}

func (n *recorder) SendReminder(_ context.Context, e model.Event, _ []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failReminder || n.failAll {
		return errPlatform
	}
	n.reminders[e.ID]++
	return nil
}

func (n *recorder) AnnounceStart(_ context.Context, e model.Event, _ []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return errPlatform
	}
	n.started = append(n.started, e.ID)
	return nil
}

func (n *recorder) startsFor(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.started {
		if s == id {
			c++
		}
	}
	return c
}

func (n *recorder) remindersFor(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reminders[id]
}

// flakyStore fails every write while fail is set.
type flakyStore struct {
	*repository.MemoryStore
	mu   sync.Mutex
	fail bool
}

func (s *flakyStore) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *flakyStore) check(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("%s: %w: connection refused", op, model.ErrIO)
	}
	return nil
}

func (s *flakyStore) UpsertEvent(ctx context.Context, e model.Event) error {
	if err := s.check("upsert event"); err != nil {
		return err
	}
	return s.MemoryStore.UpsertEvent(ctx, e)
}

func (s *flakyStore) DeleteEvent(ctx context.Context, id string) error {
	if err := s.check("delete event"); err != nil {
		return err
	}
	return s.MemoryStore.DeleteEvent(ctx, id)
}

func (s *flakyStore) UpsertParticipant(ctx context.Context, eventID string, p model.Participant) error {
	if err := s.check("upsert participant"); err != nil {
		return err
	}
	return s.MemoryStore.UpsertParticipant(ctx, eventID, p)
}

func (s *flakyStore) DeleteParticipant(ctx context.Context, eventID, userID string) error {
	if err := s.check("delete participant"); err != nil {
		return err
	}
	return s.MemoryStore.DeleteParticipant(ctx, eventID, userID)
}

type fixture struct {
	reg    *Registry
	store  *flakyStore
	notif  *recorder
	timers *scheduler.Table
	clock  *fakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  &flakyStore{MemoryStore: repository.NewMemoryStore()},
		notif:  newRecorder(),
		timers: scheduler.NewTable(),
		clock:  &fakeClock{t: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.reg = New(f.store, f.notif, f.timers, opts...)
	return f
}

func (f *fixture) create(t *testing.T, title string, in time.Duration, capacity model.Capacity) model.Event {
	t.Helper()
	e, err := f.reg.CreateEvent(context.Background(), model.CreateInput{
		CommunityID: "guild-1",
		Title:       title,
		Start:       f.clock.Now().Add(in),
		Capacity:    capacity,
	}, "host")
	require.NoError(t, err)
	return e
}

var (
	host  = model.Requester{UserID: "host"}
	admin = model.Requester{UserID: "mod", Admin: true}
)

// ─── Scenarios ────────────────────────────────────────────────────────────────

func TestScenarioFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Board games", 35*time.Minute, 2)
	assert.Equal(t, model.StatusUpcoming, e.Status)
	assert.Equal(t, model.DisplayRef("card-"+e.ID), e.DisplayRef)

	_, err := f.reg.JoinEvent(ctx, e.ID, "alice")
	require.NoError(t, err)
	_, err = f.reg.JoinEvent(ctx, e.ID, "bob")
	require.NoError(t, err)
	_, err = f.reg.JoinEvent(ctx, e.ID, "carol")
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)

	f.clock.Advance(6 * time.Minute)
	require.NoError(t, f.reg.Tick(ctx, e.ID, f.clock.Now()))
	require.NoError(t, f.reg.Tick(ctx, e.ID, f.clock.Now()))
	assert.Equal(t, 1, f.notif.remindersFor(e.ID))

	f.clock.Advance(29 * time.Minute)
	require.NoError(t, f.reg.Tick(ctx, e.ID, f.clock.Now()))
	got, err := f.reg.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOngoing, got.Status)
	assert.True(t, got.ReminderSent)
	assert.Equal(t, 1, f.notif.startsFor(e.ID))
	require.NoError(t, f.reg.Tick(ctx, e.ID, f.clock.Now()))
	assert.Equal(t, 1, f.notif.startsFor(e.ID))

	done, err := f.reg.CompleteEvent(ctx, e.ID, host)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	_, armed := f.timers.Armed(e.ID)
	assert.False(t, armed)

	_, err = f.reg.JoinEvent(ctx, e.ID, "dave")
	assert.ErrorIs(t, err, model.ErrEventClosed)
	assert.Equal(t, 1, f.notif.remindersFor(e.ID))
}

func TestScenarioRescheduleIntoPast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Movie night", 2*time.Hour, model.Unlimited)

	got, err := f.reg.EditEvent(ctx, e.ID, model.Edit{
		Field: model.FieldStart,
		Start: f.clock.Now().Add(-time.Minute),
	}, host)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOngoing, got.Status)

	stored, ok := f.store.Event(e.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusOngoing, stored.Status)
}

func TestRescheduleIntoPastRejectedByPolicy(t *testing.T) {
	f := newFixture(t, WithPolicy(Policy{AllowOngoingJoins: true, RejectPastStart: true}))
	e := f.create(t, "Movie night", 2*time.Hour, model.Unlimited)

	_, err := f.reg.EditEvent(context.Background(), e.ID, model.Edit{
		Field: model.FieldStart,
		Start: f.clock.Now().Add(-time.Minute),
	}, host)
	assert.ErrorIs(t, err, model.ErrEventClosed)

	got, _ := f.reg.Get(e.ID)
	assert.Equal(t, model.StatusUpcoming, got.Status)
	assert.True(t, got.Start.Equal(e.Start))
}

func TestScenarioAdminDeletesOngoingEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Raid", time.Minute, 5)
	_, err := f.reg.JoinEvent(ctx, e.ID, "alice")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.reg.Tick(ctx, e.ID, f.clock.Now()))
	got, _ := f.reg.Get(e.ID)
	require.Equal(t, model.StatusOngoing, got.Status)

	require.NoError(t, f.reg.DeleteEvent(ctx, e.ID, admin))

	assert.Equal(t, []model.DisplayRef{e.DisplayRef}, f.notif.retracted)
	assert.Contains(t, f.notif.revoked, e.ID+"/alice")
	_, ok := f.store.Event(e.ID)
	assert.False(t, ok)
	_, err = f.reg.Get(e.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, armed := f.timers.Armed(e.ID)
	assert.False(t, armed)
	assert.ErrorIs(t, f.reg.Tick(ctx, e.ID, f.clock.Now()), model.ErrNotFound)
}

// ─── Properties ───────────────────────────────────────────────────────────────

func TestReminderSentOnceUnderConcurrentTicks(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "Standup", 10*time.Minute, model.Unlimited)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.reg.Tick(context.Background(), e.ID, f.clock.Now())
		}()
	}
	wg.Wait()
	require.NoError(t, f.reg.Tick(context.Background(), e.ID, f.clock.Now()))

	assert.Equal(t, 1, f.notif.remindersFor(e.ID))
	got, _ := f.reg.Get(e.ID)
	assert.True(t, got.ReminderSent)
}

func TestFailedReminderIsRetried(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "Standup", 10*time.Minute, model.Unlimited)

	f.notif.failReminder = true
	assert.Error(t, f.reg.Tick(context.Background(), e.ID, f.clock.Now()))
	got, _ := f.reg.Get(e.ID)
	assert.False(t, got.ReminderSent)

	f.notif.failReminder = false
	require.NoError(t, f.reg.Tick(context.Background(), e.ID, f.clock.Now()))
	assert.Equal(t, 1, f.notif.remindersFor(e.ID))
	got, _ = f.reg.Get(e.ID)
	assert.True(t, got.ReminderSent)
}

func TestReminderNotResetWhenStartMovesLater(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Standup", 10*time.Minute, model.Unlimited)
	require.NoError(t, f.reg.Tick(ctx, e.ID, f.clock.Now()))

	_, err := f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldStart, Start: f.clock.Now().Add(3 * time.Hour)}, host)
	require.NoError(t, err)
	f.clock.Advance(2*time.Hour + 40*time.Minute)
	require.NoError(t, f.reg.Tick(ctx, e.ID, f.clock.Now()))

	assert.Equal(t, 1, f.notif.remindersFor(e.ID))
}

func TestTransferHostRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Hike", time.Hour, model.Unlimited)

	_, err := f.reg.TransferHost(ctx, e.ID, "stranger", host)
	assert.ErrorIs(t, err, model.ErrTargetNotAParticipant)
	got, _ := f.reg.Get(e.ID)
	assert.Equal(t, "host", got.HostID)

	_, err = f.reg.JoinEvent(ctx, e.ID, "alice")
	require.NoError(t, err)
	_, err = f.reg.TransferHost(ctx, e.ID, "alice", model.Requester{UserID: "bob"})
	assert.ErrorIs(t, err, model.ErrForbidden)

	got, err = f.reg.TransferHost(ctx, e.ID, "alice", host)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.HostID)
}

func TestStoreFailureLeavesMemoryUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Picnic", time.Hour, 3)
	_, err := f.reg.JoinEvent(ctx, e.ID, "alice")
	require.NoError(t, err)

	f.store.setFail(true)

	_, err = f.reg.JoinEvent(ctx, e.ID, "bob")
	assert.ErrorIs(t, err, model.ErrIO)
	assert.True(t, model.Retryable(err))

	_, err = f.reg.LeaveEvent(ctx, e.ID, "alice")
	assert.ErrorIs(t, err, model.ErrIO)

	_, err = f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldTitle, Title: "Barbecue"}, host)
	assert.ErrorIs(t, err, model.ErrIO)

	assert.ErrorIs(t, f.reg.DeleteEvent(ctx, e.ID, host), model.ErrIO)

	_, err = f.reg.CreateEvent(ctx, model.CreateInput{
		CommunityID: "guild-1", Title: "Other", Start: f.clock.Now().Add(time.Hour), Capacity: 1,
	}, "host")
	assert.ErrorIs(t, err, model.ErrIO)

	got, err := f.reg.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, got.ParticipantIDs())
	assert.Equal(t, "Picnic", got.Title)
	assert.Equal(t, 1, f.reg.Len())

	// Reserved titles were released again.
	f.store.setFail(false)
	_, err = f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldTitle, Title: "Barbecue"}, host)
	require.NoError(t, err)
	f.create(t, "Other", time.Hour, 1)
}

func TestNotifierFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.notif.failAll = true

	e := f.create(t, "Quiz", time.Hour, model.Unlimited)
	assert.Empty(t, e.DisplayRef)

	got, err := f.reg.JoinEvent(context.Background(), e.ID, "alice")
	require.NoError(t, err)
	assert.True(t, got.HasParticipant("alice"))
}

// ─── Operations ───────────────────────────────────────────────────────────────

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Book Club", time.Hour, model.Unlimited)

	tests := []struct {
		name string
		in   model.CreateInput
		want error
	}{
		{"duplicate title ignoring case", model.CreateInput{CommunityID: "guild-1", Title: "book club", Start: f.clock.Now(), Capacity: 1}, model.ErrDuplicateTitle},
		{"zero capacity", model.CreateInput{CommunityID: "guild-1", Title: "Chess", Start: f.clock.Now(), Capacity: 0}, model.ErrInvalidCapacity},
		{"negative capacity", model.CreateInput{CommunityID: "guild-1", Title: "Chess", Start: f.clock.Now(), Capacity: -5}, model.ErrInvalidCapacity},
		{"empty title", model.CreateInput{CommunityID: "guild-1", Title: "  ", Start: f.clock.Now(), Capacity: 1}, model.ErrInvalidInput},
		{"missing start", model.CreateInput{CommunityID: "guild-1", Title: "Chess", Capacity: 1}, model.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reg.CreateEvent(ctx, tt.in, "host")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Same title in another community is fine.
	_, err := f.reg.CreateEvent(ctx, model.CreateInput{
		CommunityID: "guild-2", Title: "Book Club", Start: f.clock.Now().Add(time.Hour), Capacity: model.Unlimited,
	}, "host")
	assert.NoError(t, err)
}

func TestDistinctTitlesAreNotDuplicates(t *testing.T) {
	pairs := [][2]string{
		{"Party 🎉", "Party 🎊"},
		{"C++ night", "C night"},
		{"Raid-Night", "Raid Night"},
		{"Raid #1", "Raid 1"},
	}
	for _, p := range pairs {
		t.Run(p[0], func(t *testing.T) {
			f := newFixture(t)
			a := f.create(t, p[0], time.Hour, model.Unlimited)
			b := f.create(t, p[1], time.Hour, model.Unlimited)
			assert.NotEqual(t, a.ID, b.ID)

			_, err := f.reg.CreateEvent(context.Background(), model.CreateInput{
				CommunityID: "guild-1", Title: "  " + strings.ToUpper(p[0]) + " ", Start: f.clock.Now().Add(time.Hour),
				Capacity: model.Unlimited,
			}, "host")
			assert.ErrorIs(t, err, model.ErrDuplicateTitle)
		})
	}
}

func TestCreateWithPastStartIsOngoing(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "Late", -5*time.Minute, model.Unlimited)
	assert.Equal(t, model.StatusOngoing, e.Status)
	assert.Equal(t, 1, f.notif.remindersFor(e.ID))
}

func TestCompletedTitleCanBeReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Weekly", -time.Minute, model.Unlimited)
	_, err := f.reg.CompleteEvent(ctx, e.ID, host)
	require.NoError(t, err)

	f.create(t, "Weekly", time.Hour, model.Unlimited)
}

func TestCompleteUpcomingIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Soon", time.Hour, model.Unlimited)

	_, err := f.reg.CompleteEvent(ctx, e.ID, host)
	assert.ErrorIs(t, err, model.ErrNotStarted)

	_, err = f.reg.CompleteEvent(ctx, "missing", host)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOngoingJoinPolicy(t *testing.T) {
	for _, allow := range []bool{true, false} {
		t.Run(fmt.Sprintf("allow=%v", allow), func(t *testing.T) {
			f := newFixture(t, WithPolicy(Policy{AllowOngoingJoins: allow}))
			e := f.create(t, "Open mic", -time.Minute, model.Unlimited)
			require.Equal(t, model.StatusOngoing, e.Status)

			_, err := f.reg.JoinEvent(context.Background(), e.ID, "alice")
			if allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, model.ErrEventClosed)
			}
		})
	}
}

func TestLeaveKeepsHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Run", time.Hour, model.Unlimited)

	_, err := f.reg.JoinEvent(ctx, e.ID, "host")
	require.NoError(t, err)
	got, err := f.reg.LeaveEvent(ctx, e.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, "host", got.HostID)
	assert.False(t, got.HasParticipant("host"))

	_, err = f.reg.LeaveEvent(ctx, e.ID, "host")
	assert.ErrorIs(t, err, model.ErrNotAJoinedMember)
	assert.Contains(t, f.notif.assigned, e.ID+"/host")
	assert.Contains(t, f.notif.revoked, e.ID+"/host")
}

func TestJoinTwice(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "Run", time.Hour, model.Unlimited)
	_, err := f.reg.JoinEvent(context.Background(), e.ID, "alice")
	require.NoError(t, err)
	_, err = f.reg.JoinEvent(context.Background(), e.ID, "alice")
	assert.ErrorIs(t, err, model.ErrAlreadyJoined)
	_, err = f.reg.JoinEvent(context.Background(), "nope", "alice")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEditEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Dinner", time.Hour, 3)
	for _, u := range []string{"a", "b"} {
		_, err := f.reg.JoinEvent(ctx, e.ID, u)
		require.NoError(t, err)
	}
	f.create(t, "Lunch", time.Hour, 3)

	_, err := f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldDescription, Description: "x"}, model.Requester{UserID: "a"})
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldCapacity, Capacity: 1}, host)
	assert.ErrorIs(t, err, model.ErrInvalidCapacity)

	got, err := f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldCapacity, Capacity: 2}, admin)
	require.NoError(t, err)
	assert.Equal(t, model.Capacity(2), got.Capacity)
	assert.True(t, got.IsFull())

	_, err = f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldTitle, Title: "LUNCH"}, host)
	assert.ErrorIs(t, err, model.ErrDuplicateTitle)

	got, err = f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldDescription, Description: "  bring snacks "}, host)
	require.NoError(t, err)
	assert.Equal(t, "bring snacks", got.Description)

	newStart := f.clock.Now().Add(5 * time.Hour)
	got, err = f.reg.EditEvent(ctx, e.ID, model.Edit{Field: model.FieldStart, Start: newStart}, host)
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(newStart))
	tm, ok := f.timers.Armed(e.ID)
	require.True(t, ok)
	assert.True(t, tm.Start.Equal(newStart))
}

func TestStartEditAfterStartIsClosed(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "Jam", -time.Minute, model.Unlimited)
	_, err := f.reg.EditEvent(context.Background(), e.ID, model.Edit{Field: model.FieldStart, Start: f.clock.Now().Add(time.Hour)}, host)
	assert.ErrorIs(t, err, model.ErrEventClosed)
}

func TestRemoveParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "Trip", time.Hour, model.Unlimited)
	_, err := f.reg.JoinEvent(ctx, e.ID, "alice")
	require.NoError(t, err)

	_, err = f.reg.RemoveParticipant(ctx, e.ID, "alice", model.Requester{UserID: "bob"})
	assert.ErrorIs(t, err, model.ErrForbidden)

	got, err := f.reg.RemoveParticipant(ctx, e.ID, "alice", admin)
	require.NoError(t, err)
	assert.Empty(t, got.Participants)
}

func TestDeleteAllEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "One", time.Hour, model.Unlimited)
	f.create(t, "Two", time.Hour, model.Unlimited)
	_, err := f.reg.CreateEvent(ctx, model.CreateInput{
		CommunityID: "guild-2", Title: "Elsewhere", Start: f.clock.Now().Add(time.Hour), Capacity: model.Unlimited,
	}, "host")
	require.NoError(t, err)

	_, err = f.reg.DeleteAllEvents(ctx, "guild-1", host)
	assert.ErrorIs(t, err, model.ErrForbidden)

	n, err := f.reg.DeleteAllEvents(ctx, "guild-1", admin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.reg.List("guild-1"), 0)
	assert.Len(t, f.reg.List(""), 1)
	assert.Equal(t, 1, f.timers.Len())
}

func TestDeleteAllAggregatesFailures(t *testing.T) {
	f := newFixture(t)
	f.create(t, "One", time.Hour, model.Unlimited)
	f.create(t, "Two", time.Hour, model.Unlimited)
	f.store.setFail(true)

	n, err := f.reg.DeleteAllEvents(context.Background(), "guild-1", admin)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, model.ErrIO)
	assert.Len(t, f.reg.List("guild-1"), 2)
}

func TestSearchTitles(t *testing.T) {
	f := newFixture(t)
	for i := range 30 {
		f.create(t, fmt.Sprintf("Game %02d", i), time.Hour, model.Unlimited)
	}
	f.create(t, "Movie", time.Hour, model.Unlimited)

	got := f.reg.SearchTitles("guild-1", "game", 0)
	assert.Len(t, got, MaxSearchResults)
	assert.Equal(t, "Game 00", got[0])

	assert.Equal(t, []string{"Movie"}, f.reg.SearchTitles("guild-1", "MO", 10))
	assert.Empty(t, f.reg.SearchTitles("guild-2", "", 10))
}

func TestLoadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Alpha", time.Hour, 4)
	f.create(t, "Beta", 2*time.Hour, model.Unlimited)

	stored, err := f.store.ListNonTerminalEvents(context.Background())
	require.NoError(t, err)

	other := New(f.store, f.notif, scheduler.NewTable(), WithClock(f.clock.Now))
	other.Load(stored)
	first := other.List("")
	other.Load(stored)
	assert.Equal(t, first, other.List(""))
	assert.Equal(t, 2, other.Len())

	_, err = other.CreateEvent(context.Background(), model.CreateInput{
		CommunityID: "guild-1", Title: "alpha", Start: f.clock.Now().Add(time.Hour), Capacity: 1,
	}, "host")
	assert.ErrorIs(t, err, model.ErrDuplicateTitle)
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "Concert", time.Hour, 10)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		full int
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reg.JoinEvent(context.Background(), e.ID, fmt.Sprintf("user-%d", i))
			if errors.Is(err, model.ErrCapacityExceeded) {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, _ := f.reg.Get(e.ID)
	assert.Len(t, got.Participants, 10)
	assert.Equal(t, 40, full)
	stored, _ := f.store.Event(e.ID)
	assert.Len(t, stored.Participants, 10)
}
