// Package registry is the authoritative in-memory cache of live events. Every
// mutation is validated, written through to the store and only then made
// visible; notifier calls happen afterwards and never fail a mutation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/lifecycle"
	"github.com/Shivanand-hulikatti/eventbot/internal/membership"
	"github.com/Shivanand-hulikatti/eventbot/internal/model"
	"github.com/Shivanand-hulikatti/eventbot/internal/notifier"
	"github.com/Shivanand-hulikatti/eventbot/internal/repository"
)

// MaxSearchResults caps SearchTitles.
const MaxSearchResults = 25

// Timers is the scheduler's timer table as seen by the registry.
type Timers interface {
	// Arm registers or refreshes the timer for e. A terminal event is
	// disarmed instead.
	Arm(e model.Event)
	Disarm(id string)
}

// Policy holds the behaviour switches that differ between deployments.
type Policy struct {
	AllowOngoingJoins bool
	// RejectPastStart makes a start edit into the past fail with
	// ErrEventClosed instead of starting the event right away.
	RejectPastStart bool
}

func DefaultPolicy() Policy {
	return Policy{AllowOngoingJoins: true}
}

type Option func(*Registry)

func WithPolicy(p Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithReminderLead(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lead = d
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log }
}

type entry struct {
	mu    sync.Mutex
	event model.Event

	// reminding is set while a reminder for this event is in flight.
	reminding bool
	deleted   bool
}

// Registry must be built with New and shared by handle.
type Registry struct {
	store  repository.Store
	notif  notifier.Notifier
	timers Timers
	policy Policy
	lead   time.Duration
	now    func() time.Time
	log    *zap.Logger

	// mu guards events and titles only. It is always taken after an
	// entry lock, never before.
	mu     sync.RWMutex
	events map[string]*entry
	titles map[string]string
}

func New(store repository.Store, notif notifier.Notifier, timers Timers, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		notif:  notif,
		timers: timers,
		policy: DefaultPolicy(),
		lead:   lifecycle.DefaultReminderLead,
		now:    time.Now,
		log:    zap.NewNop(),
		events: make(map[string]*entry),
		titles: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Named("registry")
	return r
}

// ─── Title index ──────────────────────────────────────────────────────────────

// titleKey folds case only, the same way titles are resolved in commands.
func titleKey(communityID, title string) string {
	return communityID + "\x00" + strings.ToLower(strings.TrimSpace(title))
}

// reserveTitle claims key for id. It fails when another event holds it.
func (r *Registry) reserveTitle(key, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.titles[key]; ok && owner != id {
		return model.ErrDuplicateTitle
	}
	r.titles[key] = id
	return nil
}

func (r *Registry) releaseTitle(key, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.titles[key] == id {
		delete(r.titles, key)
	}
}

// ─── Locking helpers ──────────────────────────────────────────────────────────

func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events[id]
}

// acquire returns the entry for id locked, or ErrNotFound.
func (r *Registry) acquire(id string) (*entry, error) {
	ent := r.lookup(id)
	if ent == nil {
		return nil, model.ErrNotFound
	}
	ent.mu.Lock()
	if ent.deleted {
		ent.mu.Unlock()
		return nil, model.ErrNotFound
	}
	return ent, nil
}

// writeFunc commits a prepared copy to the store.
type writeFunc func(ctx context.Context) error

// mutate applies fn to a copy of the event under its lock. The copy replaces
// the cached event only when fn and the store write both succeed. It returns
// the previous and the new snapshot.
func (r *Registry) mutate(ctx context.Context, id string, fn func(e *model.Event) (writeFunc, error)) (model.Event, model.Event, error) {
	ent, err := r.acquire(id)
	if err != nil {
		return model.Event{}, model.Event{}, err
	}
	defer ent.mu.Unlock()

	prev := ent.event.Clone()
	next := ent.event.Clone()
	write, err := fn(&next)
	if err != nil {
		return prev, prev, err
	}
	if err := write(ctx); err != nil {
		return prev, prev, err
	}
	ent.event = next
	r.timers.Arm(next)
	return prev, next.Clone(), nil
}

func ledger(e *model.Event) *membership.Ledger {
	return membership.New(e.Capacity, e.Participants)
}

func (r *Registry) upsert(e *model.Event) writeFunc {
	return func(ctx context.Context) error {
		return r.store.UpsertEvent(ctx, *e)
	}
}

// notified logs a failed best-effort notifier call.
func (r *Registry) notified(op, eventID string, err error) {
	if err != nil {
		r.log.Debug("notifier call failed", zap.String("op", op), zap.String("event_id", eventID), zap.Error(err))
	}
}

func (r *Registry) refreshCard(ctx context.Context, e model.Event) {
	if e.DisplayRef == "" {
		return
	}
	r.notified("update_card", e.ID, r.notif.UpdateEventCard(ctx, e.DisplayRef, e))
}

// ─── Mutations ────────────────────────────────────────────────────────────────

// CreateEvent registers a new Upcoming event hosted by hostID. A start that
// already passed is applied at once, so the event comes back Ongoing.
func (r *Registry) CreateEvent(ctx context.Context, in model.CreateInput, hostID string) (model.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.Start.IsZero() || hostID == "" || in.CommunityID == "" {
		return model.Event{}, model.ErrInvalidInput
	}
	if !in.Capacity.Valid() {
		return model.Event{}, model.ErrInvalidCapacity
	}

	now := r.now()
	e := model.Event{
		ID:           uuid.NewString(),
		CommunityID:  in.CommunityID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Start:        in.Start.UTC(),
		Capacity:     in.Capacity,
		HostID:       hostID,
		Status:       model.StatusUpcoming,
		CreatedAt:    now.UTC(),
		Participants: []model.Participant{},
	}

	key := titleKey(e.CommunityID, e.Title)
	if err := r.reserveTitle(key, e.ID); err != nil {
		return model.Event{}, err
	}
	if err := r.store.UpsertEvent(ctx, e); err != nil {
		r.releaseTitle(key, e.ID)
		return model.Event{}, err
	}

	ent := &entry{event: e}
	ent.mu.Lock()
	r.mu.Lock()
	r.events[e.ID] = ent
	r.mu.Unlock()
	r.timers.Arm(e)
	ent.mu.Unlock()

	r.log.Info("event created", zap.String("event_id", e.ID), zap.String("title", e.Title),
		zap.Time("start", e.Start), zap.Stringer("capacity", e.Capacity))

	ref, err := r.notif.RenderEventCard(ctx, e.Clone())
	r.notified("render_card", e.ID, err)
	if err == nil && ref != "" {
		r.bindRef(ctx, e.ID, ref)
	}

	if !now.Before(e.Start) {
		if err := r.Tick(ctx, e.ID, now); err != nil {
			r.log.Warn("initial evaluation failed", zap.String("event_id", e.ID), zap.Error(err))
		}
	}
	return r.Get(e.ID)
}

// bindRef records a display reference. A failed write is logged only: the
// card exists and is re-bound on the next restart.
func (r *Registry) bindRef(ctx context.Context, id string, ref model.DisplayRef) {
	_, _, err := r.mutate(ctx, id, func(e *model.Event) (writeFunc, error) {
		e.DisplayRef = ref
		return r.upsert(e), nil
	})
	if err != nil {
		r.log.Warn("display ref not persisted", zap.String("event_id", id), zap.Error(err))
	}
}

func (r *Registry) JoinEvent(ctx context.Context, id, userID string) (model.Event, error) {
	if userID == "" {
		return model.Event{}, model.ErrInvalidInput
	}
	_, next, err := r.mutate(ctx, id, func(e *model.Event) (writeFunc, error) {
		if !lifecycle.CanJoin(e.Status, r.policy.AllowOngoingJoins) {
			return nil, model.ErrEventClosed
		}
		l := ledger(e)
		p, err := l.Join(userID, r.now())
		if err != nil {
			return nil, err
		}
		e.Participants = l.Participants()
		return func(ctx context.Context) error {
			return r.store.UpsertParticipant(ctx, e.ID, p)
		}, nil
	})
	if err != nil {
		return model.Event{}, err
	}

	r.notified("assign_tag", id, r.notif.AssignMembershipTag(ctx, id, userID))
	r.refreshCard(ctx, next)
	return next, nil
}

// LeaveEvent removes userID from the participants. The host may leave and
// stays host.
func (r *Registry) LeaveEvent(ctx context.Context, id, userID string) (model.Event, error) {
	next, err := r.dropParticipant(ctx, id, userID, nil)
	if err != nil {
		return model.Event{}, err
	}
	return next, nil
}

// RemoveParticipant is LeaveEvent issued by the host or an admin on behalf
// of userID.
func (r *Registry) RemoveParticipant(ctx context.Context, id, userID string, req model.Requester) (model.Event, error) {
	return r.dropParticipant(ctx, id, userID, &req)
}

func (r *Registry) dropParticipant(ctx context.Context, id, userID string, req *model.Requester) (model.Event, error) {
	_, next, err := r.mutate(ctx, id, func(e *model.Event) (writeFunc, error) {
		if req != nil && !req.CanManage(*e) {
			return nil, model.ErrForbidden
		}
		if e.Status.Terminal() {
			return nil, model.ErrEventClosed
		}
		l := ledger(e)
		if err := l.Leave(userID); err != nil {
			return nil, err
		}
		e.Participants = l.Participants()
		return func(ctx context.Context) error {
			return r.store.DeleteParticipant(ctx, e.ID, userID)
		}, nil
	})
	if err != nil {
		return model.Event{}, err
	}

	r.notified("revoke_tag", id, r.notif.RevokeMembershipTag(ctx, id, userID))
	r.refreshCard(ctx, next)
	return next, nil
}

// EditEvent changes one field. Moving the start re-arms the timer and
// evaluates the event right away.
func (r *Registry) EditEvent(ctx context.Context, id string, edit model.Edit, req model.Requester) (model.Event, error) {
	var newKey, oldKey string
	prev, next, err := r.mutate(ctx, id, func(e *model.Event) (writeFunc, error) {
		if !req.CanManage(*e) {
			return nil, model.ErrForbidden
		}
		if e.Status.Terminal() {
			return nil, model.ErrEventClosed
		}
		switch edit.Field {
		case model.FieldStart:
			if edit.Start.IsZero() {
				return nil, model.ErrInvalidInput
			}
			if !lifecycle.CanReschedule(e.Status) {
				return nil, model.ErrEventClosed
			}
			if r.policy.RejectPastStart && edit.Start.Before(r.now()) {
				return nil, model.ErrEventClosed
			}
			e.Start = edit.Start.UTC()
		case model.FieldDescription:
			e.Description = strings.TrimSpace(edit.Description)
		case model.FieldCapacity:
			if err := ledger(e).SetCapacity(edit.Capacity); err != nil {
				return nil, err
			}
			e.Capacity = edit.Capacity
		case model.FieldTitle:
			title := strings.TrimSpace(edit.Title)
			if title == "" {
				return nil, model.ErrInvalidInput
			}
			oldKey = titleKey(e.CommunityID, e.Title)
			if k := titleKey(e.CommunityID, title); k != oldKey {
				if err := r.reserveTitle(k, e.ID); err != nil {
					return nil, err
				}
				newKey = k
			}
			e.Title = title
		default:
			return nil, model.ErrInvalidInput
		}
		return r.upsert(e), nil
	})
	if err != nil {
		if newKey != "" {
			r.releaseTitle(newKey, id)
		}
		return model.Event{}, err
	}
	if newKey != "" {
		r.releaseTitle(oldKey, id)
	}

	r.refreshCard(ctx, next)
	if edit.Field == model.FieldStart && !prev.Start.Equal(next.Start) {
		if err := r.Tick(ctx, id, r.now()); err != nil {
			r.log.Warn("evaluation after reschedule failed", zap.String("event_id", id), zap.Error(err))
		}
		return r.Get(id)
	}
	return next, nil
}

// TransferHost hands the event to a current participant.
func (r *Registry) TransferHost(ctx context.Context, id, newHostID string, req model.Requester) (model.Event, error) {
	_, next, err := r.mutate(ctx, id, func(e *model.Event) (writeFunc, error) {
		if !req.CanManage(*e) {
			return nil, model.ErrForbidden
		}
		if e.Status.Terminal() {
			return nil, model.ErrEventClosed
		}
		if !e.HasParticipant(newHostID) {
			return nil, model.ErrTargetNotAParticipant
		}
		e.HostID = newHostID
		return r.upsert(e), nil
	})
	if err != nil {
		return model.Event{}, err
	}
	r.log.Info("host transferred", zap.String("event_id", id), zap.String("host_id", newHostID))
	r.refreshCard(ctx, next)
	return next, nil
}

// CompleteEvent ends an Ongoing event. The event stays readable until it is
// deleted, but its title is free again and its timer is gone.
func (r *Registry) CompleteEvent(ctx context.Context, id string, req model.Requester) (model.Event, error) {
	_, next, err := r.mutate(ctx, id, func(e *model.Event) (writeFunc, error) {
		if !req.CanManage(*e) {
			return nil, model.ErrForbidden
		}
		done, err := lifecycle.Complete(*e)
		if err != nil {
			return nil, err
		}
		*e = done
		return r.upsert(e), nil
	})
	if err != nil {
		return model.Event{}, err
	}
	r.releaseTitle(titleKey(next.CommunityID, next.Title), id)
	r.log.Info("event completed", zap.String("event_id", id))

	for _, uid := range next.ParticipantIDs() {
		r.notified("revoke_tag", id, r.notif.RevokeMembershipTag(ctx, id, uid))
	}
	r.refreshCard(ctx, next)
	return next, nil
}

// DeleteEvent removes the event everywhere. The store cascade runs first; on
// failure nothing changes.
func (r *Registry) DeleteEvent(ctx context.Context, id string, req model.Requester) error {
	ent, err := r.acquire(id)
	if err != nil {
		return err
	}
	if !req.CanManage(ent.event) {
		ent.mu.Unlock()
		return model.ErrForbidden
	}
	if err := r.store.DeleteEvent(ctx, id); err != nil {
		ent.mu.Unlock()
		return err
	}
	ent.deleted = true
	snap := ent.event.Clone()
	r.mu.Lock()
	delete(r.events, id)
	if r.titles[titleKey(snap.CommunityID, snap.Title)] == id {
		delete(r.titles, titleKey(snap.CommunityID, snap.Title))
	}
	r.mu.Unlock()
	r.timers.Disarm(id)
	ent.mu.Unlock()

	r.log.Info("event deleted", zap.String("event_id", id), zap.String("by", req.UserID))

	if snap.DisplayRef != "" {
		r.notified("retract_card", id, r.notif.RetractEventCard(ctx, snap.DisplayRef))
	}
	if !snap.Status.Terminal() {
		for _, uid := range snap.ParticipantIDs() {
			r.notified("revoke_tag", id, r.notif.RevokeMembershipTag(ctx, id, uid))
		}
	}
	return nil
}

// DeleteAllEvents deletes every event of communityID. Only admins may do
// this. Failures of single events do not stop the others and are returned
// together with the number of events that were deleted.
func (r *Registry) DeleteAllEvents(ctx context.Context, communityID string, req model.Requester) (int, error) {
	if !req.Admin {
		return 0, model.ErrForbidden
	}
	var (
		deleted int
		errs    error
	)
	for _, e := range r.List(communityID) {
		err := r.DeleteEvent(ctx, e.ID, req)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, model.ErrNotFound):
		default:
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", e.ID, err))
		}
	}
	r.log.Info("community cleared", zap.String("community_id", communityID), zap.Int("deleted", deleted))
	return deleted, errs
}

// ─── Scheduler entry ──────────────────────────────────────────────────────────

// Tick applies whatever time-driven work is due for id at now. The start
// transition is persisted under the event lock. The reminder is sent outside
// it and recorded only after delivery, so a failed send is retried on the
// next tick.
func (r *Registry) Tick(ctx context.Context, id string, now time.Time) error {
	ent, err := r.acquire(id)
	if err != nil {
		return err
	}

	d := lifecycle.Evaluate(ent.event, now, r.lead)
	if ent.reminding {
		d.Remind = false
	}
	if d.None() {
		ent.mu.Unlock()
		return nil
	}

	if d.Start {
		next, err := lifecycle.Apply(ent.event.Clone(), d)
		if err == nil {
			err = r.store.UpsertEvent(ctx, next)
		}
		if err != nil {
			ent.mu.Unlock()
			return err
		}
		ent.event = next
		r.timers.Arm(next)
		r.log.Info("event started", zap.String("event_id", id))
	}
	if d.Remind {
		ent.reminding = true
	}
	snap := ent.event.Clone()
	ent.mu.Unlock()

	if d.Start {
		r.refreshCard(ctx, snap)
		r.notified("announce_start", id, r.notif.AnnounceStart(ctx, snap, snap.ParticipantIDs()))
	}
	if !d.Remind {
		return nil
	}
	return r.remind(ctx, ent, snap)
}

func (r *Registry) remind(ctx context.Context, ent *entry, snap model.Event) error {
	sendErr := r.notif.SendReminder(ctx, snap, snap.ParticipantIDs())

	ent.mu.Lock()
	defer ent.mu.Unlock()
	ent.reminding = false
	if sendErr != nil {
		r.log.Warn("reminder not delivered, will retry", zap.String("event_id", snap.ID), zap.Error(sendErr))
		return sendErr
	}
	if ent.deleted || ent.event.ReminderSent {
		return nil
	}
	next := ent.event.Clone()
	next.ReminderSent = true
	if err := r.store.UpsertEvent(ctx, next); err != nil {
		return err
	}
	ent.event = next
	r.timers.Arm(next)
	r.log.Info("reminder sent", zap.String("event_id", snap.ID), zap.Int("participants", len(snap.Participants)))
	return nil
}

// ─── Recovery ─────────────────────────────────────────────────────────────────

// Load replaces the cache with events read from the store and arms their
// timers. Loading the same set twice yields the same state.
func (r *Registry) Load(events []model.Event) {
	fresh := make(map[string]*entry, len(events))
	titles := make(map[string]string, len(events))
	for _, e := range events {
		e = e.Clone()
		if e.Participants == nil {
			e.Participants = []model.Participant{}
		}
		fresh[e.ID] = &entry{event: e}
		if !e.Status.Terminal() {
			titles[titleKey(e.CommunityID, e.Title)] = e.ID
		}
	}

	r.mu.Lock()
	old := r.events
	r.events = fresh
	r.titles = titles
	r.mu.Unlock()

	for id := range old {
		if _, ok := fresh[id]; !ok {
			r.timers.Disarm(id)
		}
	}
	for _, ent := range fresh {
		r.timers.Arm(ent.event)
	}
	r.log.Info("registry loaded", zap.Int("events", len(fresh)))
}

// Rebind asks the notifier to re-attach the live card of id, persisting the
// new reference when the card had to be re-posted.
func (r *Registry) Rebind(ctx context.Context, id string) error {
	snap, err := r.Get(id)
	if err != nil {
		return err
	}
	ref, err := r.notif.RebindEventCard(ctx, snap.DisplayRef, snap)
	if err != nil {
		return err
	}
	if ref == snap.DisplayRef {
		return nil
	}
	_, _, err = r.mutate(ctx, id, func(e *model.Event) (writeFunc, error) {
		e.DisplayRef = ref
		return r.upsert(e), nil
	})
	return err
}

// ─── Queries ──────────────────────────────────────────────────────────────────

func (r *Registry) Get(id string) (model.Event, error) {
	ent := r.lookup(id)
	if ent == nil {
		return model.Event{}, model.ErrNotFound
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.deleted {
		return model.Event{}, model.ErrNotFound
	}
	return ent.event.Clone(), nil
}

// List returns the events of communityID, or of every community when it is
// empty, ordered by start.
func (r *Registry) List(communityID string) []model.Event {
	r.mu.RLock()
	ents := make([]*entry, 0, len(r.events))
	for _, ent := range r.events {
		ents = append(ents, ent)
	}
	r.mu.RUnlock()

	out := make([]model.Event, 0, len(ents))
	for _, ent := range ents {
		ent.mu.Lock()
		if !ent.deleted && (communityID == "" || ent.event.CommunityID == communityID) {
			out = append(out, ent.event.Clone())
		}
		ent.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// SearchTitles returns titles of live events in communityID starting with
// prefix, ignoring case. At most MaxSearchResults are returned.
func (r *Registry) SearchTitles(communityID, prefix string, limit int) []string {
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	var titles []string
	for _, e := range r.List(communityID) {
		if e.Status.Terminal() {
			continue
		}
		if strings.HasPrefix(strings.ToLower(e.Title), prefix) {
			titles = append(titles, e.Title)
		}
	}
	sort.Strings(titles)
	if len(titles) > limit {
		titles = titles[:limit]
	}
	return titles
}

// Len returns the number of cached events.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
