package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// MemoryStore is a map-backed Store used by tests and the "memory" driver.
// It keeps state across registry restarts within one process only.
type MemoryStore struct {
	mu           sync.Mutex
	events       map[string]model.Event
	participants map[string]map[string]model.Participant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:       make(map[string]model.Event),
		participants: make(map[string]map[string]model.Participant),
	}
}

func (s *MemoryStore) UpsertEvent(_ context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Participants = nil
	s.events[e.ID] = e
	return nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	delete(s.participants, id)
	return nil
}

func (s *MemoryStore) UpsertParticipant(_ context.Context, eventID string, p model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.participants[eventID]
	if !ok {
		m = make(map[string]model.Participant)
		s.participants[eventID] = m
	}
	m[p.UserID] = p
	return nil
}

func (s *MemoryStore) DeleteParticipant(_ context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants[eventID], userID)
	return nil
}

func (s *MemoryStore) ListNonTerminalEvents(_ context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Event, 0, len(s.events))
	for id, e := range s.events {
		if e.Status.Terminal() {
			continue
		}
		ps := make([]model.Participant, 0, len(s.participants[id]))
		for _, p := range s.participants[id] {
			ps = append(ps, p)
		}
		sort.Slice(ps, func(i, j int) bool {
			if ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
				return ps[i].UserID < ps[j].UserID
			}
			return ps[i].JoinedAt.Before(ps[j].JoinedAt)
		})
		e.Participants = ps
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// Event returns the stored row and participants for id, for inspection.
func (s *MemoryStore) Event(id string) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, false
	}
	for _, p := range s.participants[id] {
		e.Participants = append(e.Participants, p)
	}
	return e, true
}

// Len returns the number of stored events, terminal ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
