// Package membership implements the per-event participant ledger: an ordered
// set of users with hard capacity admission. Nothing is ever evicted.
package membership

import (
	"time"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Ledger is not safe for concurrent use; the registry serialises access
// through the owning event's lock.
type Ledger struct {
	capacity model.Capacity
	members  []model.Participant
	index    map[string]int
}

// New builds a ledger from already-admitted participants. It does not check
// capacity so that a stored state can always be reloaded.
func New(capacity model.Capacity, participants []model.Participant) *Ledger {
	l := &Ledger{
		capacity: capacity,
		members:  make([]model.Participant, 0, len(participants)),
		index:    make(map[string]int, len(participants)),
	}
	for _, p := range participants {
		if _, ok := l.index[p.UserID]; ok {
			continue
		}
		l.index[p.UserID] = len(l.members)
		l.members = append(l.members, p)
	}
	return l
}

// Join admits userID. A failed join leaves the ledger unchanged.
func (l *Ledger) Join(userID string, at time.Time) (model.Participant, error) {
	if _, ok := l.index[userID]; ok {
		return model.Participant{}, model.ErrAlreadyJoined
	}
	if !l.capacity.Admits(len(l.members) + 1) {
		return model.Participant{}, model.ErrCapacityExceeded
	}
	p := model.Participant{UserID: userID, JoinedAt: at.UTC()}
	l.index[userID] = len(l.members)
	l.members = append(l.members, p)
	return p, nil
}

// Leave removes userID, keeping the order of the remaining members.
func (l *Ledger) Leave(userID string) error {
	i, ok := l.index[userID]
	if !ok {
		return model.ErrNotAJoinedMember
	}
	l.members = append(l.members[:i], l.members[i+1:]...)
	delete(l.index, userID)
	for j := i; j < len(l.members); j++ {
		l.index[l.members[j].UserID] = j
	}
	return nil
}

// SetCapacity changes the limit. It fails when the new capacity is not valid
// or would leave the ledger over capacity.
func (l *Ledger) SetCapacity(c model.Capacity) error {
	if !c.Valid() || !c.Admits(len(l.members)) {
		return model.ErrInvalidCapacity
	}
	l.capacity = c
	return nil
}

func (l *Ledger) Contains(userID string) bool {
	_, ok := l.index[userID]
	return ok
}

func (l *Ledger) Len() int {
	return len(l.members)
}

func (l *Ledger) Capacity() model.Capacity {
	return l.capacity
}

// IDs returns member user IDs in join order.
func (l *Ledger) IDs() []string {
	ids := make([]string, len(l.members))
	for i, p := range l.members {
		ids[i] = p.UserID
	}
	return ids
}

// Participants returns a copy of the members in join order.
func (l *Ledger) Participants() []model.Participant {
	out := make([]model.Participant, len(l.members))
	copy(out, l.members)
	return out
}

// Clone returns an independent copy.
func (l *Ledger) Clone() *Ledger {
	return New(l.capacity, l.members)
}
