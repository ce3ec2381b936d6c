package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// PostgresStore persists events with pgx directly (no ORM).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertEvent inserts the event row or overwrites every mutable column.
func (s *PostgresStore) UpsertEvent(ctx context.Context, e model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (id, community_id, title, description, start_at, capacity,
		                     host_id, status, reminder_sent, display_ref, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		 ON CONFLICT (id) DO UPDATE SET
		     title = EXCLUDED.title,
		     description = EXCLUDED.description,
		     start_at = EXCLUDED.start_at,
		     capacity = EXCLUDED.capacity,
		     host_id = EXCLUDED.host_id,
		     status = EXCLUDED.status,
		     reminder_sent = EXCLUDED.reminder_sent,
		     display_ref = EXCLUDED.display_ref,
		     updated_at = now()`,
		e.ID, e.CommunityID, e.Title, e.Description, e.Start.UTC(), capacityColumn(e.Capacity),
		e.HostID, string(e.Status), e.ReminderSent, displayRefColumn(e.DisplayRef), e.CreatedAt.UTC(),
	)
	if err != nil {
		return ioErr("upsert event", err)
	}
	return nil
}

// DeleteEvent removes participants and the event row inside one transaction,
// so a partial failure cannot leave orphaned participant rows.
func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM participants WHERE event_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return ioErr("delete event", err)
	}
	return nil
}

func (s *PostgresStore) UpsertParticipant(ctx context.Context, eventID string, p model.Participant) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO participants (event_id, user_id, joined_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, user_id) DO UPDATE SET joined_at = EXCLUDED.joined_at`,
		eventID, p.UserID, p.JoinedAt.UTC(),
	)
	if err != nil {
		return ioErr("upsert participant", err)
	}
	return nil
}

func (s *PostgresStore) DeleteParticipant(ctx context.Context, eventID, userID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM participants WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	)
	if err != nil {
		return ioErr("delete participant", err)
	}
	return nil
}

// ListNonTerminalEvents loads live events and their participants in two
// queries.
func (s *PostgresStore) ListNonTerminalEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, community_id, title, description, start_at, capacity,
		        host_id, status, reminder_sent, display_ref, created_at
		 FROM events
		 WHERE status <> $1
		 ORDER BY start_at ASC, id ASC`,
		string(model.StatusCompleted),
	)
	if err != nil {
		return nil, ioErr("list events", err)
	}
	defer rows.Close()

	var (
		events []model.Event
		ids    []string
		byID   = make(map[string]int)
	)
	for rows.Next() {
		var (
			e          model.Event
			status     string
			capacity   *int
			displayRef *string
		)
		if err := rows.Scan(&e.ID, &e.CommunityID, &e.Title, &e.Description, &e.Start, &capacity,
			&e.HostID, &status, &e.ReminderSent, &displayRef, &e.CreatedAt); err != nil {
			return nil, ioErr("scan event", err)
		}
		e.Status = model.Status(status)
		e.Capacity = capacityFromColumn(capacity)
		e.DisplayRef = displayRefFromColumn(displayRef)
		e.Start = e.Start.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		e.Participants = []model.Participant{}

		byID[e.ID] = len(events)
		ids = append(ids, e.ID)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list events", err)
	}
	if len(ids) == 0 {
		return events, nil
	}

	prows, err := s.db.Query(ctx,
		`SELECT event_id, user_id, joined_at
		 FROM participants
		 WHERE event_id = ANY($1)
		 ORDER BY joined_at ASC, user_id ASC`,
		ids,
	)
	if err != nil {
		return nil, ioErr("list participants", err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			eventID  string
			p        model.Participant
			joinedAt time.Time
		)
		if err := prows.Scan(&eventID, &p.UserID, &joinedAt); err != nil {
			return nil, ioErr("scan participant", err)
		}
		p.JoinedAt = joinedAt.UTC()
		if i, ok := byID[eventID]; ok {
			events[i].Participants = append(events[i].Participants, p)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, ioErr("list participants", err)
	}
	return events, nil
}
