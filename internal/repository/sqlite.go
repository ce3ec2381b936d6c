package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	community_id  TEXT NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	start_at      TEXT NOT NULL,
	capacity      INTEGER,
	host_id       TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'Upcoming',
	reminder_sent INTEGER NOT NULL DEFAULT 0,
	display_ref   TEXT,
	created_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS participants (
	event_id  TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	user_id   TEXT NOT NULL,
	joined_at TEXT NOT NULL,
	PRIMARY KEY (event_id, user_id)
);`

// SQLiteStore keeps everything in a single SQLite file for single-node
// deployments.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore wraps an open connection. Call CreateTables once before use.
func NewSQLiteStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateTables creates the schema if it does not exist yet.
func (s *SQLiteStore) CreateTables(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return ioErr("create tables", err)
	}
	return nil
}

type eventRow struct {
	ID           string         `db:"id"`
	CommunityID  string         `db:"community_id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	StartAt      string         `db:"start_at"`
	Capacity     sql.NullInt64  `db:"capacity"`
	HostID       string         `db:"host_id"`
	Status       string         `db:"status"`
	ReminderSent bool           `db:"reminder_sent"`
	DisplayRef   sql.NullString `db:"display_ref"`
	CreatedAt    string         `db:"created_at"`
}

type participantRow struct {
	EventID  string `db:"event_id"`
	UserID   string `db:"user_id"`
	JoinedAt string `db:"joined_at"`
}

// timeLayout is fixed width so that TEXT order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (r eventRow) toModel() (model.Event, error) {
	start, err := time.Parse(time.RFC3339Nano, r.StartAt)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse start_at of %s: %w", r.ID, err)
	}
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse created_at of %s: %w", r.ID, err)
	}
	e := model.Event{
		ID:           r.ID,
		CommunityID:  r.CommunityID,
		Title:        r.Title,
		Description:  r.Description,
		Start:        start.UTC(),
		Capacity:     model.Unlimited,
		HostID:       r.HostID,
		Status:       model.Status(r.Status),
		ReminderSent: r.ReminderSent,
		CreatedAt:    created.UTC(),
		Participants: []model.Participant{},
	}
	if r.Capacity.Valid {
		e.Capacity = model.Capacity(r.Capacity.Int64)
	}
	if r.DisplayRef.Valid {
		e.DisplayRef = model.DisplayRef(r.DisplayRef.String)
	}
	return e, nil
}

func (s *SQLiteStore) UpsertEvent(ctx context.Context, e model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, community_id, title, description, start_at, capacity,
		                     host_id, status, reminder_sent, display_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     title = excluded.title,
		     description = excluded.description,
		     start_at = excluded.start_at,
		     capacity = excluded.capacity,
		     host_id = excluded.host_id,
		     status = excluded.status,
		     reminder_sent = excluded.reminder_sent,
		     display_ref = excluded.display_ref`,
		e.ID, e.CommunityID, e.Title, e.Description, formatTime(e.Start), capacityColumn(e.Capacity),
		e.HostID, string(e.Status), e.ReminderSent, displayRefColumn(e.DisplayRef), formatTime(e.CreatedAt),
	)
	if err != nil {
		return ioErr("upsert event", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ioErr("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE event_id = ?`, id); err != nil {
		return ioErr("delete participants", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return ioErr("delete event", err)
	}
	if err := tx.Commit(); err != nil {
		return ioErr("commit delete", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertParticipant(ctx context.Context, eventID string, p model.Participant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (event_id, user_id, joined_at) VALUES (?, ?, ?)
		 ON CONFLICT (event_id, user_id) DO UPDATE SET joined_at = excluded.joined_at`,
		eventID, p.UserID, formatTime(p.JoinedAt),
	)
	if err != nil {
		return ioErr("upsert participant", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteParticipant(ctx context.Context, eventID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM participants WHERE event_id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return ioErr("delete participant", err)
	}
	return nil
}

func (s *SQLiteStore) ListNonTerminalEvents(ctx context.Context) ([]model.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, community_id, title, description, start_at, capacity,
		        host_id, status, reminder_sent, display_ref, created_at
		 FROM events WHERE status <> ? ORDER BY start_at ASC, id ASC`,
		string(model.StatusCompleted))
	if err != nil {
		return nil, ioErr("list events", err)
	}

	events := make([]model.Event, 0, len(rows))
	byID := make(map[string]int, len(rows))
	for _, r := range rows {
		e, err := r.toModel()
		if err != nil {
			return nil, ioErr("decode event", err)
		}
		byID[e.ID] = len(events)
		events = append(events, e)
	}
	if len(events) == 0 {
		return events, nil
	}

	var prows []participantRow
	err = s.db.SelectContext(ctx, &prows,
		`SELECT p.event_id, p.user_id, p.joined_at
		 FROM participants p JOIN events e ON e.id = p.event_id
		 WHERE e.status <> ?
		 ORDER BY p.joined_at ASC, p.rowid ASC`,
		string(model.StatusCompleted))
	if err != nil {
		return nil, ioErr("list participants", err)
	}
	for _, pr := range prows {
		i, ok := byID[pr.EventID]
		if !ok {
			continue
		}
		joined, err := time.Parse(time.RFC3339Nano, pr.JoinedAt)
		if err != nil {
			return nil, ioErr("decode participant", err)
		}
		events[i].Participants = append(events[i].Participants, model.Participant{
			UserID:   pr.UserID,
			JoinedAt: joined.UTC(),
		})
	}
	return events, nil
}
