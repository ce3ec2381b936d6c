package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Task types consumed by the platform worker.
const (
	TypeCardRender  = "card:render"
	TypeCardUpdate  = "card:update"
	TypeCardRebind  = "card:rebind"
	TypeCardRetract = "card:retract"
	TypeTagAssign   = "tag:assign"
	TypeTagRevoke   = "tag:revoke"
	TypeReminder    = "reminder:send"
	TypeStarted     = "event:started"
)

// CardPayload is the body of every card:* task. The worker keys the platform
// message by Ref.
type CardPayload struct {
	Ref   model.DisplayRef `json:"ref"`
	Event *model.Event     `json:"event,omitempty"`
}

type TagPayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// ReminderPayload is also the body of event:started tasks.
type ReminderPayload struct {
	Event          model.Event `json:"event"`
	ParticipantIDs []string    `json:"participant_ids"`
}

// Enqueuer is the subset of *asynq.Client the queue notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue hands every notification to a Redis-backed asynq queue for a
// separate platform worker. Display refs are minted here so the core gets a
// handle back synchronously.
type Queue struct {
	client   Enqueuer
	queue    string
	maxRetry int
	log      *zap.Logger
}

func NewQueue(client Enqueuer, queue string, log *zap.Logger) *Queue {
	if queue == "" {
		queue = "default"
	}
	return &Queue{client: client, queue: queue, maxRetry: 5, log: log.Named("notifier.queue")}
}

func (q *Queue) enqueue(ctx context.Context, typ string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", typ, err)
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(typ, body),
		asynq.Queue(q.queue), asynq.MaxRetry(q.maxRetry))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", typ, err)
	}
	if info != nil {
		q.log.Debug("task enqueued", zap.String("type", typ), zap.String("task_id", info.ID))
	}
	return nil
}

func newRef() (model.DisplayRef, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("mint display ref: %w", err)
	}
	return model.DisplayRef("q:" + id), nil
}

func (q *Queue) RenderEventCard(ctx context.Context, e model.Event) (model.DisplayRef, error) {
	ref, err := newRef()
	if err != nil {
		return "", err
	}
	if err := q.enqueue(ctx, TypeCardRender, CardPayload{Ref: ref, Event: &e}); err != nil {
		return "", err
	}
	return ref, nil
}

func (q *Queue) UpdateEventCard(ctx context.Context, ref model.DisplayRef, e model.Event) error {
	return q.enqueue(ctx, TypeCardUpdate, CardPayload{Ref: ref, Event: &e})
}

func (q *Queue) RebindEventCard(ctx context.Context, ref model.DisplayRef, e model.Event) (model.DisplayRef, error) {
	if ref == "" {
		return q.RenderEventCard(ctx, e)
	}
	if err := q.enqueue(ctx, TypeCardRebind, CardPayload{Ref: ref, Event: &e}); err != nil {
		return ref, err
	}
	return ref, nil
}

func (q *Queue) RetractEventCard(ctx context.Context, ref model.DisplayRef) error {
	return q.enqueue(ctx, TypeCardRetract, CardPayload{Ref: ref})
}

func (q *Queue) AssignMembershipTag(ctx context.Context, eventID, userID string) error {
	return q.enqueue(ctx, TypeTagAssign, TagPayload{EventID: eventID, UserID: userID})
}

func (q *Queue) RevokeMembershipTag(ctx context.Context, eventID, userID string) error {
	return q.enqueue(ctx, TypeTagRevoke, TagPayload{EventID: eventID, UserID: userID})
}

func (q *Queue) SendReminder(ctx context.Context, e model.Event, participantIDs []string) error {
	return q.enqueue(ctx, TypeReminder, ReminderPayload{Event: e, ParticipantIDs: participantIDs})
}

func (q *Queue) AnnounceStart(ctx context.Context, e model.Event, participantIDs []string) error {
	return q.enqueue(ctx, TypeStarted, ReminderPayload{Event: e, ParticipantIDs: participantIDs})
}
