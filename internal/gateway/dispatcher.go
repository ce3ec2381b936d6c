package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Registry is the set of core operations the dispatcher drives.
type Registry interface {
	CreateEvent(ctx context.Context, in model.CreateInput, hostID string) (model.Event, error)
	JoinEvent(ctx context.Context, id, userID string) (model.Event, error)
	LeaveEvent(ctx context.Context, id, userID string) (model.Event, error)
	EditEvent(ctx context.Context, id string, edit model.Edit, req model.Requester) (model.Event, error)
	TransferHost(ctx context.Context, id, newHostID string, req model.Requester) (model.Event, error)
	CompleteEvent(ctx context.Context, id string, req model.Requester) (model.Event, error)
	RemoveParticipant(ctx context.Context, id, userID string, req model.Requester) (model.Event, error)
	DeleteEvent(ctx context.Context, id string, req model.Requester) error
	DeleteAllEvents(ctx context.Context, communityID string, req model.Requester) (int, error)
	Get(id string) (model.Event, error)
	List(communityID string) []model.Event
	SearchTitles(communityID, prefix string, limit int) []string
}

// Result carries whatever the command produced. Only the fields relevant to
// the command's kind are set.
type Result struct {
	Kind    Kind
	Event   *model.Event
	Events  []model.Event
	Titles  []string
	Deleted int
}

type Dispatcher struct {
	reg Registry
	log *zap.Logger
}

func NewDispatcher(reg Registry, log *zap.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: log.Named("gateway")}
}

// Dispatch runs cmd on behalf of req. Errors are the core's sentinel errors;
// mapping them to user-facing text is left to the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.Requester, cmd Command) (Result, error) {
	res, err := d.dispatch(ctx, req, cmd)
	res.Kind = cmd.Kind()
	if err != nil {
		d.log.Debug("command rejected", zap.Stringer("kind", cmd.Kind()),
			zap.String("user_id", req.UserID), zap.Error(err))
	}
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req model.Requester, cmd Command) (Result, error) {
	one := func(e model.Event, err error) (Result, error) {
		if err != nil {
			return Result{}, err
		}
		return Result{Event: &e}, nil
	}

	switch c := cmd.(type) {
	case Create:
		return one(d.reg.CreateEvent(ctx, model.CreateInput{
			CommunityID: c.Community,
			Title:       c.Title,
			Description: c.Description,
			Start:       c.Start,
			Capacity:    c.Capacity,
		}, req.UserID))
	case List:
		return Result{Events: d.reg.List(c.Community)}, nil
	case Search:
		return Result{Titles: d.reg.SearchTitles(c.Community, c.Prefix, c.Limit)}, nil
	case DeleteAll:
		n, err := d.reg.DeleteAllEvents(ctx, c.Community, req)
		return Result{Deleted: n}, err
	}

	target, ok := targetOf(cmd)
	if !ok {
		return Result{}, fmt.Errorf("%w: unsupported command %T", model.ErrInvalidInput, cmd)
	}
	cur, err := d.resolve(target)
	if err != nil {
		return Result{}, err
	}

	switch c := cmd.(type) {
	case Join:
		return one(d.reg.JoinEvent(ctx, cur.ID, req.UserID))
	case Leave:
		return one(d.reg.LeaveEvent(ctx, cur.ID, req.UserID))
	case Edit:
		change := c.Change
		if change.Field == model.FieldStart {
			change.Start = mergeStart(cur.Start, change.Start, c.Part)
		}
		return one(d.reg.EditEvent(ctx, cur.ID, change, req))
	case Transfer:
		return one(d.reg.TransferHost(ctx, cur.ID, c.NewHost, req))
	case Complete:
		return one(d.reg.CompleteEvent(ctx, cur.ID, req))
	case Remove:
		return one(d.reg.RemoveParticipant(ctx, cur.ID, c.UserID, req))
	case Delete:
		if err := d.reg.DeleteEvent(ctx, cur.ID, req); err != nil {
			return Result{}, err
		}
		return Result{Event: &cur, Deleted: 1}, nil
	case Show:
		return Result{Event: &cur}, nil
	}
	return Result{}, fmt.Errorf("%w: unsupported command %T", model.ErrInvalidInput, cmd)
}

func targetOf(cmd Command) (Target, bool) {
	switch c := cmd.(type) {
	case Join:
		return c.Target, true
	case Leave:
		return c.Target, true
	case Edit:
		return c.Target, true
	case Transfer:
		return c.Target, true
	case Complete:
		return c.Target, true
	case Remove:
		return c.Target, true
	case Delete:
		return c.Target, true
	case Show:
		return c.Target, true
	}
	return Target{}, false
}

// resolve finds the event a target names: an exact ID first, then a title
// within the community, ignoring case. Live events win over completed ones.
func (d *Dispatcher) resolve(t Target) (model.Event, error) {
	if e, err := d.reg.Get(t.Ref); err == nil {
		if t.Community == "" || e.CommunityID == t.Community {
			return e, nil
		}
	}
	var found *model.Event
	for _, e := range d.reg.List(t.Community) {
		if !strings.EqualFold(e.Title, t.Ref) {
			continue
		}
		if !e.Status.Terminal() {
			return e, nil
		}
		if found == nil {
			found = &e
		}
	}
	if found != nil {
		return *found, nil
	}
	return model.Event{}, model.ErrNotFound
}

func mergeStart(cur, v time.Time, part StartPart) time.Time {
	switch part {
	case PartDate:
		return combine(v, cur.UTC())
	case PartTime:
		return combine(cur, v)
	}
	return v
}
