package gateway

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// ErrUnknownCommand is returned for a name the table does not know.
var ErrUnknownCommand = errors.New("unknown command")

const (
	dateLayout = "02-01-2006"
	timeLayout = "15:04"
)

// Request is a raw command invocation: the community it was issued in and
// its named arguments.
type Request struct {
	Community string
	Args      map[string]string
}

func (r Request) arg(key string) string {
	return strings.TrimSpace(r.Args[key])
}

func (r Request) required(key string) (string, error) {
	v := r.arg(key)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", model.ErrInvalidInput, key)
	}
	return v, nil
}

func (r Request) target() (Target, error) {
	ref, err := r.required("event")
	if err != nil {
		return Target{}, err
	}
	return Target{Community: r.Community, Ref: ref}, nil
}

type Parser func(Request) (Command, error)

// Binding attaches an external command name to a variant.
type Binding struct {
	Name  string
	Kind  Kind
	Usage string
	Parse Parser
}

type Table struct {
	bindings map[string]Binding
}

// NewTable checks that every name is unique and parses into a known kind,
// and that every kind is reachable through at least one name.
func NewTable(bindings []Binding) (*Table, error) {
	t := &Table{bindings: make(map[string]Binding, len(bindings))}
	covered := make(map[Kind]bool)
	for _, b := range bindings {
		switch {
		case b.Name == "":
			return nil, errors.New("command table: empty name")
		case !b.Kind.Valid():
			return nil, fmt.Errorf("command table: %s maps to unknown kind %d", b.Name, b.Kind)
		case b.Parse == nil:
			return nil, fmt.Errorf("command table: %s has no parser", b.Name)
		}
		if _, dup := t.bindings[b.Name]; dup {
			return nil, fmt.Errorf("command table: duplicate name %s", b.Name)
		}
		t.bindings[b.Name] = b
		covered[b.Kind] = true
	}
	for _, k := range Kinds() {
		if !covered[k] {
			return nil, fmt.Errorf("command table: no command for %s", k)
		}
	}
	return t, nil
}

// DefaultTable is the table built from DefaultBindings.
func DefaultTable() *Table {
	t, err := NewTable(DefaultBindings())
	if err != nil {
		panic(err)
	}
	return t
}

// Parse builds the command registered under name.
func (t *Table) Parse(name string, req Request) (Command, error) {
	b, ok := t.bindings[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	cmd, err := b.Parse(req)
	if err != nil {
		return nil, err
	}
	if cmd.Kind() != b.Kind {
		return nil, fmt.Errorf("command %s parsed into %s, want %s", name, cmd.Kind(), b.Kind)
	}
	return cmd, nil
}

func (t *Table) Lookup(name string) (Binding, bool) {
	b, ok := t.bindings[name]
	return b, ok
}

// Bindings returns all bindings ordered by name.
func (t *Table) Bindings() []Binding {
	out := make([]Binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ─── Default command set ──────────────────────────────────────────────────────

func DefaultBindings() []Binding {
	edit := func(field model.Field, part StartPart, key string, set func(*model.Edit, string) error) Parser {
		return func(r Request) (Command, error) {
			tg, err := r.target()
			if err != nil {
				return nil, err
			}
			v, err := r.required(key)
			if err != nil {
				return nil, err
			}
			change := model.Edit{Field: field}
			if err := set(&change, v); err != nil {
				return nil, err
			}
			return Edit{Target: tg, Change: change, Part: part}, nil
		}
	}
	onTarget := func(build func(Target) Command) Parser {
		return func(r Request) (Command, error) {
			tg, err := r.target()
			if err != nil {
				return nil, err
			}
			return build(tg), nil
		}
	}

	return []Binding{
		{Name: "host_event", Kind: KindCreate, Usage: "title date=DD-MM-YYYY time=HH:MM description [max]", Parse: parseCreate},
		{Name: "join", Kind: KindJoin, Usage: "event", Parse: onTarget(func(t Target) Command { return Join{Target: t} })},
		{Name: "leave", Kind: KindLeave, Usage: "event", Parse: onTarget(func(t Target) Command { return Leave{Target: t} })},
		{Name: "complete", Kind: KindComplete, Usage: "event", Parse: onTarget(func(t Target) Command { return Complete{Target: t} })},
		{Name: "show", Kind: KindShow, Usage: "event", Parse: onTarget(func(t Target) Command { return Show{Target: t} })},
		{Name: "deleteevent", Kind: KindDelete, Usage: "event", Parse: onTarget(func(t Target) Command { return Delete{Target: t} })},
		{Name: "edit_time", Kind: KindEdit, Usage: "event time=HH:MM", Parse: edit(model.FieldStart, PartTime, "time",
			func(e *model.Edit, v string) error {
				t, err := parseClock(v)
				e.Start = t
				return err
			})},
		{Name: "edit_date", Kind: KindEdit, Usage: "event date=DD-MM-YYYY", Parse: edit(model.FieldStart, PartDate, "date",
			func(e *model.Edit, v string) error {
				t, err := parseDate(v)
				e.Start = t
				return err
			})},
		{Name: "edit_description", Kind: KindEdit, Usage: "event description", Parse: edit(model.FieldDescription, PartFull, "description",
			func(e *model.Edit, v string) error {
				e.Description = v
				return nil
			})},
		{Name: "edit_max", Kind: KindEdit, Usage: "event max (0 for unlimited)", Parse: edit(model.FieldCapacity, PartFull, "max",
			func(e *model.Edit, v string) error {
				c, err := ParseCapacity(v)
				e.Capacity = c
				return err
			})},
		{Name: "edit_title", Kind: KindEdit, Usage: "event title", Parse: edit(model.FieldTitle, PartFull, "title",
			func(e *model.Edit, v string) error {
				e.Title = v
				return nil
			})},
		{Name: "edit_remove", Kind: KindRemove, Usage: "event user", Parse: func(r Request) (Command, error) {
			tg, err := r.target()
			if err != nil {
				return nil, err
			}
			user, err := r.required("user")
			if err != nil {
				return nil, err
			}
			return Remove{Target: tg, UserID: user}, nil
		}},
		{Name: "transferhost", Kind: KindTransfer, Usage: "event user", Parse: func(r Request) (Command, error) {
			tg, err := r.target()
			if err != nil {
				return nil, err
			}
			user, err := r.required("user")
			if err != nil {
				return nil, err
			}
			return Transfer{Target: tg, NewHost: user}, nil
		}},
		{Name: "deleteallevents", Kind: KindDeleteAll, Usage: "", Parse: func(r Request) (Command, error) {
			return DeleteAll{Community: r.Community}, nil
		}},
		{Name: "list", Kind: KindList, Usage: "", Parse: func(r Request) (Command, error) {
			return List{Community: r.Community}, nil
		}},
		{Name: "search", Kind: KindSearch, Usage: "[prefix]", Parse: func(r Request) (Command, error) {
			return Search{Community: r.Community, Prefix: r.arg("prefix")}, nil
		}},
	}
}

func parseCreate(r Request) (Command, error) {
	title, err := r.required("title")
	if err != nil {
		return nil, err
	}
	var start time.Time
	if s := r.arg("start"); s != "" {
		if start, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, fmt.Errorf("%w: start must be RFC 3339", model.ErrInvalidInput)
		}
	} else {
		ds, err := r.required("date")
		if err != nil {
			return nil, err
		}
		ts, err := r.required("time")
		if err != nil {
			return nil, err
		}
		d, err := parseDate(ds)
		if err != nil {
			return nil, err
		}
		c, err := parseClock(ts)
		if err != nil {
			return nil, err
		}
		start = combine(d, c)
	}
	capacity, err := ParseCapacity(r.arg("max"))
	if err != nil {
		return nil, err
	}
	return Create{
		Community:   r.Community,
		Title:       title,
		Description: r.arg("description"),
		Start:       start.UTC(),
		Capacity:    capacity,
	}, nil
}

// ParseCapacity reads a participant limit. Empty, "0" and "unlimited" mean
// no limit.
func ParseCapacity(s string) (model.Capacity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "unlimited" {
		return model.Unlimited, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: max must be a number", model.ErrInvalidInput)
	}
	switch {
	case n == 0:
		return model.Unlimited, nil
	case n < 0:
		return 0, model.ErrInvalidCapacity
	}
	return model.Capacity(n), nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be DD-MM-YYYY", model.ErrInvalidInput)
	}
	return t, nil
}

func parseClock(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time must be HH:MM (24h)", model.ErrInvalidInput)
	}
	return t, nil
}

// combine takes the calendar day of date and the clock of clock, in UTC.
func combine(date, clock time.Time) time.Time {
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, time.UTC)
}
