// Package gateway turns external user actions into registry operations. A
// command is one of a closed set of variants; the Table maps external
// command names onto them and is checked once at startup.
package gateway

import (
	"time"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Kind identifies a command variant.
type Kind int

const (
	KindCreate Kind = iota + 1
	KindJoin
	KindLeave
	KindEdit
	KindTransfer
	KindComplete
	KindRemove
	KindDelete
	KindDeleteAll
	KindShow
	KindList
	KindSearch
)

var kindNames = map[Kind]string{
	KindCreate:    "create",
	KindJoin:      "join",
	KindLeave:     "leave",
	KindEdit:      "edit",
	KindTransfer:  "transfer",
	KindComplete:  "complete",
	KindRemove:    "remove",
	KindDelete:    "delete",
	KindDeleteAll: "delete_all",
	KindShow:      "show",
	KindList:      "list",
	KindSearch:    "search",
}

// Kinds lists every variant.
func Kinds() []Kind {
	return []Kind{KindCreate, KindJoin, KindLeave, KindEdit, KindTransfer, KindComplete,
		KindRemove, KindDelete, KindDeleteAll, KindShow, KindList, KindSearch}
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Target names an event by ID or by title within a community.
type Target struct {
	Community string
	Ref       string
}

// Command is implemented only by the variants below.
type Command interface {
	Kind() Kind
	sealed()
}

type Create struct {
	Community   string
	Title       string
	Description string
	Start       time.Time
	Capacity    model.Capacity
}

type Join struct{ Target Target }

type Leave struct{ Target Target }

// StartPart selects which part of the start instant an edit replaces.
type StartPart int

const (
	PartFull StartPart = iota
	PartDate
	PartTime
)

// Edit changes one field. For a start change with Part set to PartDate or
// PartTime, only that part of Change.Start is used and the rest is taken
// from the current start.
type Edit struct {
	Target Target
	Change model.Edit
	Part   StartPart
}

type Transfer struct {
	Target  Target
	NewHost string
}

type Complete struct{ Target Target }

type Remove struct {
	Target Target
	UserID string
}

type Delete struct{ Target Target }

type DeleteAll struct{ Community string }

type Show struct{ Target Target }

type List struct{ Community string }

type Search struct {
	Community string
	Prefix    string
	Limit     int
}

func (Create) Kind() Kind    { return KindCreate }
func (Join) Kind() Kind      { return KindJoin }
func (Leave) Kind() Kind     { return KindLeave }
func (Edit) Kind() Kind      { return KindEdit }
func (Transfer) Kind() Kind  { return KindTransfer }
func (Complete) Kind() Kind  { return KindComplete }
func (Remove) Kind() Kind    { return KindRemove }
func (Delete) Kind() Kind    { return KindDelete }
func (DeleteAll) Kind() Kind { return KindDeleteAll }
func (Show) Kind() Kind      { return KindShow }
func (List) Kind() Kind      { return KindList }
func (Search) Kind() Kind    { return KindSearch }

func (Create) sealed()    {}
func (Join) sealed()      {}
func (Leave) sealed()     {}
func (Edit) sealed()      {}
func (Transfer) sealed()  {}
func (Complete) sealed()  {}
func (Remove) sealed()    {}
func (Delete) sealed()    {}
func (DeleteAll) sealed() {}
func (Show) sealed()      {}
func (List) sealed()      {}
func (Search) sealed()    {}
