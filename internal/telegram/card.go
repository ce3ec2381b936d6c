package telegram

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Names remembers display names of users seen in updates so cards can show
// them instead of numeric IDs.
type Names struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewNames() *Names {
	return &Names{m: make(map[string]string)}
}

func (n *Names) Remember(userID, name string) {
	if name == "" {
		return
	}
	n.mu.Lock()
	n.m[userID] = name
	n.mu.Unlock()
}

// Mention returns an HTML link to the user.
func (n *Names) Mention(userID string) string {
	n.mu.RLock()
	name, ok := n.m[userID]
	n.mu.RUnlock()
	if !ok {
		name = userID
	}
	return fmt.Sprintf(`<a href="tg://user?id=%s">%s</a>`, html.EscapeString(userID), html.EscapeString(name))
}

var statusBadge = map[model.Status]string{
	model.StatusUpcoming:  "🟢 Upcoming",
	model.StatusOngoing:   "🟡 Ongoing",
	model.StatusCompleted: "🔴 Completed",
}

// RenderCard formats the event as an HTML message body.
func RenderCard(e model.Event, names *Names) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>%s</b>\n", html.EscapeString(e.Title))
	if e.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n", html.EscapeString(e.Description))
	}
	badge, ok := statusBadge[e.Status]
	if !ok {
		badge = "❓ Unknown"
	}
	fmt.Fprintf(&b, "\n📌 <b>%s</b>\n", badge)
	fmt.Fprintf(&b, "🕒 %s UTC\n", e.Start.UTC().Format("02-01-2006 15:04"))

	// The host is listed first even when not a participant.
	people := []string{names.Mention(e.HostID) + " (host)"}
	for _, id := range e.ParticipantIDs() {
		if id != e.HostID {
			people = append(people, names.Mention(id))
		}
	}
	fmt.Fprintf(&b, "\n✅ <b>Participants</b>\n%s\n", strings.Join(people, ", "))

	n := len(e.Participants)
	if e.Capacity == model.Unlimited {
		fmt.Fprintf(&b, "\n<b>%d joined</b>", n)
	} else {
		fmt.Fprintf(&b, "\n<b>%d/%d slots filled</b>", n, int(e.Capacity))
		if e.IsFull() {
			b.WriteString(" 🔒 Full")
		}
	}
	return b.String()
}

// Keyboard returns the card's buttons, or nil once the event is over.
func Keyboard(e model.Event) *tgbotapi.InlineKeyboardMarkup {
	if e.Status.Terminal() {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Join", "join:"+e.ID),
		tgbotapi.NewInlineKeyboardButtonData("Leave", "leave:"+e.ID),
		tgbotapi.NewInlineKeyboardButtonData("Complete", "complete:"+e.ID),
	))
	return &kb
}

// RenderReminder is the text sent shortly before the start.
func RenderReminder(e model.Event, participantIDs []string, names *Names, now time.Time) string {
	var b strings.Builder
	mins := int(e.Start.Sub(now).Round(time.Minute).Minutes())
	if mins > 0 {
		fmt.Fprintf(&b, "⏰ <b>%s</b> starts in %d minutes (%s UTC).", html.EscapeString(e.Title), mins,
			e.Start.UTC().Format("15:04"))
	} else {
		fmt.Fprintf(&b, "⏰ <b>%s</b> has started.", html.EscapeString(e.Title))
	}
	if len(participantIDs) > 0 {
		mentions := make([]string, len(participantIDs))
		for i, id := range participantIDs {
			mentions[i] = names.Mention(id)
		}
		b.WriteString("\n" + strings.Join(mentions, " "))
	}
	return b.String()
}

// RenderStarted is the text posted when the event goes Ongoing.
func RenderStarted(e model.Event, participantIDs []string, names *Names) string {
	text := fmt.Sprintf("🚀 <b>%s</b> has now <b>started!</b> 🎉", html.EscapeString(e.Title))
	if len(participantIDs) > 0 {
		mentions := make([]string, len(participantIDs))
		for i, id := range participantIDs {
			mentions[i] = names.Mention(id)
		}
		text += "\n" + strings.Join(mentions, " ")
	}
	return text
}
