package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/gateway"
	"github.com/Shivanand-hulikatti/eventbot/internal/model"
)

// Dispatcher runs a parsed command for a requester.
type Dispatcher interface {
	Dispatch(ctx context.Context, req model.Requester, cmd gateway.Command) (gateway.Result, error)
}

// positional lists, per command, the keys bare arguments fill in order.
var positional = map[string][]string{
	"host_event":       {"title", "date", "time", "description", "max"},
	"edit_time":        {"event", "time"},
	"edit_date":        {"event", "date"},
	"edit_description": {"event", "description"},
	"edit_max":         {"event", "max"},
	"edit_title":       {"event", "title"},
	"edit_remove":      {"event", "user"},
	"transferhost":     {"event", "user"},
	"search":           {"prefix"},
}

// ParseArgs splits "a | b | key=value" into named arguments. Bare segments
// fill the command's positional keys; commands without any take "event".
func ParseArgs(command, text string) map[string]string {
	keys, ok := positional[command]
	if !ok {
		keys = []string{"event"}
	}
	args := make(map[string]string)
	next := 0
	for _, seg := range strings.Split(text, "|") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if k, v, ok := strings.Cut(seg, "="); ok && isKey(k) {
			args[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
			continue
		}
		if next < len(keys) {
			args[keys[next]] = seg
			next++
		}
	}
	return args
}

func isKey(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

// Bot is the Telegram front end: chat commands and card buttons become
// gateway commands issued in one community.
type Bot struct {
	api       API
	dispatch  Dispatcher
	table     *gateway.Table
	names     *Names
	community string
	admins    map[string]bool
	log       *zap.Logger
}

func NewBot(api API, dispatch Dispatcher, table *gateway.Table, names *Names, community string, admins []string, log *zap.Logger) *Bot {
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		set[strings.ToLower(strings.TrimPrefix(a, "@"))] = true
	}
	return &Bot{
		api:       api,
		dispatch:  dispatch,
		table:     table,
		names:     names,
		community: community,
		admins:    set,
		log:       log.Named("telegram.bot"),
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.api.GetUpdatesChan(u)
	if err != nil {
		return fmt.Errorf("telegram: get updates: %w", err)
	}
	b.log.Info("polling for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.Handle(ctx, update)
		}
	}
}

// Handle processes one update.
func (b *Bot) Handle(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) requester(u *tgbotapi.User) model.Requester {
	id := strconv.Itoa(u.ID)
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	b.names.Remember(id, name)
	return model.Requester{UserID: id, Admin: b.admins[strings.ToLower(u.UserName)]}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil {
		return
	}
	req := b.requester(cq.From)
	action, id, _ := strings.Cut(cq.Data, ":")
	target := gateway.Target{Community: b.community, Ref: id}

	var cmd gateway.Command
	var done string
	switch action {
	case "join":
		cmd, done = gateway.Join{Target: target}, "You're in!"
	case "leave":
		cmd, done = gateway.Leave{Target: target}, "You left the event."
	case "complete":
		cmd, done = gateway.Complete{Target: target}, "Event completed."
	default:
		b.log.Debug("unknown callback", zap.String("data", cq.Data))
		return
	}

	answer := done
	if _, err := b.dispatch.Dispatch(ctx, req, cmd); err != nil {
		answer = userMessage(err)
	}
	if _, err := b.api.AnswerCallbackQuery(tgbotapi.NewCallback(cq.ID, answer)); err != nil {
		b.log.Debug("answer callback failed", zap.Error(err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	name := msg.Command()
	if name == "commands" || name == "help" || name == "start" {
		b.reply(msg.Chat.ID, b.helpText())
		return
	}

	req := b.requester(msg.From)
	cmd, err := b.table.Parse(name, gateway.Request{Community: b.community, Args: ParseArgs(name, msg.CommandArguments())})
	if err != nil {
		if errors.Is(err, gateway.ErrUnknownCommand) {
			return
		}
		b.reply(msg.Chat.ID, userMessage(err))
		return
	}
	res, err := b.dispatch.Dispatch(ctx, req, cmd)
	if err != nil {
		b.reply(msg.Chat.ID, userMessage(err))
		return
	}
	if text := b.summary(res); text != "" {
		b.reply(msg.Chat.ID, text)
	}
}

// summary is the chat reply for a successful command. Commands whose effect
// shows on the card get none.
func (b *Bot) summary(res gateway.Result) string {
	switch res.Kind {
	case gateway.KindShow:
		if res.Event != nil {
			return RenderCard(*res.Event, b.names)
		}
	case gateway.KindList:
		if len(res.Events) == 0 {
			return "No events."
		}
		lines := make([]string, 0, len(res.Events))
		for _, e := range res.Events {
			lines = append(lines, fmt.Sprintf("• <b>%s</b> (%s) %s UTC",
				html.EscapeString(e.Title), e.Status, e.Start.UTC().Format("02-01-2006 15:04")))
		}
		return strings.Join(lines, "\n")
	case gateway.KindSearch:
		if len(res.Titles) == 0 {
			return "No matching events."
		}
		return html.EscapeString(strings.Join(res.Titles, "\n"))
	case gateway.KindDeleteAll:
		return fmt.Sprintf("Deleted %d events.", res.Deleted)
	case gateway.KindDelete:
		return "Event deleted."
	}
	return ""
}

func (b *Bot) helpText() string {
	var sb strings.Builder
	sb.WriteString("<b>Commands</b>\nSeparate arguments with |, e.g. /host_event Raid | 01-03-2026 | 20:00 | Bring snacks | 10\n\n")
	for _, bd := range b.table.Bindings() {
		fmt.Fprintf(&sb, "/%s %s\n", bd.Name, html.EscapeString(bd.Usage))
	}
	sb.WriteString("/commands")
	return sb.String()
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// userMessage turns a core error into chat text. Storage failures are
// reported as retryable without leaking detail.
func userMessage(err error) string {
	if model.Retryable(err) {
		return "⚠️ Something went wrong saving that, please try again."
	}
	return "❌ " + html.EscapeString(err.Error())
}
