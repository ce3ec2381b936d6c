// Package telegram adapts the core to a Telegram group chat: event cards are
// chat messages with inline buttons, and chat commands drive the gateway.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventbot/internal/model"
	"github.com/Shivanand-hulikatti/eventbot/internal/notifier"
)

// API is the part of *tgbotapi.BotAPI the adapter uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	DeleteMessage(c tgbotapi.DeleteMessageConfig) (tgbotapi.APIResponse, error)
	AnswerCallbackQuery(c tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error)
	GetUpdatesChan(c tgbotapi.UpdateConfig) (tgbotapi.UpdatesChannel, error)
	StopReceivingUpdates()
}

// Connect authorises the bot token.
func Connect(token string, log *zap.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info("telegram authorized", zap.String("account", bot.Self.UserName))
	return bot, nil
}

// Notifier posts event cards into one chat. Telegram has no per-event role,
// so membership tags are only logged.
type Notifier struct {
	api    API
	chatID int64
	names  *Names
	now    func() time.Time
	log    *zap.Logger
}

var _ notifier.Notifier = (*Notifier)(nil)

func NewNotifier(api API, chatID int64, names *Names, log *zap.Logger) *Notifier {
	return &Notifier{api: api, chatID: chatID, names: names, now: time.Now, log: log.Named("telegram")}
}

func formatRef(chatID int64, messageID int) model.DisplayRef {
	return model.DisplayRef(fmt.Sprintf("%d:%d", chatID, messageID))
}

// parseRef splits a "chatID:messageID" reference.
func parseRef(ref model.DisplayRef) (int64, int, error) {
	chat, msg, ok := strings.Cut(string(ref), ":")
	if !ok {
		return 0, 0, fmt.Errorf("telegram: malformed display ref %q", ref)
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: malformed display ref %q: %w", ref, err)
	}
	msgID, err := strconv.Atoi(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: malformed display ref %q: %w", ref, err)
	}
	return chatID, msgID, nil
}

// notModified is Telegram's answer to an edit that changes nothing.
func notModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func (n *Notifier) RenderEventCard(_ context.Context, e model.Event) (model.DisplayRef, error) {
	msg := tgbotapi.NewMessage(n.chatID, RenderCard(e, n.names))
	msg.ParseMode = tgbotapi.ModeHTML
	if kb := Keyboard(e); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := n.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("telegram: send card: %w", err)
	}
	return formatRef(n.chatID, sent.MessageID), nil
}

func (n *Notifier) UpdateEventCard(_ context.Context, ref model.DisplayRef, e model.Event) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, RenderCard(e, n.names))
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = Keyboard(e)
	if _, err := n.api.Send(edit); err != nil && !notModified(err) {
		return fmt.Errorf("telegram: edit card: %w", err)
	}
	return nil
}

// RebindEventCard refreshes the existing message so its buttons work again.
// When the message cannot be edited any more a new card is posted.
func (n *Notifier) RebindEventCard(ctx context.Context, ref model.DisplayRef, e model.Event) (model.DisplayRef, error) {
	if ref == "" {
		return n.RenderEventCard(ctx, e)
	}
	err := n.UpdateEventCard(ctx, ref, e)
	if err == nil {
		return ref, nil
	}
	n.log.Info("card gone, posting a new one", zap.String("event_id", e.ID), zap.String("ref", string(ref)), zap.Error(err))
	return n.RenderEventCard(ctx, e)
}

func (n *Notifier) RetractEventCard(_ context.Context, ref model.DisplayRef) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	if _, err := n.api.DeleteMessage(tgbotapi.DeleteMessageConfig{ChatID: chatID, MessageID: msgID}); err != nil {
		return fmt.Errorf("telegram: delete card: %w", err)
	}
	return nil
}

func (n *Notifier) AssignMembershipTag(_ context.Context, eventID, userID string) error {
	n.log.Debug("membership tag not supported", zap.String("event_id", eventID), zap.String("user_id", userID))
	return nil
}

func (n *Notifier) RevokeMembershipTag(_ context.Context, eventID, userID string) error {
	n.log.Debug("membership tag not supported", zap.String("event_id", eventID), zap.String("user_id", userID))
	return nil
}

var errNoChat = errors.New("telegram: no chat configured")

func (n *Notifier) SendReminder(_ context.Context, e model.Event, participantIDs []string) error {
	if n.chatID == 0 {
		return errNoChat
	}
	msg := tgbotapi.NewMessage(n.chatID, RenderReminder(e, participantIDs, n.names, n.now()))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send reminder: %w", err)
	}
	return nil
}

func (n *Notifier) AnnounceStart(_ context.Context, e model.Event, participantIDs []string) error {
	if n.chatID == 0 {
		return errNoChat
	}
	msg := tgbotapi.NewMessage(n.chatID, RenderStarted(e, participantIDs, n.names))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send start notice: %w", err)
	}
	return nil
}
