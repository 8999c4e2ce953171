package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/daycal/internal/models"
)

// ErrNoChat is returned by Notify when no owner chat is configured.
var ErrNoChat = errors.New("telegram: no chat configured for alerts")

// Sender is the part of the bot API used to reply. *tgbotapi.BotAPI
// satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot wraps the Telegram bot API. It serves commands from the owner chat and
// delivers reminder alerts to it.
type Bot struct {
	api    Sender
	poller *tgbotapi.BotAPI
	logger *logrus.Logger
	router *Router
	chatID int64
}

// NewBot creates a new Telegram bot instance bound to chatID.
func NewBot(token string, chatID int64, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:    api,
		poller: api,
		logger: logger,
		router: NewRouter(chatID, logger),
		chatID: chatID,
	}, nil
}

// Start starts the bot with long polling
func (b *Bot) Start(ctx context.Context) error {
	// Delete webhook if exists and use polling
	_, err := b.poller.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.poller.GetUpdatesChan(u)

	b.logger.Info("Bot started with long polling")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping bot...")
			b.poller.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

// handleUpdate processes incoming updates
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Panic in update handler: %v", r)
		}
	}()

	if update.Message != nil {
		b.router.HandleMessage(b.api, update.Message)
	}
}

// SendMessage sends a message to a chat
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	_, err := b.api.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// RegisterCommand registers a command handler on the router
func (b *Bot) RegisterCommand(command string, handler CommandHandler) {
	b.router.RegisterCommand(command, handler)
}

// Name identifies the bot as an alert sink.
func (b *Bot) Name() string { return "telegram" }

// Notify sends a fired reminder to the owner chat.
func (b *Bot) Notify(ctx context.Context, alert models.Alert) error {
	if b.chatID == 0 {
		return ErrNoChat
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.SendMessage(b.chatID, alertText(alert))
}

func alertText(alert models.Alert) string {
	text := "🔔 *Reminder*\n" + tgbotapi.EscapeText(tgbotapi.ModeMarkdown, alert.Message())
	if alert.Late {
		text += "\n_delivered late_"
	}
	return text
}
