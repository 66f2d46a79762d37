package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cwygoda/vidrelay/internal/domain"
)

const pollTimeout = 30

// Listen long-polls for updates and forwards text messages to out until ctx
// is cancelled. out is closed on return.
func (b *Bot) Listen(ctx context.Context, out chan<- domain.Message) {
	defer close(out)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	cfg.AllowedUpdates = []string{"message", "channel_post"}
	updates := b.client.GetUpdatesChan(cfg)

	b.logger.Info("listening for updates")
	defer func() {
		b.client.StopReceivingUpdates()
		// Drain so the polling goroutine can exit and release its getUpdates session.
		for range updates {
		}
		b.logger.Info("stopped listening")
	}()

	forward(ctx, updates, out, b.logger)
}

func forward(ctx context.Context, updates <-chan tgbotapi.Update, out chan<- domain.Message, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}
			msg, ok := toMessage(update)
			if !ok {
				continue
			}
			logger.Debug("inbound message",
				slog.Int64("chat_id", msg.ChatID),
				slog.Int("message_id", msg.ID),
				slog.String("sender", msg.SenderName),
			)
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// toMessage extracts the text (or media caption) of a message update.
func toMessage(update tgbotapi.Update) (domain.Message, bool) {
	m := update.Message
	if m == nil {
		m = update.ChannelPost
	}
	if m == nil || m.Chat == nil {
		return domain.Message{}, false
	}

	text := strings.TrimSpace(m.Text)
	if text == "" {
		text = strings.TrimSpace(m.Caption)
	}
	if text == "" {
		return domain.Message{}, false
	}

	msg := domain.Message{
		ID:     m.MessageID,
		ChatID: m.Chat.ID,
		Text:   text,
	}
	if m.From != nil {
		msg.SenderID = m.From.ID
		msg.SenderName = senderName(m.From)
	}
	return msg, true
}

func senderName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
