package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cwygoda/vidrelay/internal/domain"
)

const (
	maxSendAttempts   = 3
	defaultRetryAfter = time.Second
	maxRetryAfter     = 30 * time.Second
)

// api is the subset of *tgbotapi.BotAPI the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Bot sends replies through the Telegram Bot API and receives updates by
// long polling.
type Bot struct {
	api    api
	client *tgbotapi.BotAPI
	logger *slog.Logger
}

// New connects to Telegram with token.
func New(token string, logger *slog.Logger) (*Bot, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 5 * time.Minute}, logger)
}

// NewWithEndpoint connects to a Bot API server at endpoint, which must
// contain two %s verbs for the token and method.
func NewWithEndpoint(token, endpoint string, client *http.Client, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logger.Info("authorized", slog.String("username", bot.Self.UserName))
	return &Bot{api: bot, client: bot, logger: logger}, nil
}

// Username returns the bot's account name.
func (b *Bot) Username() string {
	if b.client == nil {
		return ""
	}
	return b.client.Self.UserName
}

// SendText sends a plain text reply and returns its message ID.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
	}
	var sent tgbotapi.Message
	err := b.retry(ctx, "sendMessage", func() error {
		var err error
		sent, err = b.api.Send(msg)
		return err
	})
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendVideo uploads one file as a video reply.
func (b *Bot) SendVideo(ctx context.Context, chatID int64, v domain.Video, replyTo int) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(v.Path))
	video.Caption = v.Caption
	video.SupportsStreaming = true
	if replyTo > 0 {
		video.ReplyToMessageID = replyTo
	}
	return b.retry(ctx, "sendVideo", func() error {
		_, err := b.api.Send(video)
		return err
	})
}

// SendVideoGroup uploads several files as one media group.
func (b *Bot) SendVideoGroup(ctx context.Context, chatID int64, videos []domain.Video, replyTo int) error {
	if len(videos) > domain.MaxBatchSize {
		return fmt.Errorf("media group of %d exceeds %d items", len(videos), domain.MaxBatchSize)
	}
	media := make([]any, 0, len(videos))
	for _, v := range videos {
		item := tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(v.Path))
		item.Caption = v.Caption
		item.SupportsStreaming = true
		media = append(media, item)
	}
	group := tgbotapi.NewMediaGroup(chatID, media)
	if replyTo > 0 {
		group.ReplyToMessageID = replyTo
	}
	return b.retry(ctx, "sendMediaGroup", func() error {
		_, err := b.api.SendMediaGroup(group)
		return err
	})
}

// DeleteMessage removes a message the bot sent earlier.
func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	del := tgbotapi.NewDeleteMessage(chatID, messageID)
	return b.retry(ctx, "deleteMessage", func() error {
		_, err := b.api.Request(del)
		return err
	})
}

// retry repeats fn while Telegram answers 429, honoring retry_after.
func (b *Bot) retry(ctx context.Context, method string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = fn()
		if err == nil || !isTooManyRequests(err) || attempt == maxSendAttempts {
			break
		}
		wait := retryAfter(err)
		b.logger.Warn("rate limited", slog.String("method", method), slog.Duration("retry_after", wait), slog.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return nil
}

func isTooManyRequests(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == http.StatusTooManyRequests
}

func retryAfter(err error) time.Duration {
	if apiErr, ok := asAPIError(err); ok && apiErr.RetryAfter > 0 {
		return min(time.Duration(apiErr.RetryAfter)*time.Second, maxRetryAfter)
	}
	return defaultRetryAfter
}

// asAPIError unwraps a Bot API error, which the library returns both by
// value and by pointer.
func asAPIError(err error) (tgbotapi.Error, bool) {
	var apiErr tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return tgbotapi.Error{}, false
}

// slogBotLogger routes the library's own logging into slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...any) {
	l.log.Debug(fmt.Sprint(v...))
}

func (l *slogBotLogger) Printf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
