package telegram

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cwygoda/vidrelay/internal/domain"
)

func TestToMessage(t *testing.T) {
	chat := &tgbotapi.Chat{ID: 42}
	from := &tgbotapi.User{ID: 9, UserName: "alice"}

	tests := []struct {
		name     string
		update   tgbotapi.Update
		wantOK   bool
		wantText string
		wantName string
	}{
		{
			name:     "text",
			update:   tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 1, Chat: chat, From: from, Text: " https://x.com/u/status/1 "}},
			wantOK:   true,
			wantText: "https://x.com/u/status/1",
			wantName: "alice",
		},
		{
			name:     "caption",
			update:   tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 1, Chat: chat, From: &tgbotapi.User{ID: 9, FirstName: "Bob", LastName: "Builder"}, Caption: "look"}},
			wantOK:   true,
			wantText: "look",
			wantName: "Bob Builder",
		},
		{
			name:     "channel post",
			update:   tgbotapi.Update{ChannelPost: &tgbotapi.Message{MessageID: 1, Chat: chat, Text: "hi"}},
			wantOK:   true,
			wantText: "hi",
		},
		{name: "empty", update: tgbotapi.Update{Message: &tgbotapi.Message{Chat: chat}}},
		{name: "no chat", update: tgbotapi.Update{Message: &tgbotapi.Message{Text: "hi"}}},
		{name: "no message", update: tgbotapi.Update{UpdateID: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := toMessage(tt.update)
			if ok != tt.wantOK {
				t.Fatalf("toMessage() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if msg.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", msg.Text, tt.wantText)
			}
			if msg.SenderName != tt.wantName {
				t.Errorf("SenderName = %q, want %q", msg.SenderName, tt.wantName)
			}
			if msg.ChatID != 42 {
				t.Errorf("ChatID = %d, want 42", msg.ChatID)
			}
		})
	}
}

func TestForward(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	updates := make(chan tgbotapi.Update, 3)
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: 1}, Text: "a"}}
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: 1}}}
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 1}, Text: "b"}}
	close(updates)

	out := make(chan domain.Message, 3)
	forward(context.Background(), updates, out, logger)
	close(out)

	var ids []int
	for m := range out {
		ids = append(ids, m.ID)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("forwarded ids = %v, want [1 3]", ids)
	}
}

func TestForward_StopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	updates := make(chan tgbotapi.Update)
	out := make(chan domain.Message)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		forward(ctx, updates, out, logger)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward did not return after cancel")
	}
}
