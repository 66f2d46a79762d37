package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// User-facing notices, only sent in verbose mode.
const (
	MsgDownloading     = "Downloading..."
	MsgProcessingError = "Error processing your request."
)

// RelayService turns chat messages into video replies.
type RelayService struct {
	extractor Extractor
	runner    JobRunner
	messenger Messenger
	workspace Workspace
	verbose   bool
	logger    *slog.Logger
}

// NewRelayService creates a RelayService. In quiet mode failures are only logged.
func NewRelayService(extractor Extractor, runner JobRunner, messenger Messenger, workspace Workspace, verbose bool, logger *slog.Logger) *RelayService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayService{
		extractor: extractor,
		runner:    runner,
		messenger: messenger,
		workspace: workspace,
		verbose:   verbose,
		logger:    logger,
	}
}

// ProcessMessage downloads every supported URL in msg and replies with the
// results. Job failures never abort sibling jobs; the returned error only
// reports failed deliveries.
func (s *RelayService) ProcessMessage(ctx context.Context, msg Message) error {
	matches := s.extractor.Extract(msg.Text)
	if len(matches) == 0 {
		return nil
	}

	logger := s.logger.With(
		slog.Int64("chat_id", msg.ChatID),
		slog.Int("message_id", msg.ID),
		slog.Int("matches", len(matches)),
	)
	logger.Info("processing message", slog.Int64("sender_id", msg.SenderID))

	if notice := s.notify(ctx, msg, len(matches), logger); notice != 0 {
		defer func() {
			if err := s.messenger.DeleteMessage(context.WithoutCancel(ctx), msg.ChatID, notice); err != nil {
				logger.Warn("delete notice failed", slog.Any("error", err))
			}
		}()
	}

	outcomes := s.runAll(ctx, matches)

	var fulfilled []Outcome
	failed := 0
	for _, o := range outcomes {
		if o.Fulfilled() {
			fulfilled = append(fulfilled, o)
			continue
		}
		failed++
	}

	var err error
	if len(fulfilled) > 0 {
		err = s.deliver(ctx, msg, fulfilled)
	}

	if failed > 0 {
		logger.Warn("jobs failed", slog.Int("failed", failed))
		if len(outcomes) == 1 {
			s.report(ctx, msg, MsgProcessingError, logger)
		} else {
			s.report(ctx, msg, fmt.Sprintf("Failed to process %d of %d links.", failed, len(outcomes)), logger)
		}
	}
	return err
}

// runAll launches every job at once and waits for all of them to settle.
// Outcomes keep match order whatever the completion order.
func (s *RelayService) runAll(ctx context.Context, matches []Match) []Outcome {
	outcomes := make([]Outcome, len(matches))
	var wg sync.WaitGroup
	for i, m := range matches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = s.runner.Run(ctx, m)
		}()
	}
	wg.Wait()
	return outcomes
}

// deliver sends the fulfilled files, then releases every one of them
// whether or not the upload went through.
func (s *RelayService) deliver(ctx context.Context, msg Message, fulfilled []Outcome) error {
	defer func() {
		for _, o := range fulfilled {
			s.workspace.Release(o.Job.FilePath())
		}
	}()

	videos := make([]Video, len(fulfilled))
	for i, o := range fulfilled {
		videos[i] = Video{Path: o.Job.FilePath(), Caption: o.Caption}
	}

	if len(videos) == 1 {
		if err := s.messenger.SendVideo(ctx, msg.ChatID, videos[0], msg.ID); err != nil {
			return fmt.Errorf("%w: send video: %w", ErrDelivery, err)
		}
		return nil
	}
	if err := s.messenger.SendVideoGroup(ctx, msg.ChatID, videos, msg.ID); err != nil {
		return fmt.Errorf("%w: send group of %d: %w", ErrDelivery, len(videos), err)
	}
	return nil
}

func (s *RelayService) notify(ctx context.Context, msg Message, n int, logger *slog.Logger) int {
	if !s.verbose {
		return 0
	}
	text := MsgDownloading
	if n > 1 {
		text = fmt.Sprintf("Downloading %d videos...", n)
	}
	id, err := s.messenger.SendText(ctx, msg.ChatID, text, msg.ID)
	if err != nil {
		logger.Warn("send notice failed", slog.Any("error", err))
		return 0
	}
	return id
}

func (s *RelayService) report(ctx context.Context, msg Message, text string, logger *slog.Logger) {
	if !s.verbose {
		return
	}
	if _, err := s.messenger.SendText(ctx, msg.ChatID, text, msg.ID); err != nil {
		logger.Warn("send failure report", slog.Any("error", errors.Join(ErrDelivery, err)))
	}
}
