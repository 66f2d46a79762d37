package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cwygoda/vidrelay/internal/domain"
)

// ErrStopped is returned by Submit once the dispatcher is shutting down.
var ErrStopped = errors.New("dispatcher stopped")

// Processor handles one inbound message end to end.
type Processor interface {
	ProcessMessage(ctx context.Context, msg domain.Message) error
}

// Dispatcher runs every inbound message in its own goroutine so a slow
// download never blocks the update loop.
type Dispatcher struct {
	proc   Processor
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

// New creates a dispatcher.
func New(proc Processor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		proc:   proc,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run submits messages from updates until the channel closes or ctx is
// cancelled.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan domain.Message) {
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return
		case msg, ok := <-updates:
			if !ok {
				d.logger.Info("update stream closed")
				return
			}
			if err := d.Submit(msg); err != nil {
				d.logger.Warn("message dropped", slog.Int64("chat_id", msg.ChatID), slog.Any("error", err))
			}
		}
	}
}

// Submit starts processing msg in the background.
func (d *Dispatcher) Submit(msg domain.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.process(msg)
	}()
	return nil
}

func (d *Dispatcher) process(msg domain.Message) {
	start := time.Now()
	logger := d.logger.With(slog.Int64("chat_id", msg.ChatID), slog.Int("message_id", msg.ID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("message handler panicked", slog.Any("panic", r))
		}
	}()

	if err := d.proc.ProcessMessage(d.ctx, msg); err != nil {
		logger.Error("process message", slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))
		return
	}
	logger.Debug("message done", slog.Duration("elapsed", time.Since(start)))
}

// Stop rejects new messages and waits for in-flight ones. When ctx expires
// first, running jobs are cancelled, which kills their child processes and
// removes partial files, and Stop still waits for them to unwind.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn("shutdown deadline reached, cancelling in-flight jobs")
		d.cancel()
		<-done
		return ctx.Err()
	}
}
