package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultQualityFlags prefer a muxed or best video+audio pair at 1080p or
// below and recode the result to mp4.
var DefaultQualityFlags = []string{
	"-f", "bv*[height<=1080]+ba/b[height<=1080]/bv*+ba/b",
	"--recode-video", "mp4",
}

const progressLogInterval = 3 * time.Second

// ProgressFunc observes progress samples of a running job.
type ProgressFunc func(job *Job, p Progress)

// JobRunner runs one match to a settled outcome.
type JobRunner interface {
	Run(ctx context.Context, m Match) Outcome
}

// RunnerConfig holds optional runner collaborators and settings.
type RunnerConfig struct {
	QualityFlags []string
	Caption      CaptionOptions
	Journal      JobJournal
	Limiter      Limiter
	OnProgress   ProgressFunc
}

// Runner drives one extraction-tool invocation per match.
type Runner struct {
	tool      MediaTool
	workspace Workspace
	cfg       RunnerConfig
	logger    *slog.Logger
}

// NewRunner creates a Runner. Nil quality flags select DefaultQualityFlags.
func NewRunner(tool MediaTool, workspace Workspace, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.QualityFlags == nil {
		cfg.QualityFlags = DefaultQualityFlags
	}
	if cfg.Caption.MaxLength <= 0 {
		cfg.Caption = DefaultCaptionOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{tool: tool, workspace: workspace, cfg: cfg, logger: logger}
}

// Run downloads the match and returns once the job has settled. A failed
// job leaves no file behind.
func (r *Runner) Run(ctx context.Context, m Match) Outcome {
	job := NewJob(uuid.NewString(), m)
	logger := r.logger.With(
		slog.String("job_id", job.ID),
		slog.String("pattern", job.PatternID),
		slog.String("url", job.URL),
	)
	r.record(ctx, job, logger)

	if r.cfg.Limiter != nil {
		if err := r.cfg.Limiter.Acquire(ctx); err != nil {
			return r.fail(ctx, job, fmt.Errorf("wait for tool slot: %w", err), logger)
		}
		defer r.cfg.Limiter.Release()
	}

	output, err := r.workspace.Allocate()
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("allocate output: %w", err), logger)
	}
	if err := job.Start(output); err != nil {
		r.workspace.Release(output)
		return r.fail(ctx, job, err, logger)
	}
	r.record(ctx, job, logger)
	logger.Info("job started", slog.String("output", output))

	var patternFlags []string
	if m.Pattern != nil {
		patternFlags = m.Pattern.Flags
	}
	metaCtx, cancelMeta := context.WithCancel(ctx)
	defer cancelMeta()
	metaCh := make(chan *Metadata, 1)
	go func() {
		metaCh <- r.fetchMetadata(metaCtx, m.URL, patternFlags, logger)
	}()

	flags := make([]string, 0, len(r.cfg.QualityFlags)+len(patternFlags))
	flags = append(flags, r.cfg.QualityFlags...)
	flags = append(flags, patternFlags...)

	err = r.download(ctx, job, flags, logger)
	if err != nil {
		// No caption is needed once the download has failed.
		cancelMeta()
		<-metaCh
		r.discard(job)
		return r.fail(ctx, job, err, logger)
	}
	meta := <-metaCh

	if err := job.Succeed(job.FilePath()); err != nil {
		r.discard(job)
		return r.fail(ctx, job, err, logger)
	}
	r.prune(job)
	r.record(ctx, job, logger)
	logger.Info("job succeeded", slog.String("path", job.ResolvedPath))

	return Outcome{Job: job, Caption: FormatCaption(m.Pattern, meta, r.cfg.Caption)}
}

func (r *Runner) download(ctx context.Context, job *Job, flags []string, logger *slog.Logger) error {
	events, err := r.tool.Download(ctx, DownloadRequest{URL: job.URL, Output: job.OutputPath, Flags: flags})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	// Job-local so concurrent jobs throttle independently.
	progressLog := rate.Sometimes{Interval: progressLogInterval}
	var terminal *ToolEvent
	for ev := range events {
		switch ev.Kind {
		case EventProgress:
			p := ev.Progress
			progressLog.Do(func() {
				logger.Info("download progress",
					slog.Float64("percent", p.Percent),
					slog.String("size", p.TotalSize),
					slog.String("speed", p.Speed),
					slog.String("eta", p.ETA),
				)
			})
			if r.cfg.OnProgress != nil {
				r.cfg.OnProgress(job, p)
			}
		case EventDiagnostic:
			d := ev.Diagnostic
			logger.Debug("tool event", slog.String("type", d.Type), slog.String("data", d.Data))
			if d.Path != "" {
				job.Track(d.Path)
			}
		case EventFinished, EventFailed:
			if terminal == nil {
				terminal = &ev
			}
		}
	}

	switch {
	case terminal == nil:
		return fmt.Errorf("%w: tool exited without a result", ErrExtraction)
	case terminal.Kind == EventFailed:
		return fmt.Errorf("%w: %w", ErrExtraction, terminal.Err)
	}
	if _, err := os.Stat(job.FilePath()); err != nil {
		return fmt.Errorf("%w: output missing: %w", ErrExtraction, err)
	}
	return nil
}

func (r *Runner) fetchMetadata(ctx context.Context, url string, flags []string, logger *slog.Logger) *Metadata {
	meta, err := r.tool.FetchMetadata(ctx, url, flags)
	if err != nil && ctx.Err() != nil {
		logger.Debug("metadata query cancelled", slog.Any("error", err))
		return nil
	}
	if err != nil {
		logger.Warn("metadata unavailable", slog.Any("error", err))
		return nil
	}
	return meta
}

// discard removes everything a failed job may have written, including
// per-format intermediates and their .part files.
func (r *Runner) discard(job *Job) {
	if job.OutputPath == "" {
		return
	}
	r.workspace.Release(job.OutputPath)
	r.workspace.Release(job.OutputPath + ".part")
	for _, path := range job.Artifacts {
		if path == job.OutputPath {
			continue
		}
		r.workspace.Release(path)
		r.workspace.Release(path + ".part")
	}
}

// prune removes intermediates a successful job left next to its result.
func (r *Runner) prune(job *Job) {
	keep := job.FilePath()
	for _, path := range append([]string{job.OutputPath}, job.Artifacts...) {
		if path == keep {
			continue
		}
		r.workspace.Release(path)
		r.workspace.Release(path + ".part")
	}
}

func (r *Runner) fail(ctx context.Context, job *Job, err error, logger *slog.Logger) Outcome {
	if ferr := job.Fail(err.Error()); ferr != nil {
		logger.Error("settle job", slog.Any("error", ferr))
	}
	r.record(ctx, job, logger)
	logger.Error("job failed", slog.Any("error", err))
	return Outcome{Job: job, Err: err}
}

func (r *Runner) record(ctx context.Context, job *Job, logger *slog.Logger) {
	if r.cfg.Journal == nil {
		return
	}
	snapshot := *job
	if err := r.cfg.Journal.Record(context.WithoutCancel(ctx), &snapshot); err != nil {
		logger.Warn("journal record failed", slog.Any("error", err))
	}
}
