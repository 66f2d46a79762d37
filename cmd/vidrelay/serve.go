package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpAdapter "github.com/cwygoda/vidrelay/internal/adapter/http"
	"github.com/cwygoda/vidrelay/internal/adapter/pattern"
	"github.com/cwygoda/vidrelay/internal/adapter/sqlite"
	"github.com/cwygoda/vidrelay/internal/adapter/telegram"
	"github.com/cwygoda/vidrelay/internal/adapter/workspace"
	"github.com/cwygoda/vidrelay/internal/adapter/ytdlp"
	"github.com/cwygoda/vidrelay/internal/config"
	"github.com/cwygoda/vidrelay/internal/domain"
	"github.com/cwygoda/vidrelay/internal/worker"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	journal, err := sqlite.New(sqlite.MemoryPath)
	if err != nil {
		return fmt.Errorf("open job journal: %w", err)
	}
	defer journal.Close()
	journal.SetRetention(cfg.Server.JobHistory)

	registry, err := pattern.Default().WithFlags(cfg.PatternFlags())
	if err != nil {
		return err
	}

	tool := newTool(cfg, logger)
	if v, err := tool.Version(ctx); err != nil {
		logger.Warn("yt-dlp not usable, downloads will fail; run vidrelay prepare", slog.Any("error", err))
	} else {
		logger.Info("found yt-dlp", slog.String("version", v))
	}

	ws, err := workspace.New(cfg.Relay.WorkDir, logger)
	if err != nil {
		return err
	}

	var bot *telegram.Bot
	if cfg.Telegram.APIEndpoint != "" {
		bot, err = telegram.NewWithEndpoint(cfg.Telegram.Token, cfg.Telegram.APIEndpoint, http.DefaultClient, logger)
	} else {
		bot, err = telegram.New(cfg.Telegram.Token, logger)
	}
	if err != nil {
		return err
	}

	runner := domain.NewRunner(tool, ws, runnerConfig(cfg, journal), logger)
	svc := domain.NewRelayService(registry, runner, bot, ws, cfg.Relay.Verbose, logger)
	dispatcher := worker.New(svc, logger)

	var srv *httpAdapter.Server
	if cfg.Server.Addr != "" {
		if cfg.Server.WebhookSecret == "" {
			logger.Warn("webhook disabled, server.webhook_secret is not set")
		}
		srv = httpAdapter.NewServer(journal, dispatcher, cfg.Server.Addr, cfg.Server.WebhookSecret, logger)
		go func() {
			logger.Info("HTTP server listening", slog.String("addr", srv.Addr()))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", slog.Any("error", err))
				stop()
			}
		}()
	}

	logger.Info("vidrelay started",
		slog.String("bot", bot.Username()),
		slog.Bool("verbose", cfg.Relay.Verbose),
		slog.Int("max_concurrent", cfg.Relay.MaxConcurrent),
		slog.String("work_dir", ws.Root()),
	)

	updates := make(chan domain.Message)
	go bot.Listen(ctx, updates)
	dispatcher.Run(ctx, updates)

	logger.Info("shutting down", slog.Duration("timeout", cfg.Relay.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Relay.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown", slog.Any("error", err))
		}
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("in-flight messages cancelled", slog.Any("error", err))
	}
	logger.Info("shutdown complete")
	return nil
}

func newTool(cfg config.Config, logger *slog.Logger) *ytdlp.Tool {
	return ytdlp.New(ytdlp.Config{
		Binary:          cfg.YtDlp.Binary,
		MetadataTimeout: cfg.YtDlp.MetadataTimeout,
		DownloadTimeout: cfg.YtDlp.DownloadTimeout,
	}, logger)
}

func runnerConfig(cfg config.Config, journal domain.JobJournal) domain.RunnerConfig {
	return domain.RunnerConfig{
		QualityFlags: cfg.Relay.QualityFlags,
		Caption: domain.CaptionOptions{
			MaxLength: cfg.Relay.CaptionLength,
			Ellipsis:  cfg.Relay.CaptionEllipsis,
		},
		Journal: journal,
		Limiter: worker.NewLimiter(cfg.Relay.MaxConcurrent),
	}
}
