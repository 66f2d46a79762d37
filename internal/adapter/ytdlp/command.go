package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/cwygoda/vidrelay/internal/domain"
)

const (
	DefaultBinary          = "yt-dlp"
	DefaultMetadataTimeout = 2 * time.Minute
	DefaultDownloadTimeout = 10 * time.Minute

	maxLineSize = 1 << 20
)

// Config holds yt-dlp invocation settings.
type Config struct {
	Binary          string
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
}

// Tool runs yt-dlp as an external process.
type Tool struct {
	binary          string
	metadataTimeout time.Duration
	downloadTimeout time.Duration
	logger          *slog.Logger
}

// New creates a Tool, filling unset config fields with defaults.
func New(cfg Config, logger *slog.Logger) *Tool {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{
		binary:          cfg.Binary,
		metadataTimeout: cfg.MetadataTimeout,
		downloadTimeout: cfg.DownloadTimeout,
		logger:          logger.With(slog.String("tool", cfg.Binary)),
	}
}

// Version returns the installed yt-dlp version.
func (t *Tool) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, t.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", t.binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// FetchMetadata queries metadata without downloading anything.
func (t *Tool) FetchMetadata(ctx context.Context, url string, flags []string) (*domain.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, t.metadataTimeout)
	defer cancel()

	args := []string{"--dump-single-json", "--skip-download", "--no-warnings", "--no-playlist"}
	args = append(args, flags...)
	args = append(args, url)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s metadata failed: %w: %s", t.binary, err, lastLines(stderr.String(), 3))
	}
	return parseMetadata(stdout.Bytes())
}

// Download starts yt-dlp and streams its events. The channel ends with
// exactly one EventFinished or EventFailed and is then closed.
func (t *Tool) Download(ctx context.Context, req domain.DownloadRequest) (<-chan domain.ToolEvent, error) {
	args := []string{req.URL, "-o", req.Output, "--newline", "--no-playlist"}
	args = append(args, req.Flags...)

	ctx, cancel := context.WithTimeout(ctx, t.downloadTimeout)
	cmd := exec.CommandContext(ctx, t.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", t.binary, err)
	}
	t.logger.Debug("process started", slog.Int("pid", cmd.Process.Pid), slog.String("url", req.URL))

	events := make(chan domain.ToolEvent, 16)
	go func() {
		defer close(events)
		defer cancel()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			if ev, ok := parseLine(scanner.Text()); ok {
				events <- ev
			}
		}
		if err := scanner.Err(); err != nil {
			t.logger.Warn("read output", slog.Any("error", err))
			_, _ = io.Copy(io.Discard, stdout)
		}

		if err := cmd.Wait(); err != nil {
			events <- domain.ToolEvent{
				Kind: domain.EventFailed,
				Err:  fmt.Errorf("%s failed: %w: %s", t.binary, err, lastLines(stderr.String(), 3)),
			}
			return
		}
		events <- domain.ToolEvent{Kind: domain.EventFinished}
	}()
	return events, nil
}

// lastLines returns the last n non-empty lines of s joined by "; ".
func lastLines(s string, n int) string {
	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
