package ytdlp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultReleaseURL redirects to the assets of the newest yt-dlp release.
const DefaultReleaseURL = "https://github.com/yt-dlp/yt-dlp/releases/latest/download"

// AssetName returns the release asset that runs on goos/goarch. Unknown
// platforms get the zipapp, which needs a Python interpreter.
func AssetName(goos, goarch string) string {
	switch goos {
	case "windows":
		return "yt-dlp.exe"
	case "darwin":
		return "yt-dlp_macos"
	case "linux":
		switch goarch {
		case "amd64":
			return "yt-dlp_linux"
		case "arm64":
			return "yt-dlp_linux_aarch64"
		case "arm":
			return "yt-dlp_linux_armv7l"
		}
	}
	return "yt-dlp"
}

// Installer downloads yt-dlp release binaries.
type Installer struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewInstaller creates an Installer. An empty baseURL selects DefaultReleaseURL.
func NewInstaller(baseURL string, logger *slog.Logger) *Installer {
	if baseURL == "" {
		baseURL = DefaultReleaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}
}

// Install downloads the asset for the running platform to dest and marks it
// executable. dest is replaced atomically; a failed download leaves any
// previous binary in place.
func (i *Installer) Install(ctx context.Context, dest string) error {
	asset := AssetName(runtime.GOOS, runtime.GOARCH)
	url := i.baseURL + "/" + asset
	i.logger.Info("downloading yt-dlp", slog.String("asset", asset), slog.String("dest", dest))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", asset, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %d", asset, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".yt-dlp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", asset, err)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("install %s: %w", dest, err)
	}
	i.logger.Info("yt-dlp installed", slog.String("dest", dest), slog.Int64("bytes", n))
	return nil
}

// Update runs the tool's self-updater.
func (t *Tool) Update(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, t.binary, "-U").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s -U: %w: %s", t.binary, err, lastLines(string(out), 3))
	}
	return lastLines(string(out), 1), nil
}
