package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDir is the scratch directory used when none is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "vidrelay")
}

// Dir hands out unique scratch paths under one directory and removes them
// again once the caller is done.
type Dir struct {
	root   string
	logger *slog.Logger

	once    sync.Once
	initErr error
}

// New creates a workspace rooted at dir. The directory is created on
// first allocation.
func New(dir string, logger *slog.Logger) (*Dir, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{root: abs, logger: logger.With(slog.String("workspace", abs))}, nil
}

// Root returns the scratch directory.
func (d *Dir) Root() string {
	return d.root
}

// Allocate returns a fresh path. Nothing is created at the path itself.
func (d *Dir) Allocate() (string, error) {
	d.once.Do(func() {
		d.initErr = os.MkdirAll(d.root, 0o755)
	})
	if d.initErr != nil {
		return "", fmt.Errorf("create workspace: %w", d.initErr)
	}
	name := fmt.Sprintf("download-%d-%s.mp4", time.Now().UnixNano(), uuid.NewString())
	return filepath.Join(d.root, name), nil
}

// Release removes path. Missing files are fine and failures are only logged.
func (d *Dir) Release(path string) {
	if path == "" {
		return
	}
	if !d.contains(path) {
		d.logger.Warn("refusing to remove file outside workspace", slog.String("path", path))
		return
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		d.logger.Debug("removed file", slog.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
	default:
		d.logger.Warn("remove file", slog.String("path", path), slog.Any("error", err))
	}
}

func (d *Dir) contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(d.root, abs)
	if err != nil || rel == "." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
