package domain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// dirWorkspace hands out numbered paths under a test directory.
type dirWorkspace struct {
	mu       sync.Mutex
	dir      string
	next     int
	released []string
	allocErr error
}

func (w *dirWorkspace) Allocate() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.allocErr != nil {
		return "", w.allocErr
	}
	w.next++
	return filepath.Join(w.dir, fmt.Sprintf("download-%d.mp4", w.next)), nil
}

func (w *dirWorkspace) Release(path string) {
	w.mu.Lock()
	w.released = append(w.released, path)
	w.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(err)
	}
}

func (w *dirWorkspace) files() []string {
	entries, _ := os.ReadDir(w.dir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// script describes how fakeTool behaves for one URL.
type script struct {
	meta       *Metadata
	metaErr    error
	metaBlocks bool // metadata waits for cancellation
	startErr   error
	progress   int
	resolveExt string   // tool rewrites the extension when set
	partial    bool     // leave a partial file before failing
	formats    []string // per-format suffixes fetched before the merge
	failErr    error
	noTerminal bool
}

type fakeTool struct {
	mu      sync.Mutex
	scripts map[string]script
	calls   []DownloadRequest
	metaFor []string
}

func (f *fakeTool) FetchMetadata(ctx context.Context, url string, flags []string) (*Metadata, error) {
	f.mu.Lock()
	f.metaFor = append(f.metaFor, url)
	s := f.scripts[url]
	f.mu.Unlock()
	if s.metaBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.meta, s.metaErr
}

func (f *fakeTool) Download(ctx context.Context, req DownloadRequest) (<-chan ToolEvent, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	s := f.scripts[req.URL]
	f.mu.Unlock()
	if s.startErr != nil {
		return nil, s.startErr
	}

	ch := make(chan ToolEvent, s.progress+len(s.formats)+4)
	go func() {
		defer close(ch)
		for i := 0; i < s.progress; i++ {
			ch <- ToolEvent{Kind: EventProgress, Progress: Progress{Percent: float64(i * 10)}}
		}
		base := req.Output[:len(req.Output)-len(filepath.Ext(req.Output))]
		for i, suffix := range s.formats {
			dest := base + suffix
			ch <- ToolEvent{Kind: EventDiagnostic, Diagnostic: Diagnostic{Type: "download", Data: "Destination: " + dest, Path: dest}}
			if s.failErr != nil && i == len(s.formats)-1 {
				_ = os.WriteFile(dest+".part", []byte("partial"), 0o644)
				continue
			}
			_ = os.WriteFile(dest, []byte("format"), 0o644)
		}
		path := req.Output
		if s.resolveExt != "" {
			path = req.Output[:len(req.Output)-len(filepath.Ext(req.Output))] + s.resolveExt
			ch <- ToolEvent{Kind: EventDiagnostic, Diagnostic: Diagnostic{Type: "Merger", Data: "Merging formats into " + path, Path: path}}
		}
		if s.failErr != nil {
			if s.partial {
				_ = os.WriteFile(req.Output+".part", []byte("partial"), 0o644)
				_ = os.WriteFile(path, []byte("partial"), 0o644)
			}
			ch <- ToolEvent{Kind: EventFailed, Err: s.failErr}
			return
		}
		_ = os.WriteFile(path, []byte("video"), 0o644)
		if s.noTerminal {
			return
		}
		ch <- ToolEvent{Kind: EventFinished}
	}()
	return ch, nil
}

type sentVideo struct {
	chatID  int64
	videos  []Video
	replyTo int
	group   bool
}

type fakeMessenger struct {
	mu       sync.Mutex
	texts    []string
	sent     []sentVideo
	deleted  []int
	sendErr  error
	nextID   int
	existing map[string]bool // files present at upload time
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	m.nextID++
	return 1000 + m.nextID, nil
}

func (m *fakeMessenger) SendVideo(ctx context.Context, chatID int64, video Video, replyTo int) error {
	return m.record(chatID, []Video{video}, replyTo, false)
}

func (m *fakeMessenger) SendVideoGroup(ctx context.Context, chatID int64, videos []Video, replyTo int) error {
	return m.record(chatID, videos, replyTo, true)
}

func (m *fakeMessenger) record(chatID int64, videos []Video, replyTo int, group bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existing == nil {
		m.existing = make(map[string]bool)
	}
	for _, v := range videos {
		_, err := os.Stat(v.Path)
		m.existing[v.Path] = err == nil
	}
	m.sent = append(m.sent, sentVideo{chatID: chatID, videos: videos, replyTo: replyTo, group: group})
	return m.sendErr
}

func (m *fakeMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

type memJournal struct {
	mu      sync.Mutex
	history map[string][]JobStatus
}

func (j *memJournal) Record(ctx context.Context, job *Job) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.history == nil {
		j.history = make(map[string][]JobStatus)
	}
	j.history[job.ID] = append(j.history[job.ID], job.Status)
	return nil
}

func (j *memJournal) Get(ctx context.Context, id string) (*Job, error) { return nil, ErrJobNotFound }
func (j *memJournal) Recent(ctx context.Context, limit int) ([]Job, error) {
	return nil, nil
}
func (j *memJournal) Stats(ctx context.Context) (map[JobStatus]int64, error) { return nil, nil }
