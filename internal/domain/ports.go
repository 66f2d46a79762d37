package domain

import (
	"context"
	"errors"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrJobTransition  = errors.New("invalid job state transition")
	ErrExtraction     = errors.New("extraction failed")
	ErrDelivery       = errors.New("delivery failed")
	ErrInvalidMessage = errors.New("invalid message")
)

// Extractor finds supported URLs in message text.
type Extractor interface {
	Extract(text string) []Match
}

// EventKind identifies a tool event.
type EventKind int

const (
	EventProgress EventKind = iota
	EventDiagnostic
	EventFinished
	EventFailed
)

// Progress is a download progress sample.
type Progress struct {
	Percent   float64
	TotalSize string
	Speed     string
	ETA       string
}

// Diagnostic is a tool-internal event line such as "[Merger] Merging formats into ...".
// Path is set when the event announces the file the tool is writing.
type Diagnostic struct {
	Type string
	Data string
	Path string
}

// ToolEvent is emitted by a running extraction-tool invocation. Exactly one
// EventFinished or EventFailed is sent last, then the channel is closed.
type ToolEvent struct {
	Kind       EventKind
	Progress   Progress
	Diagnostic Diagnostic
	Err        error
}

// DownloadRequest describes one extraction-tool download.
type DownloadRequest struct {
	URL    string
	Output string
	Flags  []string
}

// MediaTool is the driven port for the external extraction tool.
type MediaTool interface {
	FetchMetadata(ctx context.Context, url string, flags []string) (*Metadata, error)
	Download(ctx context.Context, req DownloadRequest) (<-chan ToolEvent, error)
}

// Workspace allocates and releases scratch files.
type Workspace interface {
	Allocate() (string, error)
	Release(path string)
}

// Messenger is the driven port for chat replies.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error)
	SendVideo(ctx context.Context, chatID int64, video Video, replyTo int) error
	SendVideoGroup(ctx context.Context, chatID int64, videos []Video, replyTo int) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Limiter bounds the number of extraction-tool invocations in flight.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

// JobJournal records job transitions for introspection.
type JobJournal interface {
	Record(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Recent(ctx context.Context, limit int) ([]Job, error)
	Stats(ctx context.Context) (map[JobStatus]int64, error)
}
