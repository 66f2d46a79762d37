package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxBatchSize caps the number of URLs handled per message. It also
// matches the largest media group the chat platform accepts.
const MaxBatchSize = 10

// SourcePattern describes one supported source site.
type SourcePattern struct {
	ID      string
	Name    string
	Matcher *regexp.Regexp
	// Flags are passed to the extraction tool after the default quality
	// flags so a pattern can override container or codec selection.
	Flags []string
	// Format builds a caption from metadata. It returns "" when the
	// metadata carries nothing worth showing.
	Format func(*Metadata) string
}

// Match is a URL found in a message together with the pattern that found it.
type Match struct {
	URL     string
	Pattern *SourcePattern
}

// Metadata is the normalized result of the extraction tool's metadata query.
type Metadata struct {
	ID         string
	Title      string
	Uploader   string
	Extractor  string
	WebpageURL string
	Duration   float64
}

// Message is an inbound chat message.
type Message struct {
	ID         int
	ChatID     int64
	SenderID   int64
	SenderName string
	Text       string
}

// Validate checks the fields needed to reply to the message.
func (m Message) Validate() error {
	if m.ChatID == 0 {
		return fmt.Errorf("%w: missing chat id", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidMessage)
	}
	return nil
}

// Video is a downloaded file ready for delivery.
type Video struct {
	Path    string
	Caption string
}

// Outcome is a settled job. It is fulfilled when Err is nil.
type Outcome struct {
	Job     *Job
	Caption string
	Err     error
}

// Fulfilled reports whether the job produced a file.
func (o Outcome) Fulfilled() bool {
	return o.Err == nil && o.Job != nil && o.Job.Status == StatusSucceeded
}
