package ytdlp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cwygoda/vidrelay/internal/domain"
)

var errEmptyMetadata = errors.New("empty metadata")

// info is the subset of yt-dlp's info dict the relay cares about.
type info struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Uploader   string   `json:"uploader"`
	Extractor  string   `json:"extractor_key"`
	WebpageURL string   `json:"webpage_url"`
	Duration   *float64 `json:"duration"`
}

func parseMetadata(data []byte) (*domain.Metadata, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errEmptyMetadata
	}
	var raw info
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	meta := &domain.Metadata{
		ID:         raw.ID,
		Title:      strings.Join(strings.Fields(raw.Title), " "),
		Uploader:   strings.TrimSpace(raw.Uploader),
		Extractor:  raw.Extractor,
		WebpageURL: raw.WebpageURL,
	}
	if raw.Duration != nil && *raw.Duration > 0 {
		meta.Duration = *raw.Duration
	}
	return meta, nil
}
