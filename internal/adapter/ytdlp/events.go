package ytdlp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cwygoda/vidrelay/internal/domain"
)

var (
	progressRe = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%\s+of\s+~?\s*(\S+)(?:\s+in\s+\S+)?(?:\s+at\s+(\S+(?: B/s)?))?(?:\s+ETA\s+(\S+))?`)
	eventRe    = regexp.MustCompile(`^\[([^\]]+)\]\s*(.*)$`)

	quotedTargetRe = regexp.MustCompile(`(?:Merging formats into|Not (?:converting|remuxing) media file|Moving file "[^"]*" to) "(.+)"`)
)

// parseLine turns one line of yt-dlp output into an event. Lines that are
// not bracketed events are dropped.
func parseLine(line string) (domain.ToolEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return domain.ToolEvent{}, false
	}

	if m := progressRe.FindStringSubmatch(line); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		return domain.ToolEvent{
			Kind: domain.EventProgress,
			Progress: domain.Progress{
				Percent:   pct,
				TotalSize: m[2],
				Speed:     m[3],
				ETA:       m[4],
			},
		}, true
	}

	m := eventRe.FindStringSubmatch(line)
	if m == nil {
		return domain.ToolEvent{}, false
	}
	d := domain.Diagnostic{Type: m[1], Data: m[2]}
	d.Path = destination(d)
	return domain.ToolEvent{Kind: domain.EventDiagnostic, Diagnostic: d}, true
}

// destination extracts the file an event says yt-dlp is writing, if any.
func destination(d domain.Diagnostic) string {
	if m := quotedTargetRe.FindStringSubmatch(d.Data); m != nil {
		return m[1]
	}
	if _, after, ok := strings.Cut(d.Data, "Destination: "); ok {
		return strings.TrimSpace(after)
	}
	if d.Type == "download" {
		if before, ok := strings.CutSuffix(d.Data, " has already been downloaded"); ok {
			return strings.TrimSpace(before)
		}
	}
	return ""
}
