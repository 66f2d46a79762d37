package pattern

import (
	"regexp"

	"github.com/cwygoda/vidrelay/internal/domain"
)

// URL path segments never contain whitespace, so the classes below exclude
// it to stop a match at the end of the link.
var (
	tiktokRe    = regexp.MustCompile(`(?i)https?://(?:www\.tiktok\.com/(?:embed/|@[\w.-]+?/video/)|(?:vm|vt)\.tiktok\.com/|www\.tiktok\.com/t/)([\w\d]+)`)
	instagramRe = regexp.MustCompile(`(?i)https?://(?:www\.)?(?:dd)?instagram\.com(?:/[^/\s]+)?/(p|tv|reel|stories/[^/\s]+/\d+)/[^/?#&\s]+`)
	shortsRe    = regexp.MustCompile(`(?i)https?://(?:www\.)?youtube\.com/(shorts/[^/?#&\s]+)+`)
	redditRe    = regexp.MustCompile(`(?i)https?://(?:\w+\.)?reddit(?:media)?\.com/(?:(?:r|user)/[^/\s]+/)?(?:(?:comments/[^/\s]+/[^/\s]+)|(?:s/[^/?#&\s]+))`)
	twitterRe   = regexp.MustCompile(`(?i)https?://((?:twitter|x)\.com)/[a-zA-Z0-9_]+/status/\d+`)
)

// Builtin returns the built-in site patterns in priority order.
func Builtin() []*domain.SourcePattern {
	return []*domain.SourcePattern{
		{ID: "tiktok", Name: "TikTok", Matcher: tiktokRe, Format: titled("TikTok Video")},
		{ID: "instagram", Name: "Instagram", Matcher: instagramRe, Format: titled("Instagram Post")},
		{ID: "youtube-shorts", Name: "YouTube Shorts", Matcher: shortsRe, Format: titled("Youtube Short")},
		{ID: "reddit", Name: "Reddit", Matcher: redditRe, Format: titled("Reddit Post")},
		{ID: "twitter", Name: "Twitter", Matcher: twitterRe, Format: titled("Tweet")},
	}
}

func titled(label string) func(*domain.Metadata) string {
	return func(m *domain.Metadata) string {
		if m == nil || m.Title == "" {
			return ""
		}
		return label + ": " + m.Title
	}
}
