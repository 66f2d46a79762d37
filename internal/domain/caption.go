package domain

// MetadataUnavailable is printed by the fetch command when no caption could
// be built.
const MetadataUnavailable = "Video metadata unavailable"

const (
	DefaultCaptionLength = 250
	DefaultEllipsis      = "..."
)

// CaptionOptions controls caption truncation.
type CaptionOptions struct {
	MaxLength int
	Ellipsis  string
}

// DefaultCaptionOptions returns the default caption limits.
func DefaultCaptionOptions() CaptionOptions {
	return CaptionOptions{MaxLength: DefaultCaptionLength, Ellipsis: DefaultEllipsis}
}

// FormatCaption builds the caption for a download. It returns "" when the
// metadata is missing or the pattern has nothing to say about it, so the
// reply carries no caption at all.
func FormatCaption(p *SourcePattern, meta *Metadata, opts CaptionOptions) string {
	if p == nil || p.Format == nil || meta == nil {
		return ""
	}
	text := p.Format(meta)
	if text == "" {
		return ""
	}
	return Truncate(text, opts.MaxLength, opts.Ellipsis)
}

// Truncate shortens text to at most maxLen runes, ellipsis included. It cuts
// at the last space that keeps the result within bounds and falls back to a
// hard cut when there is none.
func Truncate(text string, maxLen int, ellipsis string) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 0 {
		return ""
	}
	ell := []rune(ellipsis)
	if len(ell) >= maxLen {
		return string(runes[:maxLen])
	}

	cut := maxLen - len(ell)
	for i := cut; i > 0; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return string(runes[:cut]) + ellipsis
}
