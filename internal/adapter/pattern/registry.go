package pattern

import (
	"errors"
	"fmt"

	"github.com/cwygoda/vidrelay/internal/domain"
)

var ErrUnknownPattern = errors.New("unknown pattern")

// Registry holds the supported source patterns in priority order.
// It is immutable once built.
type Registry struct {
	patterns []*domain.SourcePattern
}

// NewRegistry creates a registry from patterns in the given order.
func NewRegistry(patterns ...*domain.SourcePattern) *Registry {
	return &Registry{patterns: append([]*domain.SourcePattern(nil), patterns...)}
}

// Default returns the registry of built-in site patterns.
func Default() *Registry {
	return NewRegistry(Builtin()...)
}

// WithFlags returns a copy of the registry where each pattern named in
// extra gets the given flags appended to its own.
func (r *Registry) WithFlags(extra map[string][]string) (*Registry, error) {
	for id := range extra {
		if _, ok := r.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, id)
		}
	}

	patterns := make([]*domain.SourcePattern, len(r.patterns))
	for i, p := range r.patterns {
		cp := *p
		cp.Flags = append(append([]string(nil), p.Flags...), extra[p.ID]...)
		patterns[i] = &cp
	}
	return &Registry{patterns: patterns}, nil
}

// Patterns returns all registered patterns.
func (r *Registry) Patterns() []*domain.SourcePattern {
	return append([]*domain.SourcePattern(nil), r.patterns...)
}

// Lookup finds a pattern by ID.
func (r *Registry) Lookup(id string) (*domain.SourcePattern, bool) {
	for _, p := range r.patterns {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Match returns the first pattern that matches the URL, or nil.
func (r *Registry) Match(url string) *domain.SourcePattern {
	for _, p := range r.patterns {
		if p.Matcher.MatchString(url) {
			return p
		}
	}
	return nil
}

// Extract finds every supported URL in text: patterns in registry order,
// matches in text order, capped at domain.MaxBatchSize. The same URL found
// by two patterns yields two matches.
func (r *Registry) Extract(text string) []domain.Match {
	if text == "" {
		return nil
	}

	var matches []domain.Match
	for _, p := range r.patterns {
		for _, u := range p.Matcher.FindAllString(text, -1) {
			matches = append(matches, domain.Match{URL: u, Pattern: p})
			if len(matches) == domain.MaxBatchSize {
				return matches
			}
		}
	}
	return matches
}
