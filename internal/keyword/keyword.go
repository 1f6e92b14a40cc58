// Package keyword parses keyword lists and matches free-text prompts against
// the keyword vocabulary.
package keyword

import (
	"context"
	"errors"
	"strings"
)

// SuggestLimit caps the number of autocomplete suggestions.
const SuggestLimit = 10

// ErrEmptyPrompt is returned when matching is requested for a blank prompt.
var ErrEmptyPrompt = errors.New("keyword: prompt is empty")

// ParseList splits a comma-separated keyword list. Tokens are trimmed, blank
// tokens dropped and duplicates removed keeping the first occurrence. A blank
// input yields nil.
func ParseList(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Match returns the vocabulary keywords contained, case-insensitively, in the
// comma-separated parts of prompt. Results follow part order, then vocabulary
// order, and each keyword appears once at its first match.
func Match(prompt string, vocabulary []string) ([]string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	lowered := make([]string, len(vocabulary))
	for i, kw := range vocabulary {
		lowered[i] = strings.ToLower(kw)
	}

	matches := []string{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(prompt, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		for i, kw := range vocabulary {
			if lowered[i] == "" || !strings.Contains(part, lowered[i]) {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			matches = append(matches, kw)
		}
	}
	return matches, nil
}

// Vocabulary is the read-only view of known keywords the matcher needs.
type Vocabulary interface {
	ListKeywords(ctx context.Context) ([]string, error)
}

// Matcher matches prompts against the current vocabulary.
type Matcher struct {
	vocab Vocabulary
}

// NewMatcher creates a Matcher backed by vocab.
func NewMatcher(vocab Vocabulary) *Matcher {
	return &Matcher{vocab: vocab}
}

// Match loads the vocabulary and matches prompt against it.
func (m *Matcher) Match(ctx context.Context, prompt string) ([]string, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	vocab, err := m.vocab.ListKeywords(ctx)
	if err != nil {
		return nil, err
	}
	return Match(prompt, vocab)
}
