package voice

import "strings"

// Matcher detects the wake phrase in transcribed text. Matching is a
// case-insensitive substring test over a fixed variant list; the variants
// absorb the common mis-hearings of the canonical phrase.
type Matcher struct {
	phrase   string
	variants []string // lowercased, kept in configured order
}

// NewMatcher creates a matcher for the canonical phrase and its accepted
// variants. An empty variant list matches the phrase alone.
func NewMatcher(phrase string, variants []string) *Matcher {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	lowered := make([]string, 0, len(variants))
	for _, v := range variants {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			lowered = append(lowered, v)
		}
	}
	if len(lowered) == 0 && phrase != "" {
		lowered = []string{phrase}
	}
	return &Matcher{phrase: phrase, variants: lowered}
}

// Phrase returns the canonical wake phrase.
func (m *Matcher) Phrase() string { return m.phrase }

// Match reports the first variant, in configured order, contained in text.
// When several variants occur the earlier list entry wins regardless of
// position in the text.
func (m *Matcher) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lowered := strings.ToLower(text)
	for _, v := range m.variants {
		if strings.Contains(lowered, v) {
			return v, true
		}
	}
	return "", false
}
