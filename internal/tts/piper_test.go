package tts

import "testing"

func TestSanitizeForPiper(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello there", "hello there"},
		{"bold stripped", "that is **great** news", "that is great news"},
		{"italic stripped", "a *small* thing", "a small thing"},
		{"inline code removed", "run `go build` now", "run now"},
		{"link keeps label", "see [the docs](https://example.com) please", "see the docs please"},
		{"bullets removed", "- first\n- second", "first second"},
		{"quotes normalized", `she said "hi"`, "she said 'hi'"},
		{"whitespace collapsed", "too   many\n\nspaces", "too many spaces"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeForPiper(tt.in); got != tt.want {
				t.Errorf("sanitizeForPiper(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
