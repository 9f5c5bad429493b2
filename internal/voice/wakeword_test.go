package voice

import "testing"

func TestMatcherMatch(t *testing.T) {
	m := NewMatcher("hey buddy", []string{
		"hey buddy", "hey, buddy", "hey bud", "hey body",
		"hey birdie", "a buddy", "hi buddy", "hello buddy",
	})

	tests := []struct {
		name        string
		text        string
		wantVariant string
		wantMatch   bool
	}{
		{"exact phrase", "hey buddy", "hey buddy", true},
		{"mixed case", "HEY Buddy", "hey buddy", true},
		{"embedded in sentence", "hi there, hey buddy, can you help", "hey buddy", true},
		{"mis-hearing variant", "he said hey body again", "hey body", true},
		{"comma variant", "so hey, buddy what's up", "hey, buddy", true},
		{"no match", "good morning everyone", "", false},
		{"empty text", "", "", false},
		{"partial word only", "buddy system", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variant, ok := m.Match(tt.text)
			if ok != tt.wantMatch {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.text, ok, tt.wantMatch)
			}
			if variant != tt.wantVariant {
				t.Errorf("Match(%q) variant = %q, want %q", tt.text, variant, tt.wantVariant)
			}
		})
	}
}

func TestMatcherFirstVariantWins(t *testing.T) {
	// "hey bud" appears earlier in the text but "hey buddy" is first in the
	// configured list, so it wins.
	m := NewMatcher("hey buddy", []string{"hey buddy", "hey bud"})
	variant, ok := m.Match("hey bud, I mean hey buddy")
	if !ok {
		t.Fatal("expected a match")
	}
	if variant != "hey buddy" {
		t.Errorf("variant = %q, want first-listed %q", variant, "hey buddy")
	}
}

func TestMatcherEmptyVariantsFallsBackToPhrase(t *testing.T) {
	m := NewMatcher("Hey Buddy", nil)
	if variant, ok := m.Match("well hey buddy"); !ok || variant != "hey buddy" {
		t.Errorf("Match = (%q, %v), want (hey buddy, true)", variant, ok)
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateListening, true},
		{StateListening, StateCapturing, true},
		{StateCapturing, StateTranscribing, true},
		{StateTranscribing, StateWakeDetected, true},
		{StateTranscribing, StateListening, true},
		{StateWakeDetected, StateListening, true},
		{StateListening, StatePaused, true},
		{StatePaused, StateListening, true},
		{StateError, StateIdle, true},
		{StateIdle, StateTranscribing, false},
		{StateError, StateListening, false},
		{StatePaused, StateWakeDetected, false},
		{StateListening, StateListening, true},
	}

	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
