// Package voice implements the always-on wake-phrase session: the listening
// loop, the mutual-exclusion coordinator between microphone and speech
// output, and greeting composition.
package voice

// State is the lifecycle state of a voice session.
type State string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateCapturing    State = "capturing_chunk"
	StateTranscribing State = "transcribing"
	StateWakeDetected State = "wake_word_detected"
	StatePaused       State = "paused"
	StateError        State = "error"
)

// validTransitions encodes the session state machine. Paused and Error are
// reachable from every running state; Error is terminal until Stop.
var validTransitions = map[State][]State{
	StateIdle:         {StateListening, StateError},
	StateListening:    {StateCapturing, StatePaused, StateError},
	StateCapturing:    {StateTranscribing, StateListening, StatePaused, StateError},
	StateTranscribing: {StateWakeDetected, StateListening, StatePaused, StateError},
	StateWakeDetected: {StateListening, StatePaused, StateError},
	StatePaused:       {StateListening, StateIdle, StateError},
	StateError:        {StateIdle},
}

// ValidTransition reports whether the state machine permits from -> to.
// Self-transitions are always allowed.
func ValidTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
