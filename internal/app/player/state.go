// Package player provides the playback controller: the single task that
// drains the command bus, owns the current track list, and drives the audio
// backend.
package player

// State represents the playback state owned by the controller. It mirrors
// but is independent of the backend's own reported state; backend state
// changes are one trigger for transitions, not the sole source of truth.
type State int

const (
	StateNull State = iota // Nothing loaded, nothing happening
	StateReady             // Backend ready, no stream loaded
	StateLoading           // Resolving metadata / opening a stream
	StateBuffering         // Stream open, backend filling its buffer
	StatePlaying           // Audio running
	StatePaused            // Audio suspended, stream still loaded
	StateStopped           // Playback ended or was stopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StateLoading:
		return "loading"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
