package player

import "time"

// Backend is the audio decode/output collaborator. Implementations open a
// stream URI, produce audio, and report what actually happens on their
// event channel. The controller is the sole consumer of that channel.
type Backend interface {
	// Load opens the stream at uri, replacing whatever was loaded before.
	Load(uri string) error
	// Play starts or resumes output of the loaded stream.
	Play() error
	// Pause suspends output, keeping the stream loaded.
	Pause() error
	// Stop halts output and discards the loaded stream.
	Stop() error
	// Seek moves the playback position of the loaded stream.
	Seek(pos time.Duration) error
	// Events returns the backend's event stream.
	Events() <-chan BackendEvent
	// Close releases the backend's resources. Events is closed afterwards.
	Close() error
}

// BackendEventType identifies a backend event.
type BackendEventType int

const (
	BackendStateChanged BackendEventType = iota // Backend playback state changed
	BackendPosition                             // Periodic position tick
	BackendBuffering                            // Buffer fill progress
	BackendEndOfStream                          // Loaded stream ran out
	BackendError                                // Stream-level failure
)

// String returns the string representation of the event type.
func (t BackendEventType) String() string {
	switch t {
	case BackendStateChanged:
		return "state_changed"
	case BackendPosition:
		return "position"
	case BackendBuffering:
		return "buffering"
	case BackendEndOfStream:
		return "end_of_stream"
	case BackendError:
		return "error"
	default:
		return "unknown"
	}
}

// BackendEvent is a single event reported by the backend.
type BackendEvent struct {
	Type    BackendEventType
	State   State         // StateChanged: the backend's new state
	Elapsed time.Duration // Position: elapsed time in the stream
	Percent int           // Buffering: buffer fill 0..100

	// StateChanged to playing: the decoded stream's real parameters.
	// Zero when the backend cannot tell.
	BitDepth     int
	SamplingRate int

	Err error // Error: what went wrong
}
