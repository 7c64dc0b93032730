package player

import (
	"time"

	"github.com/tonearm/tonearm/internal/app/queue"
)

// Notification is an event broadcast from the controller to every observer.
// Each variant carries enough data for a subscriber to reconstruct the
// observable player state without querying the controller.
type Notification interface {
	// NotificationType returns a stable identifier used for logging.
	NotificationType() string
}

// NotifyQuit tells subscribers the player is shutting down. It is the last
// notification the hub delivers.
type NotifyQuit struct{}

// NotifyLoading is emitted when the controller starts or finishes resolving
// a new source. TargetState is the state playback returns to when loading
// ends.
type NotifyLoading struct {
	IsLoading   bool
	TargetState State
}

// NotifyStatus reports a playback state transition.
type NotifyStatus struct {
	State State
}

// NotifyPosition reports elapsed playback time within the current track.
type NotifyPosition struct {
	Elapsed time.Duration
}

// NotifyCurrentTrackList is emitted whenever the list is replaced or an
// entry's status changes. List is a point-in-time snapshot; the controller
// keeps mutating its own copy after the broadcast, so subscribers may read
// it from any goroutine.
type NotifyCurrentTrackList struct {
	List *queue.TrackList
}

// NotifyBuffering reports backend buffering progress.
type NotifyBuffering struct {
	IsBuffering bool
	TargetState State
	Percent     int
}

// NotifyAudioQuality reports the stream's actual bit depth and sample rate
// as decoded by the backend. Stream reality overrides catalog metadata.
type NotifyAudioQuality struct {
	BitDepth     int
	SamplingRate int
}

// NotifyError surfaces a non-fatal failure (catalog transport error, unknown
// entity, exhausted list) to observers.
type NotifyError struct {
	Message string
}

func (NotifyQuit) NotificationType() string             { return "quit" }
func (NotifyLoading) NotificationType() string          { return "loading" }
func (NotifyStatus) NotificationType() string           { return "status" }
func (NotifyPosition) NotificationType() string         { return "position" }
func (NotifyCurrentTrackList) NotificationType() string { return "current_track_list" }
func (NotifyBuffering) NotificationType() string        { return "buffering" }
func (NotifyAudioQuality) NotificationType() string     { return "audio_quality" }
func (NotifyError) NotificationType() string            { return "error" }
