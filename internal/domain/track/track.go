// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Status represents a track's playback status within its list.
type Status int

const (
	StatusUnplayed Status = iota // Track has not been played yet
	StatusPlaying                // Track is currently playing
	StatusPlayed                 // Track finished or was skipped past
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnplayed:
		return "unplayed"
	case StatusPlaying:
		return "playing"
	case StatusPlayed:
		return "played"
	default:
		return "unknown"
	}
}

// Artist is a lightweight artist reference carried by tracks and albums.
type Artist struct {
	ID   string
	Name string
}

// AlbumRef is the subset of album metadata a track carries around.
type AlbumRef struct {
	ID    string
	Title string
}

// Track represents a single playable track.
// Catalog metadata plus the per-list playback status.
type Track struct {
	ID           string        // Catalog track ID
	Title        string        // Track title
	Artist       Artist        // Performing artist
	Album        *AlbumRef     // Parent album (nil for ad-hoc URIs)
	Position     uint          // 1-based position within its list
	Duration     time.Duration // Track duration
	BitDepth     int           // Catalog-reported bit depth
	SamplingRate int           // Catalog-reported sample rate in Hz
	Available    bool          // Streamable in the caller's region
	Status       Status        // Playback status within the list
}

// DisplayTitle returns "Artist - Title" for logging and list views.
func (t *Track) DisplayTitle() string {
	if t.Artist.Name == "" {
		return t.Title
	}
	return strings.TrimSpace(t.Artist.Name) + " - " + strings.TrimSpace(t.Title)
}
