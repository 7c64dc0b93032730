// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/tonearm/tonearm/internal/domain/track"

// Playlist represents a catalog playlist.
type Playlist struct {
	ID          string        // Catalog playlist ID
	Title       string        // Playlist title
	Description string        // Playlist description
	Owner       string        // Owner display name
	TrackCount  uint          // Track count stated by the catalog
	Tracks      []track.Track // Tracks in source order (fully paginated)
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks in seconds.
func (p *Playlist) TotalDuration() int64 {
	var total int64
	for _, t := range p.Tracks {
		total += int64(t.Duration.Seconds())
	}
	return total
}
