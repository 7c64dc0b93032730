// Package album provides the Album domain entity.
package album

import "github.com/tonearm/tonearm/internal/domain/track"

// Album represents a catalog album.
// Tracks are kept in source order and may include unavailable entries;
// queue construction decides what to skip.
type Album struct {
	ID             string        // Catalog album ID
	Title          string        // Album title
	Artist         track.Artist  // Album artist
	TotalTracks    uint          // Track count stated by the catalog (may exceed loaded entries)
	ReleaseYear    int           // Original release year
	HiResAvailable bool          // Hi-res stream available
	Explicit       bool          // Parental warning flag
	Available      bool          // Album streamable at all
	CoverArt       string        // Cover art URL
	Tracks         []track.Track // Tracks in source order
}

// AvailableTracks returns the streamable subset in source order.
func (a *Album) AvailableTracks() []track.Track {
	out := make([]track.Track, 0, len(a.Tracks))
	for _, t := range a.Tracks {
		if t.Available {
			out = append(out, t)
		}
	}
	return out
}
