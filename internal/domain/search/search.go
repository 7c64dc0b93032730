// Package search provides the search result aggregate returned by the catalog.
package search

import (
	"github.com/tonearm/tonearm/internal/domain/album"
	"github.com/tonearm/tonearm/internal/domain/playlist"
	"github.com/tonearm/tonearm/internal/domain/track"
)

// Results holds everything the catalog matched for a query.
// Unavailable entries are kept (flagged on the entity) so a front end can
// show them disabled rather than hide them.
type Results struct {
	Query     string
	Albums    []album.Album
	Artists   []track.Artist
	Playlists []playlist.Playlist
	Tracks    []track.Track
}

// Empty reports whether the query matched nothing at all.
func (r *Results) Empty() bool {
	return len(r.Albums) == 0 && len(r.Artists) == 0 && len(r.Playlists) == 0 && len(r.Tracks) == 0
}
