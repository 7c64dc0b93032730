package player

import (
	"github.com/tonearm/tonearm/internal/domain/album"
	"github.com/tonearm/tonearm/internal/domain/playlist"
	"github.com/tonearm/tonearm/internal/domain/search"
)

// BrowseResult carries the outcome of a read-only catalog fetch (Search,
// FetchArtistAlbums, FetchPlaylistTracks, FetchUserPlaylists). These are
// request/response operations consumed directly by the front end on the
// controller's browse channel; they never touch the queue and are not
// broadcast through the notification hub.
type BrowseResult struct {
	// Action is the ActionType of the command that produced this result.
	Action string

	Search    *search.Results
	Albums    []album.Album
	Playlist  *playlist.Playlist
	Playlists []playlist.Playlist

	// Err is set when the catalog call failed; the data fields are nil.
	Err error
}
