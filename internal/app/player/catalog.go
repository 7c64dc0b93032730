package player

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/tonearm/tonearm/internal/domain/album"
	"github.com/tonearm/tonearm/internal/domain/playlist"
	"github.com/tonearm/tonearm/internal/domain/search"
	"github.com/tonearm/tonearm/internal/domain/track"
)

// Catalog errors the controller distinguishes from plain transport failures.
var (
	// ErrNotFound means the referenced album/track/playlist does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrNoStreamableTracks means the entity exists but nothing in it can
	// be played.
	ErrNoStreamableTracks = errors.New("no streamable tracks")
)

// Quality selects the stream quality requested from the catalog.
type Quality string

const (
	QualityMP3      Quality = "mp3"
	QualityLossless Quality = "lossless"
	QualityHiRes96  Quality = "hires96"
	QualityHiRes192 Quality = "hires192"
)

// Catalog is the streaming-service collaborator. All calls may take
// arbitrary network time and are only ever issued from goroutines spawned
// off the controller loop.
type Catalog interface {
	Album(ctx context.Context, id string) (*album.Album, error)
	Track(ctx context.Context, id string) (*track.Track, error)
	ArtistAlbums(ctx context.Context, artistID string) ([]album.Album, error)
	Playlist(ctx context.Context, id string) (*playlist.Playlist, error)
	Search(ctx context.Context, query string) (*search.Results, error)
	UserPlaylists(ctx context.Context) ([]playlist.Playlist, error)
	TrackStreamURL(ctx context.Context, trackID string, quality Quality) (string, error)
}
