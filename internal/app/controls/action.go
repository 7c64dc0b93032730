package controls

// Action is a command sent from any producer to the playback controller.
// Actions are immutable values; results surface through the notification
// stream (or the controller's browse channel for read-only fetches), never
// through a response channel on the action itself.
type Action interface {
	// ActionType returns a stable identifier used for logging.
	ActionType() string
}

// Transport controls.

type Play struct{}
type Pause struct{}
type PlayPause struct{}
type Next struct{}
type Previous struct{}
type Stop struct{}
type Quit struct{}

// SkipTo jumps to the given position in the current track list.
// An absent position is silently ignored.
type SkipTo struct {
	Position uint
}

// JumpForward seeks ahead within the current track by the configured offset.
type JumpForward struct{}

// JumpBackward seeks back within the current track by the configured offset.
type JumpBackward struct{}

// Queue-replacing commands. Each resolves an entity through the catalog and
// replaces the current track list on success.

type PlayAlbum struct {
	AlbumID string
}

type PlayTrack struct {
	TrackID string
}

type PlayPlaylist struct {
	PlaylistID string
}

// PlayURI bypasses queue construction and hands the URI to the backend as a
// one-track ad-hoc list.
type PlayURI struct {
	URI string
}

// Read-only catalog fetches. Results are delivered out-of-band on the
// controller's browse channel, not broadcast as notifications.

type Search struct {
	Query string
}

type FetchArtistAlbums struct {
	ArtistID string
}

type FetchPlaylistTracks struct {
	PlaylistID string
}

type FetchUserPlaylists struct{}

func (Play) ActionType() string                { return "play" }
func (Pause) ActionType() string               { return "pause" }
func (PlayPause) ActionType() string           { return "play_pause" }
func (Next) ActionType() string                { return "next" }
func (Previous) ActionType() string            { return "previous" }
func (Stop) ActionType() string                { return "stop" }
func (Quit) ActionType() string                { return "quit" }
func (SkipTo) ActionType() string              { return "skip_to" }
func (JumpForward) ActionType() string         { return "jump_forward" }
func (JumpBackward) ActionType() string        { return "jump_backward" }
func (PlayAlbum) ActionType() string           { return "play_album" }
func (PlayTrack) ActionType() string           { return "play_track" }
func (PlayPlaylist) ActionType() string        { return "play_playlist" }
func (PlayURI) ActionType() string             { return "play_uri" }
func (Search) ActionType() string              { return "search" }
func (FetchArtistAlbums) ActionType() string   { return "fetch_artist_albums" }
func (FetchPlaylistTracks) ActionType() string { return "fetch_playlist_tracks" }
func (FetchUserPlaylists) ActionType() string  { return "fetch_user_playlists" }
