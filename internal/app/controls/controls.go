// Package controls provides the command bus between producers (UI, signal
// handlers, timers) and the single playback controller that drains it.
package controls

import (
	"context"
	"sync"
)

// DefaultCapacity is the bus capacity used when the config does not say
// otherwise. A full bus blocks producers rather than dropping commands.
const DefaultCapacity = 10

// Controls is the producer-side handle of the command bus. It is safe for
// concurrent use by any number of producers; exactly one consumer must drain
// Actions.
type Controls struct {
	actions chan Action

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a command bus with the given capacity.
// Capacities below 1 fall back to DefaultCapacity.
func New(capacity int) *Controls {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Controls{
		actions: make(chan Action, capacity),
		closed:  make(chan struct{}),
	}
}

// Actions returns the receive side of the bus. The playback controller is
// the only consumer.
func (c *Controls) Actions() <-chan Action {
	return c.actions
}

// Done is closed when the bus shuts down. The consumer selects on it next
// to Actions so a torn-down bus ends the loop instead of blocking forever.
func (c *Controls) Done() <-chan struct{} {
	return c.closed
}

// Send enqueues an action, blocking while the bus is full. It returns the
// context error if ctx is done first, and nil without enqueueing if the bus
// has been closed.
func (c *Controls) Send(ctx context.Context, a Action) error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	select {
	case c.actions <- a:
		return nil
	case <-c.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the bus down. Blocked producers are released and the consumer
// loop terminates. The actions channel itself is never closed, so a racing
// producer cannot panic on a closed channel. Safe to call more than once.
func (c *Controls) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// Convenience senders, one per action. All use the background context and
// block until the bus accepts the command.

func (c *Controls) Play()                        { c.send(Play{}) }
func (c *Controls) Pause()                       { c.send(Pause{}) }
func (c *Controls) PlayPause()                   { c.send(PlayPause{}) }
func (c *Controls) Next()                        { c.send(Next{}) }
func (c *Controls) Previous()                    { c.send(Previous{}) }
func (c *Controls) Stop()                        { c.send(Stop{}) }
func (c *Controls) Quit()                        { c.send(Quit{}) }
func (c *Controls) SkipTo(position uint)         { c.send(SkipTo{Position: position}) }
func (c *Controls) JumpForward()                 { c.send(JumpForward{}) }
func (c *Controls) JumpBackward()                { c.send(JumpBackward{}) }
func (c *Controls) PlayAlbum(albumID string)     { c.send(PlayAlbum{AlbumID: albumID}) }
func (c *Controls) PlayTrack(trackID string)     { c.send(PlayTrack{TrackID: trackID}) }
func (c *Controls) PlayURI(uri string)           { c.send(PlayURI{URI: uri}) }
func (c *Controls) PlayPlaylist(playlistID string) {
	c.send(PlayPlaylist{PlaylistID: playlistID})
}
func (c *Controls) Search(query string)          { c.send(Search{Query: query}) }
func (c *Controls) FetchArtistAlbums(artistID string) {
	c.send(FetchArtistAlbums{ArtistID: artistID})
}
func (c *Controls) FetchPlaylistTracks(playlistID string) {
	c.send(FetchPlaylistTracks{PlaylistID: playlistID})
}
func (c *Controls) FetchUserPlaylists() { c.send(FetchUserPlaylists{}) }

func (c *Controls) send(a Action) {
	_ = c.Send(context.Background(), a)
}
