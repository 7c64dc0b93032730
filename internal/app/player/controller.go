package player

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/tonearm/tonearm/internal/app/controls"
	"github.com/tonearm/tonearm/internal/app/queue"
	"github.com/tonearm/tonearm/internal/domain/track"
)

// DefaultJumpOffset is the seek distance for JumpForward/JumpBackward when
// the config does not say otherwise.
const DefaultJumpOffset = 10 * time.Second

// Publisher is the notification sink the controller broadcasts into.
// Satisfied by *notification.Hub.
type Publisher interface {
	Broadcast(Notification)
	Close()
}

// Config holds controller configuration.
type Config struct {
	JumpOffset time.Duration // Seek distance for jump commands
	Quality    Quality       // Stream quality requested from the catalog
}

// resolution carries the outcome of an async catalog resolution back into
// the controller loop.
type resolution struct {
	gen    uint64
	source string
	list   *queue.TrackList
	err    error
}

// streamResult carries a resolved stream URL back into the controller loop.
type streamResult struct {
	gen      uint64
	position uint
	url      string
	err      error
}

// openResult carries the outcome of an async backend open back into the
// controller loop.
type openResult struct {
	gen      uint64
	position uint
	err      error
}

// Controller is the playback state machine. One goroutine (Run) drains the
// command bus, consumes backend events, and owns all mutation of the current
// track list and playback state. Catalog calls are offloaded to goroutines
// whose results re-enter the loop as ordinary messages, so a slow network
// call never stalls command processing.
type Controller struct {
	cfg     Config
	bus     *controls.Controls
	catalog Catalog
	backend Backend
	pub     Publisher

	mu    sync.RWMutex // guards state and list for outside readers
	state State
	list  *queue.TrackList

	elapsed time.Duration
	loading bool
	gen     uint64 // bumped whenever "what should play" changes; stale async results are discarded

	resolved chan resolution
	loaded   chan streamResult
	opened   chan openResult
	browse   chan BrowseResult
	done     chan struct{} // closed on shutdown, releases in-flight async sends
}

// New creates a controller. It does nothing until Run is called.
func New(cfg Config, bus *controls.Controls, catalog Catalog, backend Backend, pub Publisher) *Controller {
	if cfg.JumpOffset <= 0 {
		cfg.JumpOffset = DefaultJumpOffset
	}
	if cfg.Quality == "" {
		cfg.Quality = QualityLossless
	}
	return &Controller{
		cfg:      cfg,
		bus:      bus,
		catalog:  catalog,
		backend:  backend,
		pub:      pub,
		state:    StateNull,
		resolved: make(chan resolution, 1),
		loaded:   make(chan streamResult, 1),
		opened:   make(chan openResult, 1),
		browse:   make(chan BrowseResult, 8),
		done:     make(chan struct{}),
	}
}

// Browse returns the out-of-band channel carrying results of read-only
// catalog fetches (Search, FetchArtistAlbums, FetchPlaylistTracks,
// FetchUserPlaylists).
func (c *Controller) Browse() <-chan BrowseResult {
	return c.browse
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CurrentTrackList returns the active list, or nil when nothing is loaded.
func (c *Controller) CurrentTrackList() *queue.TrackList {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list
}

// Run drains the command bus and the backend event stream until Quit is
// processed, the bus is closed, or ctx is cancelled. It must be called
// exactly once.
func (c *Controller) Run(ctx context.Context) error {
	zlog.Info().Msg("player: controller started")
	defer zlog.Info().Msg("player: controller stopped")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-c.bus.Done():
			zlog.Debug().Msg("player: command bus closed")
			c.shutdown()
			return nil
		case a := <-c.bus.Actions():
			if quit := c.handleAction(ctx, a); quit {
				c.shutdown()
				return nil
			}
		case ev, ok := <-c.backend.Events():
			if !ok {
				zlog.Debug().Msg("player: backend event stream closed")
				c.shutdown()
				return nil
			}
			c.handleBackendEvent(ev)
		case r := <-c.resolved:
			c.handleResolution(r)
		case r := <-c.loaded:
			c.handleStreamLoaded(r)
		case r := <-c.opened:
			c.handleStreamOpened(r)
		}
	}
}

func (c *Controller) handleAction(ctx context.Context, a controls.Action) bool {
	zlog.Debug().Str("action", a.ActionType()).Msg("player: handling action")

	switch act := a.(type) {
	case controls.Play:
		c.play()
	case controls.Pause:
		c.pause()
	case controls.PlayPause:
		if c.State() == StatePlaying {
			c.pause()
		} else {
			c.play()
		}
	case controls.Next:
		c.next()
	case controls.Previous:
		c.previous()
	case controls.Stop:
		c.stop()
	case controls.Quit:
		return true
	case controls.SkipTo:
		c.skipTo(act.Position)
	case controls.JumpForward:
		c.jump(c.cfg.JumpOffset)
	case controls.JumpBackward:
		c.jump(-c.cfg.JumpOffset)
	case controls.PlayAlbum:
		c.resolve(ctx, act.ActionType(), func(ctx context.Context) (*queue.TrackList, error) {
			a, err := c.catalog.Album(ctx, act.AlbumID)
			if err != nil {
				return nil, err
			}
			tl := queue.NewFromAlbum(a)
			if tl.Total() == 0 {
				return nil, errors.Wrapf(ErrNoStreamableTracks, "album %s", act.AlbumID)
			}
			return tl, nil
		})
	case controls.PlayPlaylist:
		c.resolve(ctx, act.ActionType(), func(ctx context.Context) (*queue.TrackList, error) {
			p, err := c.catalog.Playlist(ctx, act.PlaylistID)
			if err != nil {
				return nil, err
			}
			tl := queue.NewFromPlaylist(p)
			if tl.Total() == 0 {
				return nil, errors.Wrapf(ErrNoStreamableTracks, "playlist %s", act.PlaylistID)
			}
			return tl, nil
		})
	case controls.PlayTrack:
		c.resolve(ctx, act.ActionType(), func(ctx context.Context) (*queue.TrackList, error) {
			t, err := c.catalog.Track(ctx, act.TrackID)
			if err != nil {
				return nil, err
			}
			if !t.Available {
				return nil, errors.Wrapf(ErrNoStreamableTracks, "track %s", act.TrackID)
			}
			return queue.NewFromTrack(*t), nil
		})
	case controls.PlayURI:
		c.playURI(act.URI)
	case controls.Search:
		c.browseFetch(ctx, act.ActionType(), func(ctx context.Context) BrowseResult {
			res, err := c.catalog.Search(ctx, act.Query)
			return BrowseResult{Search: res, Err: err}
		})
	case controls.FetchArtistAlbums:
		c.browseFetch(ctx, act.ActionType(), func(ctx context.Context) BrowseResult {
			albums, err := c.catalog.ArtistAlbums(ctx, act.ArtistID)
			return BrowseResult{Albums: albums, Err: err}
		})
	case controls.FetchPlaylistTracks:
		c.browseFetch(ctx, act.ActionType(), func(ctx context.Context) BrowseResult {
			p, err := c.catalog.Playlist(ctx, act.PlaylistID)
			return BrowseResult{Playlist: p, Err: err}
		})
	case controls.FetchUserPlaylists:
		c.browseFetch(ctx, act.ActionType(), func(ctx context.Context) BrowseResult {
			lists, err := c.catalog.UserPlaylists(ctx)
			return BrowseResult{Playlists: lists, Err: err}
		})
	default:
		zlog.Warn().Str("action", a.ActionType()).Msg("player: unknown action, ignoring")
	}
	return false
}

// play starts or resumes playback. No-op when already playing or when
// nothing is loaded.
func (c *Controller) play() {
	switch c.State() {
	case StatePlaying:
		return
	case StatePaused:
		if err := c.backend.Play(); err != nil {
			zlog.Warn().Err(err).Msg("player: backend resume failed")
			return
		}
		c.setState(StatePlaying)
		return
	}

	list := c.CurrentTrackList()
	if list == nil {
		return
	}
	t := firstUnplayedOrAvailable(list)
	if t == nil {
		return
	}
	c.startTrack(t)
}

func firstUnplayedOrAvailable(list *queue.TrackList) *track.Track {
	for _, t := range list.UnplayedTracks() {
		if t.Available {
			return t
		}
	}
	return list.FirstAvailable()
}

func (c *Controller) pause() {
	if c.State() != StatePlaying {
		return
	}
	if err := c.backend.Pause(); err != nil {
		zlog.Warn().Err(err).Msg("player: backend pause failed")
		return
	}
	c.setState(StatePaused)
}

// next advances to the following available entry. Past the last entry the
// controller transitions to stopped; it never wraps around.
func (c *Controller) next() {
	list := c.CurrentTrackList()
	if list == nil {
		return
	}
	var pos uint
	if cur := list.CurrentlyPlaying(); cur != nil {
		pos = cur.Position
		list.SetStatus(pos, track.StatusPlayed)
	}
	nxt := list.NextAvailable(pos)
	if nxt == nil {
		c.stopExhausted(list)
		return
	}
	c.startTrack(nxt)
}

func (c *Controller) previous() {
	list := c.CurrentTrackList()
	if list == nil {
		return
	}
	cur := list.CurrentlyPlaying()
	if cur == nil {
		return
	}
	prev := list.PreviousAvailable(cur.Position)
	if prev == nil {
		// Already on the first track, stay there.
		return
	}
	c.startTrack(prev)
}

func (c *Controller) stop() {
	// Nothing loaded and nothing resolving: there is nothing to stop.
	if c.CurrentTrackList() == nil && !c.loading {
		return
	}
	c.gen++
	c.endLoading()
	if err := c.backend.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("player: backend stop failed")
	}
	c.elapsed = 0
	c.setState(StateStopped)
}

// skipTo jumps to a position in the current list. An absent position is a
// silent no-op.
func (c *Controller) skipTo(position uint) {
	list := c.CurrentTrackList()
	if list == nil {
		return
	}
	t := list.Track(position)
	if t == nil {
		zlog.Debug().
			Uint("position", uint(position)).
			Int("total", list.Total()).
			Msg("player: skip position not in list, ignoring")
		return
	}
	c.startTrack(t)
}

// jump seeks within the current track by delta, clamped to [0, duration].
func (c *Controller) jump(delta time.Duration) {
	list := c.CurrentTrackList()
	if list == nil {
		return
	}
	cur := list.CurrentlyPlaying()
	if cur == nil {
		return
	}
	pos := c.elapsed + delta
	if pos < 0 {
		pos = 0
	}
	if cur.Duration > 0 && pos > cur.Duration {
		pos = cur.Duration
	}
	if err := c.backend.Seek(pos); err != nil {
		zlog.Warn().Err(err).Msg("player: seek failed")
		return
	}
	c.elapsed = pos
	c.pub.Broadcast(NotifyPosition{Elapsed: pos})
}

// playURI hands a raw URI to the backend as a one-track ad-hoc list.
func (c *Controller) playURI(uri string) {
	c.gen++
	list := queue.NewFromURI(uri, 0)
	c.setList(list)
	c.startTrack(list.FirstAvailable())
}

// resolve offloads a catalog resolution to its own goroutine. The result
// re-enters the loop on c.resolved; Stop/Quit issued meanwhile bump the
// generation and the stale result is discarded.
func (c *Controller) resolve(ctx context.Context, source string, fn func(context.Context) (*queue.TrackList, error)) {
	c.gen++
	gen := c.gen
	c.beginLoading()

	go func() {
		list, err := fn(ctx)
		select {
		case c.resolved <- resolution{gen: gen, source: source, list: list, err: err}:
		case <-c.done:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) handleResolution(r resolution) {
	if r.gen != c.gen {
		zlog.Debug().Str("source", r.source).Msg("player: discarding superseded resolution")
		return
	}
	if r.err != nil {
		zlog.Warn().Err(r.err).Str("source", r.source).Msg("player: resolution failed")
		c.pub.Broadcast(NotifyError{Message: r.err.Error()})
		c.endLoading()
		return
	}
	c.setList(r.list)
	c.startTrack(r.list.FirstAvailable())
}

// browseFetch offloads a read-only catalog fetch; the result lands on the
// browse channel for the front end, never on the notification hub.
func (c *Controller) browseFetch(ctx context.Context, source string, fn func(context.Context) BrowseResult) {
	go func() {
		res := fn(ctx)
		res.Action = source
		select {
		case c.browse <- res:
		case <-c.done:
		case <-ctx.Done():
		}
	}()
}

// startTrack makes the given entry the playing one and kicks off the stream
// URL resolution for it. The URL lands on c.loaded, the backend open result
// on c.opened; both stages run off the loop so commands stay processable.
func (c *Controller) startTrack(t *track.Track) {
	if t == nil {
		return
	}
	c.gen++
	gen := c.gen

	list := c.CurrentTrackList()
	list.SetPlaying(t.Position)
	c.pub.Broadcast(NotifyCurrentTrackList{List: list.Snapshot()})
	c.beginLoading()
	c.elapsed = 0
	c.setStateQuiet(StateLoading)

	if list.ListType() == queue.ListTypeUnknown {
		// Ad-hoc URI list: the track ID is the stream URI itself.
		c.loadStream(streamResult{gen: gen, position: t.Position, url: t.ID})
		return
	}

	id, pos := t.ID, t.Position
	go func() {
		url, err := c.catalog.TrackStreamURL(context.Background(), id, c.cfg.Quality)
		select {
		case c.loaded <- streamResult{gen: gen, position: pos, url: url, err: err}:
		case <-c.done:
		}
	}()
}

func (c *Controller) handleStreamLoaded(r streamResult) {
	if r.gen != c.gen {
		zlog.Debug().Uint("position", uint(r.position)).Msg("player: discarding superseded stream url")
		return
	}
	if r.err != nil {
		c.openFailure(r.position, r.err)
		return
	}
	c.loadStream(r)
}

// loadStream hands the stream to the backend off the controller goroutine:
// opening may fully buffer a remote stream, and commands must stay
// processable meanwhile. Play is issued from the loop once the open result
// comes back and is still current.
func (c *Controller) loadStream(r streamResult) {
	go func() {
		err := c.backend.Load(r.url)
		select {
		case c.opened <- openResult{gen: r.gen, position: r.position, err: err}:
		case <-c.done:
		}
	}()
}

func (c *Controller) handleStreamOpened(r openResult) {
	if r.gen != c.gen {
		// Superseded while opening. The loaded stream is never played; it
		// stays parked in the backend until the next Load or Stop clears it.
		zlog.Debug().Uint("position", uint(r.position)).Msg("player: discarding superseded stream open")
		return
	}
	if r.err != nil {
		c.openFailure(r.position, r.err)
		return
	}
	if err := c.backend.Play(); err != nil {
		c.openFailure(r.position, err)
	}
}

// openFailure handles a stream the backend (or URL resolution) could not
// open: the entry is marked unavailable and playback advances automatically.
// Observers only hear about it when the whole list is exhausted.
func (c *Controller) openFailure(position uint, err error) {
	zlog.Warn().Err(err).
		Uint("position", uint(position)).
		Msg("player: failed to open stream, skipping entry")

	list := c.CurrentTrackList()
	if list == nil {
		return
	}
	list.MarkUnavailable(position)
	list.SetStatus(position, track.StatusPlayed)

	nxt := list.NextAvailable(position)
	if nxt == nil {
		c.endLoading()
		c.pub.Broadcast(NotifyError{Message: "no streamable tracks remaining"})
		c.stopExhausted(list)
		return
	}
	c.startTrack(nxt)
}

// advance is the end-of-stream continuation: mark the current entry played
// and start the next one, or stop after the last.
func (c *Controller) advance() {
	list := c.CurrentTrackList()
	if list == nil {
		return
	}
	cur := list.CurrentlyPlaying()
	if cur == nil {
		return
	}
	list.SetStatus(cur.Position, track.StatusPlayed)
	nxt := list.NextAvailable(cur.Position)
	if nxt == nil {
		c.stopExhausted(list)
		return
	}
	c.startTrack(nxt)
}

// stopExhausted ends playback because there is nothing left to play.
func (c *Controller) stopExhausted(list *queue.TrackList) {
	c.gen++
	c.endLoading()
	c.pub.Broadcast(NotifyCurrentTrackList{List: list.Snapshot()})
	if err := c.backend.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("player: backend stop failed")
	}
	c.elapsed = 0
	c.pub.Broadcast(NotifyPosition{Elapsed: 0})
	c.setState(StateStopped)
}

func (c *Controller) handleBackendEvent(ev BackendEvent) {
	// Events queued by a stream the controller already stopped must not
	// resurrect playback or ghost-advance the list.
	if s := c.State(); s == StateStopped || s == StateNull {
		zlog.Debug().Str("event", ev.Type.String()).Msg("player: ignoring backend event while stopped")
		return
	}

	switch ev.Type {
	case BackendPosition:
		c.elapsed = ev.Elapsed
		c.pub.Broadcast(NotifyPosition{Elapsed: ev.Elapsed})
	case BackendBuffering:
		c.setStateQuiet(StateBuffering)
		c.pub.Broadcast(NotifyBuffering{
			IsBuffering: ev.Percent < 100,
			TargetState: StatePlaying,
			Percent:     ev.Percent,
		})
	case BackendStateChanged:
		c.syncBackendState(ev)
	case BackendEndOfStream:
		c.advance()
	case BackendError:
		list := c.CurrentTrackList()
		if list == nil {
			zlog.Warn().Err(ev.Err).Msg("player: backend error with nothing loaded")
			return
		}
		if cur := list.CurrentlyPlaying(); cur != nil {
			c.openFailure(cur.Position, ev.Err)
		}
	}
}

// syncBackendState folds a backend-reported state change into the
// controller's own state machine.
func (c *Controller) syncBackendState(ev BackendEvent) {
	switch ev.State {
	case StatePlaying:
		c.endLoading()
		c.maybeEmitQuality(ev)
		c.setState(StatePlaying)
	case StatePaused:
		c.setState(StatePaused)
	case StateBuffering:
		c.setStateQuiet(StateBuffering)
	default:
		// Ready/Null/Stopped from the backend are side effects of Load and
		// Stop calls the controller itself made; the controller state
		// machine already reflects them.
	}
}

// maybeEmitQuality reports the stream's real parameters when they differ
// from what the catalog claimed for the current track.
func (c *Controller) maybeEmitQuality(ev BackendEvent) {
	if ev.BitDepth == 0 && ev.SamplingRate == 0 {
		return
	}
	list := c.CurrentTrackList()
	if list == nil {
		return
	}
	cur := list.CurrentlyPlaying()
	if cur != nil && cur.BitDepth == ev.BitDepth && cur.SamplingRate == ev.SamplingRate {
		return
	}
	c.pub.Broadcast(NotifyAudioQuality{
		BitDepth:     ev.BitDepth,
		SamplingRate: ev.SamplingRate,
	})
}

// setState transitions the controller state and tells observers.
func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.pub.Broadcast(NotifyStatus{State: s})
	}
}

// setStateQuiet transitions without a Status notification; Loading and
// Buffering have their own notification variants.
func (c *Controller) setStateQuiet(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) setList(list *queue.TrackList) {
	c.mu.Lock()
	c.list = list
	c.mu.Unlock()
}

// beginLoading emits Loading{true} once per command, no matter how many
// internal steps the command takes.
func (c *Controller) beginLoading() {
	if c.loading {
		return
	}
	c.loading = true
	c.pub.Broadcast(NotifyLoading{IsLoading: true, TargetState: StatePlaying})
}

func (c *Controller) endLoading() {
	if !c.loading {
		return
	}
	c.loading = false
	c.pub.Broadcast(NotifyLoading{IsLoading: false, TargetState: c.State()})
}

// shutdown tears the player down: the quit notification is the last thing
// the hub delivers, then both the hub and the bus unwind.
func (c *Controller) shutdown() {
	c.gen++
	close(c.done)
	if err := c.backend.Stop(); err != nil {
		zlog.Debug().Err(err).Msg("player: backend stop during shutdown")
	}
	c.pub.Broadcast(NotifyQuit{})
	c.pub.Close()
	c.bus.Close()
}
