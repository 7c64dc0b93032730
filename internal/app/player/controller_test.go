package player_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonearm/tonearm/internal/app/controls"
	"github.com/tonearm/tonearm/internal/app/notification"
	"github.com/tonearm/tonearm/internal/app/player"
	"github.com/tonearm/tonearm/internal/app/queue"
	"github.com/tonearm/tonearm/internal/domain/album"
	"github.com/tonearm/tonearm/internal/domain/playlist"
	"github.com/tonearm/tonearm/internal/domain/search"
	"github.com/tonearm/tonearm/internal/domain/track"
)

const waitTimeout = 2 * time.Second

// fakeCatalog serves canned entities and can be forced to fail or block.
type fakeCatalog struct {
	mu        sync.Mutex
	albums    map[string]*album.Album
	tracks    map[string]*track.Track
	playlists map[string]*playlist.Playlist
	err       error
	block     chan struct{} // resolution waits on this when non-nil
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		albums:    map[string]*album.Album{},
		tracks:    map[string]*track.Track{},
		playlists: map[string]*playlist.Playlist{},
	}
}

func (c *fakeCatalog) gate() error {
	c.mu.Lock()
	block, err := c.block, c.err
	c.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (c *fakeCatalog) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *fakeCatalog) Album(ctx context.Context, id string) (*album.Album, error) {
	if err := c.gate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.albums[id]
	if !ok {
		return nil, errors.Wrapf(player.ErrNotFound, "album %s", id)
	}
	return a, nil
}

func (c *fakeCatalog) Track(ctx context.Context, id string) (*track.Track, error) {
	if err := c.gate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tracks[id]
	if !ok {
		return nil, errors.Wrapf(player.ErrNotFound, "track %s", id)
	}
	return t, nil
}

func (c *fakeCatalog) Playlist(ctx context.Context, id string) (*playlist.Playlist, error) {
	if err := c.gate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.playlists[id]
	if !ok {
		return nil, errors.Wrapf(player.ErrNotFound, "playlist %s", id)
	}
	return p, nil
}

func (c *fakeCatalog) ArtistAlbums(ctx context.Context, artistID string) ([]album.Album, error) {
	if err := c.gate(); err != nil {
		return nil, err
	}
	return []album.Album{{ID: "a-" + artistID, Title: "Album of " + artistID}}, nil
}

func (c *fakeCatalog) Search(ctx context.Context, query string) (*search.Results, error) {
	if err := c.gate(); err != nil {
		return nil, err
	}
	return &search.Results{Query: query, Tracks: []track.Track{{ID: "hit-1", Available: true}}}, nil
}

func (c *fakeCatalog) UserPlaylists(ctx context.Context) ([]playlist.Playlist, error) {
	if err := c.gate(); err != nil {
		return nil, err
	}
	return []playlist.Playlist{{ID: "pl-1", Title: "Mine"}}, nil
}

func (c *fakeCatalog) TrackStreamURL(ctx context.Context, trackID string, quality player.Quality) (string, error) {
	if err := c.gate(); err != nil {
		return "", err
	}
	return "https://stream.example/" + trackID, nil
}

// fakeBackend records calls and emits buffering + playing events on Play,
// the way a real engine reports a stream spinning up.
type fakeBackend struct {
	mu       sync.Mutex
	events   chan player.BackendEvent
	loaded   []string
	failURIs map[string]bool
	loadGate chan struct{} // Load waits on this when non-nil
	plays    int
	pauses   int
	stops    int
	seeks    []time.Duration
	started  bool // a fresh stream is loaded but not yet playing
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		events:   make(chan player.BackendEvent, 256),
		failURIs: map[string]bool{},
	}
}

func (b *fakeBackend) Load(uri string) error {
	b.mu.Lock()
	gate := b.loadGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failURIs[uri] {
		return errors.Newf("cannot open %s", uri)
	}
	b.loaded = append(b.loaded, uri)
	b.started = false
	return nil
}

func (b *fakeBackend) setLoadGate(gate chan struct{}) {
	b.mu.Lock()
	b.loadGate = gate
	b.mu.Unlock()
}

func (b *fakeBackend) playCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.plays
}

func (b *fakeBackend) stopCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stops
}

func (b *fakeBackend) Play() error {
	b.mu.Lock()
	b.plays++
	fresh := !b.started
	b.started = true
	b.mu.Unlock()

	if fresh {
		b.events <- player.BackendEvent{Type: player.BackendBuffering, Percent: 50}
		b.events <- player.BackendEvent{Type: player.BackendBuffering, Percent: 100}
		b.events <- player.BackendEvent{
			Type:         player.BackendStateChanged,
			State:        player.StatePlaying,
			BitDepth:     16,
			SamplingRate: 44100,
		}
	}
	return nil
}

func (b *fakeBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pauses++
	return nil
}

func (b *fakeBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	return nil
}

func (b *fakeBackend) Seek(pos time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seeks = append(b.seeks, pos)
	return nil
}

func (b *fakeBackend) Events() <-chan player.BackendEvent { return b.events }
func (b *fakeBackend) Close() error                       { return nil }

func (b *fakeBackend) endOfStream() {
	b.events <- player.BackendEvent{Type: player.BackendEndOfStream}
}

func (b *fakeBackend) loadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.loaded)
}

func (b *fakeBackend) loadedURIs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.loaded))
	copy(out, b.loaded)
	return out
}

// harness wires a controller with fakes and a real hub.
type harness struct {
	bus     *controls.Controls
	hub     *notification.Hub
	catalog *fakeCatalog
	backend *fakeBackend
	ctrl    *player.Controller
	notes   <-chan player.Notification
	runDone chan error

	stopOnce sync.Once
	runErr   error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		bus:     controls.New(10),
		hub:     notification.NewHub(512),
		catalog: newFakeCatalog(),
		backend: newFakeBackend(),
		runDone: make(chan error, 1),
	}
	h.ctrl = player.New(player.Config{JumpOffset: 10 * time.Second}, h.bus, h.catalog, h.backend, h.hub)
	_, h.notes = h.hub.Subscribe()

	go func() { h.runDone <- h.ctrl.Run(context.Background()) }()

	t.Cleanup(func() {
		h.bus.Quit()
		h.waitStopped(t)
	})
	return h
}

// waitStopped waits for Run to return, at most once.
func (h *harness) waitStopped(t *testing.T) error {
	t.Helper()
	h.stopOnce.Do(func() {
		select {
		case h.runErr = <-h.runDone:
		case <-time.After(waitTimeout):
			t.Error("controller did not shut down")
		}
	})
	return h.runErr
}

// await reads notifications in order until one matches.
func (h *harness) await(t *testing.T, what string, match func(player.Notification) bool) player.Notification {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case n, ok := <-h.notes:
			if !ok {
				t.Fatalf("notification stream closed waiting for %s", what)
			}
			if match(n) {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func (h *harness) awaitStatus(t *testing.T, s player.State) {
	t.Helper()
	h.await(t, fmt.Sprintf("status %s", s), func(n player.Notification) bool {
		st, ok := n.(player.NotifyStatus)
		return ok && st.State == s
	})
}

func isLoading(v bool) func(player.Notification) bool {
	return func(n player.Notification) bool {
		l, ok := n.(player.NotifyLoading)
		return ok && l.IsLoading == v
	}
}

func seedAlbum(c *fakeCatalog, id string, availability ...bool) {
	a := &album.Album{ID: id, Title: "Album " + id, TotalTracks: uint(len(availability))}
	for i, avail := range availability {
		a.Tracks = append(a.Tracks, track.Track{
			ID:        fmt.Sprintf("%s-t%d", id, i+1),
			Title:     fmt.Sprintf("Track %d", i+1),
			Duration:  3 * time.Minute,
			Available: avail,
		})
	}
	c.mu.Lock()
	c.albums[id] = a
	c.mu.Unlock()
}

func TestPlayAlbum_LoadingBufferingPlayingInOrder(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A1", true, true, false, true)

	h.bus.PlayAlbum("A1")

	// Reading in order from one subscription asserts emission order.
	h.await(t, "loading{true}", isLoading(true))
	listNote := h.await(t, "track list", func(n player.Notification) bool {
		_, ok := n.(player.NotifyCurrentTrackList)
		return ok
	})
	h.await(t, "buffering", func(n player.Notification) bool {
		_, ok := n.(player.NotifyBuffering)
		return ok
	})
	h.await(t, "loading{false}", isLoading(false))
	h.awaitStatus(t, player.StatePlaying)

	list := listNote.(player.NotifyCurrentTrackList).List
	assert.Equal(t, 3, list.Total(), "unstreamable entry is never enqueued")
	assert.Equal(t, queue.ListTypeAlbum, list.ListType())
	for i, tr := range list.Tracks() {
		assert.Equal(t, uint(i+1), tr.Position)
	}

	require.Eventually(t, func() bool { return h.backend.loadCount() == 1 }, waitTimeout, 10*time.Millisecond)
	assert.Equal(t, []string{"https://stream.example/A1-t1"}, h.backend.loadedURIs())

	cur := h.ctrl.CurrentTrackList().CurrentlyPlaying()
	require.NotNil(t, cur)
	assert.Equal(t, uint(1), cur.Position)
}

func TestPlayTrack_SingleLoadingPair(t *testing.T) {
	h := newHarness(t)
	h.catalog.mu.Lock()
	h.catalog.tracks["42"] = &track.Track{ID: "42", Title: "Answer", Duration: time.Minute, Available: true}
	h.catalog.mu.Unlock()

	h.bus.PlayTrack("42")

	h.await(t, "loading{true}", isLoading(true))
	h.await(t, "loading{false}", isLoading(false))
	h.awaitStatus(t, player.StatePlaying)

	list := h.ctrl.CurrentTrackList()
	require.NotNil(t, list)
	assert.Equal(t, queue.ListTypeTrack, list.ListType())
	require.NotNil(t, list.CurrentlyPlaying())
	assert.Equal(t, "42", list.CurrentlyPlaying().ID)

	// No stray loading notifications beyond the single pair: the next
	// notification-worthy thing we trigger must arrive before any Loading.
	h.bus.Pause()
	h.await(t, "status paused", func(n player.Notification) bool {
		_, isLoad := n.(player.NotifyLoading)
		require.False(t, isLoad, "unexpected extra loading notification")
		st, ok := n.(player.NotifyStatus)
		return ok && st.State == player.StatePaused
	})
}

func TestPlayTrackWhilePlaying_ReplacesList(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A1", true, true)
	h.catalog.mu.Lock()
	h.catalog.tracks["42"] = &track.Track{ID: "42", Title: "Answer", Duration: time.Minute, Available: true}
	h.catalog.mu.Unlock()

	h.bus.PlayAlbum("A1")
	h.awaitStatus(t, player.StatePlaying)

	h.bus.PlayTrack("42")
	h.await(t, "replacement list", func(n player.Notification) bool {
		tl, ok := n.(player.NotifyCurrentTrackList)
		return ok && tl.List.ListType() == queue.ListTypeTrack
	})

	require.Eventually(t, func() bool { return h.backend.loadCount() == 2 }, waitTimeout, 10*time.Millisecond)

	list := h.ctrl.CurrentTrackList()
	require.NotNil(t, list.CurrentlyPlaying())
	assert.Equal(t, "42", list.CurrentlyPlaying().ID)

	// Exactly one track playing in the active list.
	playing := 0
	for _, tr := range list.Tracks() {
		if tr.Status == track.StatusPlaying {
			playing++
		}
	}
	assert.Equal(t, 1, playing)
}

func TestResolutionFailure_PreservesState(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A1", true)

	h.bus.PlayAlbum("A1")
	h.awaitStatus(t, player.StatePlaying)
	h.bus.Pause()
	h.awaitStatus(t, player.StatePaused)

	h.catalog.setErr(errors.New("connection reset"))
	h.bus.PlayPlaylist("7")

	h.await(t, "error notification", func(n player.Notification) bool {
		e, ok := n.(player.NotifyError)
		return ok && e.Message != ""
	})
	assert.Equal(t, player.StatePaused, h.ctrl.State(), "paused stays paused after a failed resolution")
}

func TestPlayAlbum_NoStreamableTracks(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A-dead", false, false)

	h.bus.PlayAlbum("A-dead")
	h.await(t, "error notification", func(n player.Notification) bool {
		_, ok := n.(player.NotifyError)
		return ok
	})
	assert.Equal(t, player.StateNull, h.ctrl.State())
	assert.Zero(t, h.backend.loadCount())
}

func TestEndOfStream_AutoAdvancesThenStops(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A5", true, true, true, true, true)

	h.bus.PlayAlbum("A5")

	for i := 1; i <= 5; i++ {
		h.awaitStatus(t, player.StatePlaying)
		require.Equal(t, i, h.backend.loadCount())
		h.backend.endOfStream()
	}

	h.awaitStatus(t, player.StateStopped)
	assert.Equal(t, 5, h.backend.loadCount(), "no wrap back to track 1")

	uris := h.backend.loadedURIs()
	for i, uri := range uris {
		assert.Equal(t, fmt.Sprintf("https://stream.example/A5-t%d", i+1), uri)
	}
	for _, tr := range h.ctrl.CurrentTrackList().Tracks() {
		assert.Equal(t, track.StatusPlayed, tr.Status)
	}
}

func TestNextPastLastTrack_StopsWithoutWrapping(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A2", true, true)

	h.bus.PlayAlbum("A2")
	h.awaitStatus(t, player.StatePlaying)

	h.bus.Next()
	h.awaitStatus(t, player.StatePlaying)
	require.Equal(t, 2, h.backend.loadCount())

	h.bus.Next()
	h.awaitStatus(t, player.StateStopped)
	assert.Equal(t, 2, h.backend.loadCount())
}

func TestPrevious_StaysOnFirstTrack(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A2", true, true)

	h.bus.PlayAlbum("A2")
	h.awaitStatus(t, player.StatePlaying)

	h.bus.Previous()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.backend.loadCount())
	assert.Equal(t, uint(1), h.ctrl.CurrentTrackList().CurrentlyPlaying().Position)
}

func TestSkipTo_OutOfRangeIsNoOp(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A3", true, true, true)

	h.bus.PlayAlbum("A3")
	h.awaitStatus(t, player.StatePlaying)

	h.bus.SkipTo(99)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, player.StatePlaying, h.ctrl.State())
	assert.Equal(t, uint(1), h.ctrl.CurrentTrackList().CurrentlyPlaying().Position)
	assert.Equal(t, 1, h.backend.loadCount())

	// An in-range skip still works afterwards.
	h.bus.SkipTo(3)
	require.Eventually(t, func() bool { return h.backend.loadCount() == 2 }, waitTimeout, 10*time.Millisecond)
	assert.Equal(t, uint(3), h.ctrl.CurrentTrackList().CurrentlyPlaying().Position)
}

func TestPlayPause_TogglesAndReturnsToPlaying(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A1", true)

	h.bus.PlayAlbum("A1")
	h.awaitStatus(t, player.StatePlaying)

	h.bus.PlayPause()
	h.awaitStatus(t, player.StatePaused)
	h.bus.PlayPause()
	h.awaitStatus(t, player.StatePlaying)

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	assert.Equal(t, 1, h.backend.pauses)
	assert.GreaterOrEqual(t, h.backend.plays, 2)
}

func TestPlayPause_NoOpWhenNothingLoaded(t *testing.T) {
	h := newHarness(t)

	h.bus.PlayPause()
	h.bus.Play()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, player.StateNull, h.ctrl.State())
	assert.Zero(t, h.backend.loadCount())
}

func TestBackendOpenFailure_MarksUnavailableAndAdvances(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A3", true, true, true)
	h.backend.mu.Lock()
	h.backend.failURIs["https://stream.example/A3-t1"] = true
	h.backend.mu.Unlock()

	h.bus.PlayAlbum("A3")
	h.awaitStatus(t, player.StatePlaying)

	list := h.ctrl.CurrentTrackList()
	assert.False(t, list.Track(1).Available, "failed entry is marked unavailable")
	assert.Equal(t, uint(2), list.CurrentlyPlaying().Position)
	assert.Equal(t, []string{"https://stream.example/A3-t2"}, h.backend.loadedURIs())
}

func TestBackendOpenFailure_ExhaustedListSurfacesError(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A1", true)
	h.backend.mu.Lock()
	h.backend.failURIs["https://stream.example/A1-t1"] = true
	h.backend.mu.Unlock()

	h.bus.PlayAlbum("A1")
	h.await(t, "exhaustion error", func(n player.Notification) bool {
		_, ok := n.(player.NotifyError)
		return ok
	})
	h.awaitStatus(t, player.StateStopped)
}

func TestStop_DiscardsPendingResolution(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A1", true)
	block := make(chan struct{})
	h.catalog.mu.Lock()
	h.catalog.block = block
	h.catalog.mu.Unlock()

	h.bus.PlayAlbum("A1")
	h.await(t, "loading{true}", isLoading(true))

	h.bus.Stop()
	h.awaitStatus(t, player.StateStopped)

	close(block)
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, h.backend.loadCount(), "superseded resolution must not start playback")
	assert.Equal(t, player.StateStopped, h.ctrl.State())
}

func TestPlayURI_BypassesCatalog(t *testing.T) {
	h := newHarness(t)

	h.bus.PlayURI("https://radio.example/live.mp3")
	h.awaitStatus(t, player.StatePlaying)

	assert.Equal(t, []string{"https://radio.example/live.mp3"}, h.backend.loadedURIs())
	list := h.ctrl.CurrentTrackList()
	assert.Equal(t, queue.ListTypeUnknown, list.ListType())
	assert.Equal(t, 1, list.Total())
}

func TestJump_SeeksClamped(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A1", true) // 3-minute track

	h.bus.PlayAlbum("A1")
	h.awaitStatus(t, player.StatePlaying)

	h.backend.events <- player.BackendEvent{Type: player.BackendPosition, Elapsed: 30 * time.Second}
	h.await(t, "position 30s", func(n player.Notification) bool {
		p, ok := n.(player.NotifyPosition)
		return ok && p.Elapsed == 30*time.Second
	})

	h.bus.JumpForward()
	h.await(t, "position 40s", func(n player.Notification) bool {
		p, ok := n.(player.NotifyPosition)
		return ok && p.Elapsed == 40*time.Second
	})

	h.bus.JumpBackward()
	h.bus.JumpBackward()
	h.bus.JumpBackward()
	h.bus.JumpBackward() // would be -10s, clamps to zero
	h.await(t, "clamped to zero", func(n player.Notification) bool {
		p, ok := n.(player.NotifyPosition)
		return ok && p.Elapsed == 0
	})

	h.backend.events <- player.BackendEvent{Type: player.BackendPosition, Elapsed: 175 * time.Second}
	h.await(t, "position 175s", func(n player.Notification) bool {
		p, ok := n.(player.NotifyPosition)
		return ok && p.Elapsed == 175*time.Second
	})
	h.bus.JumpForward() // would be 185s, clamps to the 180s duration
	h.await(t, "clamped to duration", func(n player.Notification) bool {
		p, ok := n.(player.NotifyPosition)
		return ok && p.Elapsed == 180*time.Second
	})
}

func TestAudioQuality_StreamRealityOverridesCatalog(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A1", true) // catalog reports no bit depth at all

	h.bus.PlayAlbum("A1")
	n := h.await(t, "audio quality", func(n player.Notification) bool {
		_, ok := n.(player.NotifyAudioQuality)
		return ok
	})
	q := n.(player.NotifyAudioQuality)
	assert.Equal(t, 16, q.BitDepth)
	assert.Equal(t, 44100, q.SamplingRate)
}

func TestBrowse_ResultsAreOutOfBand(t *testing.T) {
	h := newHarness(t)

	h.bus.Search("aphex twin")
	select {
	case r := <-h.ctrl.Browse():
		require.NoError(t, r.Err)
		assert.Equal(t, "search", r.Action)
		require.NotNil(t, r.Search)
		assert.Equal(t, "aphex twin", r.Search.Query)
	case <-time.After(waitTimeout):
		t.Fatal("no browse result")
	}

	h.bus.FetchUserPlaylists()
	select {
	case r := <-h.ctrl.Browse():
		require.NoError(t, r.Err)
		assert.Equal(t, "fetch_user_playlists", r.Action)
		assert.Len(t, r.Playlists, 1)
	case <-time.After(waitTimeout):
		t.Fatal("no browse result")
	}
}

func TestBrowse_FailureCarriesError(t *testing.T) {
	h := newHarness(t)
	h.catalog.setErr(errors.New("auth expired"))

	h.bus.FetchArtistAlbums("art-1")
	select {
	case r := <-h.ctrl.Browse():
		require.Error(t, r.Err)
		assert.Equal(t, "fetch_artist_albums", r.Action)
	case <-time.After(waitTimeout):
		t.Fatal("no browse result")
	}
}

func TestQuit_DeliversQuitAndClosesHub(t *testing.T) {
	h := newHarness(t)

	h.bus.Quit()
	h.await(t, "quit notification", func(n player.Notification) bool {
		_, ok := n.(player.NotifyQuit)
		return ok
	})

	require.NoError(t, h.waitStopped(t))

	// Hub is closed: the subscription channel drains and closes.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-h.notes:
			return !ok
		default:
			return false
		}
	}, waitTimeout, 10*time.Millisecond)
}

func TestTrackListNotification_IsSnapshot(t *testing.T) {
	h := newHarness(t)
	seedAlbum(h.catalog, "A2", true, true)

	h.bus.PlayAlbum("A2")
	first := h.await(t, "first list", func(n player.Notification) bool {
		_, ok := n.(player.NotifyCurrentTrackList)
		return ok
	}).(player.NotifyCurrentTrackList).List
	h.awaitStatus(t, player.StatePlaying)

	h.bus.Next()
	h.await(t, "second list", func(n player.Notification) bool {
		tl, ok := n.(player.NotifyCurrentTrackList)
		return ok && tl.List.CurrentlyPlaying() != nil && tl.List.CurrentlyPlaying().Position == 2
	})

	// The earlier notification still describes the moment it was sent, even
	// though the controller has moved on since.
	require.NotNil(t, first.CurrentlyPlaying())
	assert.Equal(t, uint(1), first.CurrentlyPlaying().Position)
	assert.Equal(t, track.StatusUnplayed, first.Track(2).Status)
	assert.NotSame(t, h.ctrl.CurrentTrackList(), first)
}

func TestStop_OutlivesQueuedBackendEvents(t *testing.T) {
	h := newHarness(t)

	// The playing-state event the backend queues for the new stream may be
	// selected after the stop command; it must not win.
	h.bus.PlayURI("https://radio.example/live.mp3")
	h.bus.Stop()

	h.awaitStatus(t, player.StateStopped)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, player.StateStopped, h.ctrl.State())
}

func TestSlowStreamOpen_KeepsCommandsResponsive(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.backend.setLoadGate(gate)

	h.bus.PlayURI("https://radio.example/slow.mp3")
	h.await(t, "loading{true}", isLoading(true))

	// The open is still in flight; the loop must keep serving commands.
	h.bus.Stop()
	h.awaitStatus(t, player.StateStopped)

	close(gate)
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, h.backend.playCount(), "superseded stream must never start playing")
	assert.Equal(t, player.StateStopped, h.ctrl.State())
}

func TestStop_NoOpBeforeAnythingLoaded(t *testing.T) {
	h := newHarness(t)

	h.bus.Stop()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, player.StateNull, h.ctrl.State())
	assert.Zero(t, h.backend.stopCount())
	select {
	case n := <-h.notes:
		t.Fatalf("unexpected notification %s", n.NotificationType())
	default:
	}
}

func TestBusClosure_EndsLoopCleanly(t *testing.T) {
	h := newHarness(t)

	h.bus.Close()
	require.NoError(t, h.waitStopped(t))
}
