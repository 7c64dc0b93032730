// Package audio implements the audio backend collaborator on top of beep.
package audio

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/tonearm/tonearm/internal/app/player"
)

const (
	eventBuffer    = 32
	positionPeriod = 500 * time.Millisecond
	speakerBuffer  = 100 * time.Millisecond
)

// Backend decodes and plays one stream at a time. Remote streams are fully
// buffered before decoding so the decoder always has a seekable source;
// buffer progress is reported as backend buffering events.
type Backend struct {
	mu sync.Mutex

	httpClient *http.Client
	events     chan player.BackendEvent

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	playing  bool

	tickerStop chan struct{}
	closed     bool

	speakerRate beep.SampleRate // zero until the speaker is initialized
}

var _ player.Backend = (*Backend)(nil)

// New creates a backend. The speaker is initialized lazily on first play.
func New() *Backend {
	return &Backend{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		events:     make(chan player.BackendEvent, eventBuffer),
	}
}

// Events returns the backend's event stream.
func (b *Backend) Events() <-chan player.BackendEvent {
	return b.events
}

// Load opens and decodes the stream at uri, replacing any loaded stream.
func (b *Backend) Load(uri string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("backend is closed")
	}
	b.stopLocked()

	data, kind, err := b.fetch(uri)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s", uri)
	}

	streamer, format, err := decode(kind, data)
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s", uri)
	}

	b.streamer = streamer
	b.format = format
	b.emit(player.BackendEvent{Type: player.BackendStateChanged, State: player.StateReady}, true)
	return nil
}

// Play starts or resumes output of the loaded stream.
func (b *Backend) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.streamer == nil {
		return errors.New("no stream loaded")
	}

	if b.playing {
		// Resume from pause.
		speaker.Lock()
		b.ctrl.Paused = false
		speaker.Unlock()
		b.emitStateLocked(player.StatePlaying)
		return nil
	}

	if err := b.ensureSpeakerLocked(); err != nil {
		return err
	}

	var src beep.Streamer = b.streamer
	if b.format.SampleRate != b.speakerRate {
		src = beep.Resample(4, b.format.SampleRate, b.speakerRate, b.streamer)
	}

	b.ctrl = &beep.Ctrl{Streamer: src}
	done := beep.Callback(func() {
		// Runs on the speaker goroutine; hand off so audio is never stalled
		// by a busy consumer.
		go b.emit(player.BackendEvent{Type: player.BackendEndOfStream}, true)
	})
	speaker.Play(beep.Seq(b.ctrl, done))
	b.playing = true

	b.tickerStop = make(chan struct{})
	go b.positionLoop(b.tickerStop)

	b.emitStateLocked(player.StatePlaying)
	return nil
}

// Pause suspends output, keeping the stream loaded.
func (b *Backend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.playing || b.ctrl == nil {
		return errors.New("not playing")
	}
	speaker.Lock()
	b.ctrl.Paused = true
	speaker.Unlock()
	b.emit(player.BackendEvent{Type: player.BackendStateChanged, State: player.StatePaused}, true)
	return nil
}

// Stop halts output and discards the loaded stream.
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

// Seek moves the playback position of the loaded stream.
func (b *Backend) Seek(pos time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.streamer == nil {
		return errors.New("no stream loaded")
	}
	n := b.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if n >= b.streamer.Len() {
		n = b.streamer.Len() - 1
	}
	speaker.Lock()
	err := b.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		return errors.Wrap(err, "seek failed")
	}
	b.emit(player.BackendEvent{Type: player.BackendPosition, Elapsed: b.format.SampleRate.D(n)}, false)
	return nil
}

// Close releases the backend and closes its event stream.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.stopLocked()
	b.closed = true
	close(b.events)
	return nil
}

// stopLocked tears down the current stream. Caller holds b.mu.
func (b *Backend) stopLocked() {
	if b.tickerStop != nil {
		close(b.tickerStop)
		b.tickerStop = nil
	}
	if b.playing {
		speaker.Clear()
		b.playing = false
	}
	if b.streamer != nil {
		if err := b.streamer.Close(); err != nil {
			zlog.Debug().Err(err).Msg("audio: streamer close")
		}
		b.streamer = nil
	}
	b.ctrl = nil
}

func (b *Backend) ensureSpeakerLocked() error {
	if b.speakerRate != 0 {
		return nil
	}
	rate := b.format.SampleRate
	if err := speaker.Init(rate, rate.N(speakerBuffer)); err != nil {
		return errors.Wrap(err, "failed to init speaker")
	}
	b.speakerRate = rate
	return nil
}

// emitStateLocked reports the playing state together with the decoded
// stream's real parameters. Caller holds b.mu.
func (b *Backend) emitStateLocked(s player.State) {
	b.emit(player.BackendEvent{
		Type:         player.BackendStateChanged,
		State:        s,
		BitDepth:     b.format.Precision * 8,
		SamplingRate: int(b.format.SampleRate),
	}, true)
}

// positionLoop reports elapsed time until the stream is torn down.
func (b *Backend) positionLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(positionPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			if b.streamer == nil {
				b.mu.Unlock()
				return
			}
			speaker.Lock()
			pos := b.format.SampleRate.D(b.streamer.Position())
			speaker.Unlock()
			b.mu.Unlock()
			b.emit(player.BackendEvent{Type: player.BackendPosition, Elapsed: pos}, false)
		}
	}
}

// emit sends an event. Position ticks are disposable and dropped when the
// consumer lags; everything else blocks until delivered.
func (b *Backend) emit(ev player.BackendEvent, critical bool) {
	defer func() {
		// The events channel may close while a handed-off send is in
		// flight during Close; losing that event is fine.
		_ = recover()
	}()
	if critical {
		b.events <- ev
		return
	}
	select {
	case b.events <- ev:
	default:
	}
}

// fetch returns the raw stream bytes and a format hint. Remote sources are
// fully buffered, reporting progress as buffering events.
func (b *Backend) fetch(uri string) (*bytes.Reader, string, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return b.fetchHTTP(uri)
	}

	f, err := os.Open(uri)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), formatHint(uri, ""), nil
}

func (b *Backend) fetchHTTP(uri string) (*bytes.Reader, string, error) {
	resp, err := b.httpClient.Get(uri)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("unexpected status %d", resp.StatusCode)
	}

	b.emit(player.BackendEvent{Type: player.BackendBuffering, Percent: 0}, true)

	var buf bytes.Buffer
	total := resp.ContentLength
	lastPct := 0
	chunk := make([]byte, 64*1024)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if total > 0 {
				pct := int(int64(buf.Len()) * 100 / total)
				if pct >= lastPct+10 && pct < 100 {
					lastPct = pct
					b.emit(player.BackendEvent{Type: player.BackendBuffering, Percent: pct}, true)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", err
		}
	}

	b.emit(player.BackendEvent{Type: player.BackendBuffering, Percent: 100}, true)
	return bytes.NewReader(buf.Bytes()), formatHint(uri, resp.Header.Get("Content-Type")), nil
}

// decode picks a decoder from the format hint.
func decode(kind string, r *bytes.Reader) (beep.StreamSeekCloser, beep.Format, error) {
	rc := io.NopCloser(r)
	switch kind {
	case "flac":
		return flac.Decode(rc)
	case "wav":
		return wav.Decode(rc)
	case "ogg":
		return vorbis.Decode(rc)
	default:
		return mp3.Decode(rc)
	}
}

// formatHint derives the stream format from the URI extension, falling back
// to the Content-Type.
func formatHint(uri, contentType string) string {
	ext := strings.ToLower(path.Ext(strings.Split(uri, "?")[0]))
	switch ext {
	case ".flac":
		return "flac"
	case ".wav":
		return "wav"
	case ".ogg", ".oga":
		return "ogg"
	case ".mp3":
		return "mp3"
	}
	switch {
	case strings.Contains(contentType, "flac"):
		return "flac"
	case strings.Contains(contentType, "wav"):
		return "wav"
	case strings.Contains(contentType, "ogg"):
		return "ogg"
	default:
		return "mp3"
	}
}
