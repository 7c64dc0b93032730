// Package queue provides the TrackList: the ordered set of tracks the player
// is currently working through.
package queue

import (
	"time"

	"github.com/tonearm/tonearm/internal/domain/album"
	"github.com/tonearm/tonearm/internal/domain/playlist"
	"github.com/tonearm/tonearm/internal/domain/track"
)

// ListType identifies what kind of source the list was built from.
type ListType int

const (
	ListTypeUnknown ListType = iota
	ListTypeAlbum
	ListTypePlaylist
	ListTypeTrack
)

// String returns the string representation of the list type.
func (t ListType) String() string {
	switch t {
	case ListTypeAlbum:
		return "album"
	case ListTypePlaylist:
		return "playlist"
	case ListTypeTrack:
		return "track"
	default:
		return "unknown"
	}
}

// TrackList is an ordered collection of tracks, positioned 1..n.
// Exactly one entry may have StatusPlaying at any time; SetStatus enforces
// that. The list is owned and mutated by the playback controller only.
type TrackList struct {
	listType ListType
	album    *album.Album
	playlist *playlist.Playlist
	tracks   []*track.Track // ascending position order
}

// NewFromAlbum builds a list from an album, keeping only streamable tracks.
// Unavailable entries are never enqueued; positions are reassigned 1..n over
// the streamable subset so the list has no holes.
func NewFromAlbum(a *album.Album) *TrackList {
	tl := &TrackList{listType: ListTypeAlbum, album: a}
	pos := uint(1)
	for i := range a.Tracks {
		if !a.Tracks[i].Available {
			continue
		}
		t := a.Tracks[i]
		t.Position = pos
		t.Status = track.StatusUnplayed
		if t.Album == nil {
			t.Album = &track.AlbumRef{ID: a.ID, Title: a.Title}
		}
		tl.tracks = append(tl.tracks, &t)
		pos++
	}
	return tl
}

// NewFromPlaylist builds a list from a playlist, keeping only streamable
// tracks, positioned 1..n in source order.
func NewFromPlaylist(p *playlist.Playlist) *TrackList {
	tl := &TrackList{listType: ListTypePlaylist, playlist: p}
	pos := uint(1)
	for i := range p.Tracks {
		if !p.Tracks[i].Available {
			continue
		}
		t := p.Tracks[i]
		t.Position = pos
		t.Status = track.StatusUnplayed
		tl.tracks = append(tl.tracks, &t)
		pos++
	}
	return tl
}

// NewFromTrack builds a single-entry list for one catalog track.
func NewFromTrack(t track.Track) *TrackList {
	t.Position = 1
	t.Status = track.StatusUnplayed
	return &TrackList{
		listType: ListTypeTrack,
		tracks:   []*track.Track{&t},
	}
}

// NewFromURI builds an ad-hoc single-entry list around a raw stream URI.
// The synthetic track carries the URI as both ID and title; duration is
// unknown until the backend reports it.
func NewFromURI(uri string, duration time.Duration) *TrackList {
	return &TrackList{
		listType: ListTypeUnknown,
		tracks: []*track.Track{{
			ID:        uri,
			Title:     uri,
			Position:  1,
			Duration:  duration,
			Available: true,
			Status:    track.StatusUnplayed,
		}},
	}
}

// ListType returns what the list was built from.
func (tl *TrackList) ListType() ListType {
	return tl.listType
}

// Album returns the parent album, meaningful when ListType is album.
func (tl *TrackList) Album() *album.Album {
	return tl.album
}

// Playlist returns the parent playlist, meaningful when ListType is playlist.
func (tl *TrackList) Playlist() *playlist.Playlist {
	return tl.playlist
}

// Total returns the number of entries currently loaded.
// This can be less than the parent entity's stated track count.
func (tl *TrackList) Total() int {
	return len(tl.tracks)
}

// Track returns the entry at the given position, or nil if absent.
func (tl *TrackList) Track(position uint) *track.Track {
	for _, t := range tl.tracks {
		if t.Position == position {
			return t
		}
	}
	return nil
}

// Tracks returns all entries in position order.
// The slice is shared with the list; callers must not reorder it.
func (tl *TrackList) Tracks() []*track.Track {
	return tl.tracks
}

// CurrentlyPlaying returns the entry with StatusPlaying, or nil.
func (tl *TrackList) CurrentlyPlaying() *track.Track {
	for _, t := range tl.tracks {
		if t.Status == track.StatusPlaying {
			return t
		}
	}
	return nil
}

// SetStatus sets the status of the entry at position. Setting a track to
// playing demotes whichever entry was playing before, keeping the list's
// single-playing invariant. Returns false if the position is absent.
func (tl *TrackList) SetStatus(position uint, status track.Status) bool {
	target := tl.Track(position)
	if target == nil {
		return false
	}
	if status == track.StatusPlaying {
		for _, t := range tl.tracks {
			if t.Status == track.StatusPlaying && t.Position != position {
				t.Status = track.StatusPlayed
			}
		}
	}
	target.Status = status
	return true
}

// SetPlaying marks the entry at position as playing and normalizes the rest
// of the list around it: everything before becomes played, everything after
// becomes unplayed. This is what skipping in either direction means.
// Returns false if the position is absent.
func (tl *TrackList) SetPlaying(position uint) bool {
	if tl.Track(position) == nil {
		return false
	}
	for _, t := range tl.tracks {
		switch {
		case t.Position < position:
			t.Status = track.StatusPlayed
		case t.Position == position:
			t.Status = track.StatusPlaying
		default:
			t.Status = track.StatusUnplayed
		}
	}
	return true
}

// UnplayedTracks returns the unplayed entries in position order.
// The returned slice points into the list; it is a view, not a copy.
func (tl *TrackList) UnplayedTracks() []*track.Track {
	out := make([]*track.Track, 0, len(tl.tracks))
	for _, t := range tl.tracks {
		if t.Status == track.StatusUnplayed {
			out = append(out, t)
		}
	}
	return out
}

// PlayedTracks returns the played entries in position order.
func (tl *TrackList) PlayedTracks() []*track.Track {
	out := make([]*track.Track, 0, len(tl.tracks))
	for _, t := range tl.tracks {
		if t.Status == track.StatusPlayed {
			out = append(out, t)
		}
	}
	return out
}

// NextAvailable returns the first available entry after position, or nil
// when the end of the list is reached.
func (tl *TrackList) NextAvailable(position uint) *track.Track {
	for _, t := range tl.tracks {
		if t.Position > position && t.Available {
			return t
		}
	}
	return nil
}

// PreviousAvailable returns the closest available entry before position,
// or nil when position is already the first.
func (tl *TrackList) PreviousAvailable(position uint) *track.Track {
	var prev *track.Track
	for _, t := range tl.tracks {
		if t.Position >= position {
			break
		}
		if t.Available {
			prev = t
		}
	}
	return prev
}

// FirstAvailable returns the first available entry, or nil for an empty list.
func (tl *TrackList) FirstAvailable() *track.Track {
	for _, t := range tl.tracks {
		if t.Available {
			return t
		}
	}
	return nil
}

// MarkUnavailable flags the entry at position as unstreamable.
// Used when the backend fails to open a stream the catalog promised.
func (tl *TrackList) MarkUnavailable(position uint) {
	if t := tl.Track(position); t != nil {
		t.Available = false
	}
}

// Snapshot returns a point-in-time copy of the list that is safe to hand to
// other goroutines while the controller keeps mutating the original. Track
// entries are copied by value; the parent album/playlist metadata is shared
// because it is never written after construction.
func (tl *TrackList) Snapshot() *TrackList {
	out := &TrackList{
		listType: tl.listType,
		album:    tl.album,
		playlist: tl.playlist,
		tracks:   make([]*track.Track, len(tl.tracks)),
	}
	for i, t := range tl.tracks {
		copied := *t
		out.tracks[i] = &copied
	}
	return out
}
