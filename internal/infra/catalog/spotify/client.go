// Package spotify implements the catalog collaborator against the Spotify
// Web API.
package spotify

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/tonearm/tonearm/internal/app/player"
	"github.com/tonearm/tonearm/internal/domain/album"
	"github.com/tonearm/tonearm/internal/domain/playlist"
	"github.com/tonearm/tonearm/internal/domain/search"
	"github.com/tonearm/tonearm/internal/domain/track"
)

const pageLimit = 50

// Settings holds the provider settings decoded from config.
type Settings struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	Market       string `mapstructure:"market"`
}

// Client is a Spotify-backed catalog service.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

var _ player.Catalog = (*Client)(nil)

// New creates a new Spotify catalog client with refresh-token auth.
func New(ctx context.Context, s Settings) (*Client, error) {
	if s.ClientID == "" || s.ClientSecret == "" || s.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(s.ClientID),
		spotifyauth.WithClientSecret(s.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopeUserLibraryRead,
		),
	)

	token := &oauth2.Token{RefreshToken: s.RefreshToken}
	httpClient := auth.Client(ctx, token)

	market := s.Market
	if market == "" {
		market = "US"
	}

	return &Client{
		client:     spotify.New(httpClient),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Album retrieves an album with all of its tracks.
func (c *Client) Album(ctx context.Context, id string) (*album.Album, error) {
	var full *spotify.FullAlbum
	err := c.retry(func() error {
		a, err := c.client.GetAlbum(ctx, spotify.ID(extractID(id, "album")), spotify.Market(c.market))
		if err != nil {
			return err
		}
		full = a
		return nil
	})
	if err != nil {
		return nil, wrapAPIError(err, "failed to get album")
	}

	out := c.convertAlbum(full)

	// The embedded track page holds at most pageLimit entries; page through
	// the rest so the list is complete before playback starts.
	tracks := full.Tracks.Tracks
	offset := len(tracks)
	for offset < int(full.Tracks.Total) {
		var page *spotify.SimpleTrackPage
		err := c.retry(func() error {
			p, err := c.client.GetAlbumTracks(ctx, full.ID,
				spotify.Limit(pageLimit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, wrapAPIError(err, "failed to page album tracks")
		}
		if len(page.Tracks) == 0 {
			break
		}
		tracks = append(tracks, page.Tracks...)
		offset += len(page.Tracks)
	}

	albumRef := &track.AlbumRef{ID: out.ID, Title: out.Title}
	for i := range tracks {
		t := c.convertSimpleTrack(&tracks[i])
		t.Album = albumRef
		out.Tracks = append(out.Tracks, t)
	}
	return out, nil
}

// Track retrieves a single track.
func (c *Client) Track(ctx context.Context, id string) (*track.Track, error) {
	var full *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(extractID(id, "track")), spotify.Market(c.market))
		if err != nil {
			return err
		}
		full = t
		return nil
	})
	if err != nil {
		return nil, wrapAPIError(err, "failed to get track")
	}
	out := c.convertFullTrack(full)
	return &out, nil
}

// ArtistAlbums retrieves the albums of an artist.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string) ([]album.Album, error) {
	var page *spotify.SimpleAlbumPage
	err := c.retry(func() error {
		p, err := c.client.GetArtistAlbums(ctx, spotify.ID(extractID(artistID, "artist")),
			[]spotify.AlbumType{spotify.AlbumTypeAlbum},
			spotify.Limit(pageLimit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, wrapAPIError(err, "failed to get artist albums")
	}

	albums := make([]album.Album, 0, len(page.Albums))
	for i := range page.Albums {
		albums = append(albums, c.convertSimpleAlbum(&page.Albums[i]))
	}
	return albums, nil
}

// Playlist retrieves a playlist and pages through all of its tracks.
func (c *Client) Playlist(ctx context.Context, id string) (*playlist.Playlist, error) {
	pid := spotify.ID(extractID(id, "playlist"))

	var full *spotify.FullPlaylist
	err := c.retry(func() error {
		p, err := c.client.GetPlaylist(ctx, pid)
		if err != nil {
			return err
		}
		full = p
		return nil
	})
	if err != nil {
		return nil, wrapAPIError(err, "failed to get playlist")
	}

	out := &playlist.Playlist{
		ID:          string(full.ID),
		Title:       full.Name,
		Description: full.Description,
		Owner:       full.Owner.DisplayName,
		TrackCount:  uint(full.Tracks.Total),
	}

	offset := 0
	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, pid,
				spotify.Limit(pageLimit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, wrapAPIError(err, "failed to page playlist items")
		}

		for _, item := range page.Items {
			// Episodes have no track payload; skip them.
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				out.Tracks = append(out.Tracks, c.convertFullTrack(item.Track.Track))
			}
		}

		if len(page.Items) < pageLimit {
			break
		}
		offset += len(page.Items)
	}

	return out, nil
}

// Search queries albums, artists, playlists and tracks in one call.
// Unavailable tracks are kept, flagged, so a front end can disable them.
func (c *Client) Search(ctx context.Context, query string) (*search.Results, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}

	var res *spotify.SearchResult
	err := c.retry(func() error {
		r, err := c.client.Search(ctx, query,
			spotify.SearchTypeAlbum|spotify.SearchTypeArtist|spotify.SearchTypePlaylist|spotify.SearchTypeTrack,
			spotify.Limit(20),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, wrapAPIError(err, "search failed")
	}

	out := &search.Results{Query: query}
	if res.Albums != nil {
		for i := range res.Albums.Albums {
			out.Albums = append(out.Albums, c.convertSimpleAlbum(&res.Albums.Albums[i]))
		}
	}
	if res.Artists != nil {
		for _, a := range res.Artists.Artists {
			out.Artists = append(out.Artists, track.Artist{ID: string(a.ID), Name: a.Name})
		}
	}
	if res.Playlists != nil {
		for _, p := range res.Playlists.Playlists {
			out.Playlists = append(out.Playlists, playlist.Playlist{
				ID:          string(p.ID),
				Title:       p.Name,
				Description: p.Description,
				Owner:       p.Owner.DisplayName,
				TrackCount:  uint(p.Tracks.Total),
			})
		}
	}
	if res.Tracks != nil {
		for i := range res.Tracks.Tracks {
			out.Tracks = append(out.Tracks, c.convertFullTrack(&res.Tracks.Tracks[i]))
		}
	}
	return out, nil
}

// UserPlaylists retrieves the authenticated user's playlists.
func (c *Client) UserPlaylists(ctx context.Context) ([]playlist.Playlist, error) {
	var page *spotify.SimplePlaylistPage
	err := c.retry(func() error {
		p, err := c.client.CurrentUsersPlaylists(ctx, spotify.Limit(pageLimit))
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, wrapAPIError(err, "failed to get user playlists")
	}

	lists := make([]playlist.Playlist, 0, len(page.Playlists))
	for _, p := range page.Playlists {
		lists = append(lists, playlist.Playlist{
			ID:          string(p.ID),
			Title:       p.Name,
			Description: p.Description,
			Owner:       p.Owner.DisplayName,
			TrackCount:  uint(p.Tracks.Total),
		})
	}
	return lists, nil
}

// TrackStreamURL returns a directly streamable URL for the track.
// Spotify only exposes preview streams to API clients, so that is what the
// backend gets regardless of the requested quality.
func (c *Client) TrackStreamURL(ctx context.Context, trackID string, quality player.Quality) (string, error) {
	var full *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(extractID(trackID, "track")), spotify.Market(c.market))
		if err != nil {
			return err
		}
		full = t
		return nil
	})
	if err != nil {
		return "", wrapAPIError(err, "failed to resolve stream url")
	}
	if full.PreviewURL == "" {
		return "", errors.Wrapf(player.ErrNoStreamableTracks, "track %s has no stream url", trackID)
	}
	return full.PreviewURL, nil
}

func (c *Client) convertAlbum(a *spotify.FullAlbum) *album.Album {
	out := &album.Album{
		ID:          string(a.ID),
		Title:       a.Name,
		TotalTracks: uint(a.Tracks.Total),
		ReleaseYear: releaseYear(a.ReleaseDate),
		Available:   true,
	}
	if len(a.Artists) > 0 {
		out.Artist = track.Artist{ID: string(a.Artists[0].ID), Name: a.Artists[0].Name}
	}
	if len(a.Images) > 0 {
		out.CoverArt = a.Images[0].URL
	}
	return out
}

func (c *Client) convertSimpleAlbum(a *spotify.SimpleAlbum) album.Album {
	out := album.Album{
		ID:          string(a.ID),
		Title:       a.Name,
		ReleaseYear: releaseYear(a.ReleaseDate),
		Available:   true,
	}
	if len(a.Artists) > 0 {
		out.Artist = track.Artist{ID: string(a.Artists[0].ID), Name: a.Artists[0].Name}
	}
	if len(a.Images) > 0 {
		out.CoverArt = a.Images[0].URL
	}
	return out
}

func (c *Client) convertFullTrack(t *spotify.FullTrack) track.Track {
	out := c.convertSimpleTrack(&t.SimpleTrack)
	if t.Album.ID != "" {
		out.Album = &track.AlbumRef{ID: string(t.Album.ID), Title: t.Album.Name}
	}
	// Track relinking: when the request carried a market, IsPlayable is the
	// authoritative answer and the markets list is omitted.
	if t.IsPlayable != nil {
		out.Available = *t.IsPlayable
	}
	return out
}

func (c *Client) convertSimpleTrack(t *spotify.SimpleTrack) track.Track {
	out := track.Track{
		ID:       string(t.ID),
		Title:    t.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
	if len(t.Artists) > 0 {
		out.Artist = track.Artist{ID: string(t.Artists[0].ID), Name: t.Artists[0].Name}
	}

	// An omitted markets list means the API already filtered for our market.
	if len(t.AvailableMarkets) == 0 {
		out.Available = true
		return out
	}
	for _, m := range t.AvailableMarkets {
		if string(m) == c.market {
			out.Available = true
			break
		}
	}
	return out
}

// retry retries an operation with linear backoff on transient errors.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "503")
}

// wrapAPIError maps a 404 onto the player's not-found sentinel so the
// controller can tell an unknown reference from a transport failure.
func wrapAPIError(err error, msg string) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == 404 {
		return errors.Wrap(errors.Mark(err, player.ErrNotFound), msg)
	}
	return errors.Wrap(err, msg)
}

// releaseYear parses the year out of Spotify release dates, which may be
// "2006", "2006-01" or "2006-01-02".
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// extractID accepts a bare ID, a spotify:<kind>:<id> URI, or an
// open.spotify.com URL and returns the bare ID.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:"+kind+":") {
		return strings.TrimPrefix(input, "spotify:"+kind+":")
	}
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/"+kind+"/") {
		parts := strings.Split(input, "/"+kind+"/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			return strings.TrimRight(id, "/")
		}
	}
	return input
}
