// Package main provides the tonearm entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/tonearm/tonearm/internal/app/controls"
	"github.com/tonearm/tonearm/internal/app/notification"
	"github.com/tonearm/tonearm/internal/app/player"
	"github.com/tonearm/tonearm/internal/infra/audio"
	"github.com/tonearm/tonearm/internal/infra/catalog"
	"github.com/tonearm/tonearm/internal/infra/config"
	"github.com/tonearm/tonearm/internal/infra/logger"
)

var (
	app        = kingpin.New("tonearm", "tonearm streaming audio player")
	configPath = app.Flag("config", "Path to config file").Default("config/tonearm.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run wires the player together and blocks until the controller loop ends.
func run(cfg *config.Config) error {
	ctx := context.Background()

	catalogService, err := catalog.NewService(ctx, cfg.Catalog.Provider)
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}

	backend := audio.New()
	defer backend.Close()

	hub := notification.NewHub(cfg.Player.NotifyBuffer)
	bus := controls.New(cfg.Player.CommandBuffer)

	ctrl := player.New(player.Config{
		JumpOffset: cfg.JumpOffset(),
		Quality:    player.Quality(cfg.Player.Quality),
	}, bus, catalogService, backend, hub)

	// Observers: a console subscriber for notifications and a drain for
	// out-of-band browse results.
	subID, notifications := hub.Subscribe()
	defer hub.Unsubscribe(subID)
	go logNotifications(notifications)
	go logBrowseResults(ctrl.Browse())

	// Producers: the interactive prompt and the signal handler.
	go readCommands(ctx, bus)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		zlog.Info().Msgf("Received signal %s, shutting down", sig)
		bus.Quit()
	}()

	return ctrl.Run(ctx)
}

// logNotifications prints every notification the hub delivers.
func logNotifications(ch <-chan player.Notification) {
	for n := range ch {
		switch v := n.(type) {
		case player.NotifyStatus:
			zlog.Info().Msgf("status: %s", v.State)
		case player.NotifyLoading:
			zlog.Info().Msgf("loading: %v", v.IsLoading)
		case player.NotifyBuffering:
			zlog.Info().Msgf("buffering: %d%%", v.Percent)
		case player.NotifyPosition:
			zlog.Debug().Msgf("position: %s", v.Elapsed)
		case player.NotifyCurrentTrackList:
			if cur := v.List.CurrentlyPlaying(); cur != nil {
				zlog.Info().Msgf("now playing: %s (%d/%d)", cur.DisplayTitle(), cur.Position, v.List.Total())
			}
		case player.NotifyAudioQuality:
			zlog.Info().Msgf("stream quality: %d bit / %d Hz", v.BitDepth, v.SamplingRate)
		case player.NotifyError:
			zlog.Error().Msgf("player error: %s", v.Message)
		case player.NotifyQuit:
			return
		}
	}
}

// logBrowseResults prints search/fetch results.
func logBrowseResults(ch <-chan player.BrowseResult) {
	for r := range ch {
		if r.Err != nil {
			zlog.Error().Err(r.Err).Str("action", r.Action).Msg("browse failed")
			continue
		}
		switch {
		case r.Search != nil:
			zlog.Info().Msgf("search %q: %d albums, %d artists, %d playlists, %d tracks",
				r.Search.Query, len(r.Search.Albums), len(r.Search.Artists),
				len(r.Search.Playlists), len(r.Search.Tracks))
		case r.Playlist != nil:
			zlog.Info().Msgf("playlist %s: %d tracks", r.Playlist.Title, len(r.Playlist.Tracks))
		case r.Albums != nil:
			for _, a := range r.Albums {
				zlog.Info().Msgf("album %s: %s (%d)", a.ID, a.Title, a.ReleaseYear)
			}
		case r.Playlists != nil:
			for _, p := range r.Playlists {
				zlog.Info().Msgf("playlist %s: %s (%d tracks)", p.ID, p.Title, p.TrackCount)
			}
		}
	}
}

// readCommands turns stdin lines into player actions.
func readCommands(ctx context.Context, bus *controls.Controls) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, arg := fields[0], ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		var action controls.Action
		switch cmd {
		case "play":
			action = controls.Play{}
		case "pause":
			action = controls.Pause{}
		case "toggle":
			action = controls.PlayPause{}
		case "next":
			action = controls.Next{}
		case "prev":
			action = controls.Previous{}
		case "stop":
			action = controls.Stop{}
		case "quit", "exit":
			action = controls.Quit{}
		case "skip":
			n, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				zlog.Warn().Msgf("usage: skip <position>")
				continue
			}
			action = controls.SkipTo{Position: uint(n)}
		case "fwd":
			action = controls.JumpForward{}
		case "back":
			action = controls.JumpBackward{}
		case "album":
			action = controls.PlayAlbum{AlbumID: arg}
		case "track":
			action = controls.PlayTrack{TrackID: arg}
		case "playlist":
			action = controls.PlayPlaylist{PlaylistID: arg}
		case "uri":
			action = controls.PlayURI{URI: arg}
		case "search":
			action = controls.Search{Query: strings.Join(fields[1:], " ")}
		case "artist":
			action = controls.FetchArtistAlbums{ArtistID: arg}
		case "tracks":
			action = controls.FetchPlaylistTracks{PlaylistID: arg}
		case "playlists":
			action = controls.FetchUserPlaylists{}
		default:
			zlog.Warn().Msgf("unknown command: %s", cmd)
			continue
		}

		if err := bus.Send(ctx, action); err != nil {
			return
		}
		if _, ok := action.(controls.Quit); ok {
			return
		}
	}
}
