package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/drgolem/tuneterm/internal/config"
	"github.com/drgolem/tuneterm/internal/database"
	"github.com/drgolem/tuneterm/internal/discordrpc"
	"github.com/drgolem/tuneterm/internal/mpris"
	"github.com/drgolem/tuneterm/internal/playlist"
	"github.com/drgolem/tuneterm/internal/tui"
	"github.com/drgolem/tuneterm/pkg/audioplayer"
	"github.com/drgolem/tuneterm/pkg/types"
)

// discordClientID is tuneterm's placeholder Discord application id; a real
// deployment registers its own in Discord's developer portal.
const discordClientID = "1100000000000000000"

// transportAdapter satisfies internal/mpris.Controller and drives
// internal/discordrpc, wrapping the same Player/Playlist pair the TUI
// itself drives so MPRIS clients and Discord presence stay in sync with
// the on-screen state.
type transportAdapter struct {
	player   *audioplayer.Player
	playlist *playlist.Playlist
	playing  bool

	mpris   *mpris.Server      // set after mpris.New, nil if D-Bus is unavailable
	discord *discordrpc.Client // nil if no Discord client is running
}

func (a *transportAdapter) PlayPause() {
	if a.playing {
		_ = a.player.Stop()
		a.playing = false
		return
	}
	if err := a.player.Play(); err == nil {
		a.playing = true
	}
}

func (a *transportAdapter) Stop() {
	_ = a.player.Stop()
	a.playing = false
	if a.discord != nil {
		_ = a.discord.ClearActivity()
	}
}

func (a *transportAdapter) Next() {
	if t, ok := a.playlist.Next(); ok {
		a.switchTo(t)
	}
}

func (a *transportAdapter) Previous() {
	if t, ok := a.playlist.Prev(); ok {
		a.switchTo(t)
	}
}

func (a *transportAdapter) switchTo(t types.Track) {
	if err := a.player.OpenFile(t.Path); err != nil {
		slog.Warn("Failed to open track", "path", t.Path, "error", err)
		return
	}
	if err := a.player.Play(); err != nil {
		slog.Warn("Failed to start playback", "path", t.Path, "error", err)
		return
	}
	a.playing = true

	if a.discord != nil {
		if err := a.discord.SetListening(t.Title, t.Artist, time.Now()); err != nil {
			slog.Debug("Failed to update Discord presence", "error", err)
		}
	}
	if a.mpris != nil {
		a.mpris.Refresh()
	}
}

func (a *transportAdapter) NowPlaying() (title, artist string, lengthUsec int64) {
	status := a.player.GetPlaybackStatus()
	title = status.FileName
	if t, ok := a.playlist.Current(); ok {
		title, artist = t.Title, t.Artist
		lengthUsec = t.Duration.Microseconds()
	}
	return
}

func (a *transportAdapter) PlaybackStatus() string {
	if a.playing {
		return "Playing"
	}
	return "Stopped"
}

var tuiConfigPath string

var tuiCmd = &cobra.Command{
	Use:   "tui [audio_file...]",
	Short: "Launch the terminal UI",
	Long: `Launch tuneterm's bubbletea-based terminal interface: a library/playlist
table, a now-playing status bar, and a podcast-subscription view.

Any files given on the command line seed the playlist; otherwise the
previously persisted playlist (if any) is loaded from the database.`,
	Run: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVar(&tuiConfigPath, "config", "", "path to config.toml (default ~/.config/tuneterm/config.toml)")
}

func runTUI(cmd *cobra.Command, args []string) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(tuiConfigPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.EnsureDir(cfg.Database.Path); err != nil {
		slog.Error("Failed to create database directory", "error", err)
		os.Exit(1)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var tracks []types.Track
	if len(args) > 0 {
		for _, path := range args {
			tracks = append(tracks, types.Track{Path: path, Title: path})
		}
	} else {
		tracks, err = db.LoadPlaylist()
		if err != nil {
			slog.Error("Failed to load persisted playlist", "error", err)
		}
	}
	pl := playlist.New(tracks)

	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	player := audioplayer.NewPlayer(audioplayer.Config{
		BufferSize:      cfg.Ring.CapacityBytes,
		FramesPerBuffer: cfg.Device.FramesPerBuffer,
		DeviceIndex:     cfg.Device.Index,
	})

	model := tui.New(cfg, db, player, pl)

	if err := db.SavePlaylist(tracks); err != nil {
		slog.Warn("Failed to persist playlist", "error", err)
	}

	adapter := &transportAdapter{player: player, playlist: pl}

	if mprisServer, err := mpris.New(adapter); err != nil {
		slog.Warn("MPRIS unavailable, continuing without media-key integration", "error", err)
	} else {
		adapter.mpris = mprisServer
		defer mprisServer.Close()
	}

	if discord, err := discordrpc.Connect(discordClientID); err != nil {
		slog.Debug("Discord Rich Presence unavailable", "error", err)
	} else {
		adapter.discord = discord
		defer discord.Close()
	}

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui error:", err)
		os.Exit(1)
	}
}
