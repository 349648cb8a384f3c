package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/drgolem/tuneterm/internal/config"
	"github.com/drgolem/tuneterm/internal/database"
	"github.com/drgolem/tuneterm/internal/podcast"
	"github.com/drgolem/tuneterm/pkg/audioplayer"
	"github.com/drgolem/tuneterm/pkg/decoders/stream"
)

var podcastCmd = &cobra.Command{
	Use:   "podcast",
	Short: "Manage podcast subscriptions from the shell",
	Long:  `Subscribe to, list, and refresh podcast RSS feeds without entering the TUI.`,
}

var podcastSubscribeCmd = &cobra.Command{
	Use:   "subscribe <feed_url>",
	Short: "Subscribe to a podcast RSS feed",
	Args:  cobra.ExactArgs(1),
	Run:   runPodcastSubscribe,
}

var podcastListCmd = &cobra.Command{
	Use:   "list",
	Short: "List podcast subscriptions",
	Args:  cobra.NoArgs,
	Run:   runPodcastList,
}

var podcastRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh all podcast subscriptions",
	Args:  cobra.NoArgs,
	Run:   runPodcastRefresh,
}

var podcastEpisodesCmd = &cobra.Command{
	Use:   "episodes <feed_id>",
	Short: "List a feed's episodes (newest first)",
	Args:  cobra.ExactArgs(1),
	Run:   runPodcastEpisodes,
}

var podcastPlayCmd = &cobra.Command{
	Use:   "play <episode_id>",
	Short: "Stream a podcast episode",
	Long: `Stream a podcast episode's enclosure over HTTP and play it.

The enclosure is decoded on the fly; nothing is downloaded to disk. Use
"tuneterm podcast episodes <feed_id>" to find episode ids.`,
	Args: cobra.ExactArgs(1),
	Run:  runPodcastPlay,
}

func init() {
	rootCmd.AddCommand(podcastCmd)
	podcastCmd.AddCommand(podcastSubscribeCmd, podcastListCmd, podcastRefreshCmd, podcastEpisodesCmd, podcastPlayCmd)

	podcastPlayCmd.Flags().IntVarP(&podcastDeviceIdx, "device", "d", 1, "Audio output device index")
}

var podcastDeviceIdx int

func openPodcastDB() (*database.DB, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureDir(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	return database.Open(cfg.Database.Path)
}

func runPodcastSubscribe(cmd *cobra.Command, args []string) {
	db, err := openPodcastDB()
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	fetcher := podcast.New(db)
	feed, err := fetcher.Subscribe(context.Background(), args[0])
	if err != nil {
		slog.Error("Failed to subscribe", "url", args[0], "error", err)
		os.Exit(1)
	}
	slog.Info("Subscribed", "title", feed.Title, "url", feed.URL)
}

func runPodcastList(cmd *cobra.Command, args []string) {
	db, err := openPodcastDB()
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	feeds, err := db.PodcastFeeds()
	if err != nil {
		slog.Error("Failed to list feeds", "error", err)
		os.Exit(1)
	}
	for _, f := range feeds {
		fmt.Printf("%s\t%s\n", f.Title, f.URL)
	}
}

func runPodcastEpisodes(cmd *cobra.Command, args []string) {
	feedID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		slog.Error("Invalid feed id", "arg", args[0], "error", err)
		os.Exit(1)
	}

	db, err := openPodcastDB()
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	episodes, err := db.Episodes(feedID)
	if err != nil {
		slog.Error("Failed to list episodes", "feed_id", feedID, "error", err)
		os.Exit(1)
	}
	for _, e := range episodes {
		marker := " "
		if e.Played {
			marker = "*"
		}
		fmt.Printf("%d\t%s %s\t%s\n", e.ID, marker, e.PublishedAt.Format("2006-01-02"), e.Title)
	}
}

func runPodcastPlay(cmd *cobra.Command, args []string) {
	episodeID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		slog.Error("Invalid episode id", "arg", args[0], "error", err)
		os.Exit(1)
	}

	db, err := openPodcastDB()
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	episode, err := db.Episode(episodeID)
	if err != nil {
		slog.Error("Failed to load episode", "episode_id", episodeID, "error", err)
		os.Exit(1)
	}

	feedTitle := ""
	if feeds, err := db.PodcastFeeds(); err == nil {
		for _, f := range feeds {
			if f.ID == episode.FeedID {
				feedTitle = f.Title
			}
		}
	}
	track := podcast.EpisodeTrack(episode, feedTitle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := podcast.OpenEnclosure(ctx, track.Path)
	if err != nil {
		slog.Error("Failed to open enclosure", "url", track.Path, "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	playerConfig := audioplayer.DefaultConfig()
	playerConfig.DeviceIndex = podcastDeviceIdx
	player := audioplayer.NewPlayer(playerConfig)

	decoder := stream.NewStreamDecoder(ctx, provider, provider.Format())
	if err := player.OpenDecoder(decoder); err != nil {
		slog.Error("Failed to open stream decoder", "error", err)
		os.Exit(1)
	}

	slog.Info("Playing episode", "title", track.Title, "feed", feedTitle, "url", track.Path)
	if err := player.Play(); err != nil {
		slog.Error("Failed to start playback", "error", err)
		os.Exit(1)
	}
	if err := db.MarkPlayed(episode.ID); err != nil {
		slog.Warn("Failed to mark episode played", "error", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		player.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Episode finished")
	case sig := <-sigChan:
		slog.Info("Signal received, stopping", "signal", sig)
		cancel()
		if err := player.Stop(); err != nil {
			slog.Error("Failed to stop player", "error", err)
		}
	}
}

func runPodcastRefresh(cmd *cobra.Command, args []string) {
	db, err := openPodcastDB()
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	fetcher := podcast.New(db)
	if err := fetcher.Refresh(context.Background()); err != nil {
		slog.Error("Failed to refresh feeds", "error", err)
		os.Exit(1)
	}
	slog.Info("Podcast feeds refreshed")
}
