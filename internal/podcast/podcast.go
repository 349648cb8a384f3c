// Package podcast fetches and parses RSS feeds for podcast subscriptions,
// storing feed/episode metadata via internal/database and exposing
// episodes as playable types.Track (an episode's enclosure URL becomes the
// streamed "file" opened through pkg/decoders/stream).
package podcast

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drgolem/tuneterm/internal/database"
	"github.com/drgolem/tuneterm/pkg/types"
)

// rssFeed is the subset of RSS 2.0 this player reads: channel title plus
// each item's title, enclosure URL and publish date.
type rssFeed struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	PubDate   string `xml:"pubDate"`
	Enclosure struct {
		URL string `xml:"url,attr"`
	} `xml:"enclosure"`
}

// rfc822 is the pubDate layout RSS 2.0 specifies; many feeds omit the
// weekday or use a numeric offset instead of a zone name, so Refresh falls
// back to time.Now on parse failure rather than rejecting the episode.
const rfc822 = "Mon, 02 Jan 2006 15:04:05 -0700"

// Fetcher fetches and persists podcast feeds.
type Fetcher struct {
	http *http.Client
	db   *database.DB
}

// New returns a Fetcher with a 15s request timeout, generous enough for a
// slow feed host without hanging the refresh command indefinitely.
func New(db *database.DB) *Fetcher {
	return &Fetcher{http: &http.Client{Timeout: 15 * time.Second}, db: db}
}

// Subscribe fetches feedURL once (to learn its title), stores the
// subscription, and returns the new feed row.
func (f *Fetcher) Subscribe(ctx context.Context, feedURL string) (database.PodcastFeed, error) {
	parsed, err := f.fetch(ctx, feedURL)
	if err != nil {
		return database.PodcastFeed{}, err
	}

	id, err := f.db.AddPodcastFeed(parsed.Channel.Title, feedURL)
	if err != nil {
		return database.PodcastFeed{}, err
	}
	if err := f.saveEpisodes(id, parsed); err != nil {
		return database.PodcastFeed{}, err
	}
	return database.PodcastFeed{ID: id, Title: parsed.Channel.Title, URL: feedURL}, nil
}

// Refresh re-fetches every subscribed feed and upserts its episodes.
func (f *Fetcher) Refresh(ctx context.Context) error {
	feeds, err := f.db.PodcastFeeds()
	if err != nil {
		return fmt.Errorf("podcast: list feeds: %w", err)
	}
	for _, feed := range feeds {
		parsed, err := f.fetch(ctx, feed.URL)
		if err != nil {
			return fmt.Errorf("podcast: refresh %s: %w", feed.URL, err)
		}
		if err := f.saveEpisodes(feed.ID, parsed); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, feedURL string) (*rssFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("podcast: build request for %s: %w", feedURL, err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("podcast: fetch %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("podcast: read %s: %w", feedURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("podcast: %s returned status %d", feedURL, resp.StatusCode)
	}

	var parsed rssFeed
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("podcast: parse %s: %w", feedURL, err)
	}
	return &parsed, nil
}

func (f *Fetcher) saveEpisodes(feedID int64, parsed *rssFeed) error {
	episodes := make([]database.PodcastEpisode, 0, len(parsed.Channel.Items))
	for _, item := range parsed.Channel.Items {
		if item.Enclosure.URL == "" {
			continue
		}
		published := time.Now()
		if t, err := time.Parse(rfc822, item.PubDate); err == nil {
			published = t
		}
		episodes = append(episodes, database.PodcastEpisode{
			FeedID:       feedID,
			Title:        item.Title,
			EnclosureURL: item.Enclosure.URL,
			PublishedAt:  published,
		})
	}
	return f.db.SaveEpisodes(feedID, episodes)
}

// EpisodeTrack converts a stored episode into a playable Track: its
// enclosure URL stands in for a local file path, opened by the player
// through the stream decoder rather than os.Open.
func EpisodeTrack(e database.PodcastEpisode, feedTitle string) types.Track {
	return types.Track{
		ID:     e.ID,
		Path:   e.EnclosureURL,
		Title:  e.Title,
		Artist: feedTitle,
	}
}
