package podcast

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/drgolem/tuneterm/internal/database"
)

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
<title>Example Cast</title>
<item>
  <title>Episode 1</title>
  <pubDate>Mon, 06 Jan 2020 09:00:00 -0700</pubDate>
  <enclosure url="https://example.com/ep1.mp3" type="audio/mpeg"/>
</item>
<item>
  <title>No Audio</title>
  <pubDate>Mon, 13 Jan 2020 09:00:00 -0700</pubDate>
</item>
</channel>
</rss>`

func TestParseFeed(t *testing.T) {
	var parsed rssFeed
	if err := xml.Unmarshal([]byte(sampleFeed), &parsed); err != nil {
		t.Fatalf("xml.Unmarshal: %v", err)
	}
	if parsed.Channel.Title != "Example Cast" {
		t.Errorf("Channel.Title: got %q, want %q", parsed.Channel.Title, "Example Cast")
	}
	if len(parsed.Channel.Items) != 2 {
		t.Fatalf("Channel.Items: got %d, want 2", len(parsed.Channel.Items))
	}
	if parsed.Channel.Items[0].Enclosure.URL != "https://example.com/ep1.mp3" {
		t.Errorf("Items[0].Enclosure.URL: got %q", parsed.Channel.Items[0].Enclosure.URL)
	}
}

func TestParseFeedDropsItemsWithoutEnclosure(t *testing.T) {
	var parsed rssFeed
	if err := xml.Unmarshal([]byte(sampleFeed), &parsed); err != nil {
		t.Fatalf("xml.Unmarshal: %v", err)
	}

	episodes := 0
	for _, item := range parsed.Channel.Items {
		if item.Enclosure.URL == "" {
			continue
		}
		episodes++
	}
	if episodes != 1 {
		t.Errorf("episodes with enclosure: got %d, want 1", episodes)
	}
}

func TestPubDateParsing(t *testing.T) {
	got, err := time.Parse(rfc822, "Mon, 06 Jan 2020 09:00:00 -0700")
	if err != nil {
		t.Fatalf("time.Parse: %v", err)
	}
	want := time.Date(2020, time.January, 6, 9, 0, 0, 0, time.FixedZone("", -7*3600))
	if !got.Equal(want) {
		t.Errorf("parsed pubDate: got %v, want %v", got, want)
	}
}

func TestEpisodeTrack(t *testing.T) {
	e := database.PodcastEpisode{ID: 5, Title: "Episode 1", EnclosureURL: "https://example.com/ep1.mp3"}
	track := EpisodeTrack(e, "Example Cast")
	if track.Path != e.EnclosureURL || track.Title != e.Title || track.Artist != "Example Cast" {
		t.Errorf("EpisodeTrack(): got %+v", track)
	}
}
