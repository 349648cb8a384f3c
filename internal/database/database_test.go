package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/drgolem/tuneterm/pkg/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertTrackIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	t1 := types.Track{Path: "/music/a.mp3", Title: "A", Artist: "Artist"}
	id1, err := db.UpsertTrack(t1)
	if err != nil {
		t.Fatalf("UpsertTrack(): %v", err)
	}

	t1.Title = "A (remastered)"
	id2, err := db.UpsertTrack(t1)
	if err != nil {
		t.Fatalf("UpsertTrack() second call: %v", err)
	}
	if id1 != id2 {
		t.Errorf("UpsertTrack() on same path: got id %d, want %d (unchanged)", id2, id1)
	}
}

func TestSaveAndLoadPlaylist(t *testing.T) {
	db := openTestDB(t)

	want := []types.Track{
		{Path: "/music/a.mp3", Title: "A", Duration: 3 * time.Minute},
		{Path: "/music/b.flac", Title: "B", Duration: 4 * time.Minute},
	}
	if err := db.SavePlaylist(want); err != nil {
		t.Fatalf("SavePlaylist(): %v", err)
	}

	got, err := db.LoadPlaylist()
	if err != nil {
		t.Fatalf("LoadPlaylist(): %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("LoadPlaylist(): got %d tracks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Path != want[i].Path || got[i].Title != want[i].Title {
			t.Errorf("LoadPlaylist()[%d]: got %+v, want path/title %q/%q", i, got[i], want[i].Path, want[i].Title)
		}
	}
}

func TestRecordPlayAndFavorites(t *testing.T) {
	db := openTestDB(t)

	id, err := db.UpsertTrack(types.Track{Path: "/music/a.mp3", Title: "A"})
	if err != nil {
		t.Fatalf("UpsertTrack(): %v", err)
	}
	if err := db.RecordPlay(id, true); err != nil {
		t.Fatalf("RecordPlay(): %v", err)
	}

	favs, err := db.Favorites()
	if err != nil {
		t.Fatalf("Favorites(): %v", err)
	}
	if len(favs) != 1 || favs[0].ID != id {
		t.Fatalf("Favorites(): got %+v, want one entry with id %d", favs, id)
	}
}

func TestPodcastFeedAndEpisodes(t *testing.T) {
	db := openTestDB(t)

	feedID, err := db.AddPodcastFeed("Example Cast", "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("AddPodcastFeed(): %v", err)
	}

	again, err := db.AddPodcastFeed("Example Cast", "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("AddPodcastFeed() duplicate: %v", err)
	}
	if again != feedID {
		t.Errorf("AddPodcastFeed() duplicate url: got id %d, want %d (no new row)", again, feedID)
	}

	err = db.SaveEpisodes(feedID, []PodcastEpisode{
		{Title: "Episode 1", EnclosureURL: "https://example.com/ep1.mp3", PublishedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("SaveEpisodes(): %v", err)
	}

	episodes, err := db.Episodes(feedID)
	if err != nil {
		t.Fatalf("Episodes(): %v", err)
	}
	if len(episodes) != 1 || episodes[0].Played {
		t.Fatalf("Episodes(): got %+v, want one unplayed episode", episodes)
	}

	if err := db.MarkPlayed(episodes[0].ID); err != nil {
		t.Fatalf("MarkPlayed(): %v", err)
	}
	episodes, err = db.Episodes(feedID)
	if err != nil {
		t.Fatalf("Episodes() after MarkPlayed: %v", err)
	}
	if !episodes[0].Played {
		t.Error("Episodes() after MarkPlayed: got Played=false, want true")
	}
}
