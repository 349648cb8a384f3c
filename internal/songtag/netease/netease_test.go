package netease

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &Client{
		http:      &http.Client{Timeout: 5 * time.Second},
		searchURL: srv.URL + "/search",
		lyricURL:  srv.URL + "/lyric",
	}
}

func TestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"code": 200,
			"result": {
				"songs": [
					{"id": 42, "name": "Song A", "artists": [{"name": "Artist One"}, {"name": "Artist Two"}], "album": {"name": "Album X"}}
				]
			}
		}`)
	})
	c := newTestClient(t, mux)

	songs, err := c.Search("song a", 10)
	if err != nil {
		t.Fatalf("Search(): %v", err)
	}
	if len(songs) != 1 {
		t.Fatalf("Search(): got %d songs, want 1", len(songs))
	}
	if songs[0].ID != 42 || songs[0].Artist != "Artist One/Artist Two" || songs[0].Album != "Album X" {
		t.Errorf("Search()[0]: got %+v", songs[0])
	}
}

func TestSearchNon200Code(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code": 400, "result": {"songs": []}}`)
	})
	c := newTestClient(t, mux)

	if _, err := c.Search("x", 10); err == nil {
		t.Error("Search() with code != 200: got nil error, want non-nil")
	}
}

func TestLyric(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lyric", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code": 200, "lrc": {"lyric": "[00:01.00]hello"}}`)
	})
	c := newTestClient(t, mux)

	lyric, err := c.Lyric(42)
	if err != nil {
		t.Fatalf("Lyric(): %v", err)
	}
	if lyric != "[00:01.00]hello" {
		t.Errorf("Lyric(): got %q, want %q", lyric, "[00:01.00]hello")
	}
}
