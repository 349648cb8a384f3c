// Package netease is an HTTP+JSON client for the public NetEase Music
// search and lyric endpoints, used by the TUI's "search metadata for
// current track" action to backfill title/artist/lyric for a Track.
//
// The authenticated weapi endpoints additionally wrap every request body
// in an AES/RSA envelope; that layer is not needed here. This client
// speaks to the unauthenticated public search API, which accepts plain
// form-encoded parameters.
package netease

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	searchURL = "https://music.163.com/api/search/get"
	lyricURL  = "https://music.163.com/api/song/lyric"
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// SongInfo is one search result: NetEase's song id plus the tag fields the
// TUI backfills onto a playlist Track.
type SongInfo struct {
	ID     uint64
	Name   string
	Artist string
	Album  string
}

// Client is a thin wrapper around http.Client for the two endpoints this
// player needs: song search and lyric lookup.
type Client struct {
	http      *http.Client
	searchURL string
	lyricURL  string
}

// New returns a Client with a 10s request timeout.
func New() *Client {
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		searchURL: searchURL,
		lyricURL:  lyricURL,
	}
}

// Search looks up keyword and returns up to limit candidate songs. The
// response envelope carries code == 200 on success with matches under
// result.songs[].
func (c *Client) Search(keyword string, limit int) ([]SongInfo, error) {
	if limit <= 0 {
		limit = 10
	}

	form := url.Values{
		"s":      {keyword},
		"type":   {"1"},
		"limit":  {strconv.Itoa(limit)},
		"offset": {"0"},
	}

	body, err := c.post(c.searchURL, form)
	if err != nil {
		return nil, fmt.Errorf("netease: search %q: %w", keyword, err)
	}

	var resp struct {
		Code   int `json:"code"`
		Result struct {
			Songs []struct {
				ID      uint64 `json:"id"`
				Name    string `json:"name"`
				Artists []struct {
					Name string `json:"name"`
				} `json:"artists"`
				Album struct {
					Name string `json:"name"`
				} `json:"album"`
			} `json:"songs"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("netease: decode search response: %w", err)
	}
	if resp.Code != 200 {
		return nil, fmt.Errorf("netease: search returned code %d", resp.Code)
	}

	songs := make([]SongInfo, 0, len(resp.Result.Songs))
	for _, s := range resp.Result.Songs {
		artist := ""
		if len(s.Artists) > 0 {
			names := make([]string, len(s.Artists))
			for i, a := range s.Artists {
				names[i] = a.Name
			}
			artist = strings.Join(names, "/")
		}
		songs = append(songs, SongInfo{
			ID:     s.ID,
			Name:   s.Name,
			Artist: artist,
			Album:  s.Album.Name,
		})
	}
	return songs, nil
}

// Lyric fetches the plain LRC-formatted lyric text for a song id (code ==
// 200, lrc.lyric).
func (c *Client) Lyric(songID uint64) (string, error) {
	form := url.Values{"id": {strconv.FormatUint(songID, 10)}, "lv": {"-1"}}

	body, err := c.post(c.lyricURL, form)
	if err != nil {
		return "", fmt.Errorf("netease: lyric %d: %w", songID, err)
	}

	var resp struct {
		Code int `json:"code"`
		Lrc  struct {
			Lyric string `json:"lyric"`
		} `json:"lrc"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("netease: decode lyric response: %w", err)
	}
	if resp.Code != 200 {
		return "", fmt.Errorf("netease: lyric returned code %d", resp.Code)
	}
	return resp.Lrc.Lyric, nil
}

func (c *Client) post(rawURL string, form url.Values) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://music.163.com")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
