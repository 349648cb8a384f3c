// Package database is tuneterm's SQLite-backed store: the playlist
// persisted across restarts, a play-history/favorites table, and podcast
// subscriptions plus their episode state. The schema is applied with
// CREATE TABLE IF NOT EXISTS on every open; there is no separate
// migration tool.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/drgolem/tuneterm/pkg/types"
)

const schema = `
create table if not exists track (
	id integer primary key autoincrement,
	path text not null unique,
	title text not null,
	artist text not null default '',
	album text not null default '',
	duration_ms integer not null default 0
);

create table if not exists playlist_item (
	position integer primary key,
	track_id integer not null references track(id)
);

create table if not exists history (
	id integer primary key autoincrement,
	track_id integer not null references track(id),
	played_at integer not null,
	favorite integer not null default 0
);

create table if not exists podcast_feed (
	id integer primary key autoincrement,
	title text not null,
	url text not null unique,
	last_refreshed integer not null default 0
);

create table if not exists podcast_episode (
	id integer primary key autoincrement,
	feed_id integer not null references podcast_feed(id),
	title text not null,
	enclosure_url text not null,
	published_at integer not null default 0,
	played integer not null default 0,
	unique(feed_id, enclosure_url)
);
`

// DB wraps the sqlite connection. It is safe for concurrent use; the
// underlying database/sql.DB pools and serializes access, so no
// additional locking is added here.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path and applies the
// schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// UpsertTrack inserts t if its path is new, or updates the tag fields if it
// already exists, returning the row id either way.
func (d *DB) UpsertTrack(t types.Track) (int64, error) {
	res, err := d.conn.Exec(
		`insert into track (path, title, artist, album, duration_ms) values (?, ?, ?, ?, ?)
		 on conflict(path) do update set title=excluded.title, artist=excluded.artist,
		   album=excluded.album, duration_ms=excluded.duration_ms`,
		t.Path, t.Title, t.Artist, t.Album, t.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("database: upsert track %s: %w", t.Path, err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		row := d.conn.QueryRow(`select id from track where path = ?`, t.Path)
		if err := row.Scan(&id); err != nil {
			return 0, fmt.Errorf("database: resolve track id for %s: %w", t.Path, err)
		}
	}
	return id, nil
}

// SavePlaylist replaces the persisted playlist with tracks, in order. Each
// track is upserted into the track table first so playlist_item can
// reference a valid id.
func (d *DB) SavePlaylist(tracks []types.Track) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("database: begin save playlist: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`delete from playlist_item`); err != nil {
		return fmt.Errorf("database: clear playlist: %w", err)
	}

	for i, t := range tracks {
		id, err := d.upsertTrackTx(tx, t)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`insert into playlist_item (position, track_id) values (?, ?)`, i, id); err != nil {
			return fmt.Errorf("database: insert playlist item %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (d *DB) upsertTrackTx(tx *sql.Tx, t types.Track) (int64, error) {
	res, err := tx.Exec(
		`insert into track (path, title, artist, album, duration_ms) values (?, ?, ?, ?, ?)
		 on conflict(path) do update set title=excluded.title, artist=excluded.artist,
		   album=excluded.album, duration_ms=excluded.duration_ms`,
		t.Path, t.Title, t.Artist, t.Album, t.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("database: upsert track %s: %w", t.Path, err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		row := tx.QueryRow(`select id from track where path = ?`, t.Path)
		if err := row.Scan(&id); err != nil {
			return 0, fmt.Errorf("database: resolve track id for %s: %w", t.Path, err)
		}
	}
	return id, nil
}

// LoadPlaylist returns the persisted playlist in position order.
func (d *DB) LoadPlaylist() ([]types.Track, error) {
	rows, err := d.conn.Query(
		`select t.id, t.path, t.title, t.artist, t.album, t.duration_ms
		 from playlist_item p join track t on t.id = p.track_id
		 order by p.position`,
	)
	if err != nil {
		return nil, fmt.Errorf("database: load playlist: %w", err)
	}
	defer rows.Close()

	var tracks []types.Track
	for rows.Next() {
		var t types.Track
		var durMs int64
		if err := rows.Scan(&t.ID, &t.Path, &t.Title, &t.Artist, &t.Album, &durMs); err != nil {
			return nil, fmt.Errorf("database: scan playlist row: %w", err)
		}
		t.Duration = time.Duration(durMs) * time.Millisecond
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// RecordPlay appends a history entry for trackID, the play-history table
// feeding "recently played" and (with favorite=true) the favorites list.
func (d *DB) RecordPlay(trackID int64, favorite bool) error {
	fav := 0
	if favorite {
		fav = 1
	}
	_, err := d.conn.Exec(
		`insert into history (track_id, played_at, favorite) values (?, ?, ?)`,
		trackID, time.Now().Unix(), fav,
	)
	if err != nil {
		return fmt.Errorf("database: record play for track %d: %w", trackID, err)
	}
	return nil
}

// Favorites returns every track marked favorite at least once, most
// recently played first.
func (d *DB) Favorites() ([]types.Track, error) {
	rows, err := d.conn.Query(
		`select distinct t.id, t.path, t.title, t.artist, t.album, t.duration_ms
		 from history h join track t on t.id = h.track_id
		 where h.favorite = 1
		 order by h.played_at desc`,
	)
	if err != nil {
		return nil, fmt.Errorf("database: load favorites: %w", err)
	}
	defer rows.Close()

	var tracks []types.Track
	for rows.Next() {
		var t types.Track
		var durMs int64
		if err := rows.Scan(&t.ID, &t.Path, &t.Title, &t.Artist, &t.Album, &durMs); err != nil {
			return nil, fmt.Errorf("database: scan favorite row: %w", err)
		}
		t.Duration = time.Duration(durMs) * time.Millisecond
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// PodcastFeed is a subscribed RSS feed.
type PodcastFeed struct {
	ID            int64
	Title         string
	URL           string
	LastRefreshed time.Time
}

// PodcastEpisode is one entry of a PodcastFeed.
type PodcastEpisode struct {
	ID           int64
	FeedID       int64
	Title        string
	EnclosureURL string
	PublishedAt  time.Time
	Played       bool
}

// AddPodcastFeed subscribes to a feed, or no-ops if the URL is already
// subscribed (unique constraint on url).
func (d *DB) AddPodcastFeed(title, url string) (int64, error) {
	res, err := d.conn.Exec(
		`insert into podcast_feed (title, url) values (?, ?) on conflict(url) do nothing`,
		title, url,
	)
	if err != nil {
		return 0, fmt.Errorf("database: add podcast feed %s: %w", url, err)
	}
	id, _ := res.LastInsertId()
	if id == 0 {
		row := d.conn.QueryRow(`select id from podcast_feed where url = ?`, url)
		if err := row.Scan(&id); err != nil {
			return 0, fmt.Errorf("database: resolve feed id for %s: %w", url, err)
		}
	}
	return id, nil
}

// PodcastFeeds lists every subscription.
func (d *DB) PodcastFeeds() ([]PodcastFeed, error) {
	rows, err := d.conn.Query(`select id, title, url, last_refreshed from podcast_feed order by title`)
	if err != nil {
		return nil, fmt.Errorf("database: list podcast feeds: %w", err)
	}
	defer rows.Close()

	var feeds []PodcastFeed
	for rows.Next() {
		var f PodcastFeed
		var lastRefreshed int64
		if err := rows.Scan(&f.ID, &f.Title, &f.URL, &lastRefreshed); err != nil {
			return nil, fmt.Errorf("database: scan podcast feed row: %w", err)
		}
		f.LastRefreshed = time.Unix(lastRefreshed, 0)
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// SaveEpisodes upserts episodes for feedID and stamps the feed's
// last_refreshed time.
func (d *DB) SaveEpisodes(feedID int64, episodes []PodcastEpisode) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("database: begin save episodes: %w", err)
	}
	defer tx.Rollback()

	for _, e := range episodes {
		_, err := tx.Exec(
			`insert into podcast_episode (feed_id, title, enclosure_url, published_at)
			 values (?, ?, ?, ?)
			 on conflict(feed_id, enclosure_url) do update set title=excluded.title`,
			feedID, e.Title, e.EnclosureURL, e.PublishedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("database: save episode %s: %w", e.EnclosureURL, err)
		}
	}
	if _, err := tx.Exec(`update podcast_feed set last_refreshed = ? where id = ?`, time.Now().Unix(), feedID); err != nil {
		return fmt.Errorf("database: stamp feed refresh: %w", err)
	}
	return tx.Commit()
}

// Episodes lists feedID's episodes, newest first.
func (d *DB) Episodes(feedID int64) ([]PodcastEpisode, error) {
	rows, err := d.conn.Query(
		`select id, feed_id, title, enclosure_url, published_at, played
		 from podcast_episode where feed_id = ? order by published_at desc`,
		feedID,
	)
	if err != nil {
		return nil, fmt.Errorf("database: list episodes for feed %d: %w", feedID, err)
	}
	defer rows.Close()

	var episodes []PodcastEpisode
	for rows.Next() {
		var e PodcastEpisode
		var publishedAt int64
		var played int
		if err := rows.Scan(&e.ID, &e.FeedID, &e.Title, &e.EnclosureURL, &publishedAt, &played); err != nil {
			return nil, fmt.Errorf("database: scan episode row: %w", err)
		}
		e.PublishedAt = time.Unix(publishedAt, 0)
		e.Played = played != 0
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// Episode fetches a single episode row by id.
func (d *DB) Episode(episodeID int64) (PodcastEpisode, error) {
	row := d.conn.QueryRow(
		`select id, feed_id, title, enclosure_url, published_at, played
		 from podcast_episode where id = ?`,
		episodeID,
	)
	var e PodcastEpisode
	var publishedAt int64
	var played int
	if err := row.Scan(&e.ID, &e.FeedID, &e.Title, &e.EnclosureURL, &publishedAt, &played); err != nil {
		return PodcastEpisode{}, fmt.Errorf("database: load episode %d: %w", episodeID, err)
	}
	e.PublishedAt = time.Unix(publishedAt, 0)
	e.Played = played != 0
	return e, nil
}

// MarkPlayed flags an episode as played once playback starts.
func (d *DB) MarkPlayed(episodeID int64) error {
	_, err := d.conn.Exec(`update podcast_episode set played = 1 where id = ?`, episodeID)
	if err != nil {
		return fmt.Errorf("database: mark episode %d played: %w", episodeID, err)
	}
	return nil
}
