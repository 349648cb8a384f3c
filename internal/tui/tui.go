// Package tui is tuneterm's terminal interface: a bubbletea Model with
// three views (library/playlist table, now-playing status bar, podcast
// subscription list), styled with lipgloss and driven by bubbles'
// table.Model for the grid. Transport keys are handled globally,
// regardless of which view has focus.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/drgolem/tuneterm/internal/config"
	"github.com/drgolem/tuneterm/internal/database"
	"github.com/drgolem/tuneterm/internal/playlist"
	"github.com/drgolem/tuneterm/internal/songtag/netease"
	"github.com/drgolem/tuneterm/pkg/types"
)

// view identifies which of the three panes is active.
type view int

const (
	viewLibrary view = iota
	viewPodcasts
)

// Backend is the playback engine the TUI drives: either pkg/audioplayer.Player
// or internal/fileplayer.FilePlayer, both of which already implement
// types.PlaybackMonitor and expose these transport actions.
type Backend interface {
	types.PlaybackMonitor
	Play() error
	Stop() error
	OpenFile(fileName string) error
}

// Model is the bubbletea program state.
type Model struct {
	cfg      *config.Config
	db       *database.DB
	backend  Backend
	playlist *playlist.Playlist

	active  view
	table   table.Model
	status  string
	playing bool
	width   int
	height  int

	songtag      *netease.Client
	podcastFeeds []database.PodcastFeed
}

// New builds the initial Model from the loaded config, the playlist to
// browse, and the backend that will actually play tracks.
func New(cfg *config.Config, db *database.DB, backend Backend, pl *playlist.Playlist) Model {
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Title", Width: 30},
		{Title: "Artist", Width: 20},
		{Title: "Album", Width: 20},
		{Title: "Duration", Width: 10},
	}

	rows := rowsFromPlaylist(pl)

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	style := table.DefaultStyles()
	style.Header = style.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(cfg.Theme.Border)).
		Bold(true)
	style.Selected = style.Selected.
		Foreground(lipgloss.Color(cfg.Theme.Selected)).
		Bold(true)
	t.SetStyles(style)

	m := Model{
		cfg:      cfg,
		db:       db,
		backend:  backend,
		playlist: pl,
		active:   viewLibrary,
		table:    t,
		status:   "stopped",
	}
	if cfg.Metadata.Provider == "netease" {
		m.songtag = netease.New()
	}
	return m
}

func rowsFromPlaylist(pl *playlist.Playlist) []table.Row {
	tracks := pl.Tracks()
	rows := make([]table.Row, len(tracks))
	for i, t := range tracks {
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			t.Title,
			t.Artist,
			t.Album,
			formatDuration(t.Duration),
		}
	}
	return rows
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d", m, s)
}

// statusTickMsg drives the once-a-second now-playing refresh.
type statusTickMsg time.Time

// metadataMsg carries the result of an online metadata lookup back into
// Update, where the matched tags are applied to the playlist row.
type metadataMsg struct {
	idx  int
	info netease.SongInfo
	err  error
}

// playbackStartedMsg reports that a play command's backend calls succeeded,
// so Update can flip the transport state it owns.
type playbackStartedMsg struct {
	track types.Track
}

func tickStatus() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return statusTickMsg(t) })
}

// Init starts the status ticker; bubbletea's standard first command.
func (m Model) Init() tea.Cmd {
	return tickStatus()
}

// Update handles key presses (navigation + transport) and the status
// ticker, per bubbletea's Update contract.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(msg.Height - 6)
		return m, nil

	case statusTickMsg:
		status := m.backend.GetPlaybackStatus()
		m.status = fmt.Sprintf("%s  %s/%s", status.FileName,
			formatDuration(time.Duration(status.PlayedSamples)*time.Second/time.Duration(max1(status.SampleRate))),
			formatDuration(0))
		return m, tickStatus()

	case tea.KeyMsg:
		switch msg.String() {
		case m.cfg.Keys.Quit, "ctrl+c":
			return m, tea.Quit

		case "tab":
			if m.active == viewLibrary {
				m.active = viewPodcasts
			} else {
				m.active = viewLibrary
			}
			return m, nil

		case m.cfg.Keys.PlayPause:
			if m.playing {
				_ = m.backend.Stop()
				m.playing = false
				m.status = "stopped"
			} else if err := m.backend.Play(); err == nil {
				m.playing = true
			}
			return m, nil

		case m.cfg.Keys.Next:
			return m, m.playNext()

		case m.cfg.Keys.Prev:
			return m, m.playPrev()

		case "m":
			if m.active == viewLibrary {
				return m, m.searchMetadata()
			}

		case "enter":
			if m.active == viewLibrary {
				return m, m.playSelected()
			}
		}

	case playbackStartedMsg:
		m.playing = true
		m.status = "playing: " + msg.track.Title
		return m, nil

	case metadataMsg:
		if msg.err != nil {
			m.status = "metadata lookup failed: " + msg.err.Error()
			return m, nil
		}
		tracks := m.playlist.Tracks()
		if msg.idx < 0 || msg.idx >= len(tracks) {
			return m, nil
		}
		t := tracks[msg.idx]
		t.Title = msg.info.Name
		t.Artist = msg.info.Artist
		t.Album = msg.info.Album
		m.playlist.UpdateTrack(msg.idx, t)
		m.table.SetRows(rowsFromPlaylist(m.playlist))
		if m.db != nil {
			_, _ = m.db.UpsertTrack(t)
		}
		m.status = "tags updated: " + t.Title
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func (m Model) playSelected() tea.Cmd {
	idx := m.table.Cursor()
	return func() tea.Msg {
		t, ok := m.playlist.Jump(idx)
		if !ok {
			return nil
		}
		if err := m.backend.OpenFile(t.Path); err != nil {
			return nil
		}
		if err := m.backend.Play(); err != nil {
			return nil
		}
		if m.db != nil {
			if id, err := m.db.UpsertTrack(t); err == nil {
				_ = m.db.RecordPlay(id, false)
			}
		}
		return playbackStartedMsg{track: t}
	}
}

// searchMetadata looks up the selected track online and reports the best
// match back as a metadataMsg. The HTTP call runs inside the returned
// command, off the Update loop.
func (m Model) searchMetadata() tea.Cmd {
	if m.songtag == nil {
		return nil
	}
	idx := m.table.Cursor()
	tracks := m.playlist.Tracks()
	if idx < 0 || idx >= len(tracks) {
		return nil
	}
	query := tracks[idx].Title
	if tracks[idx].Artist != "" {
		query += " " + tracks[idx].Artist
	}
	client := m.songtag
	return func() tea.Msg {
		songs, err := client.Search(query, 1)
		if err != nil {
			return metadataMsg{idx: idx, err: err}
		}
		if len(songs) == 0 {
			return metadataMsg{idx: idx, err: fmt.Errorf("no match for %q", query)}
		}
		return metadataMsg{idx: idx, info: songs[0]}
	}
}

func (m Model) playNext() tea.Cmd {
	return func() tea.Msg {
		t, ok := m.playlist.Next()
		if !ok {
			return nil
		}
		if err := m.backend.OpenFile(t.Path); err != nil {
			return nil
		}
		if err := m.backend.Play(); err != nil {
			return nil
		}
		return playbackStartedMsg{track: t}
	}
}

func (m Model) playPrev() tea.Cmd {
	return func() tea.Msg {
		t, ok := m.playlist.Prev()
		if !ok {
			return nil
		}
		if err := m.backend.OpenFile(t.Path); err != nil {
			return nil
		}
		if err := m.backend.Play(); err != nil {
			return nil
		}
		return playbackStartedMsg{track: t}
	}
}

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder())
	statusBarStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)
)

// View renders the active pane plus the now-playing status bar, bubbletea's
// standard render contract.
func (m Model) View() string {
	var body string
	switch m.active {
	case viewPodcasts:
		body = borderStyle.Render(m.renderPodcasts())
	default:
		body = borderStyle.Render(m.table.View())
	}

	statusBar := statusBarStyle.
		Foreground(lipgloss.Color(m.cfg.Theme.Accent)).
		Render("Now playing: " + m.status)

	return lipgloss.JoinVertical(lipgloss.Left, body, statusBar)
}

func (m Model) renderPodcasts() string {
	if len(m.podcastFeeds) == 0 {
		return "No podcast subscriptions. Use `tuneterm podcast subscribe <url>`."
	}
	out := "Podcast subscriptions:\n"
	for _, f := range m.podcastFeeds {
		out += fmt.Sprintf("  %s  (%s)\n", f.Title, f.URL)
	}
	return out
}

// SetPodcastFeeds refreshes the podcast pane's contents.
func (m *Model) SetPodcastFeeds(feeds []database.PodcastFeed) {
	m.podcastFeeds = feeds
}
