// Package mpris exposes org.mpris.MediaPlayer2 and
// org.mpris.MediaPlayer2.Player over the session bus via godbus/dbus, so
// desktop media keys and OS now-playing widgets can drive tuneterm.
// Methods are exported with conn.Export; properties go through the
// dbus/v5/prop cache.
package mpris

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	busName     = "org.mpris.MediaPlayer2.tuneterm"
	objectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	ifaceRoot   = "org.mpris.MediaPlayer2"
	ifacePlayer = "org.mpris.MediaPlayer2.Player"
)

// Controller is the subset of player control tuneterm's backend exposes to
// MPRIS: transport controls plus now-playing metadata. internal/tui's
// playback-driving type implements this.
type Controller interface {
	PlayPause()
	Stop()
	Next()
	Previous()
	NowPlaying() (title, artist string, lengthUsec int64)
	PlaybackStatus() string // "Playing", "Paused", or "Stopped"
}

// Server owns the exported D-Bus objects and their property cache.
type Server struct {
	conn  *dbus.Conn
	ctrl  Controller
	props *prop.Properties
}

// New connects to the session bus, exports the MPRIS root and player
// interfaces backed by ctrl, and claims busName.
func New(ctrl Controller) (*Server, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("mpris: connect session bus: %w", err)
	}

	s := &Server{conn: conn, ctrl: ctrl}

	if err := conn.Export(rootHandler{s}, objectPath, ifaceRoot); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: export root interface: %w", err)
	}
	if err := conn.Export(playerHandler{s}, objectPath, ifacePlayer); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: export player interface: %w", err)
	}

	propsSpec := map[string]map[string]*prop.Prop{
		ifaceRoot: {
			"CanQuit":      {Value: false, Writable: false, Emit: prop.EmitFalse},
			"CanRaise":     {Value: false, Writable: false, Emit: prop.EmitFalse},
			"HasTrackList": {Value: false, Writable: false, Emit: prop.EmitFalse},
			"Identity":     {Value: "tuneterm", Writable: false, Emit: prop.EmitFalse},
		},
		ifacePlayer: {
			"PlaybackStatus": {Value: "Stopped", Writable: false, Emit: prop.EmitTrue},
			"Metadata":       {Value: map[string]dbus.Variant{}, Writable: false, Emit: prop.EmitTrue},
			"CanPlay":        {Value: true, Writable: false, Emit: prop.EmitFalse},
			"CanPause":       {Value: true, Writable: false, Emit: prop.EmitFalse},
			"CanGoNext":      {Value: true, Writable: false, Emit: prop.EmitFalse},
			"CanGoPrevious":  {Value: true, Writable: false, Emit: prop.EmitFalse},
		},
	}
	p, err := prop.Export(conn, objectPath, propsSpec)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: export properties: %w", err)
	}
	s.props = p

	if _, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: request name %s: %w", busName, err)
	}

	return s, nil
}

// Close releases the bus name and the connection.
func (s *Server) Close() error {
	return s.conn.Close()
}

// Refresh pushes the controller's current track/status into the exported
// properties, emitting PropertiesChanged. Call it whenever the playlist
// advances or pause state flips.
func (s *Server) Refresh() {
	title, artist, lengthUsec := s.ctrl.NowPlaying()
	metadata := map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant(title),
		"xesam:artist": dbus.MakeVariant([]string{artist}),
		"mpris:length": dbus.MakeVariant(lengthUsec),
	}
	s.props.SetMust(ifacePlayer, "Metadata", metadata)
	s.props.SetMust(ifacePlayer, "PlaybackStatus", s.ctrl.PlaybackStatus())
}

type rootHandler struct{ s *Server }

func (h rootHandler) Raise() *dbus.Error { return nil }
func (h rootHandler) Quit() *dbus.Error  { return nil }

type playerHandler struct{ s *Server }

func (h playerHandler) Next() *dbus.Error {
	h.s.ctrl.Next()
	h.s.Refresh()
	return nil
}

func (h playerHandler) Previous() *dbus.Error {
	h.s.ctrl.Previous()
	h.s.Refresh()
	return nil
}

func (h playerHandler) Pause() *dbus.Error {
	h.s.ctrl.PlayPause()
	h.s.Refresh()
	return nil
}

func (h playerHandler) PlayPause() *dbus.Error {
	h.s.ctrl.PlayPause()
	h.s.Refresh()
	return nil
}

func (h playerHandler) Stop() *dbus.Error {
	h.s.ctrl.Stop()
	h.s.Refresh()
	return nil
}

func (h playerHandler) Play() *dbus.Error {
	h.s.ctrl.PlayPause()
	h.s.Refresh()
	return nil
}
