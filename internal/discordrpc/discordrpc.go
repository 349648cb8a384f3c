// Package discordrpc is a minimal Discord Rich Presence client: it opens
// the local Discord IPC Unix socket and sets a "Listening to <track>"
// activity from the playlist's current track. The wire format is a 4-byte
// little-endian opcode, a 4-byte little-endian payload length, then a
// JSON payload.
package discordrpc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	opHandshake = 0
	opFrame     = 1
	opClose     = 2
)

// Client holds the Unix-domain connection to a running Discord client.
type Client struct {
	conn   net.Conn
	nextID int
}

// socketPath returns the first existing discord-ipc-N socket, the same
// search Discord's own official SDKs perform ($XDG_RUNTIME_DIR,
// TMPDIR/TMP/TEMP, falling back to /tmp).
func socketPath() (string, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	for _, candidate := range []string{base, os.Getenv("TMPDIR"), "/tmp"} {
		if candidate == "" {
			continue
		}
		for n := 0; n < 10; n++ {
			p := filepath.Join(candidate, fmt.Sprintf("discord-ipc-%d", n))
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("discordrpc: no discord-ipc-N socket found")
}

// Connect dials the Discord client's IPC socket and performs the
// handshake for clientID (the application registered in Discord's
// developer portal).
func Connect(clientID string) (*Client, error) {
	path, err := socketPath()
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("discordrpc: dial %s: %w", path, err)
	}

	c := &Client{conn: conn}
	if err := c.send(opHandshake, map[string]any{"v": 1, "client_id": clientID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("discordrpc: handshake: %w", err)
	}
	// Discard the READY frame; this client doesn't act on it.
	if _, _, err := c.recv(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("discordrpc: read handshake reply: %w", err)
	}
	return c, nil
}

// Close sends the CLOSE opcode and closes the socket.
func (c *Client) Close() error {
	_ = c.send(opClose, map[string]any{})
	return c.conn.Close()
}

// activity is Discord's documented rich-presence payload shape, trimmed to
// the fields tuneterm sets.
type activity struct {
	Details    string `json:"details"`
	State      string `json:"state,omitempty"`
	Timestamps struct {
		Start int64 `json:"start,omitempty"`
	} `json:"timestamps"`
}

// SetListening sets the "Listening to <title> — <artist>" activity, with
// elapsed timestamp startedAt so Discord renders a live counter.
func (c *Client) SetListening(title, artist string, startedAt time.Time) error {
	a := activity{Details: title, State: artist}
	a.Timestamps.Start = startedAt.Unix()

	frame := map[string]any{
		"cmd": "SET_ACTIVITY",
		"args": map[string]any{
			"pid":      os.Getpid(),
			"activity": a,
		},
		"nonce": c.nonce(),
	}
	return c.send(opFrame, frame)
}

// ClearActivity removes the current activity, e.g. on playback stop.
func (c *Client) ClearActivity() error {
	frame := map[string]any{
		"cmd": "SET_ACTIVITY",
		"args": map[string]any{
			"pid": os.Getpid(),
		},
		"nonce": c.nonce(),
	}
	return c.send(opFrame, frame)
}

func (c *Client) nonce() string {
	c.nextID++
	return fmt.Sprintf("tuneterm-%d", c.nextID)
}

func (c *Client) send(opcode uint32, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discordrpc: encode payload: %w", err)
	}

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], opcode)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(body)))

	if _, err := c.conn.Write(header); err != nil {
		return fmt.Errorf("discordrpc: write header: %w", err)
	}
	if _, err := c.conn.Write(body); err != nil {
		return fmt.Errorf("discordrpc: write payload: %w", err)
	}
	return nil
}

func (c *Client) recv() (opcode uint32, payload []byte, err error) {
	header := make([]byte, 8)
	if _, err := readFull(c.conn, header); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}
	opcode = binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])

	payload = make([]byte, length)
	if _, err := readFull(c.conn, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}
	return opcode, payload, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
