package podcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/imcarsen/go-mp3"

	"github.com/drgolem/tuneterm/pkg/decoders/stream"
)

// The mp3 decoder's output is fixed: interleaved signed 16-bit stereo.
const (
	enclosureChannels       = 2
	enclosureBytesPerSample = 2
)

// EnclosureProvider streams a podcast episode's enclosure over HTTP and
// decodes it on the fly. It implements stream.AudioPacketProvider, so a
// stream.StreamDecoder wrapped around it plugs into the playback engine
// like any file-backed decoder.
type EnclosureProvider struct {
	body    io.ReadCloser
	decoder *mp3.Decoder
	format  stream.AudioFormat
}

// OpenEnclosure starts an HTTP GET for url and sets up an MP3 decoder over
// the response body. The request deliberately has no client timeout: the
// body is read for as long as the episode plays. Enclosures that don't
// parse as MP3 are rejected up front rather than mis-decoded.
func OpenEnclosure(ctx context.Context, url string) (*EnclosureProvider, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("podcast: build enclosure request for %s: %w", url, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("podcast: fetch enclosure %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("podcast: enclosure %s returned status %d", url, resp.StatusCode)
	}

	decoder, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("podcast: open mp3 stream %s: %w", url, err)
	}

	return &EnclosureProvider{
		body:    resp.Body,
		decoder: decoder,
		format: stream.AudioFormat{
			SampleRate:     decoder.SampleRate(),
			Channels:       enclosureChannels,
			BytesPerSample: enclosureBytesPerSample,
		},
	}, nil
}

// Format returns the stream's decoded format, used as the initial format
// when constructing the stream.StreamDecoder.
func (p *EnclosureProvider) Format() stream.AudioFormat {
	return p.format
}

// ReadAudioPacket decodes up to the requested number of samples from the
// HTTP body. It returns io.EOF once the enclosure is fully drained.
func (p *EnclosureProvider) ReadAudioPacket(ctx context.Context, samples int) (*stream.AudioPacket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frameBytes := enclosureChannels * enclosureBytesPerSample
	buf := make([]byte, samples*frameBytes)
	n, err := io.ReadFull(p.decoder, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}

	count := n / frameBytes
	return &stream.AudioPacket{
		Audio:        buf[:count*frameBytes],
		SamplesCount: count,
		Format:       p.format,
	}, nil
}

// Close drops the HTTP connection.
func (p *EnclosureProvider) Close() error {
	return p.body.Close()
}
