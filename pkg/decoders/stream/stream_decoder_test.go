package stream

import (
	"context"
	"errors"
	"io"
	"testing"
)

// scriptedProvider replays a fixed sequence of packets, then io.EOF.
type scriptedProvider struct {
	packets []*AudioPacket
}

func (s *scriptedProvider) ReadAudioPacket(ctx context.Context, samples int) (*AudioPacket, error) {
	if len(s.packets) == 0 {
		return nil, io.EOF
	}
	p := s.packets[0]
	s.packets = s.packets[1:]
	return p, nil
}

func TestDecodeSamplesCopiesPacketAudio(t *testing.T) {
	format := AudioFormat{SampleRate: 44100, Channels: 2, BytesPerSample: 2}
	provider := &scriptedProvider{packets: []*AudioPacket{
		{Audio: []byte{1, 2, 3, 4, 5, 6, 7, 8}, SamplesCount: 2, Format: format},
	}}
	d := NewStreamDecoder(context.Background(), provider, format)

	audio := make([]byte, 64)
	n, err := d.DecodeSamples(2, audio)
	if err != nil {
		t.Fatalf("DecodeSamples: %v", err)
	}
	if n != 2 {
		t.Fatalf("DecodeSamples: got %d samples, want 2", n)
	}
	for i, want := range []byte{1, 2, 3, 4, 5, 6, 7, 8} {
		if audio[i] != want {
			t.Fatalf("audio[%d] = %d, want %d", i, audio[i], want)
		}
	}

	if _, err := d.DecodeSamples(2, audio); !errors.Is(err, io.EOF) {
		t.Fatalf("DecodeSamples after provider drained: err = %v, want io.EOF", err)
	}
}

func TestFormatChangePropagates(t *testing.T) {
	initial := AudioFormat{SampleRate: 44100, Channels: 2, BytesPerSample: 2}
	changed := AudioFormat{SampleRate: 48000, Channels: 1, BytesPerSample: 2}
	provider := &scriptedProvider{packets: []*AudioPacket{
		{Audio: []byte{1, 0, 2, 0}, SamplesCount: 1, Format: initial},
		{Audio: []byte{3, 0}, SamplesCount: 1, Format: changed},
	}}
	d := NewStreamDecoder(context.Background(), provider, initial)

	audio := make([]byte, 64)
	if _, err := d.DecodeSamples(1, audio); err != nil {
		t.Fatalf("DecodeSamples first packet: %v", err)
	}
	if rate, channels, _ := d.GetFormat(); rate != 44100 || channels != 2 {
		t.Fatalf("GetFormat before change: got %d/%d, want 44100/2", rate, channels)
	}

	if _, err := d.DecodeSamples(1, audio); err != nil {
		t.Fatalf("DecodeSamples second packet: %v", err)
	}
	if rate, channels, _ := d.GetFormat(); rate != 48000 || channels != 1 {
		t.Fatalf("GetFormat after change: got %d/%d, want 48000/1", rate, channels)
	}

	select {
	case got := <-d.FormatChanges():
		if got != changed {
			t.Fatalf("FormatChanges: got %+v, want %+v", got, changed)
		}
	default:
		t.Fatal("FormatChanges: no notification after format change")
	}
}
