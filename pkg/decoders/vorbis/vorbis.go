package vorbis

import (
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// Decoder wraps jfreymuth/oggvorbis to provide Ogg Vorbis decoding.
// Implements types.AudioDecoder interface.
//
// oggvorbis decodes into float32 samples in [-1, 1]; DecodeSamples
// rescales them to signed 16-bit PCM, matching every other decoder in this
// package so the playback pipeline never has to special-case bit depth.
type Decoder struct {
	file    *os.File
	reader  *oggvorbis.Reader
	scratch []float32
}

// NewDecoder creates a new Ogg Vorbis decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens and initializes an Ogg Vorbis file for decoding.
func (d *Decoder) Open(fileName string) error {
	f, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create vorbis reader: %w", err)
	}

	d.file = f
	d.reader = reader
	return nil
}

// Close closes the decoder and releases resources.
func (d *Decoder) Close() error {
	d.reader = nil
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

// GetFormat returns the audio format (rate, channels, bits per sample).
func (d *Decoder) GetFormat() (int, int, int) {
	if d.reader == nil {
		return 0, 0, 16
	}
	return d.reader.SampleRate(), d.reader.Channels(), 16
}

// DecodeSamples decodes up to the requested number of samples (per channel)
// into audio as interleaved little-endian int16.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}

	channels := d.reader.Channels()
	want := samples * channels
	if cap(d.scratch) < want {
		d.scratch = make([]float32, want)
	}
	buf := d.scratch[:want]

	n, err := d.reader.Read(buf)
	if err != nil && n == 0 {
		return 0, err
	}

	frames := n / channels
	for i := 0; i < frames*channels; i++ {
		v := buf[i]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		sample := int16(v * 32767)
		offset := i * 2
		if offset+2 > len(audio) {
			break
		}
		audio[offset] = byte(sample & 0xFF)
		audio[offset+1] = byte((sample >> 8) & 0xFF)
	}

	return frames, nil
}
