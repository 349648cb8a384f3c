package mp3

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/imcarsen/go-mp3"
)

// channels and bitsPerSample are fixed by the underlying decoder: it always
// produces interleaved signed 16-bit little-endian stereo PCM.
const (
	channels      = 2
	bitsPerSample = 16
)

// Decoder wraps imcarsen/go-mp3 to provide MP3 decoding capabilities.
// Implements types.AudioDecoder interface.
type Decoder struct {
	file    *os.File
	decoder *mp3.Decoder
	rate    int
}

// NewDecoder creates a new MP3 decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// GetFormat returns the audio format (rate, channels, bits per sample)
func (d *Decoder) GetFormat() (int, int, int) {
	return d.rate, channels, bitsPerSample
}

// DecodeSamples decodes the specified number of samples into the audio buffer
// Returns the number of samples decoded (not bytes)
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}

	frameSize := channels * (bitsPerSample / 8)
	bytesWanted := samples * frameSize
	if len(audio) < bytesWanted {
		bytesWanted = len(audio) - (len(audio) % frameSize)
	}

	n, err := io.ReadFull(d.decoder, audio[:bytesWanted])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n / frameSize, fmt.Errorf("mp3 decode: %w", err)
	}

	return n / frameSize, nil
}

// Open opens and initializes an MP3 file for decoding
func (d *Decoder) Open(fileName string) error {
	f, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	d.file = f
	d.decoder = decoder
	d.rate = decoder.SampleRate()

	return nil
}

// Close closes the decoder and releases resources
func (d *Decoder) Close() error {
	d.decoder = nil
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

// Rate returns the sample rate in Hz
func (d *Decoder) Rate() int {
	return d.rate
}

// Channels returns the number of audio channels
func (d *Decoder) Channels() int {
	return channels
}

// BitsPerSample returns the bits per sample
func (d *Decoder) BitsPerSample() int {
	return bitsPerSample
}
