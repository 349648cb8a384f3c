package wav

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"
)

// Decoder wraps go-wav for decoding WAV audio files.
// Implements types.AudioDecoder interface.
type Decoder struct {
	file     *os.File
	reader   *wav.Reader
	rate     int
	channels int
	bps      int
	format   uint16
}

// NewDecoder creates a new WAV decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens a WAV file for decoding
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open WAV file: %w", err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read WAV format: %w", err)
	}

	// Validate format
	if format.AudioFormat != wav.AudioFormatPCM {
		file.Close()
		return fmt.Errorf("unsupported WAV format: %d (only PCM supported)", format.AudioFormat)
	}

	d.file = file
	d.reader = reader
	d.rate = int(format.SampleRate)
	d.channels = int(format.NumChannels)
	d.bps = int(format.BitsPerSample)
	d.format = format.AudioFormat

	return nil
}

// Close closes the WAV file
func (d *Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// GetFormat returns the audio format (sample rate, channels, bits per sample).
// Output is always renormalized to 16-bit PCM regardless of the source
// file's bit depth, matching the fixed 16-bit sample contract the rest of
// the playback pipeline (pkg/asyncring) requires.
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, 16
}

// DecodeSamples decodes up to 'samples' audio samples into the provided
// buffer as interleaved little-endian int16, regardless of the source
// file's native bit depth.
//
// Parameters:
//   - samples: number of samples to decode (not bytes)
//   - audio: buffer to write decoded audio data
//
// Returns:
//   - number of samples actually decoded
//   - error if any
//
// The buffer must be large enough to hold: samples * channels * 2 bytes.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}

	const bytesPerSample = 2
	totalSamples := 0

	// Read samples one at a time (go-wav reads sample by sample)
	for i := 0; i < samples; i++ {
		samplesData, err := d.reader.ReadSamples(1)
		if err != nil {
			// End of file or error
			return totalSamples, err
		}

		if len(samplesData) == 0 {
			// No more data
			return totalSamples, nil
		}

		// Convert samples to bytes and write to buffer
		// go-wav returns samples as []wav.Sample which contains IntValue for each channel
		for ch := 0; ch < d.channels; ch++ {
			if ch >= len(samplesData[0].Values) {
				break
			}

			value := d.to16Bit(samplesData[0].Values[ch])
			offset := (totalSamples*d.channels + ch) * bytesPerSample

			// Check buffer bounds
			if offset+bytesPerSample > len(audio) {
				return totalSamples, nil
			}

			// Write little-endian signed 16-bit sample
			audio[offset] = byte(value & 0xFF)
			audio[offset+1] = byte((value >> 8) & 0xFF)
		}

		totalSamples++
	}

	return totalSamples, nil
}

// to16Bit rescales a sample read at the file's native bit depth down (or
// up) to a signed 16-bit value.
func (d *Decoder) to16Bit(value int) int16 {
	switch d.bps {
	case 8:
		// WAV 8-bit PCM is unsigned, centered at 128.
		return int16((value - 128) << 8)
	case 16:
		return int16(value)
	case 24:
		return int16(value >> 8)
	case 32:
		return int16(value >> 16)
	default:
		return int16(value)
	}
}
