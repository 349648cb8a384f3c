package audioframe

import (
	"encoding/binary"
	"fmt"
	"time"
)

// FrameFormat is the format an AudioFrame's Audio bytes are encoded in. It
// mirrors asyncring.FormatSpec (sample rate, channel count) plus the bit
// depth asyncring itself doesn't need to track, since every AudioFrame
// downstream of the core is always 16-bit PCM reassembled one sample at a
// time from asyncring.Consumer.NextSample.
type FrameFormat struct {
	SampleRate    uint32 // Sample rate in Hz (max 384,000)
	Channels      uint8  // Number of channels (max 10)
	BitsPerSample uint8  // Bits per sample (max 64)
}

// AudioFrame is the unit of hand-off between a render goroutine draining an
// asyncring.Consumer and the lock-free AudioFrameRingBuffer a real-time
// PortAudio callback reads from. A render goroutine regroups however many
// samples it pulled under one FormatSpec into one AudioFrame before
// offering it to the ring buffer, so the callback thread never has to
// reason about a format change mid-copy.
type AudioFrame struct {
	Format       FrameFormat
	SamplesCount uint16 // Number of samples (max 65,535)
	Audio        []byte // Raw audio data (last field for better memory layout)
}

// New builds an AudioFrame from a filled render buffer, computing
// SamplesCount from its length and rejecting a format that couldn't have
// come from a valid asyncring FormatSpec (zero channels) or a buffer that
// isn't a whole number of interleaved frames for that channel count. The
// Audio slice is copied so the caller's render buffer can be reused.
func New(format FrameFormat, audio []byte) (AudioFrame, error) {
	if format.Channels == 0 {
		return AudioFrame{}, fmt.Errorf("audioframe: channel count must be >= 1")
	}
	frameBytes := int(format.Channels) * 2
	if len(audio)%frameBytes != 0 {
		return AudioFrame{}, fmt.Errorf("audioframe: audio length %d is not a multiple of %d bytes (channels=%d)", len(audio), frameBytes, format.Channels)
	}
	samples := len(audio) / 2
	if samples > 0xFFFF {
		return AudioFrame{}, fmt.Errorf("audioframe: %d samples exceeds max frame size %d", samples, 0xFFFF)
	}
	out := AudioFrame{
		Format:       format,
		SamplesCount: uint16(samples),
		Audio:        make([]byte, len(audio)),
	}
	copy(out.Audio, audio)
	return out, nil
}

// Duration reports how long this frame plays for at its own format's
// sample rate, used by playback status reporting alongside
// types.PlaybackStatus.ElapsedTime.
func (af *AudioFrame) Duration() time.Duration {
	if af.Format.Channels == 0 || af.Format.SampleRate == 0 {
		return 0
	}
	framesInFrame := int(af.SamplesCount) / int(af.Format.Channels)
	return time.Duration(framesInFrame) * time.Second / time.Duration(af.Format.SampleRate)
}

// Marshal serializes AudioFrame to a byte slice using little-endian encoding
//
// Binary format (tightly packed, 12 bytes header):
//   - SampleRate (4 bytes, uint32)
//   - Channels (1 byte, uint8)
//   - BitsPerSample (1 byte, uint8)
//   - SamplesCount (2 bytes, uint16)
//   - Audio length (4 bytes, uint32)
//   - Audio data (variable length)
//
// Total size: 12 bytes header + len(Audio) bytes
func (af *AudioFrame) Marshal() []byte {
	// Calculate total size: 4 + 1 + 1 + 2 + 4 = 12 bytes header + audio data
	headerSize := 12
	totalSize := headerSize + len(af.Audio)
	buf := make([]byte, totalSize)

	// Write header fields using little-endian (tightly packed)
	binary.LittleEndian.PutUint32(buf[0:4], af.Format.SampleRate)
	buf[4] = af.Format.Channels
	buf[5] = af.Format.BitsPerSample
	binary.LittleEndian.PutUint16(buf[6:8], af.SamplesCount)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(af.Audio)))

	// Copy audio data
	copy(buf[12:], af.Audio)

	return buf
}

// Unmarshal deserializes a byte slice into AudioFrame using little-endian encoding
//
// Returns error if:
//   - Buffer is too small (< 12 bytes for header)
//   - Audio length field exceeds remaining buffer size
func (af *AudioFrame) Unmarshal(data []byte) error {
	// Check minimum size for header
	headerSize := 12
	if len(data) < headerSize {
		return fmt.Errorf("buffer too small: got %d bytes, need at least %d bytes", len(data), headerSize)
	}

	// Read header fields (tightly packed)
	af.Format.SampleRate = binary.LittleEndian.Uint32(data[0:4])
	af.Format.Channels = data[4]
	af.Format.BitsPerSample = data[5]
	af.SamplesCount = binary.LittleEndian.Uint16(data[6:8])
	audioLen := int(binary.LittleEndian.Uint32(data[8:12]))

	// Validate audio length
	if len(data) < headerSize+audioLen {
		return fmt.Errorf("buffer too small for audio data: got %d bytes, need %d bytes", len(data), headerSize+audioLen)
	}

	// Allocate and copy audio data
	af.Audio = make([]byte, audioLen)
	copy(af.Audio, data[12:12+audioLen])

	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler interface
func (af *AudioFrame) MarshalBinary() ([]byte, error) {
	return af.Marshal(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler interface
func (af *AudioFrame) UnmarshalBinary(data []byte) error {
	return af.Unmarshal(data)
}
