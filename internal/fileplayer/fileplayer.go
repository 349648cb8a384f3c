package fileplayer

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/tuneterm/pkg/asyncring"
	"github.com/drgolem/tuneterm/pkg/audioframe"
	"github.com/drgolem/tuneterm/pkg/audioframeringbuffer"
	"github.com/drgolem/tuneterm/pkg/decoders"
	"github.com/drgolem/tuneterm/pkg/types"

	"github.com/drgolem/go-portaudio/portaudio"
)

// FilePlayer plays audio files using PortAudio callback mode.
//
// Decoded audio travels through two buffers in series:
//
//	decode goroutine --asyncring--> render goroutine --AudioFrameRingBuffer--> PortAudio callback
//
// asyncring.Consumer.NextSample blocks, so it is only ever called from the
// render goroutine. The PortAudio callback runs on a C thread outside Go's
// scheduler and must never block, so it only ever touches the lock-free
// AudioFrameRingBuffer, exactly as before.
//
// Thread Safety Model:
//   - decode goroutine writes to the asyncring Producer
//   - render goroutine drains the asyncring Consumer and writes whole frames
//     to the AudioFrameRingBuffer
//   - PortAudio C thread (audio callback) reads from the AudioFrameRingBuffer
//   - Atomic operations for all shared state
type FilePlayer struct {
	ringProducer *asyncring.Producer
	ringConsumer *asyncring.Consumer
	framebuf     *audioframeringbuffer.AudioFrameRingBuffer

	stream          *portaudio.PaStream
	decoder         types.AudioDecoder
	deviceIndex     int
	framesPerBuffer int
	samplesPerFrame int
	ringCapacity    int

	// Current file format
	sampleRate     int
	channels       int
	bitsPerSample  int
	bytesPerSample int

	// Goroutine coordination
	renderDone           atomic.Bool // true once the render goroutine will never feed framebuf again
	playbackComplete     atomic.Bool
	playbackCompleteChan chan struct{} // Closed when playback completes (replaces polling)
	stopChan             chan struct{}
	wg                   sync.WaitGroup
	mu                   sync.Mutex
	stopped              bool

	// Callback state for partial frame consumption (atomic for thread safety)
	currentFrame atomic.Pointer[audioframe.AudioFrame]
	frameOffset  int

	// Playback status tracking
	currentFileName string
	startTime       time.Time
	producedSamples atomic.Uint64 // Samples rendered and buffered in framebuf
	playedSamples   atomic.Uint64 // Samples actually played through callback
}

// NewFilePlayer creates a new FilePlayer with the specified configuration.
//
// Parameters:
//   - deviceIdx: PortAudio device index for audio output
//   - bufferCapacity: AudioFrameRingBuffer capacity in number of AudioFrames
//   - framesPerBuffer: PortAudio frames per buffer callback
//   - samplesPerFrame: Number of samples per AudioFrame
func NewFilePlayer(deviceIdx int, bufferCapacity uint64, framesPerBuffer, samplesPerFrame int) *FilePlayer {
	return &FilePlayer{
		framebuf:        audioframeringbuffer.New(bufferCapacity),
		deviceIndex:     deviceIdx,
		framesPerBuffer: framesPerBuffer,
		samplesPerFrame: samplesPerFrame,
		ringCapacity:    asyncring.MinSize,
	}
}

// OpenFile opens an audio file and initializes the appropriate decoder.
// Supported formats: MP3 (.mp3), FLAC (.flac, .fla), WAV (.wav), Ogg Vorbis (.ogg).
//
// This method will close any previously opened file.
func (fp *FilePlayer) OpenFile(fileName string) error {
	// Close previous decoder if any
	if fp.decoder != nil {
		fp.decoder.Close()
		fp.decoder = nil
	}

	// Use factory to create and open decoder
	decoder, err := decoders.NewDecoder(fileName)
	if err != nil {
		return err
	}

	rate, channels, bps := decoder.GetFormat()
	bytesPerSample := bps / 8

	slog.Info("Audio file opened",
		"file", filepath.Base(fileName),
		"sample_rate", rate,
		"channels", channels,
		"bits_per_sample", bps)

	fp.decoder = decoder
	fp.sampleRate = rate
	fp.channels = channels
	fp.bitsPerSample = bps
	fp.bytesPerSample = bytesPerSample
	fp.currentFileName = filepath.Base(fileName)

	return nil
}

// PlayFile starts playing the currently opened file.
// Returns an error if no file is opened or if the stream cannot be initialized.
//
// This method initializes the PortAudio stream and starts the decode and
// render goroutines. Use Wait() to block until playback completes, or
// Stop() to interrupt playback.
func (fp *FilePlayer) PlayFile() error {
	if fp.decoder == nil {
		return fmt.Errorf("no file opened")
	}

	// Reset state
	fp.renderDone.Store(false)
	fp.playbackComplete.Store(false)
	fp.playbackCompleteChan = make(chan struct{})
	fp.stopChan = make(chan struct{})
	fp.stopped = false
	fp.currentFrame.Store(nil)
	fp.frameOffset = 0
	fp.framebuf.Reset()
	fp.producedSamples.Store(0)
	fp.playedSamples.Store(0)
	fp.startTime = time.Now()

	initialSpec := asyncring.FormatSpec{SampleRate: uint32(fp.sampleRate), Channels: uint16(fp.channels)}
	fp.ringProducer, fp.ringConsumer = asyncring.New(fp.ringCapacity, initialSpec, 0)

	// Initialize PortAudio stream
	if err := fp.initializeStream(); err != nil {
		return err
	}

	// Start decode and render goroutines
	fp.wg.Add(2)
	go fp.decode()
	go fp.render()

	slog.Debug("Playback started")
	return nil
}

func (fp *FilePlayer) initializeStream() error {
	// Determine sample format
	var sampleFormat portaudio.PaSampleFormat
	switch fp.bitsPerSample {
	case 16:
		sampleFormat = portaudio.SampleFmtInt16
	case 24:
		sampleFormat = portaudio.SampleFmtInt24
	case 32:
		sampleFormat = portaudio.SampleFmtInt32
	default:
		return fmt.Errorf("unsupported bit depth: %d", fp.bitsPerSample)
	}

	// Create stream
	fp.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  fp.deviceIndex,
			ChannelCount: fp.channels,
			SampleFormat: sampleFormat,
		},
		SampleRate: float64(fp.sampleRate),
	}

	// Open stream with callback
	if err := fp.stream.OpenCallback(fp.framesPerBuffer, fp.audioCallback); err != nil {
		return fmt.Errorf("failed to open stream with callback: %w", err)
	}

	// Start the stream
	if err := fp.stream.StartStream(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}

	return nil
}

// audioCallback is called by PortAudio to fill the output buffer.
//
// IMPORTANT: This runs in a separate audio thread managed by PortAudio's C library,
// NOT in a Go goroutine. It acts as the consumer of the AudioFrameRingBuffer that
// the render goroutine writes to.
//
// Real-time constraints:
// - Must be extremely fast (runs in real-time audio context)
// - Should avoid allocations
// - Cannot block or perform slow operations
// - Runs independently from Go's scheduler
func (fp *FilePlayer) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {

	bytesNeeded := int(frameCount) * fp.channels * fp.bytesPerSample
	bytesWritten := 0

	// Check if rendering is done and buffer is empty
	if fp.renderDone.Load() && fp.framebuf.AvailableRead() == 0 && fp.currentFrame.Load() == nil {
		fp.playbackComplete.Store(true)
		// Signal completion via channel (non-blocking, channel may already be closed)
		select {
		case <-fp.playbackCompleteChan:
			// Already closed
		default:
			close(fp.playbackCompleteChan)
		}
		return portaudio.Complete
	}

	// Fill output buffer from AudioFrames
	for bytesWritten < bytesNeeded {
		// Get next frame if we don't have one
		currentFrame := fp.currentFrame.Load()
		if currentFrame == nil {
			if fp.framebuf.AvailableRead() > 0 {
				frames, err := fp.framebuf.Read(1)
				if err != nil || len(frames) == 0 {
					// No frames available, fill with silence
					break
				}

				fp.currentFrame.Store(&frames[0])
				currentFrame = &frames[0]
				fp.frameOffset = 0
			} else {
				// No frames available, fill with silence
				break
			}
		}

		// Copy audio data from current frame
		remainingInFrame := len(currentFrame.Audio) - fp.frameOffset
		remainingInOutput := bytesNeeded - bytesWritten

		bytesToCopy := min(remainingInFrame, remainingInOutput)

		copy(output[bytesWritten:bytesWritten+bytesToCopy],
			currentFrame.Audio[fp.frameOffset:fp.frameOffset+bytesToCopy])

		bytesWritten += bytesToCopy
		fp.frameOffset += bytesToCopy

		// If we've consumed the entire frame, move to next
		if fp.frameOffset >= len(currentFrame.Audio) {
			fp.currentFrame.Store(nil)
			fp.frameOffset = 0
		}
	}

	// Fill remainder with silence if needed
	if bytesWritten < bytesNeeded {
		clear(output[bytesWritten:bytesNeeded])
	}

	// Track samples actually played (sent to audio output)
	samplesPlayed := bytesWritten / (fp.channels * fp.bytesPerSample)
	fp.playedSamples.Add(uint64(samplesPlayed))

	return portaudio.Continue
}

// decode reads from the decoder and pushes samples into the asyncring,
// announcing a new FormatSpec whenever the decoder's reported format
// changes. This is the sole writer of fp.ringProducer.
func (fp *FilePlayer) decode() {
	defer fp.wg.Done()
	defer fp.ringProducer.Close()

	bufferBytes := fp.samplesPerFrame * fp.channels * fp.bytesPerSample
	buffer := make([]byte, bufferBytes)

	lastAnnounced := asyncring.FormatSpec{SampleRate: uint32(fp.sampleRate), Channels: uint16(fp.channels)}

	totalSamplesProduced := 0

	for {
		select {
		case <-fp.stopChan:
			slog.Debug("Decoder stopped", "total_samples", totalSamplesProduced)
			return
		default:
		}

		rate, channels, _ := fp.decoder.GetFormat()
		spec := asyncring.FormatSpec{SampleRate: uint32(rate), Channels: uint16(channels)}
		if spec != lastAnnounced {
			if err := fp.ringProducer.WriteSpec(spec); err != nil {
				slog.Debug("Decoder stopped: consumer closed", "error", err)
				return
			}
			lastAnnounced = spec
		}

		samplesRead, err := fp.decoder.DecodeSamples(fp.samplesPerFrame, buffer)
		if err != nil || samplesRead == 0 {
			slog.Debug("Decoder finished",
				"error", err,
				"samples_read", samplesRead,
				"total_samples", totalSamplesProduced)
			return
		}

		bytesToWrite := samplesRead * channels * fp.bytesPerSample
		if err := fp.ringProducer.WriteData(buffer[:bytesToWrite]); err != nil {
			slog.Debug("Decoder stopped: consumer closed", "error", err)
			return
		}
		totalSamplesProduced += samplesRead
	}
}

// render drains the asyncring one sample at a time, regrouping them into
// AudioFrames sized to fp.samplesPerFrame, and hands each finished frame to
// the AudioFrameRingBuffer the real-time callback reads from. It is the
// sole reader of fp.ringConsumer and the sole writer of fp.framebuf.
func (fp *FilePlayer) render() {
	defer fp.wg.Done()
	defer fp.renderDone.Store(true)

	var buf []byte
	idx := 0
	rate := fp.sampleRate
	channels := fp.channels

	flush := func() {
		if idx == 0 {
			return
		}
		fp.emitFrame(buf[:idx], rate, channels)
		idx = 0
	}

	for {
		select {
		case <-fp.stopChan:
			return
		default:
		}

		if idx == 0 {
			rate = int(fp.ringConsumer.SampleRate())
			channels = int(fp.ringConsumer.ChannelCount())
			needed := fp.samplesPerFrame * channels * 2
			if cap(buf) < needed {
				buf = make([]byte, needed)
			}
			buf = buf[:needed]
		}

		sample, ok := fp.ringConsumer.NextSample()
		if !ok {
			flush()
			return
		}

		binary.LittleEndian.PutUint16(buf[idx:], uint16(sample))
		idx += 2
		if idx >= len(buf) {
			flush()
		}
	}
}

// emitFrame wraps a filled render buffer into an AudioFrame and retries
// writing it into framebuf until it lands or playback is stopped.
func (fp *FilePlayer) emitFrame(data []byte, rate, channels int) {
	format := audioframe.FrameFormat{
		SampleRate:    uint32(rate),
		Channels:      uint8(channels),
		BitsPerSample: 16,
	}
	frame, err := audioframe.New(format, data)
	if err != nil {
		slog.Warn("Dropping malformed render frame", "error", err)
		return
	}

	toWrite := []audioframe.AudioFrame{frame}
	for len(toWrite) > 0 {
		written, _ := fp.framebuf.Write(toWrite)
		if written > 0 {
			toWrite = toWrite[written:]
			fp.producedSamples.Add(uint64(frame.SamplesCount))
		}

		select {
		case <-fp.stopChan:
			return
		default:
		}
	}
}

// Seek reports that seeking inside buffered audio is unsupported: the ring
// is forward-only. Callers seek by reopening the file and rebuilding the
// ring from the new position.
func (fp *FilePlayer) Seek(pos time.Duration) error {
	if fp.ringConsumer == nil {
		return asyncring.ErrSeekUnsupported
	}
	return fp.ringConsumer.Seek(pos)
}

// Wait blocks until the current file finishes playing.
// This method waits for the decode and render goroutines to finish and for
// the audio callback to finish playing all buffered audio.
func (fp *FilePlayer) Wait() {
	// First wait for decode/render to finish
	fp.wg.Wait()

	// Then wait for audio callback to finish playing all buffered audio
	// Wait on channel that's closed when playback completes (no polling!)
	<-fp.playbackCompleteChan
}

// Stop stops playback of the current file.
// This method is safe to call multiple times and will gracefully shut down
// the decode/render goroutines, the audio stream, and the decoder.
func (fp *FilePlayer) Stop() error {
	fp.mu.Lock()
	if fp.stopped {
		fp.mu.Unlock()
		return nil
	}
	fp.stopped = true
	fp.mu.Unlock()

	close(fp.stopChan)
	// Unblocks a decode goroutine parked inside ringProducer.WriteData/WriteSpec.
	fp.ringConsumer.Close()
	fp.wg.Wait()

	if fp.stream != nil {
		if err := fp.stream.StopStream(); err != nil {
			slog.Warn("Failed to stop stream", "error", err)
		}
		if err := fp.stream.CloseCallback(); err != nil {
			slog.Warn("Failed to close stream", "error", err)
		}
		fp.stream = nil
	}

	if fp.decoder != nil {
		if err := fp.decoder.Close(); err != nil {
			slog.Warn("Failed to close decoder", "error", err)
		}
		fp.decoder = nil
	}

	return nil
}

// GetPlaybackStatus returns current playback status including samples played,
// buffered, and elapsed time. Implements types.PlaybackMonitor interface.
func (fp *FilePlayer) GetPlaybackStatus() types.PlaybackStatus {
	produced := fp.producedSamples.Load()
	played := fp.playedSamples.Load()
	buffered := uint64(0)
	if produced > played {
		buffered = produced - played
	}

	return types.PlaybackStatus{
		FileName:        fp.currentFileName,
		SampleRate:      fp.sampleRate,
		Channels:        fp.channels,
		BitsPerSample:   fp.bitsPerSample,
		FramesPerBuffer: fp.framesPerBuffer,
		PlayedSamples:   played,
		BufferedSamples: buffered,
		ElapsedTime:     time.Since(fp.startTime),
	}
}
