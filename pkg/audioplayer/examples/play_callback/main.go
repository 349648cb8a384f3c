package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/drgolem/tuneterm/pkg/asyncring"
	"github.com/drgolem/tuneterm/pkg/audioframe"
	"github.com/drgolem/tuneterm/pkg/audioframeringbuffer"
	"github.com/drgolem/tuneterm/pkg/decoders/flac"
	"github.com/drgolem/tuneterm/pkg/decoders/mp3"
	"github.com/drgolem/tuneterm/pkg/decoders/wav"
	"github.com/drgolem/tuneterm/pkg/types"

	"github.com/drgolem/go-portaudio/portaudio"
)

// CallbackPlayer demonstrates callback-mode PortAudio playback bridged
// through the asyncring decode-to-playback ring: a decode goroutine
// announces format and pushes PCM into an asyncring.Producer, a render
// goroutine pulls samples one at a time from the matching Consumer and
// regroups them into AudioFrames for the lock-free AudioFrameRingBuffer,
// and the real-time PortAudio callback only ever touches that lock-free
// buffer, exactly the split internal/fileplayer.FilePlayer uses.
type CallbackPlayer struct {
	decoder      types.AudioDecoder
	ringProducer *asyncring.Producer
	ringConsumer *asyncring.Consumer
	framebuf     *audioframeringbuffer.AudioFrameRingBuffer

	stream          *portaudio.PaStream
	sampleRate      int
	channels        int
	bitsPerSample   int
	bytesPerSample  int
	framesPerBuffer int
	samplesPerFrame int
	ringCapacity    int
	deviceIndex     int

	renderDone   atomic.Bool
	currentFrame atomic.Pointer[audioframe.AudioFrame]
	frameOffset  int

	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
}

func NewCallbackPlayer(deviceIdx int, bufferFrames uint64, framesPerBuffer, samplesPerFrame int) *CallbackPlayer {
	return &CallbackPlayer{
		framebuf:        audioframeringbuffer.New(bufferFrames),
		framesPerBuffer: framesPerBuffer,
		samplesPerFrame: samplesPerFrame,
		ringCapacity:    asyncring.MinSize,
		deviceIndex:     deviceIdx,
		stopChan:        make(chan struct{}),
	}
}

func (cp *CallbackPlayer) OpenFile(fileName string) error {
	var decoder types.AudioDecoder
	ext := fileName[len(fileName)-4:]

	switch ext {
	case ".mp3":
		decoder = mp3.NewDecoder()
	case "flac", ".fla":
		decoder = flac.NewDecoder()
	case ".wav":
		decoder = wav.NewDecoder()
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err := decoder.Open(fileName); err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	rate, channels, bps := decoder.GetFormat()
	bytesPerSample := bps / 8

	slog.Info("Audio file opened",
		"sample_rate", rate,
		"channels", channels,
		"bits_per_sample", bps)

	cp.decoder = decoder
	cp.sampleRate = rate
	cp.channels = channels
	cp.bitsPerSample = bps
	cp.bytesPerSample = bytesPerSample

	return nil
}

func (cp *CallbackPlayer) Play() error {
	if cp.decoder == nil {
		return fmt.Errorf("no file opened")
	}

	var sampleFormat portaudio.PaSampleFormat
	switch cp.bitsPerSample {
	case 16:
		sampleFormat = portaudio.SampleFmtInt16
	case 24:
		sampleFormat = portaudio.SampleFmtInt24
	case 32:
		sampleFormat = portaudio.SampleFmtInt32
	default:
		return fmt.Errorf("unsupported bit depth: %d", cp.bitsPerSample)
	}

	cp.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  cp.deviceIndex,
			ChannelCount: cp.channels,
			SampleFormat: sampleFormat,
		},
		SampleRate: float64(cp.sampleRate),
	}

	if err := cp.stream.OpenCallback(cp.framesPerBuffer, cp.audioCallback); err != nil {
		return fmt.Errorf("failed to open stream with callback: %w", err)
	}

	if err := cp.stream.StartStream(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}

	initialSpec := asyncring.FormatSpec{SampleRate: uint32(cp.sampleRate), Channels: uint16(cp.channels)}
	cp.ringProducer, cp.ringConsumer = asyncring.New(cp.ringCapacity, initialSpec, 0)

	cp.wg.Add(2)
	go cp.decode()
	go cp.render()

	slog.Info("Playback started (callback mode)")
	return nil
}

// audioCallback is called by PortAudio to fill the output buffer. It runs
// on PortAudio's own real-time thread, so it only ever drains the
// lock-free framebuf — never the asyncring Consumer, which can block.
func (cp *CallbackPlayer) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {

	bytesNeeded := int(frameCount) * cp.channels * cp.bytesPerSample
	bytesWritten := 0

	if cp.renderDone.Load() && cp.framebuf.AvailableRead() == 0 && cp.currentFrame.Load() == nil {
		return portaudio.Complete
	}

	for bytesWritten < bytesNeeded {
		currentFrame := cp.currentFrame.Load()
		if currentFrame == nil {
			if cp.framebuf.AvailableRead() == 0 {
				break
			}
			frames, err := cp.framebuf.Read(1)
			if err != nil || len(frames) == 0 {
				break
			}
			cp.currentFrame.Store(&frames[0])
			currentFrame = &frames[0]
			cp.frameOffset = 0
		}

		remainingInFrame := len(currentFrame.Audio) - cp.frameOffset
		remainingInOutput := bytesNeeded - bytesWritten
		bytesToCopy := min(remainingInFrame, remainingInOutput)

		copy(output[bytesWritten:bytesWritten+bytesToCopy],
			currentFrame.Audio[cp.frameOffset:cp.frameOffset+bytesToCopy])

		bytesWritten += bytesToCopy
		cp.frameOffset += bytesToCopy

		if cp.frameOffset >= len(currentFrame.Audio) {
			cp.currentFrame.Store(nil)
			cp.frameOffset = 0
		}
	}

	if bytesWritten < bytesNeeded {
		clear(output[bytesWritten:bytesNeeded])
	}

	return portaudio.Continue
}

// decode reads from the decoder and pushes PCM into the asyncring,
// announcing a new FormatSpec whenever the decoder's format changes.
func (cp *CallbackPlayer) decode() {
	defer cp.wg.Done()
	defer cp.ringProducer.Close()

	bufferBytes := cp.samplesPerFrame * cp.channels * cp.bytesPerSample
	buffer := make([]byte, bufferBytes)
	lastAnnounced := asyncring.FormatSpec{SampleRate: uint32(cp.sampleRate), Channels: uint16(cp.channels)}

	slog.Info("Decoder started")

	for {
		select {
		case <-cp.stopChan:
			slog.Info("Decoder stopped")
			return
		default:
		}

		rate, channels, _ := cp.decoder.GetFormat()
		spec := asyncring.FormatSpec{SampleRate: uint32(rate), Channels: uint16(channels)}
		if spec != lastAnnounced {
			if err := cp.ringProducer.WriteSpec(spec); err != nil {
				slog.Info("Decoder stopped: consumer closed", "error", err)
				return
			}
			lastAnnounced = spec
		}

		samplesRead, err := cp.decoder.DecodeSamples(cp.samplesPerFrame, buffer)
		if err != nil || samplesRead == 0 {
			slog.Info("Decoder finished", "error", err, "samples", samplesRead)
			return
		}

		bytesToWrite := samplesRead * channels * cp.bytesPerSample
		if err := cp.ringProducer.WriteData(buffer[:bytesToWrite]); err != nil {
			slog.Info("Decoder stopped: consumer closed", "error", err)
			return
		}
	}
}

// render drains the asyncring one sample at a time, regrouping them into
// AudioFrames the real-time callback can read without blocking.
func (cp *CallbackPlayer) render() {
	defer cp.wg.Done()
	defer cp.renderDone.Store(true)

	var buf []byte
	idx := 0
	rate := cp.sampleRate
	channels := cp.channels

	flush := func() {
		if idx == 0 {
			return
		}
		format := audioframe.FrameFormat{
			SampleRate:    uint32(rate),
			Channels:      uint8(channels),
			BitsPerSample: 16,
		}
		frame, err := audioframe.New(format, buf[:idx])
		if err != nil {
			slog.Warn("Dropping malformed render frame", "error", err)
			idx = 0
			return
		}

		toWrite := []audioframe.AudioFrame{frame}
		for len(toWrite) > 0 {
			written, _ := cp.framebuf.Write(toWrite)
			if written > 0 {
				toWrite = toWrite[written:]
			}
			select {
			case <-cp.stopChan:
				return
			default:
			}
		}
		idx = 0
	}

	for {
		select {
		case <-cp.stopChan:
			return
		default:
		}

		if idx == 0 {
			rate = int(cp.ringConsumer.SampleRate())
			channels = int(cp.ringConsumer.ChannelCount())
			needed := cp.samplesPerFrame * channels * 2
			if cap(buf) < needed {
				buf = make([]byte, needed)
			}
			buf = buf[:needed]
		}

		sample, ok := cp.ringConsumer.NextSample()
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

func (cp *CallbackPlayer) Wait() {
	cp.wg.Wait()
}

func (cp *CallbackPlayer) Stop() error {
	cp.mu.Lock()
	if cp.stopped {
		cp.mu.Unlock()
		return nil
	}
	cp.stopped = true
	cp.mu.Unlock()

	close(cp.stopChan)
	cp.ringConsumer.Close()
	cp.wg.Wait()

	if cp.stream != nil {
		if err := cp.stream.StopStream(); err != nil {
			slog.Warn("Failed to stop stream", "error", err)
		}
		if err := cp.stream.CloseCallback(); err != nil {
			slog.Warn("Failed to close stream", "error", err)
		}
	}

	if cp.decoder != nil {
		if err := cp.decoder.Close(); err != nil {
			slog.Warn("Failed to close decoder", "error", err)
		}
	}

	slog.Info("Playback stopped")
	return nil
}

func (cp *CallbackPlayer) GetBufferStatus() (available, size uint64) {
	return cp.framebuf.AvailableRead(), cp.framebuf.Size()
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	deviceIdx := flag.Int("device", 1, "Audio output device index")
	bufferFrames := flag.Uint64("buffer", 256, "AudioFrame ring buffer capacity (frames)")
	frames := flag.Int("frames", 512, "Audio frames per PortAudio buffer")
	samplesPerFrame := flag.Int("samples-per-frame", 4096, "Samples regrouped into each AudioFrame")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: play_callback [options] <audio_file>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Plays audio in PortAudio callback mode through the asyncring")
		fmt.Fprintln(os.Stderr, "decode-to-playback bridge.")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  play_callback music.mp3")
		fmt.Fprintln(os.Stderr, "  play_callback -device 0 -v music.flac")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	fileName := flag.Arg(0)

	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		slog.SetDefault(logger)
	}

	slog.Info("Initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	slog.Info("PortAudio initialized", "version", portaudio.GetVersion())
	slog.Info("Configuration",
		"device_index", *deviceIdx,
		"buffer_frames", *bufferFrames,
		"frames_per_buffer", *frames,
		"samples_per_frame", *samplesPerFrame)

	player := NewCallbackPlayer(*deviceIdx, *bufferFrames, *frames, *samplesPerFrame)

	slog.Info("Opening file", "path", fileName)
	if err := player.OpenFile(fileName); err != nil {
		slog.Error("Failed to open file", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := player.Play(); err != nil {
		slog.Error("Failed to start playback", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		player.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Playback completed")
	case sig := <-sigChan:
		slog.Info("Signal received, stopping", "signal", sig)
		if err := player.Stop(); err != nil {
			slog.Error("Failed to stop player", "error", err)
		}
	}

	slog.Info("Exiting")
}
