package asyncring

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"
)

func samplesToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestNewClampsCapacityToMinSize(t *testing.T) {
	p, c := New(16, FormatSpec{SampleRate: 44100, Channels: 2}, 0)
	defer c.Close()
	if got := p.ring.capacity(); got != MinSize {
		t.Fatalf("capacity = %d, want %d", got, MinSize)
	}
}

func TestDataRoundTrip(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	samples := []int16{1, -2, 3, -4, 32767, -32768}
	done := make(chan error, 1)
	go func() {
		done <- p.WriteData(samplesToBytes(samples))
	}()
	if err := <-done; err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	p.Close()

	for i, want := range samples {
		got, ok := c.NextSample()
		if !ok {
			t.Fatalf("sample %d: NextSample reported EOS early", i)
		}
		if got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS after draining all samples")
	}
}

func TestSpecAppliesOnlyOnceFullyConsumed(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	go func() {
		_ = p.WriteData(samplesToBytes([]int16{10, 20}))
		_ = p.WriteSpec(FormatSpec{SampleRate: 48000, Channels: 1})
		_ = p.WriteData(samplesToBytes([]int16{30}))
		p.Close()
	}()

	if got, ok := c.NextSample(); !ok || got != 10 {
		t.Fatalf("first sample = (%d,%v), want (10,true)", got, ok)
	}
	if c.SampleRate() != 44100 || c.ChannelCount() != 2 {
		t.Fatalf("spec changed before the pending Data message was fully drained")
	}

	if got, ok := c.NextSample(); !ok || got != 20 {
		t.Fatalf("second sample = (%d,%v), want (20,true)", got, ok)
	}

	if got, ok := c.NextSample(); !ok || got != 30 {
		t.Fatalf("third sample = (%d,%v), want (30,true)", got, ok)
	}
	if c.SampleRate() != 48000 || c.ChannelCount() != 1 {
		t.Fatalf("spec = %d/%d, want 48000/1 after consuming the Spec message", c.SampleRate(), c.ChannelCount())
	}

	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS")
	}
}

func TestZeroLengthDataMessageIsSkipped(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	go func() {
		_ = p.WriteData(nil)
		_ = p.WriteData(samplesToBytes([]int16{7}))
		p.Close()
	}()

	got, ok := c.NextSample()
	if !ok || got != 7 {
		t.Fatalf("sample = (%d,%v), want (7,true)", got, ok)
	}
	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS")
	}
}

func TestProducerDropDrainsBufferedSamplesThenEOS(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	if err := p.WriteData(samplesToBytes([]int16{1, 2, 3})); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	p.Close()

	for i, want := range []int16{1, 2, 3} {
		got, ok := c.NextSample()
		if !ok || got != want {
			t.Fatalf("sample %d = (%d,%v), want (%d,true)", i, got, ok, want)
		}
	}
	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS once buffered samples are drained")
	}
	// Calling again must keep reporting EOS, not block or panic.
	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS to be sticky")
	}
}

func TestSpecDeliveredInFragmentsAppliesOnce(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	var msg [1 + specWireSize]byte
	msg[0] = tagSpec
	binary.LittleEndian.PutUint32(msg[1:5], 44000)
	binary.LittleEndian.PutUint16(msg[5:7], 2)

	go func() {
		for _, seg := range [][]byte{msg[0:2], msg[2:6], msg[6:7]} {
			_ = p.ring.pushExact(seg)
			time.Sleep(5 * time.Millisecond)
		}
		_ = p.WriteData(samplesToBytes([]int16{9}))
		p.Close()
	}()

	got, ok := c.NextSample()
	if !ok || got != 9 {
		t.Fatalf("sample = (%d,%v), want (9,true)", got, ok)
	}
	if c.SampleRate() != 44000 || c.ChannelCount() != 2 {
		t.Fatalf("spec = %d/%d, want 44000/2 from the fragmented Spec message", c.SampleRate(), c.ChannelCount())
	}
	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS")
	}
}

func TestBareTagByteAtEOSIsCleanEOS(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	if err := p.ring.pushExact([]byte{tagData}); err != nil {
		t.Fatalf("pushExact tag: %v", err)
	}
	p.Close()

	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS on a header cut off at its tag byte, not a sample")
	}
}

func TestPartialPayloadAtEOSIsDiscardedNotError(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	var hdr [1 + dataHeaderWireSize]byte
	hdr[0] = tagData
	binary.LittleEndian.PutUint32(hdr[1:5], 4) // announces 4 bytes, only 1 ever arrives
	if err := p.ring.pushExact(hdr[:]); err != nil {
		t.Fatalf("pushExact header: %v", err)
	}
	if err := p.ring.pushExact([]byte{0x42}); err != nil {
		t.Fatalf("pushExact partial payload: %v", err)
	}
	p.Close()

	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS on truncated payload, not a sample")
	}
}

func TestDataChunkLengthsStaysUnderOneMessageForSmallPayloads(t *testing.T) {
	got := dataChunkLengths(4096)
	if len(got) != 1 || got[0] != 4096 {
		t.Fatalf("dataChunkLengths(4096) = %v, want [4096]", got)
	}
}

func TestDataChunkLengthsFragmentsPayloadsOverMaxMessageLen(t *testing.T) {
	total := maxDataMessageLen + 6
	got := dataChunkLengths(total)
	if len(got) != 2 {
		t.Fatalf("dataChunkLengths(%d) produced %d chunks, want 2", total, len(got))
	}
	if got[0] != maxDataMessageLen {
		t.Fatalf("first chunk = %d, want %d", got[0], maxDataMessageLen)
	}
	if got[1] != 6 {
		t.Fatalf("second chunk = %d, want 6", got[1])
	}
	sum := 0
	for _, n := range got {
		sum += n
		if n%2 != 0 {
			t.Fatalf("chunk length %d is not a whole number of samples", n)
		}
	}
	if sum != total {
		t.Fatalf("chunk lengths sum to %d, want %d", sum, total)
	}
}

func TestDataChunkLengthsEmptyPayload(t *testing.T) {
	if got := dataChunkLengths(0); got != nil {
		t.Fatalf("dataChunkLengths(0) = %v, want nil", got)
	}
}

func TestWriteDataFragmentsLargePayloadIntoMultipleMessages(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	// Three times the ring's own capacity, forced through dataChunkLengths'
	// splitting logic by temporarily treating MinSize-sized pieces as
	// separate messages: WriteData itself already streams this in one call
	// via push_exact's back-pressure, so this exercises the same mid-stream
	// multi-message path real decoders hit for large buffers.
	samples := make([]int16, 3*MinSize/2)
	for i := range samples {
		samples[i] = int16(i)
	}
	payload := samplesToBytes(samples)

	done := make(chan error, 1)
	go func() {
		err := p.WriteData(payload)
		p.Close()
		done <- err
	}()

	for i, want := range samples {
		got, ok := c.NextSample()
		if !ok {
			t.Fatalf("sample %d: NextSample reported EOS early", i)
		}
		if got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
	if _, ok := c.NextSample(); ok {
		t.Fatalf("expected EOS after draining all samples")
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteData: %v", err)
	}
}

func TestWriteDataRejectsOddByteLength(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)
	defer c.Close()

	err := p.WriteData([]byte{1, 2, 3})
	if err == nil || !errors.Is(err, ErrProtocolDesync) {
		t.Fatalf("WriteData(odd length) = %v, want ErrProtocolDesync", err)
	}
}

func TestConsumerCloseUnblocksBlockedProducer(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	big := make([]byte, MinSize*2) // bigger than capacity: WriteData must block on a full ring
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.WriteData(big)
	}()

	time.Sleep(20 * time.Millisecond) // give the write time to fill the ring and block
	c.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("WriteData after consumer close = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("producer did not unblock after consumer closed")
	}
	if !p.IsClosed() {
		t.Fatalf("IsClosed() = false after a write returned ErrClosed")
	}
}

func TestSeekIsUnsupported(t *testing.T) {
	_, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)
	defer c.Close()
	if err := c.Seek(time.Second); !errors.Is(err, ErrSeekUnsupported) {
		t.Fatalf("Seek() = %v, want ErrSeekUnsupported", err)
	}
}

func TestCurrentFrameLenAlwaysUnknown(t *testing.T) {
	_, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)
	defer c.Close()
	if n, ok := c.CurrentFrameLen(); ok || n != 0 {
		t.Fatalf("CurrentFrameLen() = (%d,%v), want (0,false)", n, ok)
	}
}

func TestTotalDurationKnownVsUnknown(t *testing.T) {
	_, c := New(MinSize, FormatSpec{}, 0)
	if _, ok := c.TotalDuration(); ok {
		t.Fatalf("expected unknown duration when zero was supplied")
	}
	c.Close()

	_, c2 := New(MinSize, FormatSpec{}, 3*time.Second)
	defer c2.Close()
	if d, ok := c2.TotalDuration(); !ok || d != 3*time.Second {
		t.Fatalf("TotalDuration() = (%v,%v), want (3s,true)", d, ok)
	}
}

func TestConcurrentProducerConsumerManyFramesWithFormatChanges(t *testing.T) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	const frames = 200
	const samplesPerFrame = 512

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := 0; f < frames; f++ {
			if f == frames/2 {
				if err := p.WriteSpec(FormatSpec{SampleRate: 48000, Channels: 1}); err != nil {
					t.Errorf("WriteSpec: %v", err)
					return
				}
			}
			samples := make([]int16, samplesPerFrame)
			for i := range samples {
				samples[i] = int16(f*samplesPerFrame + i)
			}
			if err := p.WriteData(samplesToBytes(samples)); err != nil {
				t.Errorf("WriteData: %v", err)
				return
			}
		}
		p.Close()
	}()

	want := int16(0)
	count := 0
	sawRateChange := false
	for {
		got, ok := c.NextSample()
		if !ok {
			break
		}
		if got != want {
			t.Fatalf("sample %d = %d, want %d", count, got, want)
		}
		if c.SampleRate() == 48000 {
			sawRateChange = true
		}
		want++
		count++
	}
	wg.Wait()

	if count != frames*samplesPerFrame {
		t.Fatalf("consumed %d samples, want %d", count, frames*samplesPerFrame)
	}
	if !sawRateChange {
		t.Fatalf("never observed the mid-stream format change")
	}
}

func BenchmarkNextSample(b *testing.B) {
	p, c := New(MinSize, FormatSpec{SampleRate: 44100, Channels: 2}, 0)

	go func() {
		buf := samplesToBytes(make([]int16, 4096))
		for i := 0; i < b.N; i += 4096 {
			_ = p.WriteData(buf)
		}
		p.Close()
	}()

	b.ResetTimer()
	n := 0
	for n < b.N {
		if _, ok := c.NextSample(); !ok {
			break
		}
		n++
	}
}

func BenchmarkPushExact(b *testing.B) {
	r := newRing(MinSize)
	chunk := make([]byte, 4096)
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		for {
			if r.popSlice(buf) == 0 {
				select {
				case <-done:
					return
				default:
				}
			}
		}
	}()
	defer close(done)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.pushExact(chunk)
	}
}
