package asyncring

import (
	"encoding/binary"
	"time"
)

const stagingCapacity = 32

// Consumer is the read side of an AsyncRing: a synchronous pull iterator
// over decoded samples, used directly from an audio mixer's render thread.
// It is safe for use by exactly one goroutine at a time (single-consumer).
type Consumer struct {
	ring    *ring
	staging *stagingBuffer
	parser  *messageParser

	spec          FormatSpec
	totalDuration time.Duration
}

// New creates an AsyncRing with the given byte capacity (raised to MinSize
// if smaller), returning its Producer and Consumer halves. initialSpec is
// the format samples are assumed to be in until the first Spec message is
// consumed; totalDuration of zero means unknown/unbounded.
func New(capacity int, initialSpec FormatSpec, totalDuration time.Duration) (*Producer, *Consumer) {
	r := newRing(capacity)
	p := &Producer{ring: r}
	c := &Consumer{
		ring:          r,
		staging:       newStagingBuffer(stagingCapacity),
		spec:          initialSpec,
		totalDuration: totalDuration,
	}
	return p, c
}

// SampleRate returns the sample rate of the most recently applied spec.
func (c *Consumer) SampleRate() uint32 { return c.spec.SampleRate }

// ChannelCount returns the channel count of the most recently applied spec.
func (c *Consumer) ChannelCount() uint16 { return c.spec.Channels }

// TotalDuration returns the track's total duration, if known.
func (c *Consumer) TotalDuration() (time.Duration, bool) {
	return c.totalDuration, c.totalDuration > 0
}

// CurrentFrameLen reports how many samples remain in the currently known
// frame. The ring never knows this in advance — the producer can always
// write more — so it always reports unknown.
func (c *Consumer) CurrentFrameLen() (int, bool) {
	return 0, false
}

// Seek is unsupported: the ring has no random access, only forward
// draining. Callers that need to seek must reopen and re-decode instead.
func (c *Consumer) Seek(time.Duration) error {
	return ErrSeekUnsupported
}

// Close signals the producer side that nothing will ever read from the ring
// again, unblocking any write in progress or still to come.
func (c *Consumer) Close() {
	c.ring.closeConsumer()
}

// NextSample pulls the next decoded sample, transparently applying any Spec
// messages it encounters along the way. It returns (0, false) once the
// producer has closed and every buffered byte has been drained, exactly the
// same way a closed channel reads its zero value.
func (c *Consumer) NextSample() (int16, bool) {
	for {
		if c.parser == nil {
			if !c.readMessageStart() {
				return 0, false
			}
		}

		switch c.parser.kind {
		case kindSpec, kindDataHeader:
			wasHeader := c.parser.kind == kindDataHeader
			if !c.fillCurrent() {
				return 0, false
			}
			if c.parser.kind == kindSpec {
				c.spec = c.parser.FinishSpec()
				c.parser = nil
				continue
			}
			if wasHeader {
				if err := c.parser.FinishHeader(); err != nil {
					panic(err)
				}
			}
			continue

		case kindDataPayload:
			if c.parser.Done() {
				c.parser = nil
				continue
			}
			sample, ok := c.readSample()
			if !ok {
				return 0, false
			}
			if c.parser.Done() {
				c.parser = nil
			}
			return sample, true
		}
	}
}

// readMessageStart detects the next message's tag byte and builds the
// matching parser state machine. It returns false once the ring has
// drained for good.
func (c *Consumer) readMessageStart() bool {
	if !c.fillExact(1) {
		return false
	}
	tag := c.takeExact(1)[0]
	parser, err := newMessageParser(tag)
	if err != nil {
		panic(err)
	}
	c.parser = parser
	return true
}

// fillCurrent feeds staged bytes into a Spec or Data-header parser until it
// reports itself done, or the ring has drained for good.
func (c *Consumer) fillCurrent() bool {
	for !c.parser.Done() {
		if !c.fillExact(1) {
			return false
		}
		n := c.parser.Fill(c.staging.Bytes())
		c.staging.Advance(n)
	}
	return true
}

// readSample reads exactly one little-endian int16 sample for the payload
// currently being consumed.
func (c *Consumer) readSample() (int16, bool) {
	if !c.fillExact(2) {
		return 0, false
	}
	b := c.takeExact(2)
	c.parser.AdvancePayload(2)
	return int16(binary.LittleEndian.Uint16(b)), true
}

// fillExact ensures the staging buffer holds at least n unread bytes,
// pulling more from the ring (blocking as needed) until it does, or
// reporting false once the ring is empty and the producer has closed.
func (c *Consumer) fillExact(n int) bool {
	for {
		c.staging.MaybeCompact()
		if c.staging.Len() >= n {
			return true
		}
		occupied := c.ring.waitOccupied(1)
		if occupied == 0 {
			return false
		}
		free := c.staging.Free()
		if len(free) == 0 {
			c.staging.Compact()
			free = c.staging.Free()
		}
		got := c.ring.popSlice(free)
		c.staging.Commit(got)
	}
}

// takeExact returns the first n unread staged bytes and advances past them.
// Callers must have just confirmed fillExact(n) succeeded.
func (c *Consumer) takeExact(n int) []byte {
	b := c.staging.Bytes()[:n]
	c.staging.Advance(n)
	return b
}
