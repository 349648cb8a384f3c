package asyncring

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
)

// Producer is the write side of an AsyncRing. It is safe for use by exactly
// one goroutine at a time (single-producer), mirroring the decode-thread
// ownership the ring is built for.
type Producer struct {
	ring   *ring
	closed atomic.Bool
}

// WriteSpec announces a format change. It blocks until every byte of the
// message has been pushed into the ring.
func (p *Producer) WriteSpec(spec FormatSpec) error {
	if p.closed.Load() {
		return ErrClosed
	}
	var buf [1 + specWireSize]byte
	buf[0] = tagSpec
	binary.LittleEndian.PutUint32(buf[1:5], spec.SampleRate)
	binary.LittleEndian.PutUint16(buf[5:7], spec.Channels)
	return p.writeAll(buf[:])
}

// maxDataMessageLen is the largest payload a single Data message's 4-byte
// length header can declare. It is kept even so a single message is always
// a whole number of samples, rather than the raw 2^32-1 maximum a length
// field could otherwise represent.
const maxDataMessageLen = 0xFFFFFFFE

// WriteData pushes a chunk of interleaved little-endian 16-bit PCM. data
// must hold a whole number of samples. It blocks until every Data message
// has been pushed into the ring; a payload larger than maxDataMessageLen is
// fragmented into consecutive Data messages, each individually capped, so
// the wire length header never overflows or truncates silently.
func (p *Producer) WriteData(data []byte) error {
	if len(data)%2 != 0 {
		return fmt.Errorf("asyncring: data length %d is not a multiple of sample size: %w", len(data), ErrProtocolDesync)
	}
	if p.closed.Load() {
		return ErrClosed
	}
	if len(data) == 0 {
		return p.writeDataMessage(nil)
	}
	for _, n := range dataChunkLengths(len(data)) {
		if err := p.writeDataMessage(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// dataChunkLengths splits a payload of totalLen bytes into the lengths of
// the consecutive Data messages WriteData must emit to carry it, each no
// larger than maxDataMessageLen. Pulled out as pure arithmetic so the
// fragmentation boundary can be tested without allocating a multi-gigabyte
// slice.
func dataChunkLengths(totalLen int) []int {
	if totalLen == 0 {
		return nil
	}
	var lens []int
	for totalLen > 0 {
		n := totalLen
		if n > maxDataMessageLen {
			n = maxDataMessageLen
		}
		lens = append(lens, n)
		totalLen -= n
	}
	return lens
}

func (p *Producer) writeDataMessage(chunk []byte) error {
	var hdr [1 + dataHeaderWireSize]byte
	hdr[0] = tagData
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(chunk)))
	if err := p.writeAll(hdr[:]); err != nil {
		return err
	}
	if len(chunk) == 0 {
		return nil
	}
	return p.writeAll(chunk)
}

func (p *Producer) writeAll(b []byte) error {
	err := p.ring.pushExact(b)
	if errors.Is(err, ErrClosed) {
		p.closed.Store(true)
	}
	return err
}

// IsClosed reports whether the consumer has dropped its end, so further
// writes would only return ErrClosed.
func (p *Producer) IsClosed() bool {
	return p.closed.Load()
}

// BufferedBytes reports how many bytes currently sit in the ring, for
// status/monitoring purposes only — it has no bearing on correctness of
// the protocol itself.
func (p *Producer) BufferedBytes() int {
	return p.ring.occupiedLen()
}

// Close signals end-of-stream: the consumer will keep draining whatever is
// already buffered, then NextSample starts returning false.
func (p *Producer) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.ring.closeProducer()
	}
}
