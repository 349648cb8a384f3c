package asyncring

import (
	"encoding/binary"
	"fmt"
)

// Wire tags for the message union carried on the ring. A Spec message
// changes the decoded sample format; a Data message is a header announcing
// a payload length followed by that many bytes of interleaved 16-bit PCM.
const (
	tagData byte = 0x01
	tagSpec byte = 0x02
)

const (
	specWireSize       = 4 + 2 // sample rate (u32 LE) + channel count (u16 LE)
	dataHeaderWireSize = 4     // payload length (u32 LE)
)

// FormatSpec is the out-of-band sample-rate/channel-count announcement
// carried by a Spec message.
type FormatSpec struct {
	SampleRate uint32
	Channels   uint16
}

// specParser incrementally reassembles a FormatSpec from fragments of the
// 6-byte wire body, resuming across however many calls it takes for the
// bytes to arrive.
type specParser struct {
	buf  [specWireSize]byte
	read int
}

func (p *specParser) Done() bool { return p.read == specWireSize }

// Fill copies as much of b as fits into the remaining body and reports how
// many bytes it consumed.
func (p *specParser) Fill(b []byte) int {
	if p.Done() || len(b) == 0 {
		return 0
	}
	n := copy(p.buf[p.read:], b)
	p.read += n
	return n
}

func (p *specParser) Finish() FormatSpec {
	return FormatSpec{
		SampleRate: binary.LittleEndian.Uint32(p.buf[0:4]),
		Channels:   binary.LittleEndian.Uint16(p.buf[4:6]),
	}
}

// specWriter is the serialize-side counterpart, used by Producer.WriteSpec.
type specWriter struct {
	buf     [specWireSize]byte
	written int
}

func newSpecWriter(spec FormatSpec) *specWriter {
	w := &specWriter{}
	binary.LittleEndian.PutUint32(w.buf[0:4], spec.SampleRate)
	binary.LittleEndian.PutUint16(w.buf[4:6], spec.Channels)
	return w
}

func (w *specWriter) Done() bool { return w.written == specWireSize }

func (w *specWriter) WriteTo(b []byte) int {
	if w.Done() || len(b) == 0 {
		return 0
	}
	n := copy(b, w.buf[w.written:])
	w.written += n
	return n
}

// dataHeaderParser reassembles the 4-byte payload-length header preceding a
// Data message's bytes.
type dataHeaderParser struct {
	buf  [dataHeaderWireSize]byte
	read int
}

func (p *dataHeaderParser) Done() bool { return p.read == dataHeaderWireSize }

func (p *dataHeaderParser) Fill(b []byte) int {
	if p.Done() || len(b) == 0 {
		return 0
	}
	n := copy(p.buf[p.read:], b)
	p.read += n
	return n
}

func (p *dataHeaderParser) Finish() uint32 {
	return binary.LittleEndian.Uint32(p.buf[:])
}

type dataHeaderWriter struct {
	buf     [dataHeaderWireSize]byte
	written int
}

func newDataHeaderWriter(length uint32) *dataHeaderWriter {
	w := &dataHeaderWriter{}
	binary.LittleEndian.PutUint32(w.buf[:], length)
	return w
}

func (w *dataHeaderWriter) Done() bool { return w.written == dataHeaderWireSize }

func (w *dataHeaderWriter) WriteTo(b []byte) int {
	if w.Done() || len(b) == 0 {
		return 0
	}
	n := copy(b, w.buf[w.written:])
	w.written += n
	return n
}

// dataPayload tracks how many of a Data message's announced length bytes
// have been transferred. It never buffers the payload itself — bytes flow
// straight from the ring into the caller's destination.
type dataPayload struct {
	length int
	read   int
}

func (d *dataPayload) Done() bool { return d.read >= d.length }

func (d *dataPayload) Advance(n int) { d.read += n }

// messageKind distinguishes the three states a message can be in while it
// is being parsed off the ring: Spec and the Data header are byte-buffered
// and fillable; the Data payload itself is unbuffered.
type messageKind int

const (
	kindSpec messageKind = iota
	kindDataHeader
	kindDataPayload
)

// messageParser is the tagged-union parse state machine for a single
// message read off the ring: it starts from a detected tag byte, fills
// either a Spec body or a Data header, and for Data transitions itself into
// a payload pass-through once the header completes.
type messageParser struct {
	kind    messageKind
	spec    *specParser
	header  *dataHeaderParser
	payload *dataPayload
}

func newMessageParser(tag byte) (*messageParser, error) {
	switch tag {
	case tagSpec:
		return &messageParser{kind: kindSpec, spec: &specParser{}}, nil
	case tagData:
		return &messageParser{kind: kindDataHeader, header: &dataHeaderParser{}}, nil
	default:
		return nil, fmt.Errorf("asyncring: unknown message tag %#x: %w", tag, ErrProtocolDesync)
	}
}

func (m *messageParser) Done() bool {
	switch m.kind {
	case kindSpec:
		return m.spec.Done()
	case kindDataHeader:
		return m.header.Done()
	default:
		return m.payload.Done()
	}
}

// Fillable reports whether this state still wants raw bytes copied into it
// (true for Spec/header), as opposed to payload bytes being read through
// directly (false).
func (m *messageParser) Fillable() bool {
	return m.kind != kindDataPayload
}

func (m *messageParser) Fill(b []byte) int {
	switch m.kind {
	case kindSpec:
		return m.spec.Fill(b)
	case kindDataHeader:
		return m.header.Fill(b)
	default:
		return 0
	}
}

// FinishHeader transitions a completed Data header into the payload state,
// and rejects a payload length that can't be an integral number of 16-bit
// samples.
func (m *messageParser) FinishHeader() error {
	length := m.header.Finish()
	if length%2 != 0 {
		return fmt.Errorf("asyncring: data payload length %d is not a multiple of sample size: %w", length, ErrProtocolDesync)
	}
	m.kind = kindDataPayload
	m.payload = &dataPayload{length: int(length)}
	return nil
}

func (m *messageParser) FinishSpec() FormatSpec {
	return m.spec.Finish()
}

func (m *messageParser) AdvancePayload(n int) {
	m.payload.Advance(n)
}

func (m *messageParser) PayloadRemaining() int {
	return m.payload.length - m.payload.read
}
