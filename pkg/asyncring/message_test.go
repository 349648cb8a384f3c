package asyncring

import "testing"

func TestSpecWriterThenParserRoundTrip(t *testing.T) {
	spec := FormatSpec{SampleRate: 48000, Channels: 2}
	w := newSpecWriter(spec)

	var wire [specWireSize]byte
	n := w.WriteTo(wire[:])
	if n != specWireSize || !w.Done() {
		t.Fatalf("WriteTo: n=%d done=%v, want %d/true", n, w.Done(), specWireSize)
	}
	if n := w.WriteTo(wire[:]); n != 0 {
		t.Fatalf("WriteTo after done: n=%d, want 0", n)
	}

	p := &specParser{}
	consumed := p.Fill(wire[:])
	if consumed != specWireSize || !p.Done() {
		t.Fatalf("Fill: consumed=%d done=%v, want %d/true", consumed, p.Done(), specWireSize)
	}
	got := p.Finish()
	if got != spec {
		t.Fatalf("Finish() = %+v, want %+v", got, spec)
	}
}

func TestSpecParserResumesAcrossCalls(t *testing.T) {
	spec := FormatSpec{SampleRate: 44100, Channels: 1}
	w := newSpecWriter(spec)
	var wire [specWireSize]byte
	w.WriteTo(wire[:])

	p := &specParser{}
	if n := p.Fill(wire[0:2]); n != 2 {
		t.Fatalf("first Fill consumed %d, want 2", n)
	}
	if p.Done() {
		t.Fatalf("parser reports done after partial fill")
	}
	if n := p.Fill(nil); n != 0 {
		t.Fatalf("Fill with empty slice consumed %d, want 0", n)
	}
	if n := p.Fill(wire[2:]); n != specWireSize-2 {
		t.Fatalf("second Fill consumed %d, want %d", n, specWireSize-2)
	}
	if !p.Done() {
		t.Fatalf("parser should be done after all bytes filled")
	}
	if got := p.Finish(); got != spec {
		t.Fatalf("Finish() = %+v, want %+v", got, spec)
	}
}

func TestDataHeaderWriterThenParserRoundTrip(t *testing.T) {
	w := newDataHeaderWriter(4096)
	var wire [dataHeaderWireSize]byte
	w.WriteTo(wire[:])

	p := &dataHeaderParser{}
	p.Fill(wire[:])
	if !p.Done() {
		t.Fatalf("header parser not done after full fill")
	}
	if got := p.Finish(); got != 4096 {
		t.Fatalf("Finish() = %d, want 4096", got)
	}
}

func TestDataHeaderParserResumesAcrossCalls(t *testing.T) {
	w := newDataHeaderWriter(70000)
	var wire [dataHeaderWireSize]byte
	w.WriteTo(wire[:])

	p := &dataHeaderParser{}
	p.Fill(wire[0:1])
	p.Fill(wire[1:3])
	p.Fill(wire[3:4])
	if !p.Done() {
		t.Fatalf("header parser not done after piecewise fill")
	}
	if got := p.Finish(); got != 70000 {
		t.Fatalf("Finish() = %d, want 70000", got)
	}
}

func TestDataPayloadAdvanceAndDone(t *testing.T) {
	d := &dataPayload{length: 4}
	if d.Done() {
		t.Fatalf("zero-progress payload reports done")
	}
	d.Advance(2)
	if d.Done() {
		t.Fatalf("half-consumed payload reports done")
	}
	d.Advance(2)
	if !d.Done() {
		t.Fatalf("fully-consumed payload does not report done")
	}
}

func TestDataPayloadZeroLengthIsImmediatelyDone(t *testing.T) {
	d := &dataPayload{length: 0}
	if !d.Done() {
		t.Fatalf("zero-length payload should report done immediately")
	}
}

func TestMessageParserUnknownTag(t *testing.T) {
	if _, err := newMessageParser(0x7f); err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}

func TestMessageParserFinishHeaderRejectsOddLength(t *testing.T) {
	p, err := newMessageParser(tagData)
	if err != nil {
		t.Fatalf("newMessageParser: %v", err)
	}
	w := newDataHeaderWriter(5)
	var wire [dataHeaderWireSize]byte
	w.WriteTo(wire[:])
	p.Fill(wire[:])
	if !p.Done() {
		t.Fatalf("header should be done")
	}
	if err := p.FinishHeader(); err == nil {
		t.Fatalf("expected odd-length payload to be rejected")
	}
}

func TestMessageParserDataFlow(t *testing.T) {
	p, err := newMessageParser(tagData)
	if err != nil {
		t.Fatalf("newMessageParser: %v", err)
	}
	w := newDataHeaderWriter(6)
	var wire [dataHeaderWireSize]byte
	w.WriteTo(wire[:])
	p.Fill(wire[:])

	if err := p.FinishHeader(); err != nil {
		t.Fatalf("FinishHeader: %v", err)
	}
	if p.Fillable() {
		t.Fatalf("payload state should not be fillable")
	}
	if p.PayloadRemaining() != 6 {
		t.Fatalf("PayloadRemaining() = %d, want 6", p.PayloadRemaining())
	}
	p.AdvancePayload(6)
	if !p.Done() {
		t.Fatalf("payload should be done after consuming its full length")
	}
}
