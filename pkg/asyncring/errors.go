package asyncring

import "errors"

// ErrClosed is returned by Producer writes once the consumer has dropped its
// end, and is the terminal condition NextSample reports as (0, false) once
// the ring has fully drained.
var ErrClosed = errors.New("asyncring: ring closed")

// ErrProtocolDesync is wrapped into a panic when the byte stream on the ring
// stops looking like a valid message sequence (unknown tag, odd-length data
// payload). This can only happen from a programming error on the producer
// side of the ring, never from normal playback conditions, so it is not a
// value callers are expected to recover from.
var ErrProtocolDesync = errors.New("asyncring: protocol desync")

// ErrSeekUnsupported is returned by Consumer.Seek. The ring is a forward-only
// pull source; seeking has to be implemented by the decoder reopening and
// rebuilding the ring, not by the ring itself.
var ErrSeekUnsupported = errors.New("asyncring: seek unsupported")
