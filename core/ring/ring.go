// Package ring implements the fixed-size byte buffer every connection reads
// into. It never grows and never wraps: callers size it once (the read
// buffer size config constant) on the assumption that one request fits.
package ring

import "errors"

// ErrOverflow is returned by CommitWrite when asked to commit a negative
// count or more bytes than the writable tail holds.
var ErrOverflow = errors.New("ring: write would exceed capacity")

// Buffer is a linear read/write cursor over a fixed-size byte array.
//
// Invariant: readPos <= writePos <= len(data) always. When readPos catches
// up to writePos both cursors snap back to zero, which is the amortized
// O(1) compaction path for the common one-request-per-fill case.
type Buffer struct {
	data     []byte
	readPos  int
	writePos int
}

// New allocates a Buffer backed by a slice of the given capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// NewFromSlice wraps an existing slice (e.g. one handed out by a pool)
// without allocating. The slice's length is taken as the buffer's capacity.
func NewFromSlice(backing []byte) *Buffer {
	return &Buffer{data: backing}
}

// Cap returns the fixed capacity of the buffer.
func (b *Buffer) Cap() int { return len(b.data) }

// Writable returns the tail slice available for a recv() to fill.
func (b *Buffer) Writable() []byte {
	return b.data[b.writePos:]
}

// CommitWrite advances the write cursor by n bytes, which must have just
// been filled via the slice returned by Writable. Committing more than the
// writable length is a programming error reported as ErrOverflow rather
// than panicking, since the caller path (recv completion) must turn it into
// a protocol-error response rather than crash the worker.
func (b *Buffer) CommitWrite(n int) error {
	if n < 0 || b.writePos+n > len(b.data) {
		return ErrOverflow
	}
	b.writePos += n
	return nil
}

// Readable returns the head slice containing unconsumed bytes.
func (b *Buffer) Readable() []byte {
	return b.data[b.readPos:b.writePos]
}

// Consume advances the read cursor by n bytes. When the buffer becomes
// empty both cursors reset to zero so the next Writable() call sees the
// full capacity again.
func (b *Buffer) Consume(n int) {
	b.readPos += n
	if b.readPos == b.writePos {
		b.readPos = 0
		b.writePos = 0
	}
}

// Reset snaps both cursors back to zero, discarding any unconsumed bytes.
func (b *Buffer) Reset() {
	b.readPos = 0
	b.writePos = 0
}

// Full reports whether the writable tail has been exhausted without the
// buffer being fully consumed — the connection's cue to fail the request
// as oversized (spec: "Oversized request (> ring buffer)").
func (b *Buffer) Full() bool {
	return b.writePos == len(b.data)
}
