package binary

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer writes fixed and variable-width fields at an explicit position of an
// io.WriterAt. The first failed write is latched: later writes return it
// without touching the destination, so a sequence of writes can be checked
// once with [Writer.Err].
type Writer struct {
	w   io.WriterAt
	cfg Config
	pos int64
	err error
}

// NewWriter creates a writer positioned at offset zero.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{w: w, cfg: cfg}
}

// At returns a writer sharing the destination but positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{w: w.w, cfg: w.cfg, pos: offset}
}

// Err returns the first error a write on w returned, or nil.
func (w *Writer) Err() error { return w.err }

// Pos returns the current write position.
func (w *Writer) Pos() int64 { return w.pos }

// Config returns the encoding the writer was built with.
func (w *Writer) Config() Config { return w.cfg }

// OffsetSize returns the configured offset size in bytes.
func (w *Writer) OffsetSize() int { return w.cfg.OffsetSize }

// LengthSize returns the configured length size in bytes.
func (w *Writer) LengthSize() int { return w.cfg.LengthSize }

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }

// WriteBytes writes data at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if w.err != nil || len(data) == 0 {
		return w.err
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	if err != nil {
		w.err = err
	}
	return err
}

// WriteUint8 writes one byte.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes a 2-byte unsigned integer.
func (w *Writer) WriteUint16(v uint16) error {
	return w.WriteUintN(uint64(v), 2)
}

// WriteUint32 writes a 4-byte unsigned integer.
func (w *Writer) WriteUint32(v uint32) error {
	return w.WriteUintN(uint64(v), 4)
}

// WriteUint64 writes an 8-byte unsigned integer.
func (w *Writer) WriteUint64(v uint64) error {
	return w.WriteUintN(v, 8)
}

// WriteUintN writes an unsigned integer of n bytes.
func (w *Writer) WriteUintN(v uint64, n int) error {
	if w.err != nil {
		return w.err
	}
	if n < 1 || n > 8 {
		w.err = fmt.Errorf("%w: %d", ErrInvalidWidth, n)
		return w.err
	}
	buf := make([]byte, n)
	PutUint(buf, v, n, w.cfg.ByteOrder)
	return w.WriteBytes(buf)
}

// WriteOffset writes a file address.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.cfg.OffsetSize)
}

// WriteLength writes a length field.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.cfg.LengthSize)
}

// WriteUndefinedOffset writes the unset-address sentinel.
func (w *Writer) WriteUndefinedOffset() error {
	return w.WriteOffset(Undefined(w.cfg.OffsetSize))
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// Buffer is a growable in-memory io.WriterAt. Object headers and heap
// collections are assembled in a Buffer so their checksums can be computed
// before they reach the file.
type Buffer struct {
	buf []byte
}

// WriteAt implements io.WriterAt, growing the buffer as needed.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(b.buf) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// Bytes returns the buffered contents.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.buf) }
