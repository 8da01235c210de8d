// Package savestate implements the byte-serial snapshot codec from
// spec.md §4.6: little-endian, no version header, no padding. Each
// primitive serialises at its natural width; bool-packs compress up to
// eight flags per byte, LSB-first.
package savestate

import "encoding/binary"

// Writer accumulates a byte-serial snapshot.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) U8(v byte) { w.buf = append(w.buf, v) }

func (w *Writer) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// Bools packs up to 8 flags, LSB-first, into a single byte.
func (w *Writer) Bools(flags ...bool) {
	if len(flags) > 8 {
		panic("savestate: Bools accepts at most 8 flags per byte")
	}
	var b byte
	for i, f := range flags {
		if f {
			b |= 1 << uint(i)
		}
	}
	w.U8(b)
}

func (w *Writer) Raw(v []byte) { w.buf = append(w.buf, v...) }

// Reader decodes a byte-serial snapshot produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(data []byte) *Reader { return &Reader{buf: data} }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return ErrUnexpectedEOF
	}
	return nil
}

func (r *Reader) U8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

// Bools unpacks n (<=8) flags, LSB-first, from one byte.
func (r *Reader) Bools(n int) ([]bool, error) {
	b, err := r.U8()
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = b&(1<<uint(i)) != 0
	}
	return out, nil
}

func (r *Reader) Raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }
