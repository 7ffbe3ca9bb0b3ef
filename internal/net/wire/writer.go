// Package wire builds and parses the payloads exchanged between simulation
// peers. All multi-byte fields are little-endian; strings are length-prefixed
// UTF-8. Byte 0 of every payload is the opcode.
package wire

import (
	"encoding/binary"
	"math"
)

// Writer builds an outgoing payload. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func NewWriterWithOpcode(opcode byte) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteC(opcode)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteD writes 4 bytes little-endian (signed or unsigned via cast).
func (w *Writer) WriteD(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

// WriteDU writes 4 bytes little-endian unsigned.
func (w *Writer) WriteDU(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteQ writes 8 bytes little-endian unsigned.
func (w *Writer) WriteQ(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteQS writes 8 bytes little-endian signed.
func (w *Writer) WriteQS(v int64) {
	w.WriteQ(uint64(v))
}

// WriteS writes a string as a 2-byte length prefix followed by the UTF-8
// bytes. Strings longer than 64 KiB are truncated; validation belongs to the
// layer that accepted the string, not the codec.
func (w *Writer) WriteS(s string) {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	w.WriteH(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytes writes raw bytes with no length prefix.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the payload content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current payload length.
func (w *Writer) Len() int {
	return len(w.buf)
}
