package wire

import (
	"encoding/binary"
	"fmt"
)

// Reader reads fields from an incoming payload. Byte 0 is always the opcode.
// Reads past the end return zero values and mark the reader truncated; callers
// that need to reject malformed payloads check Err after the last read.
type Reader struct {
	data      []byte
	off       int
	truncated bool
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip opcode byte
}

// NewRawReader reads a buffer that carries no opcode byte, such as a
// journal payload.
func NewRawReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if r.off >= len(r.data) {
		r.truncated = true
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if r.off+2 > len(r.data) {
		r.truncated = true
		r.off = len(r.data)
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	if r.off+4 > len(r.data) {
		r.truncated = true
		r.off = len(r.data)
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

// ReadDU reads 4 bytes as little-endian uint32.
func (r *Reader) ReadDU() uint32 {
	if r.off+4 > len(r.data) {
		r.truncated = true
		r.off = len(r.data)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	if r.off+8 > len(r.data) {
		r.truncated = true
		r.off = len(r.data)
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadQS reads 8 bytes as little-endian int64.
func (r *Reader) ReadQS() int64 {
	return int64(r.ReadQ())
}

// ReadS reads a 2-byte length prefix followed by that many UTF-8 bytes.
func (r *Reader) ReadS() string {
	n := int(r.ReadH())
	if r.off+n > len(r.data) {
		r.truncated = true
		r.off = len(r.data)
		return ""
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		r.truncated = true
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Err reports whether any read ran past the end of the payload.
func (r *Reader) Err() error {
	if r.truncated {
		return fmt.Errorf("payload truncated: length %d", len(r.data))
	}
	return nil
}
