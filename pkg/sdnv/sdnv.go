package sdnv

import "fmt"

// MaxLen is the longest encoding of a uint64: ceil(64/7) = 10 bytes.
const MaxLen = 10

// Len returns the number of bytes Encode(v) will produce.
func Len(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// Encode appends the SDNV encoding of v to dst and returns the result.
func Encode(dst []byte, v uint64) []byte {
	var buf [MaxLen]byte
	i := MaxLen
	i--
	buf[i] = byte(v & 0x7f)
	v >>= 7
	for v != 0 {
		i--
		buf[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	return append(dst, buf[i:]...)
}

// Decode reads a single SDNV from the front of b, returning the decoded
// value and the number of bytes consumed. It returns an error if b does not
// contain a complete, in-range SDNV (more than 10 bytes of continuation
// implies overflow of a uint64).
func Decode(b []byte) (value uint64, n int, err error) {
	for n = 0; n < len(b) && n < MaxLen; n++ {
		value = (value << 7) | uint64(b[n]&0x7f)
		if b[n]&0x80 == 0 {
			return value, n + 1, nil
		}
	}
	if n >= MaxLen {
		return 0, 0, fmt.Errorf("sdnv: value exceeds %d bytes", MaxLen)
	}
	return 0, 0, fmt.Errorf("sdnv: truncated, need more bytes")
}

// Reader consumes SDNVs incrementally from a stream that may arrive in
// arbitrary chunks, tolerating a split in the middle of the encoding. This
// is the shape the block-processor framework's consume() calls need: bytes
// trickle in and a partial SDNV must be remembered across calls.
type Reader struct {
	buf  [MaxLen]byte
	n    int
	done bool
	val  uint64
}

// Feed consumes as much of b as is needed to complete the SDNV, returning
// the number of bytes of b it consumed. Once Done() is true, Value() holds
// the decoded number and further Feed calls are no-ops.
func (r *Reader) Feed(b []byte) (consumed int) {
	for _, c := range b {
		if r.done {
			break
		}
		if r.n >= MaxLen {
			r.done = true
			break
		}
		r.buf[r.n] = c
		r.n++
		consumed++
		if c&0x80 == 0 {
			r.done = true
		}
	}
	if r.done {
		var v uint64
		for i := 0; i < r.n; i++ {
			v = (v << 7) | uint64(r.buf[i]&0x7f)
		}
		r.val = v
	}
	return consumed
}

// Done reports whether a full SDNV has been assembled.
func (r *Reader) Done() bool { return r.done }

// Value returns the decoded value; valid only once Done() is true.
func (r *Reader) Value() uint64 { return r.val }

// Reset prepares the reader to decode another SDNV.
func (r *Reader) Reset() {
	r.n = 0
	r.done = false
	r.val = 0
}
