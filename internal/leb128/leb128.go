// Package leb128 implements the variable-length integer encodings used
// throughout the Wasm binary format: unsigned LEB128 for counts/indices,
// and signed LEB128 for constant immediates.
//
// Each decodable shape has two entry points: Decode* reads from an
// io.ByteReader one byte at a time (used by the binary decoder's Reader,
// including its pull-based walk over function bodies), and Load* reads
// directly from a []byte (used by the interpreter to read immediates out
// of compiled bytecode it already holds in memory, avoiding the
// io.ByteReader indirection on the hot path).
package leb128

import (
	"errors"
	"io"
)

var errOverflow = errors.New("leb128: value overflows target integer width")
var errOverlong = errors.New("leb128: overlong encoding exceeds maximum byte length")

// DecodeUint32 reads an unsigned LEB128 value capped at 5 bytes.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	var result uint32
	var shift uint
	var n uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		if n == 5 && b&0xf0 != 0 {
			return 0, n, errOverflow
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, n, nil
		}
		shift += 7
		if n >= 5 {
			return 0, n, errOverlong
		}
	}
}

// DecodeInt32 reads a signed LEB128 value capped at 5 bytes.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSigned(r, 5, 32)
	return int32(v), n, err
}

// DecodeInt64 reads a signed LEB128 value capped at 10 bytes.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 10, 64)
}

// DecodeInt33AsInt64 reads a signed LEB128 value capped at 5 bytes whose
// logical width is 33 bits (used for block type immediates, which must
// distinguish the single-result-type encodings from a type-index), sign
// extended into an int64.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 5, 33)
}

func decodeSigned(r io.ByteReader, maxBytes uint64, width uint) (int64, uint64, error) {
	var result int64
	var shift uint
	var n uint64
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		// validBits is how many of this byte's 7 payload bits fit within
		// width; any higher bits must agree with the sign bit, else the
		// encoding describes a value wider than the target integer.
		if validBits := int(width) - int(shift); validBits < 7 {
			sign := (b >> uint(validBits-1)) & 1
			signExt := byte(0)
			if sign != 0 {
				signExt = 0x7f
			}
			if b&0x7f&^((1<<uint(validBits))-1) != signExt&^((1<<uint(validBits))-1) {
				return 0, n, errOverflow
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if n >= maxBytes {
			return 0, n, errOverlong
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, n, nil
}

// DecodeUint64 reads an unsigned LEB128 value capped at 10 bytes.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		if n == 10 && b&0xfe != 0 {
			return 0, n, errOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, n, nil
		}
		shift += 7
		if n >= 10 {
			return 0, n, errOverlong
		}
	}
}

// byteSliceReader is a zero-allocation io.ByteReader over a []byte, used to
// implement the Load* entry points in terms of the Decode* ones without
// pulling in bytes.Reader's larger interface surface.
type byteSliceReader struct {
	buf []byte
	pos int
}

func (r *byteSliceReader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// LoadUint32 decodes an unsigned LEB128 value from the start of buf.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	r := &byteSliceReader{buf: buf}
	return DecodeUint32(r)
}

// LoadInt32 decodes a signed LEB128 value from the start of buf.
func LoadInt32(buf []byte) (int32, uint64, error) {
	r := &byteSliceReader{buf: buf}
	return DecodeInt32(r)
}

// LoadInt64 decodes a signed LEB128 value from the start of buf.
func LoadInt64(buf []byte) (int64, uint64, error) {
	r := &byteSliceReader{buf: buf}
	return DecodeInt64(r)
}

// LoadUint64 decodes an unsigned LEB128 value from the start of buf.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	r := &byteSliceReader{buf: buf}
	return DecodeUint64(r)
}

// EncodeUint32 returns v's unsigned LEB128 encoding.
func EncodeUint32(v uint32) []byte {
	return appendUint64(nil, uint64(v))
}

// EncodeUint64 returns v's unsigned LEB128 encoding.
func EncodeUint64(v uint64) []byte {
	return appendUint64(nil, v)
}

func appendUint64(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			return append(buf, b)
		}
	}
}

// EncodeInt32 returns v's signed LEB128 encoding.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 returns v's signed LEB128 encoding.
func EncodeInt64(v int64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
