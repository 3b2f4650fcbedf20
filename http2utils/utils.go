// Package http2utils holds the small byte-level helpers shared by the frame
// codec: big-endian uint24/uint32 conversions, padding handling and the
// header-name fold used for pseudo-header comparisons.
package http2utils

import (
	"crypto/rand"
	"fmt"

	"github.com/valyala/fastrand"
)

func Uint24ToBytes(b []byte, n uint32) {
	_ = b[2] // bound checking
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

func BytesToUint24(b []byte) uint32 {
	_ = b[2] // bound checking
	return uint32(b[0])<<16 |
		uint32(b[1])<<8 |
		uint32(b[2])
}

func AppendUint32Bytes(dst []byte, n uint32) []byte {
	dst = append(dst, byte(n>>24))
	dst = append(dst, byte(n>>16))
	dst = append(dst, byte(n>>8))
	dst = append(dst, byte(n))
	return dst
}

func Uint32ToBytes(b []byte, n uint32) {
	_ = b[3] // bound checking
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

func BytesToUint32(b []byte) uint32 {
	_ = b[3] // bound checking
	n := uint32(b[0])<<24 |
		uint32(b[1])<<16 |
		uint32(b[2])<<8 |
		uint32(b[3])
	return n
}

// EqualsFold compares two ASCII header tokens ignoring case, without the
// allocation bytes.EqualFold's general-casing path would cost.
func EqualsFold(a, b []byte) bool {
	n := len(a)
	if n != len(b) {
		return false
	}
	for i := 0; i < n; i++ {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}
	return true
}

func Resize(b []byte, neededLen int) []byte {
	b = b[:cap(b)]

	if n := neededLen - len(b); n > 0 {
		b = append(b, make([]byte, n)...)
	}

	return b[:neededLen]
}

// CutPadding strips the pad-length octet and trailing padding from a
// payload that carried the PADDED flag, returning the remaining content.
func CutPadding(payload []byte, length int) ([]byte, error) {
	if length == 0 {
		return payload, nil
	}
	pad := int(payload[0])
	if length-pad-1 < 0 || len(payload) < length-pad-1 {
		return nil, fmt.Errorf("padding %d exceeds frame length %d", pad, length)
	}
	return payload[1 : length-pad], nil
}

// AddPadding prefixes b with a random pad-length octet and appends that
// many random octets, for frames that opt into the PADDED flag.
func AddPadding(b []byte) []byte {
	n := int(fastrand.Uint32n(256-9)) + 9
	nn := len(b)

	b = Resize(b, nn+n+1)
	copy(b[1:], b[:nn])

	b[0] = uint8(n)
	rand.Read(b[nn+1 : nn+1+n])

	return b
}
