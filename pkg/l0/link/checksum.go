package link

import (
	"bytes"
	"strconv"
)

const (
	// ChecksumMarker separates the payload from the checksum digits.
	ChecksumMarker byte = '*'
	// LineTerminator ends every frame and line.
	LineTerminator byte = '\n'

	// maxChecksumDigits is the decimal width of a byte (0-255).
	maxChecksumDigits = 3
)

// Checksum computes the XOR of all bytes.
//
// XOR catches any single corrupted byte but not every multi-byte
// corruption: the same bit flipped in two bytes cancels out, and so
// does swapping two bytes.
func Checksum(p []byte) byte {
	var sum byte
	for _, b := range p {
		sum ^= b
	}
	return sum
}

// AppendFrame appends the framed cmd to dst.
func AppendFrame(dst, cmd []byte) []byte {
	dst = append(dst, cmd...)
	dst = append(dst, ChecksumMarker)
	dst = strconv.AppendUint(dst, uint64(Checksum(cmd)), 10)
	return append(dst, LineTerminator)
}

// Frame returns cmd + '*' + decimal checksum + '\n'.
func Frame(cmd []byte) []byte {
	return AppendFrame(make([]byte, 0, len(cmd)+maxChecksumDigits+2), cmd)
}

// Verify checks the checksum of a line (terminator already removed) and
// returns the payload before the marker. A line without the marker is
// accepted as-is. The payload is returned even when the checksum is wrong.
//
// Up to 3 digits are read after the marker and compared as a byte, as
// the controller firmware does: missing digits read as 0 and values
// above 255 wrap.
func Verify(line []byte) ([]byte, error) {
	return verify(line, false)
}

// VerifyStrict is Verify rejecting a marker without digits and values
// above 255.
func VerifyStrict(line []byte) ([]byte, error) {
	return verify(line, true)
}

func verify(line []byte, strict bool) ([]byte, error) {
	pos := bytes.IndexByte(line, ChecksumMarker)
	if pos < 0 {
		return line, nil
	}
	payload := line[:pos]
	supplied, digits := parseChecksum(line[pos+1:])
	if strict && (digits == 0 || supplied > 0xff) {
		return payload, ErrChecksumMismatch
	}
	if byte(supplied) != Checksum(payload) {
		return payload, ErrChecksumMismatch
	}
	return payload, nil
}

// parseChecksum reads the leading decimal digits among the first 3 bytes.
func parseChecksum(p []byte) (val uint, digits int) {
	if len(p) > maxChecksumDigits {
		p = p[:maxChecksumDigits]
	}
	for ; digits < len(p) && p[digits] >= '0' && p[digits] <= '9'; digits++ {
		val = val*10 + uint(p[digits]-'0')
	}
	return val, digits
}
