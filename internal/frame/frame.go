package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire layout shared with the downstream pipe reader: a 64-byte delimiter,
// the payload length as a little-endian uint64, then the raw payload bytes.
// The reader recovers record boundaries from this header, so the constants
// below must never change without versioning the protocol.
const (
	// Delimiter marks the start of every framed record. The tail half is
	// fixed binary noise chosen to be unlikely to collide with payload data.
	Delimiter = "vyqzbefrsnzqahgdkrsidzigxvrppato" +
		"\xe0\xe0$\x1a\xe4[\"\xb5Z\x0bv\x17\xa7\xa7\x9d\xa5\xd6\x00W}M\xa6TO\xda7\xfaeu:\xac\xdc"

	DelimiterSize = len(Delimiter)
	LengthSize    = 8
	HeaderSize    = DelimiterSize + LengthSize
)

var (
	ErrShortHeader  = errors.New("frame header truncated")
	ErrBadDelimiter = errors.New("frame delimiter mismatch")
)

// Encode frames payload for the sink. It never fails; an empty or nil
// payload yields a bare header with a zero length field.
func Encode(payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	copy(out, Delimiter)
	binary.LittleEndian.PutUint64(out[DelimiterSize:], uint64(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// ParseHeader validates the delimiter at the start of b and returns the
// payload length declared by the header.
func ParseHeader(b []byte) (uint64, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	if !bytes.Equal(b[:DelimiterSize], []byte(Delimiter)) {
		return 0, ErrBadDelimiter
	}
	return binary.LittleEndian.Uint64(b[DelimiterSize:HeaderSize]), nil
}

// Decode splits a single framed record back into its payload. Used by tests
// and verification tooling; the production path only ever encodes.
func Decode(record []byte) ([]byte, error) {
	n, err := ParseHeader(record)
	if err != nil {
		return nil, err
	}
	if uint64(len(record)-HeaderSize) < n {
		return nil, fmt.Errorf("%w: payload shorter than declared length %d", ErrShortHeader, n)
	}
	return record[HeaderSize : HeaderSize+int(n)], nil
}
