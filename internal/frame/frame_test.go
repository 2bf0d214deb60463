package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestDelimiterSize(t *testing.T) {
	if DelimiterSize != 64 {
		t.Fatalf("delimiter must be 64 bytes, got %d", DelimiterSize)
	}
	if HeaderSize != 72 {
		t.Fatalf("header must be 72 bytes, got %d", HeaderSize)
	}
}

func TestEncodeEmpty(t *testing.T) {
	out := Encode(nil)

	if len(out) != HeaderSize {
		t.Fatalf("expected bare header of %d bytes, got %d", HeaderSize, len(out))
	}
	if !bytes.Equal(out[:DelimiterSize], []byte(Delimiter)) {
		t.Error("delimiter mismatch")
	}
	if n := binary.LittleEndian.Uint64(out[DelimiterSize:]); n != 0 {
		t.Errorf("expected zero length field, got %d", n)
	}
}

func TestEncodeLayout(t *testing.T) {
	payload := []byte("hello, satellite")
	out := Encode(payload)

	if len(out) != HeaderSize+len(payload) {
		t.Fatalf("unexpected record size %d", len(out))
	}
	if n := binary.LittleEndian.Uint64(out[DelimiterSize:HeaderSize]); n != uint64(len(payload)) {
		t.Errorf("length field %d, want %d", n, len(payload))
	}
	if !bytes.Equal(out[HeaderSize:], payload) {
		t.Error("payload bytes modified by framing")
	}
}

func TestRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte{},
		[]byte{0x00},
		[]byte("plain text"),
		[]byte(Delimiter), // payload that looks like a delimiter
		bytes.Repeat([]byte{0xff}, 4096),
	}

	for _, payload := range payloads {
		record := Encode(payload)

		n, err := ParseHeader(record)
		if err != nil {
			t.Fatalf("ParseHeader: %v", err)
		}
		if n != uint64(len(payload)) {
			t.Errorf("declared length %d, want %d", n, len(payload))
		}

		got, err := Decode(record)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("round trip mismatch for %d byte payload", len(payload))
		}
	}
}

func TestParseHeaderErrors(t *testing.T) {
	if _, err := ParseHeader(make([]byte, HeaderSize-1)); !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader, got %v", err)
	}

	bad := Encode([]byte("x"))
	bad[0] ^= 0xff
	if _, err := ParseHeader(bad); !errors.Is(err, ErrBadDelimiter) {
		t.Errorf("expected ErrBadDelimiter, got %v", err)
	}

	truncated := Encode([]byte("longer payload"))[:HeaderSize+3]
	if _, err := Decode(truncated); !errors.Is(err, ErrShortHeader) {
		t.Errorf("expected ErrShortHeader for truncated payload, got %v", err)
	}
}
