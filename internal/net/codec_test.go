package net

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0x12, 0xaa, 0xbb, 0xcc}

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if got, want := buf.Len(), len(payload)+2; got != want {
		t.Fatalf("frame length = %d, want %d", got, want)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %x, want %x", got, payload)
	}
}

func TestFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{{0x01}, {0x02, 0x00}, {0x03, 0x01, 0x02, 0x03}}
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for i, want := range frames {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame #%d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame #%d = %x, want %x", i, got, want)
		}
	}
}

func TestReadFrameRejectsBadLength(t *testing.T) {
	// Header claims a total length of 2, leaving no room for a payload.
	for _, header := range [][]byte{{0x02, 0x00}, {0x01, 0x00}, {0x00, 0x00}} {
		if _, err := ReadFrame(bytes.NewReader(header)); err == nil {
			t.Fatalf("ReadFrame(%x): want error, got nil", header)
		}
	}
}

func TestReadFrameRejectsTruncatedPayload(t *testing.T) {
	// Header promises 4 payload bytes but only 2 arrive.
	data := []byte{0x06, 0x00, 0x12, 0x34}
	if _, err := ReadFrame(bytes.NewReader(data)); err == nil {
		t.Fatal("want error for truncated payload, got nil")
	}
}
