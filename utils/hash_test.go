package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

const helloFingerprint = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestBufferFingerprintKnownValue(t *testing.T) {
	got := BufferFingerprint([]byte("hello"))
	if got != helloFingerprint {
		t.Fatalf("expect %s, got %s", helloFingerprint, got)
	}
	if len(got) != FingerprintLen {
		t.Fatalf("expect fingerprint length %d, got %d", FingerprintLen, len(got))
	}
}

func TestStreamFingerprintMatchesBuffer(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("hello"),
		[]byte(strings.Repeat("dedup-vault ", 10000)),
	}
	for _, data := range inputs {
		want := BufferFingerprint(data)

		got, n, err := StreamFingerprint(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("StreamFingerprint failed: %v", err)
		}
		if got != want {
			t.Fatalf("stream fingerprint %s != buffer fingerprint %s", got, want)
		}
		if n != int64(len(data)) {
			t.Fatalf("expect size %d, got %d", len(data), n)
		}

		// Chunk boundaries must not change the result.
		chunked, _, err := StreamFingerprint(iotest.OneByteReader(bytes.NewReader(data)))
		if err != nil {
			t.Fatalf("StreamFingerprint chunked failed: %v", err)
		}
		if chunked != want {
			t.Fatalf("chunked fingerprint %s != buffer fingerprint %s", chunked, want)
		}
	}
}

func TestStreamFingerprintPropagatesReadError(t *testing.T) {
	readErr := errors.New("read failed")
	_, _, err := StreamFingerprint(iotest.ErrReader(readErr))
	if !errors.Is(err, readErr) {
		t.Fatalf("expect read error to propagate, got %v", err)
	}
}
