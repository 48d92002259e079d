package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// FingerprintLen is the length of a hex-encoded content fingerprint.
const FingerprintLen = 64

// StreamFingerprint hashes a byte stream incrementally and returns the
// hex fingerprint together with the number of bytes read. Chunk
// boundaries do not affect the result. Read errors propagate.
func StreamFingerprint(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// BufferFingerprint hashes an in-memory buffer. For identical bytes it
// yields the same fingerprint as StreamFingerprint.
func BufferFingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
