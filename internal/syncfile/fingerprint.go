package syncfile

import (
	"bytes"

	"golang.org/x/crypto/sha3"
)

// FingerprintSize is the length in bytes of a fingerprint.
const FingerprintSize = 32

// Fingerprint returns the SHA3-256 digest of the full file content. It is
// only ever compared for equality to detect change; it never leaves the process.
func Fingerprint(content []byte) []byte {
	sum := sha3.Sum256(content)
	return sum[:]
}

// SameFingerprint reports whether a and b are equal, well formed fingerprints.
func SameFingerprint(a, b []byte) bool {
	return len(a) == FingerprintSize && bytes.Equal(a, b)
}
