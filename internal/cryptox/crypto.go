// Package cryptox computes content fingerprints for captured assets.
package cryptox

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ChecksumPrefix tags every fingerprint with its algorithm.
const ChecksumPrefix = "blake2b-256:"

// Checksum returns the BLAKE2b-256 fingerprint of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return ChecksumPrefix + hex.EncodeToString(sum[:])
}

// Verify reports whether data matches a fingerprint produced by Checksum.
func Verify(data []byte, checksum string) bool {
	return checksum != "" && Checksum(data) == checksum
}
