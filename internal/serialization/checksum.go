package serialization

import (
	"crypto/sha256"
	"hash"
	"io"
)

// ComputeChecksum computes SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// hashingReader hashes everything read through it.
type hashingReader struct {
	r io.Reader
	h hash.Hash
}

func newHashingReader(r io.Reader) *hashingReader {
	h := sha256.New()
	return &hashingReader{r: io.TeeReader(r, h), h: h}
}

func (hr *hashingReader) Read(p []byte) (int, error) {
	return hr.r.Read(p)
}

func (hr *hashingReader) sum() [32]byte {
	var sum [32]byte
	copy(sum[:], hr.h.Sum(nil))
	return sum
}
