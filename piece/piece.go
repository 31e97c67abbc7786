// Package piece defines the unit of work exchanged between the
// orchestrator and peer sessions: a descriptor of what to fetch, and
// the verified bytes once fetched.
package piece

import (
	"bytes"
	"crypto/sha1"
)

// Descriptor is an immutable unit of download work. Length equals the
// torrent's piece_length for every piece except the last, which is
// total_length - piece_length*(piece_count-1).
type Descriptor struct {
	Index        int
	ExpectedHash [20]byte
	Length       int
}

// Verify reports whether buf is the correct, complete payload for d:
// its length must match and its SHA-1 must equal ExpectedHash.
func (d Descriptor) Verify(buf []byte) bool {
	if len(buf) != d.Length {
		return false
	}
	sum := sha1.Sum(buf)
	return bytes.Equal(sum[:], d.ExpectedHash[:])
}

// Result is a verified payload ready for the sink. The orchestrator
// and session code must never construct a Result whose bytes have not
// passed Descriptor.Verify.
type Result struct {
	Index int
	Bytes []byte
}
