// Package reportid generates the public identifiers citizens use to track reports.
package reportid

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Length of a public report id in hex characters.
const Length = 16

// New returns a 16 character lowercase hex id derived from the current time
// and 16 bytes of cryptographic randomness.
func New() string {
	return newAt(time.Now())
}

func newAt(now time.Time) string {
	b := make([]byte, 16)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b)

	seed := strconv.FormatInt(now.UnixMilli(), 10) + "-" + hex.EncodeToString(b)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:Length]
}

// Valid reports whether s has the shape of an id produced by New.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
