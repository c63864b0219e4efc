// Package checksum derives content digests used for change detection and
// for identifiers of records that have no key of their own.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortLen is the number of hex characters kept by Short.
const ShortLen = 16

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns a truncated Sum of s, long enough to identify a record
// within a single file.
func Short(s string) string {
	return Sum([]byte(s))[:ShortLen]
}
