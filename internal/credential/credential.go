// Package credential turns plaintext passwords into storable salted digests
// and verifies them.
//
// The digest is SHA-256 over the decoded salt bytes followed by the password
// bytes, Base64 (standard, padded) encoded. The same encoding is used for
// the 16-byte salt. Both match the existing credentials.txt corpus.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// SaltSize is the number of random bytes in a salt.
const SaltSize = 16

// DigestSize is the number of bytes in a decoded digest.
const DigestSize = sha256.Size

// GenerateSalt returns SaltSize random bytes, Base64 encoded.
func GenerateSalt() (string, error) {
	b := make([]byte, SaltSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("credential: generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Hash returns the printable digest of password under salt.
// It fails only when salt is not valid Base64.
func Hash(password, salt string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("credential: decode salt: %w", err)
	}
	h := sha256.New()
	h.Write(raw)
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes the digest of password under storedSalt and compares it
// with storedDigest. A salt that cannot be decoded never verifies.
func Verify(password, storedDigest, storedSalt string) bool {
	got, err := Hash(password, storedSalt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedDigest)) == 1
}

// New generates a fresh salt and hashes password with it.
func New(password string) (digest, salt string, err error) {
	salt, err = GenerateSalt()
	if err != nil {
		return "", "", err
	}
	digest, err = Hash(password, salt)
	if err != nil {
		return "", "", err
	}
	return digest, salt, nil
}

// LooksHashed reports whether digest and salt have the shape produced by New.
// It is used to tell the current credentials format from the legacy one.
func LooksHashed(digest, salt string) bool {
	d, err := base64.StdEncoding.DecodeString(digest)
	if err != nil || len(d) != DigestSize {
		return false
	}
	s, err := base64.StdEncoding.DecodeString(salt)
	return err == nil && len(s) == SaltSize
}
