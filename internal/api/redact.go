package api

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintSize is the number of digest bytes kept in a token fingerprint.
const fingerprintSize = 6

// Fingerprint returns a short, stable identifier for token that is safe to
// log. The token itself cannot be recovered from it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:fingerprintSize])
}
