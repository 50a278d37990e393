// Package signature computes and verifies the HMAC-SHA256 checksums shared
// with the wallet gateway. Field order and the "|" delimiter are part of the
// gateway's wire contract.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const delimiter = "|"

var ErrMissingKey = errors.New("signature: empty secret key")

// Canonical joins fields with the gateway delimiter in the order given.
func Canonical(fields ...string) string {
	return strings.Join(fields, delimiter)
}

// Sign returns the lowercase hex HMAC-SHA256 digest of canonical under key.
func Sign(key, canonical string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the digest and compares it against candidate. Hex case
// is ignored; the comparison is constant time.
func Verify(key, canonical, candidate string) bool {
	expected, err := Sign(key, canonical)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(candidate)))
}
