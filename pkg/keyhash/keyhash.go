// Package keyhash turns secrets and rollout inputs into stable digests.
package keyhash

import (
	"crypto"
	_ "crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/cespare/xxhash/v2"
)

// BucketCount is the number of rollout buckets. Buckets are in [0, BucketCount).
const BucketCount = 100

var ErrDigestUnavailable = errors.New("digest_unavailable")

// digestAvailable is swapped in tests to exercise the fallback path.
var digestAvailable = crypto.SHA256.Available

// Digest returns the lowercase hex SHA-256 of raw.
func Digest(raw string) (string, error) {
	if !digestAvailable() {
		return "", ErrDigestUnavailable
	}
	h := crypto.SHA256.New()
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bucket maps (featureKey, userID) to a deterministic bucket in [0, 100).
// The first byte of SHA-256(featureKey + ":" + userID) is reduced modulo 100.
// When SHA-256 is not linked in, the low byte of xxhash64 is used instead.
func Bucket(featureKey, userID string) int {
	input := featureKey + ":" + userID
	if digestAvailable() {
		h := crypto.SHA256.New()
		h.Write([]byte(input))
		return int(h.Sum(nil)[0]) % BucketCount
	}
	return int(xxhash.Sum64String(input)&0xFF) % BucketCount
}
