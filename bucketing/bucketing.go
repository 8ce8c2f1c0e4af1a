// Package bucketing assigns stable identities to deterministic ramp-up
// buckets. The assignment must be bit-for-bit reproducible across processes
// and across language implementations, so the hash algorithm, input layout,
// and reduction below are all fixed contract.
package bucketing

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/calehm/vexil/feature"
)

// Buckets is the size of the bucket space; one bucket is 0.1% of the
// population.
const Buckets = 1000

// Bucket maps a stable identity to an integer in [0, Buckets). The hash
// input is the UTF-8 concatenation of salt, the feature's short key, and the
// identity's canonical lowercase hex form, in that order, digested with
// SHA-256; the first 8 bytes of the digest, read big-endian, are reduced
// modulo Buckets.
//
// Changing the salt changes the hash input and therefore redistributes the
// whole population. That is the supported "resample" mechanism.
func Bucket(id feature.StableID, featureKey, salt string) int {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(featureKey))
	h.Write([]byte(id.Hex()))
	sum := h.Sum(nil)

	return int(binary.BigEndian.Uint64(sum[:8]) % Buckets)
}

// InRollout reports whether a bucket falls inside a ramp-up percentage.
// Percent is a double in [0, 100]; resolution is coarsened to 0.1% here, at
// comparison time only. 0% admits no bucket and 100% admits every bucket.
func InRollout(percent float64, bucket int) bool {
	return bucket < Threshold(percent)
}

// Threshold converts a ramp-up percentage to the exclusive bucket bound,
// flooring to 0.1% resolution.
func Threshold(percent float64) int {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return Buckets
	}
	return int(math.Floor(percent * 10))
}
