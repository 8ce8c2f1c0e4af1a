package feature

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// StableID is a fixed-length identity used exclusively for deterministic
// bucketing and allowlist membership. It is never used for targeting
// equality. The canonical wire form is 32 lowercase hex characters.
type StableID [16]byte

// NewStableID returns a random StableID.
func NewStableID() StableID {
	return StableID(uuid.New())
}

// ParseStableID parses the canonical 32-character hex form. Uppercase input
// is accepted and canonicalized.
func ParseStableID(s string) (StableID, error) {
	if len(s) != 32 {
		return StableID{}, fmt.Errorf("stable id must be 32 hex characters, got %d", len(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return StableID{}, fmt.Errorf("parse stable id: %w", err)
	}

	var id StableID
	copy(id[:], raw)
	return id, nil
}

// Hex returns the canonical lowercase hex form. This exact string is the
// bucketing hash input, so it must never change shape.
func (id StableID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id StableID) String() string {
	return id.Hex()
}

// IsZero reports whether the id is the all-zero value.
func (id StableID) IsZero() bool {
	return id == StableID{}
}
