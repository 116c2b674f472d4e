package engine

import (
	"encoding/hex"
	"math/rand"

	"github.com/google/uuid"
)

// UUIDGenerator produces UUIDv4 identifiers from an injected random
// source. Used for session ids; drawing from the simulation's seeded
// source keeps session ids reproducible across runs.
type UUIDGenerator struct {
	R *rand.Rand
}

// Generate returns a hyphenated UUID string.
func (g UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewRandomFromReader(g.R)).String()
}

// ShortIDGenerator produces compact 12-character hex identifiers from an
// injected random source. Used for event ids, which are emitted on every
// event and favor a short wire form.
type ShortIDGenerator struct {
	R *rand.Rand
}

// Generate returns 12 lowercase hex characters.
func (g ShortIDGenerator) Generate() string {
	var b [6]byte
	// rand.Rand.Read never returns an error.
	g.R.Read(b[:])
	return hex.EncodeToString(b[:])
}
