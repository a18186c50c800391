package booking

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID generates an opaque random identifier with a type prefix,
// e.g. "hold_9f2c...". IDs double as idempotency handles, so they must be
// unguessable and collision-free.
func NewID(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in a bad state anyway;
		// fall back to a timestamp so we never hand out an empty ID.
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return prefix + "_" + hex.EncodeToString(b)
}
