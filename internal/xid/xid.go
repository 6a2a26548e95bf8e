// Package xid issues prefixed identifiers for sessions, quotes and audit
// entries. IDs embed a nanosecond timestamp so records sort by creation
// time without a separate sequence.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns a fresh identifier like "quote-1693526400123456789-a1b2c3d4e5f60718".
// If the random source fails the timestamp alone still keeps IDs unique
// enough for a single process.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
