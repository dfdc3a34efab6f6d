// Package fingerprint computes the content hashes used as cache keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prompt fingerprints free-text input. The text is lowercased and trimmed
// before hashing so trivially different phrasings of the same prompt collide.
func Prompt(text string) string {
	normalized := strings.TrimSpace(strings.ToLower(text))
	return digest(normalized)
}

// SQL fingerprints compiled SQL text verbatim. Compilation is deterministic,
// so equal plans always produce equal SQL fingerprints.
func SQL(sql string) string {
	return digest(sql)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
