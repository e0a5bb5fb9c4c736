package repo

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const collectionPrefix = "rag_"

// DeriveCollection maps an owner identifier to the collection value used
// to partition the index tables. The sanitized owner keeps rows readable
// in the database; the hash suffix keeps two owners that sanitize to the
// same string from colliding.
func DeriveCollection(owner string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(owner) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	sanitized := sb.String()
	if len(sanitized) > 48 {
		sanitized = sanitized[:48]
	}
	sum := sha256.Sum256([]byte(owner))
	return collectionPrefix + sanitized + "_" + hex.EncodeToString(sum[:6])
}
