package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash fingerprints the evaluated portions of an article. Any change
// to title, summary, or lead paragraph produces a new hash and therefore a
// fresh evaluation.
func ContentHash(title, summary, lead string) string {
	return hashHex(strings.Join([]string{title, summary, lead}, "|"))
}

// Key builds the assessment cache key. The model and prompt version are part
// of the key so upgrading either invalidates old entries without a wipe.
func Key(modelName, promptVersion, articleURL, contentHash string) string {
	return hashHex(strings.Join([]string{
		modelName,
		promptVersion,
		strings.ToLower(articleURL),
		contentHash,
	}, "|"))
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
