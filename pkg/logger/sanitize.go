package logger

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashFingerprint returns a short stable digest of a password hash for
// log correlation. The hash value itself is never logged.
func HashFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:4])
}
