package models

import (
	"crypto/subtle"
	"time"
)

// HashEqualFunc reports whether two opaque password hashes represent
// the same password. It is supplied by the credential-verification
// collaborator; this subsystem never compares plaintext.
type HashEqualFunc func(storedHash, candidateHash string) bool

// ConstantTimeHashEqual compares two hash strings in constant time.
// Suitable whenever equal passwords produce equal hashes (e.g. salted
// schemes where the salt is derived per account).
func ConstantTimeHashEqual(storedHash, candidateHash string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(candidateHash)) == 1
}

// IsReused reports whether candidate matches any of the recent hashes
// under the supplied equality predicate.
func IsReused(recent []string, candidate string, equal HashEqualFunc) bool {
	for _, h := range recent {
		if equal(h, candidate) {
			return true
		}
	}
	return false
}

// TooSoon reports whether a password change at the given instant would
// violate the minimum-age policy. A nil passwordUpdatedAt means the
// account has no managed change yet and the check is skipped.
func TooSoon(passwordUpdatedAt *time.Time, at time.Time, minimumAge time.Duration) bool {
	if passwordUpdatedAt == nil {
		return false
	}
	return at.Sub(*passwordUpdatedAt) < minimumAge
}
