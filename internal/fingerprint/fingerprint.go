// Package fingerprint derives the deduplication identity of a call record.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize collapses all runs of whitespace in s to single spaces and
// trims the ends. Title normalization must happen before hashing so that
// layout differences between crawls do not change the fingerprint.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Make returns the hex SHA-256 of the normalized title joined with the
// link. Two records with the same normalized title and link are the same
// logical document regardless of when they were crawled.
func Make(title, link string) string {
	key := Normalize(title) + "||" + link
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
