// internal/daily/daily.go
//
// Deterministic word-of-the-day selection for the daily hangman round.
// Every player gets the same word on the same UTC date; the salt keeps the
// sequence unguessable from the word list alone.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WordIndex returns a deterministic index for a date using HMAC(salt, YYYY-MM-DD) % listLen.
func WordIndex(date time.Time, salt string, listLen int) int {
	if listLen <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for the modulus
	n := binary.BigEndian.Uint64(sum[:8])
	return int(n % uint64(listLen))
}

// Word returns the word of the day from list together with its index.
// An empty list yields ("", 0).
func Word(date time.Time, salt string, list []string) (string, int) {
	if len(list) == 0 {
		return "", 0
	}
	i := WordIndex(date, salt, len(list))
	return list[i], i
}
