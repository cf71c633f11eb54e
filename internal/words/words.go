// internal/words/words.go
//
// Word list management for hangman rounds.
//
// Responsibilities:
//   - Load the hangman word list from an environment-provided file or fall back to
//     the embedded default list.
//   - Normalise words to the Finnish upper-case alphabet (A–Z, Å, Ä, Ö).
//   - Supply utility functions like RandomWord, Pick, IsLetter and Stats.
//
// Initialization behavior (Init):
//   1. If HANGMAN_WORDS_FILE is set, load words from that file.
//   2. Otherwise fall back to the embedded assets/hangman_words.txt.
//
// Environment variables:
//   HANGMAN_WORDS_FILE=/path/to/words.txt
//
// Constraints:
//   • One word (or short phrase) per line; blank lines and #comments are skipped.
//   • Words are normalised to upper case; entries without any letter are dropped.
//   • Initialization is run once (sync.Once).

package words

import (
	"bufio"
	"crypto/rand"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/robalobadob/minigames/assets"
)

// Alphabet is the set of guessable letters, in keyboard order.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZÅÄÖ"

var ErrEmptyList = errors.New("words: word list is empty")

var (
	initOnce   sync.Once
	list       []string
	initialErr error
)

// Init loads the word list exactly once.
// Returns an error if the list ends up empty.
func Init() error {
	initOnce.Do(func() {
		var err error
		if path := os.Getenv("HANGMAN_WORDS_FILE"); path != "" {
			list, err = readWordFile(path)
		} else {
			var lines []string
			lines, err = assets.HangmanWords()
			list = normalizeAll(lines)
		}
		if err != nil {
			initialErr = err
			return
		}
		if len(list) == 0 {
			initialErr = ErrEmptyList
		}
	})
	return initialErr
}

// readWordFile loads one word per line from a file and normalises it.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		lines = append(lines, s)
	}
	return normalizeAll(lines), sc.Err()
}

func normalizeAll(lines []string) []string {
	var out []string
	for _, l := range lines {
		if w := Normalize(l); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Normalize upper-cases s and keeps letters of the alphabet plus single spaces and
// hyphens between them. It returns "" when no guessable letter is left.
func Normalize(s string) string {
	var b strings.Builder
	letters := 0
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch {
		case IsLetter(r):
			b.WriteRune(r)
			letters++
		case unicode.IsSpace(r):
			if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteRune(' ')
			}
		case r == '-':
			b.WriteRune(r)
		}
	}
	if letters == 0 {
		return ""
	}
	return strings.TrimSpace(b.String())
}

// IsLetter reports whether r is a guessable upper-case letter.
func IsLetter(r rune) bool {
	return strings.ContainsRune(Alphabet, r)
}

// Pick returns a cryptographically random element of ws, or "" for an empty list.
func Pick(ws []string) string {
	if len(ws) == 0 {
		return ""
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(ws))))
	if err != nil {
		return ws[0]
	}
	return ws[nBig.Int64()]
}

// RandomWord returns a random word from the loaded list.
// If the list is not loaded yet or empty, falls back to "KISSA".
func RandomWord() string {
	if w := Pick(list); w != "" {
		return w
	}
	return "KISSA"
}

// List returns the loaded word list.
func List() []string { return list }

// Stats returns the number of loaded words.
func Stats() int { return len(list) }
