// assets/embed.go
//
// Files compiled into the server binary.
//   - sql/*.sql:          database migrations, applied in lexical order.
//   - hangman_words.txt:  default hangman word list.
//   - demo/*.json:        demo payloads served without an assignment.
//   - payload.schema.json: JSON Schema every game payload must satisfy.

package assets

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed sql/*.sql hangman_words.txt demo/*.json payload.schema.json
var FS embed.FS

// Migrations returns the migration files rooted at the sql directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		// sql/ is embedded at compile time; Sub only fails on an invalid name
		panic(err)
	}
	return sub
}

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// HangmanWords returns the embedded default word list, as written in the file.
func HangmanWords() ([]string, error) {
	return readLines("hangman_words.txt")
}

// Demo returns the embedded demo payload for a game kind ("quiz", "hangman", "memory").
func Demo(kind string) ([]byte, error) {
	b, err := FS.ReadFile("demo/" + kind + ".json")
	if err != nil {
		return nil, fmt.Errorf("demo %q: %w", kind, err)
	}
	return b, nil
}

// PayloadSchema returns the raw JSON Schema for game payloads.
func PayloadSchema() []byte {
	b, err := FS.ReadFile("payload.schema.json")
	if err != nil {
		panic(err)
	}
	return b
}
