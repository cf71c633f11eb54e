// internal/payload/payload.go
//
// Game payload parsing.
// Responsibilities:
//   - Detect the game kind from the payload keys (levels → quiz, word/words →
//     hangman, pairs → memory).
//   - Validate the payload against the embedded JSON Schema.
//   - Decode into typed content for the engines; memory pairs are resolved to
//     explicit front/back texts here.

package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/hangman"
	"github.com/robalobadob/minigames/internal/memory"
	"github.com/robalobadob/minigames/internal/quiz"
	"github.com/robalobadob/minigames/internal/words"
)

var (
	ErrUnknownKind = errors.New("payload: unknown game kind")
	ErrInvalid     = errors.New("payload: invalid")
)

// Game is a parsed payload. Only the fields of Kind are set.
type Game struct {
	Kind  game.Kind `json:"kind"`
	Title string    `json:"title,omitempty"`

	// quiz
	Difficulty quiz.Difficulty `json:"difficulty,omitempty"`
	Questions  []quiz.Question `json:"levels,omitempty"`

	// hangman
	Topic string   `json:"topic,omitempty"`
	Word  string   `json:"word,omitempty"`
	Words []string `json:"words,omitempty"`

	// memory
	Pairs []memory.Pair `json:"pairs,omitempty"`
}

// wire is the payload as stored and generated.
type wire struct {
	Title      string            `json:"title"`
	Difficulty string            `json:"difficulty"`
	Levels     []quiz.Question   `json:"levels"`
	Topic      string            `json:"topic"`
	Word       string            `json:"word"`
	Words      []string          `json:"words"`
	Pairs      []json.RawMessage `json:"pairs"`
}

// Detect returns the game kind a decoded payload object describes.
func Detect(obj map[string]any) (game.Kind, error) {
	switch {
	case obj["levels"] != nil:
		return game.KindQuiz, nil
	case obj["word"] != nil, obj["words"] != nil:
		return game.KindHangman, nil
	case obj["pairs"] != nil:
		return game.KindMemory, nil
	}
	return "", ErrUnknownKind
}

// Parse validates raw and decodes it into a Game.
func Parse(raw []byte) (*Game, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	kind, err := Detect(obj)
	if err != nil {
		return nil, err
	}
	if err := validate(obj); err != nil {
		return nil, err
	}

	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	g := &Game{Kind: kind, Title: strings.TrimSpace(w.Title)}
	switch kind {
	case game.KindQuiz:
		for i, q := range w.Levels {
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("%w: level %d: %v", ErrInvalid, i, err)
			}
		}
		g.Difficulty = quiz.Difficulty(strings.ToLower(strings.TrimSpace(w.Difficulty)))
		g.Questions = w.Levels

	case game.KindHangman:
		g.Topic = strings.TrimSpace(w.Topic)
		if w.Word != "" {
			g.Word = words.Normalize(w.Word)
			if g.Word == "" {
				return nil, fmt.Errorf("%w: word %q has no letters", ErrInvalid, w.Word)
			}
		}
		for _, s := range w.Words {
			if n := words.Normalize(s); n != "" {
				g.Words = append(g.Words, n)
			}
		}
		if g.Word == "" && len(g.Words) == 0 {
			return nil, fmt.Errorf("%w: no usable hangman words", ErrInvalid)
		}

	case game.KindMemory:
		for i, p := range w.Pairs {
			pair, err := parsePair(p)
			if err != nil {
				return nil, fmt.Errorf("%w: pair %d: %v", ErrInvalid, i, err)
			}
			g.Pairs = append(g.Pairs, pair)
		}
	}
	return g, nil
}

// pairKeys lists the accepted object forms of a memory pair, in lookup order.
var pairKeys = [][2]string{
	{"front", "back"},
	{"question", "answer"},
	{"term", "definition"},
	{"word", "meaning"},
	{"left", "right"},
}

func parsePair(raw json.RawMessage) (memory.Pair, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if t := bytes.TrimSpace(raw); len(t) > 0 && t[0] == '[' {
		var arr []any
		if err := dec.Decode(&arr); err != nil {
			return memory.Pair{}, err
		}
		if len(arr) != 2 {
			return memory.Pair{}, fmt.Errorf("want 2 elements, got %d", len(arr))
		}
		return memory.Pair{Front: text(arr[0]), Back: text(arr[1])}, nil
	}

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return memory.Pair{}, err
	}
	for _, k := range pairKeys {
		front, okF := obj[k[0]]
		back, okB := obj[k[1]]
		if okF && okB {
			return memory.Pair{Front: text(front), Back: text(back)}, nil
		}
	}
	return memory.Pair{}, fmt.Errorf("unrecognised pair keys")
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// HangmanRound returns the round to play: the payload word, or one picked from
// the word list with pick (words.Pick when nil).
func (g *Game) HangmanRound(pick func([]string) string) hangman.Round {
	if g.Word != "" {
		return hangman.Round{Topic: g.Topic, Word: g.Word}
	}
	if pick == nil {
		pick = words.Pick
	}
	return hangman.Round{Topic: g.Topic, Word: pick(g.Words)}
}

// Encode writes g in the payload format Parse reads. Pairs are written as
// front/back objects.
func Encode(g *Game) ([]byte, error) {
	out := map[string]any{}
	if g.Title != "" {
		out["title"] = g.Title
	}
	switch g.Kind {
	case game.KindQuiz:
		if g.Difficulty != "" {
			out["difficulty"] = g.Difficulty
		}
		out["levels"] = g.Questions
	case game.KindHangman:
		if g.Topic != "" {
			out["topic"] = g.Topic
		}
		if g.Word != "" {
			out["word"] = g.Word
		}
		if len(g.Words) > 0 {
			out["words"] = g.Words
		}
	case game.KindMemory:
		out["pairs"] = g.Pairs
	default:
		return nil, ErrUnknownKind
	}
	return json.Marshal(out)
}
