// internal/hangman/types.go
//
// Type definitions for the hangman engine.
// Defines:
//   - Round:  the topic and word of one game.
//   - Phase:  playing → settling → won/lost.
//   - Guess / State: what the engine hands its display.
//   - Display / Collaborators: the UI side the engine drives.

package hangman

import (
	"errors"
	"time"

	"github.com/robalobadob/minigames/internal/game"
)

var (
	ErrNoWord         = errors.New("hangman: word has no letters")
	ErrNotStarted     = errors.New("hangman: no round started")
	ErrFinished       = errors.New("hangman: game finished")
	ErrInvalidLetter  = errors.New("hangman: invalid letter")
	ErrAlreadyGuessed = errors.New("hangman: letter already guessed")
)

// Config holds the rules of a round.
type Config struct {
	MaxLives int
	// Settle is the pause between the deciding guess and the end screen.
	Settle time.Duration
}

// DefaultConfig returns 7 lives and a 300ms settle.
func DefaultConfig() Config {
	return Config{MaxLives: 7, Settle: 300 * time.Millisecond}
}

// Round is one word to guess.
type Round struct {
	Topic string `json:"topic"`
	Word  string `json:"word"`
}

// Phase is the engine's position in the round.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePlaying  Phase = "playing"
	PhaseSettling Phase = "settling" // decided, end screen pending
	PhaseWon      Phase = "won"
	PhaseLost     Phase = "lost"
)

// Guess is the judged result of one letter.
type Guess struct {
	Letter    string `json:"letter"`
	Hit       bool   `json:"hit"`
	Positions []int  `json:"positions,omitempty"` // rune positions revealed by a hit
	Masked    string `json:"masked"`
	Lives     int    `json:"lives"`
}

// State is a read-only snapshot of a round. Word is only set once the round is lost.
type State struct {
	Phase    Phase    `json:"phase"`
	Topic    string   `json:"topic"`
	Masked   string   `json:"masked"` // '_' for every unrevealed letter
	Lives    int      `json:"lives"`
	MaxLives int      `json:"maxLives"`
	Misses   int      `json:"misses"`
	Guessed  []string `json:"guessed"`
	Word     string   `json:"word,omitempty"`
}

// Display renders the round.
type Display interface {
	ShowRound(s State)
	ShowGuess(g Guess)
	ShowEnd(s State)
}

// Collaborators groups everything the engine calls out to. Nil members are no-ops.
type Collaborators struct {
	Display  Display
	Cues     game.Cuer
	Reporter game.Reporter
}

type nopDisplay struct{}

func (nopDisplay) ShowRound(State) {}
func (nopDisplay) ShowGuess(Guess) {}
func (nopDisplay) ShowEnd(State)   {}

func (c Collaborators) withDefaults() Collaborators {
	if c.Display == nil {
		c.Display = nopDisplay{}
	}
	if c.Cues == nil {
		c.Cues = game.NopCuer
	}
	if c.Reporter == nil {
		c.Reporter = game.NopReporter
	}
	return c
}
