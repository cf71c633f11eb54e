// internal/memory/types.go
//
// Type definitions for the memory (pair matching) engine.

package memory

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/robalobadob/minigames/internal/game"
)

var (
	ErrNoPairs    = errors.New("memory: no pairs")
	ErrNotStarted = errors.New("memory: no game started")
	ErrFinished   = errors.New("memory: game finished")
	ErrLocked     = errors.New("memory: board locked")
	ErrOutOfRange = errors.New("memory: card out of range")
	ErrFaceUp     = errors.New("memory: card already face up")
)

// Config holds the board timings.
type Config struct {
	MatchSettle    time.Duration // lock after a match (and before the win screen)
	MismatchSettle time.Duration // how long a mismatched pair stays face up
}

// DefaultConfig returns 300ms after a match and 800ms after a mismatch.
func DefaultConfig() Config {
	return Config{
		MatchSettle:    300 * time.Millisecond,
		MismatchSettle: 800 * time.Millisecond,
	}
}

// Pair is two texts that belong together, decided when the payload is read.
type Pair struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Card is one card of the deck.
type Card struct {
	Text    string
	PairID  int
	Flipped bool
	Matched bool
}

// CardView is a card as the player sees it; Text is empty while face down.
type CardView struct {
	Text    string `json:"text,omitempty"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// Phase is the engine's position in the game.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePlaying  Phase = "playing"
	PhaseLocked   Phase = "locked"   // a pair is being resolved
	PhaseSettling Phase = "settling" // last pair found, win screen pending
	PhaseWon      Phase = "won"
)

// Flip describes one accepted flip.
type Flip struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Second bool   `json:"second"` // completed a pair attempt
	Match  bool   `json:"match"`
	Tries  int    `json:"tries"`
	Found  int    `json:"found"`
}

// State is a read-only snapshot of the board.
type State struct {
	Phase Phase      `json:"phase"`
	Cards []CardView `json:"cards"`
	Pairs int        `json:"pairs"`
	Found int        `json:"found"`
	Tries int        `json:"tries"`
}

// Display renders the board.
type Display interface {
	ShowDeck(s State)
	ShowFlip(f Flip)
	// HideCards turns a mismatched pair face down again.
	HideCards(a, b int)
	ShowEnd(s State)
}

// Collaborators groups everything the engine calls out to. Nil members are no-ops.
type Collaborators struct {
	Display  Display
	Cues     game.Cuer
	Reporter game.Reporter
}

type nopDisplay struct{}

func (nopDisplay) ShowDeck(State)     {}
func (nopDisplay) ShowFlip(Flip)      {}
func (nopDisplay) HideCards(int, int) {}
func (nopDisplay) ShowEnd(State)      {}

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

// Shuffler returns a permutation of [0,n): element i is the deck index of the card
// dealt to board position i.
type Shuffler func(n int) []int

// RandomOrder is the default Shuffler.
func RandomOrder(n int) []int { return rand.Perm(n) }

// InOrder deals the deck unshuffled: front and back of pair k at 2k and 2k+1.
func InOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
