// internal/game/types.go
//
// Vocabulary shared by the three mini-game engines.
// Defines:
//   - Kind:     which engine a payload drives (quiz/hangman/memory).
//   - Cue:      feedback cue kinds handed to the sound/feedback collaborator.
//   - Outcome:  what an engine reports exactly once when a playthrough ends.
//   - Cuer / Reporter: the fire-and-forget collaborators every engine calls.

package game

import (
	"context"

	"github.com/google/uuid"
)

// Kind identifies a mini-game.
type Kind string

const (
	KindQuiz    Kind = "quiz"
	KindHangman Kind = "hangman"
	KindMemory  Kind = "memory"
)

// Valid reports whether k names a known mini-game.
func (k Kind) Valid() bool {
	switch k {
	case KindQuiz, KindHangman, KindMemory:
		return true
	}
	return false
}

// Cue is the kind of feedback cue to play.
//   - "correct": accepted right answer / letter / pair.
//   - "wrong":   wrong answer, timeout, missed letter, mismatched pair.
//   - "win":     the goal was reached.
type Cue string

const (
	CueCorrect Cue = "correct"
	CueWrong   Cue = "wrong"
	CueWin     Cue = "win"
)

// Outcome is the completion report of one playthrough.
type Outcome struct {
	Kind        Kind `json:"kind"`
	Score       int  `json:"score"`       // 0..100, what the completion endpoint records
	Raw         int  `json:"raw"`         // correct answers, lives left or tries, per kind
	Total       int  `json:"total"`       // questions / word letters / pairs
	ReachedGoal bool `json:"reachedGoal"` // terminal tile reached / word solved / all pairs found
}

// Cuer plays feedback cues. Fire-and-forget; engines never wait on it.
type Cuer interface {
	Cue(c Cue)
}

// CuerFunc adapts a function to Cuer.
type CuerFunc func(c Cue)

func (f CuerFunc) Cue(c Cue) { f(c) }

// Reporter delivers the completion outcome. Engines log a returned error and move
// on: reporting never changes session state.
type Reporter interface {
	Report(ctx context.Context, o Outcome) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, o Outcome) error

func (f ReporterFunc) Report(ctx context.Context, o Outcome) error { return f(ctx, o) }

// Nop collaborators used when a caller leaves one unset.
var (
	NopCuer     Cuer     = CuerFunc(func(Cue) {})
	NopReporter Reporter = ReporterFunc(func(context.Context, Outcome) error { return nil })
)

// NewID returns a fresh random identifier for sessions and records.
func NewID() string { return uuid.NewString() }
