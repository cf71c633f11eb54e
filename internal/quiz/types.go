// internal/quiz/types.go
//
// Type definitions for the quiz session engine.
// Defines:
//   - Question / Difficulty: the question payload and the length table key.
//   - Phase: the session state machine.
//   - Presentation / Feedback / Result: what the engine hands its display.
//   - Board / Display / Collaborators: the UI side the engine drives.

package quiz

import (
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/minigames/internal/game"
)

var (
	ErrNoQuestions     = errors.New("quiz: no questions")
	ErrInvalidQuestion = errors.New("quiz: invalid question")
)

// Difficulty selects how many questions a session plays.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Question is one multiple-choice question. JSON keys match the game payload.
type Question struct {
	Prompt       string   `json:"question"`
	Options      []string `json:"choices"`
	CorrectIndex int      `json:"correct"`
	Explanation  string   `json:"explanation,omitempty"`
}

// Validate rejects questions the engine cannot judge: fewer than two options or a
// correct index outside the option list.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: need at least 2 options, got %d", ErrInvalidQuestion, len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: correct index %d out of range [0,%d)", ErrInvalidQuestion, q.CorrectIndex, len(q.Options))
	}
	return nil
}

// Phase is the engine's position in the session state machine.
type Phase int

const (
	PhaseIdle       Phase = iota // nothing started yet
	PhasePresenting              // a question is live and its countdown runs
	PhaseLocked                  // answer or timeout accepted, settle delay pending
	PhaseAdvancing               // advanced, pacing delay before the next question
	PhaseEnded                   // terminal until Start/Reset
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePresenting:
		return "presenting"
	case PhaseLocked:
		return "locked"
	case PhaseAdvancing:
		return "advancing"
	case PhaseEnded:
		return "ended"
	}
	return "unknown"
}

// Presentation is a question as shown to the player, options in display order.
// It never carries the correct index.
type Presentation struct {
	Token   uint64   `json:"token"`
	Number  int      `json:"number"` // 1-based
	Total   int      `json:"total"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Feedback describes the judged answer (or timeout) for the live question.
// Option indexes are display indexes.
type Feedback struct {
	Token         uint64 `json:"token"`
	Chosen        int    `json:"chosen"` // -1 when the time ran out
	Correct       bool   `json:"correct"`
	CorrectOption int    `json:"correctOption"`
	TimedOut      bool   `json:"timedOut"`
	Explanation   string `json:"explanation,omitempty"`
	Last          bool   `json:"last"`
}

// Result is the final state of a finished session.
// Score and ReachedGoal are kept apart: a session can end short of the goal tile.
type Result struct {
	Score       int        `json:"score"`
	Total       int        `json:"total"`
	Position    int        `json:"position"`
	Percent     int        `json:"percent"`
	ReachedGoal bool       `json:"reachedGoal"`
	Difficulty  Difficulty `json:"difficulty"`
}

// Outcome converts r into the completion report.
func (r Result) Outcome() game.Outcome {
	return game.Outcome{
		Kind:        game.KindQuiz,
		Score:       r.Percent,
		Raw:         r.Score,
		Total:       r.Total,
		ReachedGoal: r.ReachedGoal,
	}
}

// State is a read-only snapshot of the engine.
type State struct {
	Phase      string        `json:"phase"`
	Difficulty Difficulty    `json:"difficulty"`
	Index      int           `json:"index"`
	Total      int           `json:"total"`
	Score      int           `json:"score"`
	Position   int           `json:"position"`
	Token      uint64        `json:"token"`
	Remaining  float64       `json:"remaining"` // seconds left on the live question
	Current    *Presentation `json:"current,omitempty"`
	Result     *Result       `json:"result,omitempty"`
}

// Board draws the progress board.
type Board interface {
	RenderBoard(length int)
	HighlightPosition(index int)
}

// Display renders questions, the countdown, answer feedback and the end screen.
type Display interface {
	ShowQuestion(p Presentation)
	ShowRemaining(left time.Duration)
	ShowFeedback(f Feedback)
	ShowResult(r Result)
}

// Collaborators groups everything the engine calls out to. Nil members are no-ops.
type Collaborators struct {
	Board    Board
	Display  Display
	Cues     game.Cuer
	Reporter game.Reporter
}

type nopBoard struct{}

func (nopBoard) RenderBoard(int)       {}
func (nopBoard) HighlightPosition(int) {}

type nopDisplay struct{}

func (nopDisplay) ShowQuestion(Presentation)   {}
func (nopDisplay) ShowRemaining(time.Duration) {}
func (nopDisplay) ShowFeedback(Feedback)       {}
func (nopDisplay) ShowResult(Result)           {}

func (c Collaborators) withDefaults() Collaborators {
	if c.Board == nil {
		c.Board = nopBoard{}
	}
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
