// internal/play/session.go
//
// A play session binds one mini-game engine to an event feed.
// Responsibilities:
//   - Build the engine matching the payload kind and start it.
//   - Turn every collaborator call of the engine into a feed event.
//   - Dispatch player actions (answer, next, restart, guess, flip).
//   - Expose a combined snapshot for polling clients.

package play

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/minigames/internal/clock"
	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/hangman"
	"github.com/robalobadob/minigames/internal/memory"
	"github.com/robalobadob/minigames/internal/payload"
	"github.com/robalobadob/minigames/internal/quiz"
)

var (
	ErrUnknownAction = errors.New("play: unknown action")
	// ErrIgnored is returned for input the engine drops silently: late or
	// duplicate answers, or "next" while nothing is waiting.
	ErrIgnored = errors.New("play: action ignored")
)

// Action types.
const (
	ActAnswer  = "answer"
	ActNext    = "next"
	ActRestart = "restart"
	ActGuess   = "guess"
	ActFlip    = "flip"
)

// Action is one player input.
//   - answer: Index is the display index of the chosen option.
//   - flip:   Index is the board position of the card.
//   - guess:  Letter is the guessed letter.
type Action struct {
	Type   string `json:"type"`
	Index  int    `json:"index"`
	Letter string `json:"letter,omitempty"`
}

// Options configures a session. Zero values fall back to package defaults.
type Options struct {
	// ID names the session; a new one is generated when empty.
	ID           string
	AssignmentID string
	UserID       string

	Quiz    quiz.Config
	Hangman hangman.Config
	Memory  memory.Config

	Scheduler clock.Scheduler
	Reporter  game.Reporter

	QuizShuffler   quiz.Shuffler
	MemoryShuffler memory.Shuffler
	// PickWord chooses the hangman word from a word list.
	PickWord func([]string) string
	Backlog  int
}

// Session is one playthrough.
type Session struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignmentId,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	Kind         game.Kind `json:"kind"`
	Created      time.Time `json:"created"`

	game    *payload.Game
	feed    *Feed
	quiz    *quiz.Engine
	hangman *hangman.Engine
	memory  *memory.Engine
}

// Snapshot is the state of a session for polling clients.
type Snapshot struct {
	ID      string         `json:"id"`
	Kind    game.Kind      `json:"kind"`
	Title   string         `json:"title,omitempty"`
	Seq     uint64         `json:"seq"`
	Ended   bool           `json:"ended"`
	Quiz    *quiz.State    `json:"quiz,omitempty"`
	Hangman *hangman.State `json:"hangman,omitempty"`
	Memory  *memory.State  `json:"memory,omitempty"`
}

// New builds and starts a session for g.
func New(g *payload.Game, opts Options) (*Session, error) {
	if opts.ID == "" {
		opts.ID = game.NewID()
	}
	s := &Session{
		ID:           opts.ID,
		AssignmentID: opts.AssignmentID,
		UserID:       opts.UserID,
		Kind:         g.Kind,
		Created:      time.Now().UTC(),
		game:         g,
		feed:         NewFeed(opts.Backlog),
	}

	cues := game.CuerFunc(func(c game.Cue) { s.feed.Publish("cue", c) })
	reporter := game.ReporterFunc(func(ctx context.Context, o game.Outcome) error {
		s.feed.Publish("outcome", o)
		if opts.Reporter != nil {
			return opts.Reporter.Report(ctx, o)
		}
		return nil
	})

	switch g.Kind {
	case game.KindQuiz:
		cfg := opts.Quiz
		if cfg.TimeLimit == 0 && cfg.Lengths == nil {
			cfg = quiz.DefaultConfig()
		}
		var qopts []quiz.Option
		if opts.QuizShuffler != nil {
			qopts = append(qopts, quiz.WithShuffler(opts.QuizShuffler))
		}
		view := quizView{feed: s.feed}
		s.quiz = quiz.New(cfg, opts.Scheduler, quiz.Collaborators{
			Board: view, Display: view, Cues: cues, Reporter: reporter,
		}, qopts...)
		if err := s.quiz.Start(g.Questions, g.Difficulty); err != nil {
			return nil, err
		}

	case game.KindHangman:
		cfg := opts.Hangman
		if cfg.MaxLives == 0 {
			cfg = hangman.DefaultConfig()
		}
		s.hangman = hangman.New(cfg, opts.Scheduler, hangman.Collaborators{
			Display: hangmanView{feed: s.feed}, Cues: cues, Reporter: reporter,
		})
		if err := s.hangman.Start(g.HangmanRound(opts.PickWord)); err != nil {
			return nil, err
		}

	case game.KindMemory:
		cfg := opts.Memory
		if cfg == (memory.Config{}) {
			cfg = memory.DefaultConfig()
		}
		var mopts []memory.Option
		if opts.MemoryShuffler != nil {
			mopts = append(mopts, memory.WithShuffler(opts.MemoryShuffler))
		}
		s.memory = memory.New(cfg, opts.Scheduler, memory.Collaborators{
			Display: memoryView{feed: s.feed}, Cues: cues, Reporter: reporter,
		}, mopts...)
		if err := s.memory.Start(g.Pairs); err != nil {
			return nil, err
		}

	default:
		return nil, payload.ErrUnknownKind
	}
	return s, nil
}

// Feed returns the session's event feed.
func (s *Session) Feed() *Feed { return s.feed }

// Act applies one player action. It returns the immediate result of guesses and
// flips; everything else arrives through the feed.
func (s *Session) Act(a Action) (any, error) {
	switch s.Kind {
	case game.KindQuiz:
		switch a.Type {
		case ActAnswer:
			if !s.quiz.SubmitAnswer(a.Index) {
				return nil, ErrIgnored
			}
			return nil, nil
		case ActNext:
			if !s.quiz.Advance() {
				return nil, ErrIgnored
			}
			return nil, nil
		case ActRestart:
			return nil, s.quiz.Reset()
		}

	case game.KindHangman:
		switch a.Type {
		case ActGuess:
			return s.hangman.Guess(a.Letter)
		case ActRestart:
			return nil, s.hangman.Reset()
		}

	case game.KindMemory:
		switch a.Type {
		case ActFlip:
			return s.memory.Flip(a.Index)
		case ActRestart:
			return nil, s.memory.Reset()
		}
	}
	return nil, fmt.Errorf("%w: %q for %s", ErrUnknownAction, a.Type, s.Kind)
}

// Ended reports whether the game reached its end screen.
func (s *Session) Ended() bool {
	switch {
	case s.quiz != nil:
		return s.quiz.Ended()
	case s.hangman != nil:
		return s.hangman.Ended()
	case s.memory != nil:
		return s.memory.Ended()
	}
	return false
}

// State returns a snapshot of the session.
func (s *Session) State() Snapshot {
	snap := Snapshot{ID: s.ID, Kind: s.Kind, Title: s.game.Title, Seq: s.feed.Seq(), Ended: s.Ended()}
	switch {
	case s.quiz != nil:
		st := s.quiz.Snapshot()
		snap.Quiz = &st
	case s.hangman != nil:
		st := s.hangman.Snapshot()
		snap.Hangman = &st
	case s.memory != nil:
		st := s.memory.Snapshot()
		snap.Memory = &st
	}
	return snap
}

// Close ends the event streams of the session.
func (s *Session) Close() { s.feed.Close() }

// ----------------------------- engine views -------------------------------

type quizView struct{ feed *Feed }

func (v quizView) RenderBoard(length int)      { v.feed.Publish("board", map[string]int{"length": length}) }
func (v quizView) HighlightPosition(index int) { v.feed.Publish("position", map[string]int{"index": index}) }
func (v quizView) ShowQuestion(p quiz.Presentation) {
	v.feed.Publish("question", p)
}
func (v quizView) ShowRemaining(left time.Duration) {
	v.feed.Publish("tick", map[string]float64{"remaining": left.Seconds()})
}
func (v quizView) ShowFeedback(f quiz.Feedback) { v.feed.Publish("feedback", f) }
func (v quizView) ShowResult(r quiz.Result)     { v.feed.Publish("result", r) }

type hangmanView struct{ feed *Feed }

func (v hangmanView) ShowRound(st hangman.State) { v.feed.Publish("round", st) }
func (v hangmanView) ShowGuess(g hangman.Guess)  { v.feed.Publish("guess", g) }
func (v hangmanView) ShowEnd(st hangman.State)   { v.feed.Publish("end", st) }

type memoryView struct{ feed *Feed }

func (v memoryView) ShowDeck(st memory.State) { v.feed.Publish("deck", st) }
func (v memoryView) ShowFlip(f memory.Flip)   { v.feed.Publish("flip", f) }
func (v memoryView) HideCards(a, b int) {
	v.feed.Publish("hide", map[string]int{"a": a, "b": b})
}
func (v memoryView) ShowEnd(st memory.State) { v.feed.Publish("end", st) }
