// internal/hangman/engine.go
//
// Hangman engine for a single round.
// Responsibilities:
//   - Validate and apply letter guesses (one letter of A–Z/Å/Ä/Ö, not guessed before).
//   - Reveal every position of a hit; a miss costs one life.
//   - Track state transitions: playing → settling → won/lost.
//   - Report completion exactly once: 100 when solved, 0 when out of lives.
//
// Notes:
//   - Characters that are not letters (spaces, hyphens) are revealed from the start.
//   - The settle callback carries the epoch of its round and is a no-op after a
//     new Start.

package hangman

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/internal/clock"
	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/words"
)

// Engine runs hangman rounds. Construct with New.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	sched  clock.Scheduler
	collab Collaborators

	round    Round
	word     []rune
	revealed []bool
	guessed  map[rune]bool
	lives    int
	phase    Phase

	epoch    uint64
	pending  clock.Timer
	effects  []func()
	flushing bool
}

// New constructs an idle engine.
func New(cfg Config, sched clock.Scheduler, c Collaborators) *Engine {
	if cfg.MaxLives <= 0 {
		cfg.MaxLives = DefaultConfig().MaxLives
	}
	if sched == nil {
		sched = clock.Real()
	}
	return &Engine{
		cfg:    cfg,
		sched:  sched,
		collab: c.withDefaults(),
		phase:  PhaseIdle,
	}
}

// Start begins round r, replacing any running round.
func (e *Engine) Start(r Round) error {
	w := words.Normalize(r.Word)
	if w == "" {
		return ErrNoWord
	}

	e.mu.Lock()
	clock.Stop(e.pending)
	e.pending = nil
	e.epoch++

	e.round = Round{Topic: r.Topic, Word: w}
	e.word = []rune(w)
	e.revealed = make([]bool, len(e.word))
	for i, ch := range e.word {
		e.revealed[i] = !words.IsLetter(ch)
	}
	e.guessed = make(map[rune]bool)
	e.lives = e.cfg.MaxLives
	e.phase = PhasePlaying

	log.Debug().Int("letters", len(e.word)).Str("topic", r.Topic).Msg("hangman: round started")

	st := e.stateLocked()
	display := e.collab.Display
	e.emit(func() { display.ShowRound(st) })
	e.mu.Unlock()
	e.flush()
	return nil
}

// Reset restarts the current round with a fresh board.
func (e *Engine) Reset() error {
	e.mu.Lock()
	r := e.round
	e.mu.Unlock()
	if r.Word == "" {
		return ErrNotStarted
	}
	return e.Start(r)
}

// Guess validates and applies one letter.
//
// Validation rules:
//   - A round must be playing (not idle, settling or finished).
//   - letter must be exactly one letter of the alphabet (case-insensitive).
//   - letter must not have been guessed before.
func (e *Engine) Guess(letter string) (Guess, error) {
	e.mu.Lock()
	g, err := e.guessLocked(letter)
	e.mu.Unlock()
	e.flush()
	return g, err
}

func (e *Engine) guessLocked(letter string) (Guess, error) {
	switch e.phase {
	case PhaseIdle:
		return Guess{}, ErrNotStarted
	case PhasePlaying:
	default:
		return Guess{}, ErrFinished
	}

	letter = strings.ToUpper(strings.TrimSpace(letter))
	r, size := utf8.DecodeRuneInString(letter)
	if size == 0 || size != len(letter) || !words.IsLetter(r) {
		return Guess{}, fmt.Errorf("%w: %q", ErrInvalidLetter, letter)
	}
	if e.guessed[r] {
		return Guess{}, fmt.Errorf("%w: %q", ErrAlreadyGuessed, letter)
	}
	e.guessed[r] = true

	var hits []int
	for i, ch := range e.word {
		if ch == r {
			e.revealed[i] = true
			hits = append(hits, i)
		}
	}

	cue := game.CueCorrect
	if len(hits) == 0 {
		e.lives--
		cue = game.CueWrong
	}

	g := Guess{
		Letter:    letter,
		Hit:       len(hits) > 0,
		Positions: hits,
		Masked:    e.maskedLocked(),
		Lives:     e.lives,
	}
	cues, display := e.collab.Cues, e.collab.Display
	e.emit(func() {
		cues.Cue(cue)
		display.ShowGuess(g)
	})

	switch {
	case e.solvedLocked():
		e.settleLocked(true)
	case e.lives <= 0:
		e.settleLocked(false)
	}
	return g, nil
}

// settleLocked closes input and schedules the end screen.
func (e *Engine) settleLocked(won bool) {
	e.phase = PhaseSettling
	epoch := e.epoch
	e.pending = e.sched.AfterFunc(e.cfg.Settle, func() {
		e.mu.Lock()
		if epoch == e.epoch && e.phase == PhaseSettling {
			e.pending = nil
			e.finishLocked(won)
		}
		e.mu.Unlock()
		e.flush()
	})
}

func (e *Engine) finishLocked(won bool) {
	score := 0
	e.phase = PhaseLost
	if won {
		score = 100
		e.phase = PhaseWon
	}
	letters := 0
	for _, ch := range e.word {
		if words.IsLetter(ch) {
			letters++
		}
	}
	out := game.Outcome{
		Kind:        game.KindHangman,
		Score:       score,
		Raw:         e.lives,
		Total:       letters,
		ReachedGoal: won,
	}
	log.Info().Bool("won", won).Int("lives", e.lives).Msg("hangman: round ended")

	st := e.stateLocked()
	cues, display, reporter := e.collab.Cues, e.collab.Display, e.collab.Reporter
	e.emit(func() {
		if won {
			cues.Cue(game.CueWin)
		}
		display.ShowEnd(st)
		if err := reporter.Report(context.Background(), out); err != nil {
			log.Warn().Err(err).Int("score", out.Score).Msg("hangman: completion report failed")
		}
	})
}

// ----------------------------- accessors ----------------------------------

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Ended reports whether the round reached won or lost.
func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == PhaseWon || e.phase == PhaseLost
}

func (e *Engine) stateLocked() State {
	st := State{
		Phase:    e.phase,
		Topic:    e.round.Topic,
		Masked:   e.maskedLocked(),
		Lives:    e.lives,
		MaxLives: e.cfg.MaxLives,
		Misses:   e.cfg.MaxLives - e.lives,
		Guessed:  make([]string, 0, len(e.guessed)),
	}
	for r := range e.guessed {
		st.Guessed = append(st.Guessed, string(r))
	}
	sort.Slice(st.Guessed, func(i, j int) bool {
		return strings.IndexRune(words.Alphabet, []rune(st.Guessed[i])[0]) <
			strings.IndexRune(words.Alphabet, []rune(st.Guessed[j])[0])
	})
	if e.phase == PhaseLost {
		st.Word = e.round.Word
	}
	return st
}

func (e *Engine) maskedLocked() string {
	var b strings.Builder
	for i, ch := range e.word {
		if e.revealed[i] {
			b.WriteRune(ch)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (e *Engine) solvedLocked() bool {
	for _, ok := range e.revealed {
		if !ok {
			return false
		}
	}
	return true
}

// ----------------------------- effects ------------------------------------

func (e *Engine) emit(f func()) { e.effects = append(e.effects, f) }

// flush runs queued collaborator calls in the order they were queued. One
// goroutine flushes at a time; a caller that finds a flush in progress leaves
// its calls to that goroutine.
func (e *Engine) flush() {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true
	for len(e.effects) > 0 {
		fx := e.effects
		e.effects = nil
		e.mu.Unlock()
		for _, f := range fx {
			f()
		}
		e.mu.Lock()
	}
	e.flushing = false
	e.mu.Unlock()
}
