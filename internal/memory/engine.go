// internal/memory/engine.go
//
// Memory engine: find every pair on a shuffled board.
// Responsibilities:
//   - Deal two cards per pair through the shuffler.
//   - Accept flips only while the board is open; every second flip is a try.
//   - Keep matched pairs face up, turn mismatches back after MismatchSettle.
//   - Report completion exactly once when the last pair is found.

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/internal/clock"
	"github.com/robalobadob/minigames/internal/game"
)

// Engine runs memory games. Construct with New.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	sched   clock.Scheduler
	collab  Collaborators
	shuffle Shuffler

	pairs []Pair
	deck  []Card
	first int // index of the face-up card waiting for its partner, -1 if none
	tries int
	found int
	phase Phase

	epoch    uint64
	pending  clock.Timer
	effects  []func()
	flushing bool
}

// Option customises an Engine.
type Option func(*Engine)

// WithShuffler replaces the deck shuffler (tests use InOrder).
func WithShuffler(s Shuffler) Option {
	return func(e *Engine) {
		if s != nil {
			e.shuffle = s
		}
	}
}

// New constructs an idle engine.
func New(cfg Config, sched clock.Scheduler, c Collaborators, opts ...Option) *Engine {
	if sched == nil {
		sched = clock.Real()
	}
	e := &Engine{
		cfg:     cfg,
		sched:   sched,
		collab:  c.withDefaults(),
		shuffle: RandomOrder,
		first:   -1,
		phase:   PhaseIdle,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start deals a new board for pairs, replacing any running game.
func (e *Engine) Start(pairs []Pair) error {
	if len(pairs) == 0 {
		return ErrNoPairs
	}

	e.mu.Lock()
	clock.Stop(e.pending)
	e.pending = nil
	e.epoch++

	e.pairs = append([]Pair(nil), pairs...)
	deck := make([]Card, 0, 2*len(pairs))
	for i, p := range pairs {
		deck = append(deck,
			Card{Text: p.Front, PairID: i},
			Card{Text: p.Back, PairID: i},
		)
	}
	order := e.shuffle(len(deck))
	if !isPermutation(order, len(deck)) {
		order = InOrder(len(deck))
	}
	e.deck = make([]Card, len(deck))
	for i, src := range order {
		e.deck[i] = deck[src]
	}
	e.first, e.tries, e.found = -1, 0, 0
	e.phase = PhasePlaying

	log.Debug().Int("pairs", len(pairs)).Msg("memory: game started")

	st := e.stateLocked()
	display := e.collab.Display
	e.emit(func() { display.ShowDeck(st) })
	e.mu.Unlock()
	e.flush()
	return nil
}

// Reset deals the same pairs again.
func (e *Engine) Reset() error {
	e.mu.Lock()
	pairs := e.pairs
	e.mu.Unlock()
	if len(pairs) == 0 {
		return ErrNotStarted
	}
	return e.Start(pairs)
}

// Flip turns card i face up.
func (e *Engine) Flip(i int) (Flip, error) {
	e.mu.Lock()
	f, err := e.flipLocked(i)
	e.mu.Unlock()
	e.flush()
	return f, err
}

func (e *Engine) flipLocked(i int) (Flip, error) {
	switch e.phase {
	case PhaseIdle:
		return Flip{}, ErrNotStarted
	case PhaseLocked:
		return Flip{}, ErrLocked
	case PhaseSettling, PhaseWon:
		return Flip{}, ErrFinished
	}
	if i < 0 || i >= len(e.deck) {
		return Flip{}, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	c := &e.deck[i]
	if c.Flipped || c.Matched {
		return Flip{}, fmt.Errorf("%w: %d", ErrFaceUp, i)
	}
	c.Flipped = true

	display := e.collab.Display
	if e.first < 0 {
		e.first = i
		f := Flip{Index: i, Text: c.Text, Tries: e.tries, Found: e.found}
		e.emit(func() { display.ShowFlip(f) })
		return f, nil
	}

	a := e.first
	e.first = -1
	e.tries++
	e.phase = PhaseLocked
	match := e.deck[a].PairID == c.PairID

	cue := game.CueWrong
	if match {
		cue = game.CueCorrect
		e.deck[a].Matched, c.Matched = true, true
		e.found++
	}
	f := Flip{Index: i, Text: c.Text, Second: true, Match: match, Tries: e.tries, Found: e.found}
	cues := e.collab.Cues
	e.emit(func() {
		display.ShowFlip(f)
		cues.Cue(cue)
	})

	epoch := e.epoch
	switch {
	case match && e.found == len(e.pairs):
		e.phase = PhaseSettling
		e.pending = e.sched.AfterFunc(e.cfg.MatchSettle, func() {
			e.mu.Lock()
			if epoch == e.epoch && e.phase == PhaseSettling {
				e.pending = nil
				e.winLocked()
			}
			e.mu.Unlock()
			e.flush()
		})
	case match:
		e.pending = e.sched.AfterFunc(e.cfg.MatchSettle, func() {
			e.mu.Lock()
			if epoch == e.epoch && e.phase == PhaseLocked {
				e.pending = nil
				e.phase = PhasePlaying
			}
			e.mu.Unlock()
		})
	default:
		e.pending = e.sched.AfterFunc(e.cfg.MismatchSettle, func() {
			e.mu.Lock()
			if epoch == e.epoch && e.phase == PhaseLocked {
				e.pending = nil
				e.deck[a].Flipped, e.deck[i].Flipped = false, false
				e.phase = PhasePlaying
				e.emit(func() { display.HideCards(a, i) })
			}
			e.mu.Unlock()
			e.flush()
		})
	}
	return f, nil
}

func (e *Engine) winLocked() {
	e.phase = PhaseWon
	out := game.Outcome{
		Kind:        game.KindMemory,
		Score:       100,
		Raw:         e.tries,
		Total:       len(e.pairs),
		ReachedGoal: true,
	}
	log.Info().Int("pairs", len(e.pairs)).Int("tries", e.tries).Msg("memory: game won")

	st := e.stateLocked()
	cues, display, reporter := e.collab.Cues, e.collab.Display, e.collab.Reporter
	e.emit(func() {
		cues.Cue(game.CueWin)
		display.ShowEnd(st)
		if err := reporter.Report(context.Background(), out); err != nil {
			log.Warn().Err(err).Int("tries", out.Raw).Msg("memory: completion report failed")
		}
	})
}

// ----------------------------- accessors ----------------------------------

// Snapshot returns a copy of the board as the player sees it.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Ended reports whether every pair was found and the game closed.
func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == PhaseWon
}

func (e *Engine) stateLocked() State {
	st := State{
		Phase: e.phase,
		Cards: make([]CardView, len(e.deck)),
		Pairs: len(e.pairs),
		Found: e.found,
		Tries: e.tries,
	}
	for i, c := range e.deck {
		v := CardView{Flipped: c.Flipped, Matched: c.Matched}
		if c.Flipped || c.Matched {
			v.Text = c.Text
		}
		st.Cards[i] = v
	}
	return st
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
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
