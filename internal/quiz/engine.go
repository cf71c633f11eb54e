// internal/quiz/engine.go
//
// Quiz session engine: one timed multiple-choice playthrough on a progress board.
// Responsibilities:
//   - Keep exactly one question live at a time, with a countdown bound to a token.
//   - Accept exactly one answer (or timeout) per question; score deterministically.
//   - Advance the board only on correct answers; end after the last question.
//   - Report completion exactly once per session.
//
// Concurrency:
//   - All state is guarded by mu. Scheduled callbacks capture the token (question
//     generation) and epoch (Start generation) they were created for and turn into
//     no-ops when either moved on; Timer.Stop is only an optimisation.
//   - Collaborator calls are queued while mu is held and run after it is released.
//     A single flushing goroutine runs them in queue order, so a collaborator may
//     call back into the engine and a Reset racing a settle callback cannot show
//     its new question ahead of the old result.

package quiz

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/internal/clock"
	"github.com/robalobadob/minigames/internal/game"
)

// Engine runs quiz sessions. The zero value is not usable; construct with New.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	sched   clock.Scheduler
	collab  Collaborators
	shuffle Shuffler

	source     []Question // as passed to Start, replayed by Reset
	difficulty Difficulty
	questions  []Question // truncated to the difficulty length

	phase       Phase
	index       int
	score       int
	position    int
	lastCorrect bool
	order       []int // display index -> original option index
	current     *Presentation
	result      *Result
	left        time.Duration

	token uint64 // bumped per presented question, never rewound
	epoch uint64 // bumped per Start

	countdown clock.Timer
	pending   clock.Timer // settle or pacing callback

	effects  []func()
	flushing bool
}

// Option customises an Engine.
type Option func(*Engine)

// WithShuffler replaces the option shuffler (tests use InOrder).
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
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start begins a session with qs at difficulty d, replacing any running session.
// An empty or invalid question list is rejected and leaves the engine untouched.
func (e *Engine) Start(qs []Question, d Difficulty) error {
	if len(qs) == 0 {
		return ErrNoQuestions
	}
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.startLocked(qs, d)
	e.mu.Unlock()
	e.flush()
	return nil
}

// Reset restarts with the question set and difficulty of the last Start.
func (e *Engine) Reset() error {
	e.mu.Lock()
	qs, d := e.source, e.difficulty
	e.mu.Unlock()
	return e.Start(qs, d)
}

// SubmitAnswer answers the live question with the option at display index i.
// Reports whether the answer was accepted; late, duplicate and out-of-range
// submissions are ignored.
func (e *Engine) SubmitAnswer(i int) bool {
	e.mu.Lock()
	ok := e.submitLocked(i)
	e.mu.Unlock()
	e.flush()
	return ok
}

// OnTimeout expires the question presented under token. Stale tokens are ignored.
func (e *Engine) OnTimeout(token uint64) bool {
	e.mu.Lock()
	ok := false
	if token == e.token && e.phase == PhasePresenting {
		clock.Stop(e.countdown)
		e.countdown = nil
		e.timeoutLocked()
		ok = true
	} else {
		log.Debug().Uint64("token", token).Uint64("current", e.token).Str("phase", e.phase.String()).Msg("quiz: stale timeout ignored")
	}
	e.mu.Unlock()
	e.flush()
	return ok
}

// Advance moves past the answered question. Legal only while locked.
func (e *Engine) Advance() bool {
	e.mu.Lock()
	ok := false
	if e.phase == PhaseLocked {
		e.advanceLocked()
		ok = true
	}
	e.mu.Unlock()
	e.flush()
	return ok
}

// ----------------------------- accessors ----------------------------------

func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

func (e *Engine) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

func (e *Engine) Total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.questions)
}

func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == PhaseEnded
}

// Locked reports whether input is closed between an answer and the next question.
func (e *Engine) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == PhaseLocked || e.phase == PhaseAdvancing
}

func (e *Engine) Token() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{
		Phase:      e.phase.String(),
		Difficulty: e.difficulty,
		Index:      e.index,
		Total:      len(e.questions),
		Score:      e.score,
		Position:   e.position,
		Token:      e.token,
	}
	if e.phase == PhasePresenting {
		st.Remaining = e.left.Seconds()
	}
	if e.current != nil && e.phase != PhaseEnded {
		p := *e.current
		p.Options = append([]string(nil), e.current.Options...)
		st.Current = &p
	}
	if e.result != nil {
		r := *e.result
		st.Result = &r
	}
	return st
}

// ----------------------------- state machine ------------------------------

func (e *Engine) startLocked(qs []Question, d Difficulty) {
	e.stopTimersLocked()
	e.epoch++

	d = e.cfg.Resolve(d)
	n := e.cfg.Length(d)
	if n > len(qs) {
		n = len(qs)
	}
	e.source = append([]Question(nil), qs...)
	e.questions = append([]Question(nil), qs[:n]...)
	e.difficulty = d
	e.index, e.score, e.position = 0, 0, 0
	e.lastCorrect = false
	e.order, e.current, e.result = nil, nil, nil
	e.phase = PhaseIdle

	log.Debug().Int("questions", n).Str("difficulty", string(d)).Uint64("epoch", e.epoch).Msg("quiz: session started")

	board := e.collab.Board
	e.emit(func() {
		board.RenderBoard(n)
		board.HighlightPosition(0)
	})
	e.presentLocked()
}

// presentLocked makes questions[index] live with a fresh token and countdown.
func (e *Engine) presentLocked() {
	if e.index >= len(e.questions) {
		e.endLocked()
		return
	}
	q := e.questions[e.index]

	e.order = e.orderFor(len(q.Options))
	opts := make([]string, len(e.order))
	for i, orig := range e.order {
		opts[i] = q.Options[orig]
	}

	e.token++
	e.phase = PhasePresenting
	e.current = &Presentation{
		Token:   e.token,
		Number:  e.index + 1,
		Total:   len(e.questions),
		Prompt:  q.Prompt,
		Options: opts,
	}

	p := *e.current
	display := e.collab.Display
	e.emit(func() { display.ShowQuestion(p) })

	e.left = e.cfg.TimeLimit
	if e.cfg.TimeLimit > 0 {
		left := e.left
		e.emit(func() { display.ShowRemaining(left) })
		e.scheduleTickLocked(e.token)
	}
}

// orderFor asks the shuffler for a permutation and falls back to payload order
// when it returns something that is not one.
func (e *Engine) orderFor(n int) []int {
	order := e.shuffle(n)
	if len(order) != n {
		return InOrder(n)
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return InOrder(n)
		}
		seen[v] = true
	}
	return order
}

func (e *Engine) scheduleTickLocked(token uint64) {
	step := e.cfg.tick()
	if step > e.left {
		step = e.left
	}
	e.countdown = e.sched.AfterFunc(step, func() { e.tick(token, step) })
}

func (e *Engine) tick(token uint64, step time.Duration) {
	e.mu.Lock()
	if token != e.token || e.phase != PhasePresenting {
		e.mu.Unlock()
		return
	}
	e.left -= step
	if e.left < 0 {
		e.left = 0
	}
	left := e.left
	display := e.collab.Display
	e.emit(func() { display.ShowRemaining(left) })
	if left <= 0 {
		e.countdown = nil
		e.timeoutLocked()
	} else {
		e.scheduleTickLocked(token)
	}
	e.mu.Unlock()
	e.flush()
}

func (e *Engine) submitLocked(i int) bool {
	if e.phase != PhasePresenting {
		log.Debug().Int("option", i).Str("phase", e.phase.String()).Msg("quiz: answer ignored")
		return false
	}
	if i < 0 || i >= len(e.order) {
		log.Debug().Int("option", i).Int("options", len(e.order)).Msg("quiz: answer out of range ignored")
		return false
	}
	clock.Stop(e.countdown)
	e.countdown = nil
	e.phase = PhaseLocked

	q := e.questions[e.index]
	correct := e.order[i] == q.CorrectIndex
	if correct {
		e.score++
	}
	e.lastCorrect = correct

	cue := game.CueWrong
	if correct {
		cue = game.CueCorrect
	}
	fb := Feedback{
		Token:         e.token,
		Chosen:        i,
		Correct:       correct,
		CorrectOption: e.displayIndexOf(q.CorrectIndex),
		Explanation:   q.Explanation,
		Last:          e.isLastLocked(),
	}
	e.feedbackLocked(cue, fb)
	e.scheduleAdvanceLocked(e.cfg.AnswerSettle)
	return true
}

func (e *Engine) timeoutLocked() {
	e.phase = PhaseLocked
	e.lastCorrect = false

	q := e.questions[e.index]
	fb := Feedback{
		Token:         e.token,
		Chosen:        -1,
		CorrectOption: e.displayIndexOf(q.CorrectIndex),
		TimedOut:      true,
		Explanation:   q.Explanation,
		Last:          e.isLastLocked(),
	}
	e.feedbackLocked(game.CueWrong, fb)
	e.scheduleAdvanceLocked(e.cfg.TimeoutSettle)
}

func (e *Engine) feedbackLocked(cue game.Cue, fb Feedback) {
	cues, display := e.collab.Cues, e.collab.Display
	e.emit(func() {
		cues.Cue(cue)
		display.ShowFeedback(fb)
	})
}

// scheduleAdvanceLocked arms the settle callback for the answered question.
func (e *Engine) scheduleAdvanceLocked(settle time.Duration) {
	if e.cfg.ManualAdvance && !e.isLastLocked() {
		return
	}
	token, epoch := e.token, e.epoch
	e.pending = e.sched.AfterFunc(settle, func() {
		e.mu.Lock()
		if token == e.token && epoch == e.epoch && e.phase == PhaseLocked {
			e.advanceLocked()
		}
		e.mu.Unlock()
		e.flush()
	})
}

func (e *Engine) advanceLocked() {
	clock.Stop(e.pending)
	e.pending = nil

	if e.lastCorrect {
		e.position++
	}
	e.index++

	pos := e.position
	board := e.collab.Board
	e.emit(func() { board.HighlightPosition(pos) })

	if e.index >= len(e.questions) {
		e.endLocked()
		return
	}

	e.phase = PhaseAdvancing
	epoch := e.epoch
	e.pending = e.sched.AfterFunc(e.cfg.Pacing, func() {
		e.mu.Lock()
		if epoch == e.epoch && e.phase == PhaseAdvancing {
			e.pending = nil
			e.presentLocked()
		}
		e.mu.Unlock()
		e.flush()
	})
}

func (e *Engine) endLocked() {
	e.stopTimersLocked()
	e.phase = PhaseEnded

	total := len(e.questions)
	r := Result{
		Score:       e.score,
		Total:       total,
		Position:    e.position,
		ReachedGoal: total > 0 && e.position >= total,
		Difficulty:  e.difficulty,
	}
	if total > 0 {
		r.Percent = int(math.Round(float64(e.score) * 100 / float64(total)))
	}
	e.result = &r

	log.Info().Int("score", r.Score).Int("total", r.Total).Int("percent", r.Percent).Bool("goal", r.ReachedGoal).Msg("quiz: session ended")

	cues, display, reporter := e.collab.Cues, e.collab.Display, e.collab.Reporter
	e.emit(func() {
		if r.ReachedGoal {
			cues.Cue(game.CueWin)
		}
		display.ShowResult(r)
		if err := reporter.Report(context.Background(), r.Outcome()); err != nil {
			log.Warn().Err(err).Int("score", r.Percent).Msg("quiz: completion report failed")
		}
	})
}

func (e *Engine) stopTimersLocked() {
	clock.Stop(e.countdown)
	clock.Stop(e.pending)
	e.countdown, e.pending = nil, nil
}

func (e *Engine) isLastLocked() bool { return e.index == len(e.questions)-1 }

func (e *Engine) displayIndexOf(orig int) int {
	for i, v := range e.order {
		if v == orig {
			return i
		}
	}
	return -1
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
