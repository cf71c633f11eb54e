package quiz

import (
	"math/rand/v2"
	"time"
)

// Config holds the timing and length rules of a quiz session.
type Config struct {
	TimeLimit     time.Duration // per-question countdown
	Tick          time.Duration // countdown granularity reported to the display
	AnswerSettle  time.Duration // pause after an answer before advancing
	TimeoutSettle time.Duration // pause after a timeout before advancing
	Pacing        time.Duration // pause after advancing before the next question

	Lengths           map[Difficulty]int
	DefaultDifficulty Difficulty

	// ManualAdvance waits for Advance (a "next" action) after every answer except
	// the last one, which always advances on its own.
	ManualAdvance bool
}

// DefaultConfig returns the standard timings: 20s per question, 800ms settle after
// an answer, 600ms after a timeout, 600ms pacing, 5/10/15 questions.
func DefaultConfig() Config {
	return Config{
		TimeLimit:     20 * time.Second,
		Tick:          time.Second,
		AnswerSettle:  800 * time.Millisecond,
		TimeoutSettle: 600 * time.Millisecond,
		Pacing:        600 * time.Millisecond,
		Lengths: map[Difficulty]int{
			Easy:   5,
			Medium: 10,
			Hard:   15,
		},
		DefaultDifficulty: Medium,
	}
}

// Resolve maps unknown difficulties to the default one.
func (c Config) Resolve(d Difficulty) Difficulty {
	if _, ok := c.Lengths[d]; ok {
		return d
	}
	return c.DefaultDifficulty
}

// Length returns how many questions difficulty d plays.
func (c Config) Length(d Difficulty) int {
	if n, ok := c.Lengths[c.Resolve(d)]; ok && n > 0 {
		return n
	}
	return 10
}

// tick returns the countdown step; a non-positive Tick means one step for the
// whole time limit.
func (c Config) tick() time.Duration {
	if c.Tick <= 0 || c.Tick > c.TimeLimit {
		return c.TimeLimit
	}
	return c.Tick
}

// Shuffler returns a permutation of [0,n): element i is the original index of the
// option shown at display position i.
type Shuffler func(n int) []int

// RandomOrder is the default Shuffler.
func RandomOrder(n int) []int { return rand.Perm(n) }

// InOrder keeps options in payload order.
func InOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
