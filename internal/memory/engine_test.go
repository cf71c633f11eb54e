package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/minigames/internal/clock"
	"github.com/robalobadob/minigames/internal/game"
)

type recorder struct {
	decks   []State
	flips   []Flip
	hidden  [][2]int
	ends    []State
	cues    []game.Cue
	reports []game.Outcome
}

func (r *recorder) ShowDeck(s State)   { r.decks = append(r.decks, s) }
func (r *recorder) ShowFlip(f Flip)    { r.flips = append(r.flips, f) }
func (r *recorder) HideCards(a, b int) { r.hidden = append(r.hidden, [2]int{a, b}) }
func (r *recorder) ShowEnd(s State)    { r.ends = append(r.ends, s) }
func (r *recorder) Cue(c game.Cue)     { r.cues = append(r.cues, c) }
func (r *recorder) Report(_ context.Context, o game.Outcome) error {
	r.reports = append(r.reports, o)
	return nil
}

var testPairs = []Pair{
	{Front: "kissa", Back: "cat"},
	{Front: "koira", Back: "dog"},
}

func newTestEngine(t *testing.T) (*Engine, *clock.Manual, *recorder) {
	t.Helper()
	m := clock.NewManual()
	rec := &recorder{}
	e := New(DefaultConfig(), m, Collaborators{Display: rec, Cues: rec, Reporter: rec}, WithShuffler(InOrder))
	return e, m, rec
}

func TestEngine_DealsTwoCardsPerPair(t *testing.T) {
	e, _, rec := newTestEngine(t)
	require.NoError(t, e.Start(testPairs))

	st := e.Snapshot()
	assert.Len(t, st.Cards, 4)
	assert.Equal(t, 2, st.Pairs)
	for _, c := range st.Cards {
		assert.Empty(t, c.Text, "face-down cards hide their text")
	}
	require.Len(t, rec.decks, 1)
}

func TestEngine_StartRejectsNoPairs(t *testing.T) {
	e, _, _ := newTestEngine(t)
	assert.ErrorIs(t, e.Start(nil), ErrNoPairs)
	_, err := e.Flip(0)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, e.Reset(), ErrNotStarted)
}

func TestEngine_MatchStaysFaceUp(t *testing.T) {
	e, m, rec := newTestEngine(t)
	require.NoError(t, e.Start(testPairs))

	f, err := e.Flip(0)
	require.NoError(t, err)
	assert.False(t, f.Second)
	assert.Equal(t, "kissa", f.Text)

	f, err = e.Flip(1)
	require.NoError(t, err)
	assert.True(t, f.Second)
	assert.True(t, f.Match)
	assert.Equal(t, 1, f.Tries)
	assert.Equal(t, 1, f.Found)
	assert.Equal(t, []game.Cue{game.CueCorrect}, rec.cues)

	_, err = e.Flip(2)
	assert.ErrorIs(t, err, ErrLocked)

	m.Advance(300 * time.Millisecond)
	st := e.Snapshot()
	assert.Equal(t, PhasePlaying, st.Phase)
	assert.True(t, st.Cards[0].Matched)
	assert.Equal(t, "cat", st.Cards[1].Text)
}

func TestEngine_MismatchFlipsBack(t *testing.T) {
	e, m, rec := newTestEngine(t)
	require.NoError(t, e.Start(testPairs))

	_, err := e.Flip(0)
	require.NoError(t, err)
	f, err := e.Flip(2)
	require.NoError(t, err)
	assert.False(t, f.Match)
	assert.Equal(t, []game.Cue{game.CueWrong}, rec.cues)

	m.Advance(799 * time.Millisecond)
	assert.Equal(t, PhaseLocked, e.Snapshot().Phase)
	m.Advance(time.Millisecond)

	st := e.Snapshot()
	assert.Equal(t, PhasePlaying, st.Phase)
	assert.False(t, st.Cards[0].Flipped)
	assert.False(t, st.Cards[2].Flipped)
	assert.Equal(t, [][2]int{{0, 2}}, rec.hidden)
	assert.Equal(t, 1, st.Tries)
}

func TestEngine_FlipValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.Start(testPairs))

	_, err := e.Flip(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = e.Flip(4)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = e.Flip(0)
	require.NoError(t, err)
	_, err = e.Flip(0)
	assert.ErrorIs(t, err, ErrFaceUp)
	assert.Zero(t, e.Snapshot().Tries)
}

func TestEngine_WinReportsTries(t *testing.T) {
	e, m, rec := newTestEngine(t)
	require.NoError(t, e.Start(testPairs))

	// one miss, then both pairs
	for _, step := range [][2]int{{0, 2}, {0, 1}, {2, 3}} {
		_, err := e.Flip(step[0])
		require.NoError(t, err)
		_, err = e.Flip(step[1])
		require.NoError(t, err)
		m.Advance(800 * time.Millisecond)
	}

	assert.True(t, e.Ended())
	require.Len(t, rec.reports, 1)
	assert.Equal(t, game.Outcome{Kind: game.KindMemory, Score: 100, Raw: 3, Total: 2, ReachedGoal: true}, rec.reports[0])
	assert.Equal(t, game.CueWin, rec.cues[len(rec.cues)-1])

	_, err := e.Flip(0)
	assert.ErrorIs(t, err, ErrFinished)
}

func TestEngine_StartCancelsPendingWin(t *testing.T) {
	e, m, rec := newTestEngine(t)
	require.NoError(t, e.Start(testPairs[:1]))
	_, _ = e.Flip(0)
	_, _ = e.Flip(1)

	require.NoError(t, e.Reset())
	m.Advance(time.Second)

	assert.Empty(t, rec.reports)
	assert.Equal(t, PhasePlaying, e.Snapshot().Phase)
}

func TestEngine_BrokenShufflerFallsBack(t *testing.T) {
	m := clock.NewManual()
	e := New(DefaultConfig(), m, Collaborators{}, WithShuffler(func(n int) []int { return nil }))
	require.NoError(t, e.Start(testPairs))

	f, err := e.Flip(3)
	require.NoError(t, err)
	assert.Equal(t, "dog", f.Text)
}
