package play

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/minigames/internal/clock"
	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/hangman"
	"github.com/robalobadob/minigames/internal/memory"
	"github.com/robalobadob/minigames/internal/payload"
	"github.com/robalobadob/minigames/internal/quiz"
)

func eventTypes(evs []Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func quizGame() *payload.Game {
	return &payload.Game{
		Kind:       game.KindQuiz,
		Difficulty: quiz.Easy,
		Questions: []quiz.Question{
			{Prompt: "q1", Options: []string{"a", "b"}, CorrectIndex: 0},
			{Prompt: "q2", Options: []string{"a", "b", "c"}, CorrectIndex: 1},
		},
	}
}

func TestSession_QuizEvents(t *testing.T) {
	m := clock.NewManual()
	var outcomes []game.Outcome
	s, err := New(quizGame(), Options{
		Scheduler:    m,
		QuizShuffler: quiz.InOrder,
		Reporter: game.ReporterFunc(func(_ context.Context, o game.Outcome) error {
			outcomes = append(outcomes, o)
			return nil
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"board", "position", "question", "tick"}, eventTypes(s.Feed().Since(0)))

	seq := s.Feed().Seq()
	_, err = s.Act(Action{Type: ActAnswer, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"cue", "feedback"}, eventTypes(s.Feed().Since(seq)))

	_, err = s.Act(Action{Type: ActAnswer, Index: 0})
	assert.ErrorIs(t, err, ErrIgnored)

	m.Advance(800 * time.Millisecond)
	m.Advance(600 * time.Millisecond)
	_, err = s.Act(Action{Type: ActAnswer, Index: 1})
	require.NoError(t, err)
	m.Advance(800 * time.Millisecond)

	assert.True(t, s.Ended())
	evs := s.Feed().Since(0)
	last := evs[len(evs)-1]
	assert.Equal(t, "outcome", last.Type)
	require.Len(t, outcomes, 1)
	assert.Equal(t, 100, outcomes[0].Score)

	snap := s.State()
	require.NotNil(t, snap.Quiz)
	assert.Nil(t, snap.Hangman)
	assert.True(t, snap.Ended)
	assert.Equal(t, "ended", snap.Quiz.Phase)
	require.NotNil(t, snap.Quiz.Result)
	assert.True(t, snap.Quiz.Result.ReachedGoal)
}

func TestSession_QuizNextAndRestart(t *testing.T) {
	m := clock.NewManual()
	opts := Options{Scheduler: m, QuizShuffler: quiz.InOrder, Quiz: quiz.DefaultConfig()}
	opts.Quiz.ManualAdvance = true
	s, err := New(quizGame(), opts)
	require.NoError(t, err)

	_, err = s.Act(Action{Type: ActNext})
	assert.ErrorIs(t, err, ErrIgnored)

	_, err = s.Act(Action{Type: ActAnswer, Index: 1})
	require.NoError(t, err)
	_, err = s.Act(Action{Type: ActNext})
	require.NoError(t, err)

	_, err = s.Act(Action{Type: ActRestart})
	require.NoError(t, err)
	st := s.State().Quiz
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, "presenting", st.Phase)

	_, err = s.Act(Action{Type: ActFlip})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSession_Hangman(t *testing.T) {
	m := clock.NewManual()
	g := &payload.Game{Kind: game.KindHangman, Topic: "t", Words: []string{"KUU", "SAUNA"}}
	s, err := New(g, Options{Scheduler: m, PickWord: func(ws []string) string { return ws[0] }})
	require.NoError(t, err)

	res, err := s.Act(Action{Type: ActGuess, Letter: "k"})
	require.NoError(t, err)
	guess, ok := res.(hangman.Guess)
	require.True(t, ok)
	assert.Equal(t, "K__", guess.Masked)

	_, err = s.Act(Action{Type: ActGuess, Letter: "k"})
	assert.ErrorIs(t, err, hangman.ErrAlreadyGuessed)

	_, err = s.Act(Action{Type: ActGuess, Letter: "u"})
	require.NoError(t, err)
	m.Advance(300 * time.Millisecond)

	assert.True(t, s.Ended())
	assert.Equal(t, hangman.PhaseWon, s.State().Hangman.Phase)
	types := eventTypes(s.Feed().Since(0))
	assert.Equal(t, []string{"round", "cue", "guess", "cue", "guess", "cue", "end", "outcome"}, types)
}

func TestSession_Memory(t *testing.T) {
	m := clock.NewManual()
	g := &payload.Game{Kind: game.KindMemory, Pairs: []memory.Pair{{Front: "a", Back: "b"}}}
	s, err := New(g, Options{Scheduler: m, MemoryShuffler: memory.InOrder})
	require.NoError(t, err)

	_, err = s.Act(Action{Type: ActFlip, Index: 0})
	require.NoError(t, err)
	res, err := s.Act(Action{Type: ActFlip, Index: 1})
	require.NoError(t, err)
	assert.True(t, res.(memory.Flip).Match)

	m.Advance(300 * time.Millisecond)
	assert.True(t, s.Ended())

	_, err = s.Act(Action{Type: ActGuess, Letter: "A"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSession_RejectsBadContent(t *testing.T) {
	_, err := New(&payload.Game{Kind: game.KindQuiz}, Options{Scheduler: clock.NewManual()})
	assert.ErrorIs(t, err, quiz.ErrNoQuestions)

	_, err = New(&payload.Game{Kind: "chess"}, Options{})
	assert.ErrorIs(t, err, payload.ErrUnknownKind)
}
