package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/minigames/internal/clock"
	"github.com/robalobadob/minigames/internal/game"
	memgame "github.com/robalobadob/minigames/internal/memory"
	"github.com/robalobadob/minigames/internal/payload"
	"github.com/robalobadob/minigames/internal/play"
)

func newSession(t *testing.T) *play.Session {
	t.Helper()
	g := &payload.Game{Kind: game.KindMemory, Pairs: []memgame.Pair{{Front: "a", Back: "b"}}}
	s, err := play.New(g, play.Options{Scheduler: clock.NewManual()})
	require.NoError(t, err)
	return s
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSession(t)

	_, err := st.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Save(ctx, s))
	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	ch, _ := s.Feed().Subscribe(1)
	require.NoError(t, st.Delete(ctx, s.ID))
	_, open := <-ch
	assert.False(t, open, "delete closes the event stream")
	assert.ErrorIs(t, st.Delete(ctx, s.ID), ErrNotFound)
}

func TestMemoryStorePrune(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	old, fresh := newSession(t), newSession(t)
	old.Created = time.Now().Add(-2 * time.Hour)
	require.NoError(t, st.Save(ctx, old))
	require.NoError(t, st.Save(ctx, fresh))

	assert.Equal(t, 1, st.Prune(ctx, time.Now().Add(-time.Hour)))
	_, err := st.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
