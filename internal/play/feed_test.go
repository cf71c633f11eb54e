package play

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_SinceAndBacklog(t *testing.T) {
	f := NewFeed(3)
	for i := 0; i < 5; i++ {
		f.Publish("tick", i)
	}
	assert.Equal(t, uint64(5), f.Seq())

	evs := f.Since(0)
	require.Len(t, evs, 3, "backlog is bounded")
	assert.Equal(t, uint64(3), evs[0].Seq)

	evs = f.Since(4)
	require.Len(t, evs, 1)
	assert.Equal(t, 4, evs[0].Data)
	assert.Empty(t, f.Since(5))
}

func TestFeed_Subscribe(t *testing.T) {
	f := NewFeed(0)
	ch, cancel := f.Subscribe(4)

	f.Publish("a", nil)
	f.Publish("b", nil)
	assert.Equal(t, "a", (<-ch).Type)
	assert.Equal(t, "b", (<-ch).Type)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestFeed_SlowSubscriberDropped(t *testing.T) {
	f := NewFeed(0)
	ch, cancel := f.Subscribe(1)
	defer cancel()

	f.Publish("a", nil)
	f.Publish("b", nil) // buffer full: subscriber dropped

	ev, open := <-ch
	assert.True(t, open)
	assert.Equal(t, "a", ev.Type)
	_, open = <-ch
	assert.False(t, open)
}

func TestFeed_Close(t *testing.T) {
	f := NewFeed(0)
	ch, _ := f.Subscribe(1)
	f.Close()
	_, open := <-ch
	assert.False(t, open)

	late, _ := f.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
