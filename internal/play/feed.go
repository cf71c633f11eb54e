// internal/play/feed.go
//
// Event feed of a play session.
// Responsibilities:
//   - Number every event with a per-session sequence.
//   - Keep a bounded backlog so pollers can catch up with Since(seq).
//   - Fan events out to live subscribers (websocket streams) without ever blocking
//     the engine: a subscriber that falls behind is dropped and must resubscribe.

package play

import (
	"sync"
	"time"
)

// DefaultBacklog is how many events a feed keeps for polling clients.
const DefaultBacklog = 256

// Event is one thing that happened in a session.
type Event struct {
	Seq  uint64    `json:"seq"`
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

type Feed struct {
	mu      sync.Mutex
	seq     uint64
	backlog []Event
	max     int
	subs    map[chan Event]struct{}
	closed  bool
}

// NewFeed returns a feed keeping up to backlog events (DefaultBacklog when <= 0).
func NewFeed(backlog int) *Feed {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Feed{max: backlog, subs: make(map[chan Event]struct{})}
}

// Publish appends an event and hands it to every subscriber.
func (f *Feed) Publish(typ string, data any) Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	ev := Event{Seq: f.seq, Type: typ, Data: data, At: time.Now().UTC()}
	if f.closed {
		return ev
	}
	f.backlog = append(f.backlog, ev)
	if over := len(f.backlog) - f.max; over > 0 {
		f.backlog = append([]Event(nil), f.backlog[over:]...)
	}
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
			delete(f.subs, ch)
			close(ch)
		}
	}
	return ev
}

// Since returns the backlog events with a sequence above seq, oldest first.
func (f *Feed) Since(seq uint64) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Event{}
	for _, ev := range f.backlog {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// Seq returns the sequence number of the latest event.
func (f *Feed) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// Subscribe returns a channel receiving every event published from now on.
// The channel is closed by cancel, by Close, or when the subscriber falls more
// than buf events behind.
func (f *Feed) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan Event, buf)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close ends every subscription. Publishing after Close only bumps the sequence.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}
