// internal/httpserver/routes_ws.go
//
// Live session stream over a websocket: GET /sessions/{id}/ws?since=N.
//   - Server → client: every feed event as JSON, starting with the backlog
//     after N, then {"type":"reply"} / {"type":"error"} answers to actions.
//   - Client → server: play.Action messages.
//
// One goroutine writes (events, replies, pings); the handler goroutine reads.
// The stream ends when the client leaves, the session is dropped, or the
// subscriber falls behind the feed.

package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/internal/play"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 4096
)

// wsMessage is one server → client frame that is not a feed event.
type wsMessage struct {
	Type   string         `json:"type"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	State  *play.Snapshot `json:"state,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := make(map[string]bool, len(s.cfg.HTTP.ClientOrigins))
	for _, o := range s.cfg.HTTP.ClientOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin] || allowed["*"]
		},
	}
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sess := s.lookupSession(w, r)
	if sess == nil {
		return
	}
	since, err := parseSince(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_since")
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws upgrade")
		return
	}
	defer conn.Close()

	// Subscribe before reading the backlog so nothing falls in between; the
	// writer skips events it already sent.
	events, cancel := sess.Feed().Subscribe(0)
	defer cancel()
	backlog := sess.Feed().Since(since)

	replies := make(chan wsMessage, 8)
	done := make(chan struct{})
	go s.wsWriter(conn, backlog, events, replies, done)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var a play.Action
		if err := conn.ReadJSON(&a); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session", sess.ID).Msg("ws read")
			}
			break
		}
		msg := wsMessage{Type: "reply"}
		if res, err := sess.Act(a); err != nil {
			msg = wsMessage{Type: "error", Error: err.Error()}
		} else {
			st := sess.State()
			msg.Result, msg.State = res, &st
		}
		select {
		case replies <- msg:
		case <-done:
			return
		}
	}
	close(replies)
	<-done
}

// wsWriter owns all writes to conn. When replies is closed, the event channel
// closes or a write fails, it closes conn (unblocking the reader) and done.
func (s *Server) wsWriter(conn *websocket.Conn, backlog []play.Event, events <-chan play.Event, replies <-chan wsMessage, done chan<- struct{}) {
	defer close(done)
	defer conn.Close()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v) == nil
	}

	var last uint64
	for _, ev := range backlog {
		if !write(ev) {
			return
		}
		last = ev.Seq
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"),
					time.Now().Add(wsWriteWait))
				return
			}
			if ev.Seq <= last {
				continue
			}
			if !write(ev) {
				return
			}
			last = ev.Seq
		case msg, ok := <-replies:
			if !ok {
				return
			}
			if !write(msg) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
