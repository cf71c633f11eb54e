// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily hangman round.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start today's round (creates or reuses a session)
//   - GET  /daily/leaderboard → top 20 results for today (or a given date)
//
// Each player (user or anonymous cookie) gets one recorded result per day,
// enforced by the daily_results primary key. Guesses go through the regular
// session endpoints; the result is written when the engine reports its outcome.
// Deterministic word selection is based on date + salt.

package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/internal/daily"
	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/hangman"
	"github.com/robalobadob/minigames/internal/payload"
	"github.com/robalobadob/minigames/internal/words"
)

const dailyTopic = "Päivän sana"

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	salt     string
	now      func() time.Time
	sessions map[string]dailySession // keyed by playerID|date
	mu       sync.Mutex              // guards sessions
}

// dailySession is a live round of one player.
type dailySession struct {
	id   string
	date string
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	s.daily = &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		salt:     s.cfg.Daily.Salt,
		now:      time.Now,
		sessions: make(map[string]dailySession),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", s.daily.handleNew)
		r.Get("/leaderboard", s.daily.handleLeaderboard)
	})
}

// today returns today's date key, word index and word.
func (d *dailyServer) today() (date string, idx int, word string) {
	now := d.now()
	word, idx = daily.Word(now, d.salt, words.List())
	return daily.DateKey(now), idx, word
}

// -----------------------------------------------------------------------------
// /daily/new

// newRes is returned by /daily/new.
type newRes struct {
	SessionID string `json:"sessionId,omitempty"`
	Date      string `json:"date"`
	Played    bool   `json:"played"`
}

// handleNew creates or reuses today's session.
//   - If the player already has a result for today → Played=true.
//   - Otherwise reuse the live session or start a new one.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := d.srv.ownerID(w, r)
	date, idx, word := d.today()
	if word == "" {
		writeError(w, http.StatusServiceUnavailable, "no_words")
		return
	}

	if played, err := d.store.AlreadyPlayed(r.Context(), uid, date); err == nil && played {
		writeJSON(w, http.StatusOK, newRes{Date: date, Played: true})
		return
	}

	key := uid + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()
	if ds, ok := d.sessions[key]; ok {
		if sess, err := d.srv.store.Get(r.Context(), ds.id); err == nil && !sess.Ended() {
			writeJSON(w, http.StatusOK, newRes{SessionID: ds.id, Date: date})
			return
		}
		delete(d.sessions, key)
	}

	maxLives := d.srv.cfg.Games.Hangman.MaxLives
	if maxLives <= 0 {
		maxLives = hangman.DefaultConfig().MaxLives
	}
	start := time.Now()
	report := game.ReporterFunc(func(ctx context.Context, o game.Outcome) error {
		res := daily.Result{
			UserID:    uid,
			Date:      date,
			WordIndex: idx,
			Solved:    o.ReachedGoal,
			Misses:    maxLives - o.Raw,
			ElapsedMs: int(time.Since(start).Milliseconds()),
		}
		if err := d.store.InsertResult(ctx, res); err != nil {
			log.Warn().Err(err).Str("user", uid).Str("date", date).Msg("insert daily result")
		}
		return nil
	})

	g := &payload.Game{Kind: game.KindHangman, Title: dailyTopic, Topic: dailyTopic, Word: word}
	sess, err := d.srv.startSession(r.Context(), sessionSpec{game: g, owner: uid, persist: true, report: report})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "start_failed")
		return
	}
	d.sessions[key] = dailySession{id: sess.ID, date: date}
	writeJSON(w, http.StatusCreated, newRes{SessionID: sess.ID, Date: date})
}

// prune forgets rounds of earlier days and rounds whose session has ended or
// was dropped from the store. It returns how many were removed.
func (d *dailyServer) prune(ctx context.Context) int {
	today := daily.DateKey(d.now())
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for key, ds := range d.sessions {
		if ds.date == today {
			if sess, err := d.srv.store.Get(ctx, ds.id); err == nil && !sess.Ended() {
				continue
			}
		}
		delete(d.sessions, key)
		n++
	}
	return n
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.now())
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if rows == nil {
		rows = []daily.LBRow{}
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
