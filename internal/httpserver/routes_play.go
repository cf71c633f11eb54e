// internal/httpserver/routes_play.go
//
// HTTP routes for play sessions.
//   - POST   /demo/{kind}          → play a bundled demo game (nothing persisted)
//   - POST   /play                 → play a posted game payload
//   - GET    /sessions/{id}        → session snapshot
//   - POST   /sessions/{id}/actions → answer / next / restart / guess / flip
//   - GET    /sessions/{id}/events?since=N → events after sequence N
//   - DELETE /sessions/{id}        → drop the session
//
// Sessions belong to the player that started them (user id or anonymous cookie).
// Persisted sessions get a plays row; when the engine reports an outcome the row
// is finished and a logged-in player's stats are bumped.

package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/assets"
	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/hangman"
	"github.com/robalobadob/minigames/internal/memory"
	"github.com/robalobadob/minigames/internal/payload"
	"github.com/robalobadob/minigames/internal/play"
	"github.com/robalobadob/minigames/internal/store"
)

// sessionSpec describes a session to start.
type sessionSpec struct {
	id           string // generated when empty
	game         *payload.Game
	owner        string
	assignmentID string
	persist      bool          // write a plays row
	report       game.Reporter // extra reporter, after the plays row is finished
	pickWord     func([]string) string
}

// sessionRes is returned when a session starts.
type sessionRes struct {
	SessionID string        `json:"sessionId"`
	State     play.Snapshot `json:"state"`
}

// startSession builds, starts and stores a session.
func (s *Server) startSession(ctx context.Context, spec sessionSpec) (*play.Session, error) {
	id := spec.id
	if id == "" {
		id = game.NewID()
	}
	persist := spec.persist
	extra := spec.report

	opts := s.engineOptions()
	opts.ID = id
	opts.AssignmentID = spec.assignmentID
	opts.UserID = spec.owner
	opts.PickWord = spec.pickWord
	opts.Reporter = game.ReporterFunc(func(ctx context.Context, o game.Outcome) error {
		if persist {
			s.finishPlay(ctx, id, o)
		}
		if extra != nil {
			return extra.Report(ctx, o)
		}
		return nil
	})

	sess, err := play.New(spec.game, opts)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		sess.Close()
		return nil, err
	}
	if persist {
		s.insertPlay(ctx, sess, spec.owner)
	}
	log.Debug().Str("session", id).Str("kind", string(sess.Kind)).Msg("session started")
	return sess, nil
}

// engineOptions maps configured timings onto session options; unset sections
// keep the engine defaults.
func (s *Server) engineOptions() play.Options {
	opts := play.Options{Scheduler: s.sched}
	g := s.cfg.Games
	if g.Quiz.TimeLimit > 0 {
		opts.Quiz = g.QuizConfig()
	}
	if g.Hangman.MaxLives > 0 {
		opts.Hangman = g.HangmanConfig()
	}
	if g.Memory.MatchSettle > 0 || g.Memory.MismatchSettle > 0 {
		opts.Memory = g.MemoryConfig()
	}
	return opts
}

// handleDemo starts a bundled demo game. Demo plays are not recorded.
func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	raw, err := assets.Demo(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_kind")
		return
	}
	g, err := payload.Parse(raw)
	if err != nil {
		log.Error().Err(err).Msg("demo payload")
		writeError(w, http.StatusInternalServerError, "bad_demo")
		return
	}
	owner, _ := s.ownerID(w, r)
	sess, err := s.startSession(r.Context(), sessionSpec{game: g, owner: owner})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "start_failed")
		return
	}
	writeJSON(w, http.StatusCreated, sessionRes{SessionID: sess.ID, State: sess.State()})
}

// handlePlay starts a session for the posted payload.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_body")
		return
	}
	g, err := payload.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, _ := s.ownerID(w, r)
	sess, err := s.startSession(r.Context(), sessionSpec{game: g, owner: owner, persist: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionRes{SessionID: sess.ID, State: sess.State()})
}

// lookupSession loads the session named in the URL if the requester owns it.
// It writes the error response itself and returns nil on failure.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) *play.Session {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return nil
	}
	if !s.owns(r, sess) {
		writeError(w, http.StatusNotFound, "not_found")
		return nil
	}
	return sess
}

// owns reports whether the requester started sess, either logged in or with
// the anonymous cookie it had before logging in.
func (s *Server) owns(r *http.Request, sess *play.Session) bool {
	if me := userFrom(r); me != nil && me.ID == sess.UserID {
		return true
	}
	c, err := r.Cookie(anonCookieName)
	return err == nil && c.Value != "" && c.Value == sess.UserID
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	if sess := s.lookupSession(w, r); sess != nil {
		writeJSON(w, http.StatusOK, sess.State())
	}
}

type actionRes struct {
	Result any           `json:"result,omitempty"`
	State  play.Snapshot `json:"state"`
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	sess := s.lookupSession(w, r)
	if sess == nil {
		return
	}
	var a play.Action
	if err := decodeBody(w, r, &a); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	res, err := sess.Act(a)
	if err != nil {
		writeError(w, actionStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, actionRes{Result: res, State: sess.State()})
}

// actionStatus maps engine errors to HTTP status codes.
func actionStatus(err error) int {
	switch {
	case errors.Is(err, play.ErrUnknownAction),
		errors.Is(err, hangman.ErrInvalidLetter),
		errors.Is(err, memory.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, play.ErrIgnored),
		errors.Is(err, hangman.ErrAlreadyGuessed),
		errors.Is(err, hangman.ErrFinished),
		errors.Is(err, hangman.ErrNotStarted),
		errors.Is(err, memory.ErrLocked),
		errors.Is(err, memory.ErrFaceUp),
		errors.Is(err, memory.ErrFinished),
		errors.Is(err, memory.ErrNotStarted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type eventsRes struct {
	Seq    uint64       `json:"seq"`
	Events []play.Event `json:"events"`
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sess := s.lookupSession(w, r)
	if sess == nil {
		return
	}
	since, err := parseSince(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_since")
		return
	}
	feed := sess.Feed()
	writeJSON(w, http.StatusOK, eventsRes{Seq: feed.Seq(), Events: feed.Since(since)})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	sess := s.lookupSession(w, r)
	if sess == nil {
		return
	}
	if err := s.store.Delete(r.Context(), sess.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func parseSince(r *http.Request) (uint64, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

// ------------------------------- plays rows ---------------------------------

// insertPlay records a started session (best effort).
func (s *Server) insertPlay(ctx context.Context, sess *play.Session, owner string) {
	var userID, anonID any
	if u, err := s.findUserByID(ctx, owner); err == nil {
		userID = u.ID
	} else {
		anonID = owner
	}
	var assignmentID any
	if sess.AssignmentID != "" {
		assignmentID = sess.AssignmentID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plays (id, user_id, anonymous_id, assignment_id, kind, status, started_at)
		 VALUES (?,?,?,?,?,'playing',?)`,
		sess.ID, userID, anonID, assignmentID, string(sess.Kind), sess.Created.Format(time.RFC3339))
	if err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("insert play row")
	}
}

// finishPlay closes the plays row of a session and bumps the owner's stats
// (best effort). Only the first outcome of a session counts.
func (s *Server) finishPlay(ctx context.Context, id string, o game.Outcome) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("finish play: begin")
		return
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE plays SET status='finished', score=?, finished_at=? WHERE id=? AND status='playing'`,
		o.Score, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		log.Warn().Err(err).Str("session", id).Msg("finish play")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return
	}
	var userID *string
	if err := tx.QueryRowContext(ctx, `SELECT user_id FROM plays WHERE id=?`, id).Scan(&userID); err == nil && userID != nil {
		if err := bumpStats(ctx, tx, *userID, o.ReachedGoal); err != nil {
			log.Warn().Err(err).Str("user", *userID).Msg("bump stats")
		}
	}
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("finish play: commit")
	}
}

// playRow is one line of /plays/mine.
type playRow struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	AssignmentID string `json:"assignmentId,omitempty"`
	Status       string `json:"status"`
	Score        *int   `json:"score,omitempty"`
	StartedAt    string `json:"startedAt"`
	FinishedAt   string `json:"finishedAt,omitempty"`
}

// handleMyPlays lists the caller's 50 most recent plays.
func (s *Server) handleMyPlays(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(),
		`SELECT id, kind, COALESCE(assignment_id,''), status, score, started_at, COALESCE(finished_at,'')
		 FROM plays WHERE user_id=? ORDER BY started_at DESC LIMIT 50`, userFrom(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	defer rows.Close()

	out := []playRow{}
	for rows.Next() {
		var p playRow
		if err := rows.Scan(&p.ID, &p.Kind, &p.AssignmentID, &p.Status, &p.Score, &p.StartedAt, &p.FinishedAt); err == nil {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
