// internal/httpserver/routes_assignments.go
//
// HTTP routes for assignments (all require auth).
//   - POST /assignments                     → teacher assigns a validated game payload
//   - GET  /assignments                     → caller's assignments, newest first
//   - GET  /assignments/created             → assignments the teacher handed out
//   - GET  /assignments/{id}                → one assignment (student or its teacher)
//   - GET  /assignments/{id}/submissions    → recorded completions (student or its teacher)
//   - POST /assignments/{id}/complete       → student reports a score, gets a receipt
//   - POST /assignments/{id}/play           → student starts a session that reports itself

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/minigames/internal/completion"
	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/payload"
)

func (s *Server) mountAssignments(r chi.Router) {
	r.Route("/assignments", func(r chi.Router) {
		r.With(requireTeacher).Post("/", s.handleCreateAssignment)
		r.Get("/", s.handleListAssignments)
		r.With(requireTeacher).Get("/created", s.handleListCreated)
		r.Get("/{id}", s.handleGetAssignment)
		r.Get("/{id}/submissions", s.handleSubmissions)
		r.Post("/{id}/complete", s.handleComplete)
		r.Post("/{id}/play", s.handlePlayAssignment)
	})
}

type createAssignmentReq struct {
	StudentID string          `json:"studentId"`
	Title     string          `json:"title"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentReq
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	a, err := s.assign(r.Context(), userFrom(r).ID, req)
	if err != nil {
		writeError(w, assignStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

var errUnknownStudent = errors.New("unknown student")

// assign validates req.Payload and creates the assignment on behalf of the
// teacher callerID, for the caller itself when no student is named.
func (s *Server) assign(ctx context.Context, callerID string, req createAssignmentReq) (*completion.Assignment, error) {
	g, err := payload.Parse(req.Payload)
	if err != nil {
		return nil, err
	}
	student := strings.TrimSpace(req.StudentID)
	if student == "" {
		student = callerID
	} else if _, err := s.findUserByID(ctx, student); err != nil {
		return nil, errUnknownStudent
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = g.Title
	}
	if title == "" {
		title = string(g.Kind)
	}
	a := &completion.Assignment{
		StudentID: student,
		CreatedBy: callerID,
		Title:     title,
		Kind:      g.Kind,
		Payload:   req.Payload,
	}
	if err := s.complete.Store().CreateAssignment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func assignStatus(err error) int {
	switch {
	case errors.Is(err, payload.ErrInvalid), errors.Is(err, payload.ErrUnknownKind), errors.Is(err, errUnknownStudent):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	s.writeAssignments(w, r, s.complete.Store().ListAssignments)
}

func (s *Server) handleListCreated(w http.ResponseWriter, r *http.Request) {
	s.writeAssignments(w, r, s.complete.Store().ListCreated)
}

func (s *Server) writeAssignments(w http.ResponseWriter, r *http.Request, list func(context.Context, string) ([]completion.Assignment, error)) {
	out, err := list(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if out == nil {
		out = []completion.Assignment{}
	}
	writeJSON(w, http.StatusOK, out)
}

// ownAssignment loads the URL's assignment for its student, writing the error
// response itself on failure.
func (s *Server) ownAssignment(w http.ResponseWriter, r *http.Request) *completion.Assignment {
	return s.loadAssignment(w, r, false)
}

// viewAssignment is ownAssignment that also admits the teacher who created it.
func (s *Server) viewAssignment(w http.ResponseWriter, r *http.Request) *completion.Assignment {
	return s.loadAssignment(w, r, true)
}

func (s *Server) loadAssignment(w http.ResponseWriter, r *http.Request, creatorToo bool) *completion.Assignment {
	me := userFrom(r)
	a, err := s.complete.Store().GetAssignment(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, completion.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
		return nil
	case err != nil:
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil
	case a.StudentID == me.ID:
	case creatorToo && a.CreatedBy != "" && a.CreatedBy == me.ID:
	default:
		writeError(w, http.StatusForbidden, "forbidden")
		return nil
	}
	return a
}

func (s *Server) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	if a := s.viewAssignment(w, r); a != nil {
		writeJSON(w, http.StatusOK, a)
	}
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	a := s.viewAssignment(w, r)
	if a == nil {
		return
	}
	subs, err := s.complete.Store().Submissions(r.Context(), a.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if subs == nil {
		subs = []completion.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

type completeReq struct {
	Score *int `json:"score"`
}

// handleComplete records a score reported by a client-side game.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeReq
	if err := decodeBody(w, r, &req); err != nil || req.Score == nil {
		writeError(w, http.StatusBadRequest, "score_required")
		return
	}
	rc, err := s.complete.Record(r.Context(), chi.URLParam(r, "id"), userFrom(r).ID, *req.Score)
	switch {
	case errors.Is(err, completion.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, completion.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, completion.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "record_failed")
	default:
		writeJSON(w, http.StatusOK, rc)
	}
}

// handlePlayAssignment starts a session for the assignment. The engine reports
// its outcome straight to the completion service; the receipt is published on
// the session feed as a "receipt" event.
func (s *Server) handlePlayAssignment(w http.ResponseWriter, r *http.Request) {
	a := s.ownAssignment(w, r)
	if a == nil {
		return
	}
	g, err := payload.Parse(a.Payload)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if g.Title == "" {
		g.Title = a.Title
	}

	me := userFrom(r)
	sessionID := game.NewID()
	notify := func(rc completion.Receipt, err error) {
		sess, gerr := s.store.Get(context.Background(), sessionID)
		if gerr != nil {
			return
		}
		if err != nil {
			sess.Feed().Publish("receipt", map[string]string{"error": err.Error()})
			return
		}
		sess.Feed().Publish("receipt", rc)
	}

	sess, err := s.startSession(r.Context(), sessionSpec{
		id:           sessionID,
		game:         g,
		owner:        me.ID,
		assignmentID: a.ID,
		persist:      true,
		report:       s.complete.Reporter(a.ID, me.ID, notify),
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionRes{SessionID: sess.ID, State: sess.State()})
}
