package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/internal/completion"
	"github.com/robalobadob/minigames/internal/generate"
	"github.com/robalobadob/minigames/internal/payload"
)

type generateReq struct {
	generate.Request
	// Assign creates an assignment from the generated game for StudentID (the
	// caller when empty).
	Assign    bool   `json:"assign"`
	StudentID string `json:"studentId"`
}

type generateRes struct {
	Meta       generate.Metadata      `json:"meta"`
	Payload    json.RawMessage        `json:"payload"`
	Assignment *completion.Assignment `json:"assignment,omitempty"`
}

// handleGenerate produces a validated game payload with the configured model.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil {
		writeError(w, http.StatusServiceUnavailable, "generation_disabled")
		return
	}
	var req generateReq
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	res, err := s.gen.Game(r.Context(), req.Request)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(req.Kind)).Msg("generate game")
		writeError(w, generateStatus(err), err.Error())
		return
	}

	out := generateRes{Meta: res.Meta, Payload: res.Payload}
	if req.Assign {
		a, err := s.assign(r.Context(), userFrom(r).ID, createAssignmentReq{
			StudentID: req.StudentID,
			Title:     res.Meta.Title,
			Payload:   res.Payload,
		})
		if err != nil {
			writeError(w, assignStatus(err), err.Error())
			return
		}
		out.Assignment = a
	}
	writeJSON(w, http.StatusOK, out)
}

func generateStatus(err error) int {
	switch {
	case errors.Is(err, generate.ErrEmptyTopic), errors.Is(err, payload.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, generate.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, generate.ErrBadResponse), errors.Is(err, generate.ErrUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
