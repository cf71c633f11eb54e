// internal/completion/service.go
//
// Records game completions against assignments.
// Rules:
//   - First attempt: a submission is always stored. Hangman and memory are graded
//     right away; a quiz is graded only when the score reaches PassMark.
//   - Already graded quiz: if the last submission passed, nothing changes
//     ("already_completed"). Otherwise the best score is kept and the answer is
//     "success" on a pass, "retry" below it.
//   - Already graded hangman/memory: "already_completed" with the stored score.

package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/internal/game"
)

// DefaultPassMark is the quiz score (percent) that completes an assignment.
const DefaultPassMark = 80

// Receipt statuses.
const (
	ReceiptSuccess          = "success"
	ReceiptAlreadyCompleted = "already_completed"
	ReceiptRetry            = "retry"
)

// Receipt is the answer to one completion report.
type Receipt struct {
	Status    string `json:"status"`
	Score     int    `json:"score"`
	Completed bool   `json:"completed"`
}

type Service struct {
	store    *Store
	PassMark int
	now      func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, PassMark: DefaultPassMark, now: time.Now}
}

// Store returns the underlying assignment store.
func (s *Service) Store() *Store { return s.store }

// Record stores score (0..100) for studentID's assignment and grades it per the
// rules above.
func (s *Service) Record(ctx context.Context, assignmentID, studentID string, score int) (Receipt, error) {
	if score < 0 || score > 100 {
		return Receipt{}, fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, err
	}
	defer func() { _ = tx.Rollback() }()

	a, err := getAssignment(ctx, tx, assignmentID)
	if err != nil {
		return Receipt{}, err
	}
	if a.StudentID != studentID {
		return Receipt{}, ErrForbidden
	}

	now := s.now().UTC()
	var rc Receipt
	if a.Status == StatusGraded {
		rc, err = s.regradeLocked(ctx, tx, a, studentID, score, now)
	} else {
		rc, err = s.firstLocked(ctx, tx, a, studentID, score, now)
	}
	if err != nil {
		return Receipt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Receipt{}, fmt.Errorf("commit completion: %w", err)
	}

	log.Info().
		Str("assignment", assignmentID).
		Str("student", studentID).
		Str("kind", string(a.Kind)).
		Int("score", score).
		Str("status", rc.Status).
		Bool("completed", rc.Completed).
		Msg("game completion recorded")
	return rc, nil
}

func (s *Service) firstLocked(ctx context.Context, q querier, a *Assignment, studentID string, score int, now time.Time) (Receipt, error) {
	completed := true
	if a.Kind == game.KindQuiz {
		completed = score >= s.PassMark
	}
	if completed {
		if err := markGraded(ctx, q, a.ID, now); err != nil {
			return Receipt{}, err
		}
	}
	sub := &Submission{
		AssignmentID: a.ID,
		StudentID:    studentID,
		Score:        score,
		Passed:       completed,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	if err := insertSubmission(ctx, q, sub); err != nil {
		return Receipt{}, err
	}
	return Receipt{Status: ReceiptSuccess, Score: score, Completed: completed}, nil
}

func (s *Service) regradeLocked(ctx context.Context, q querier, a *Assignment, studentID string, score int, now time.Time) (Receipt, error) {
	last, err := lastSubmission(ctx, q, a.ID)
	if err != nil {
		return Receipt{}, err
	}

	if a.Kind != game.KindQuiz {
		stored := 0
		if last != nil {
			stored = last.Score
		}
		return Receipt{Status: ReceiptAlreadyCompleted, Score: stored, Completed: true}, nil
	}

	if last != nil && last.Score >= s.PassMark {
		return Receipt{Status: ReceiptAlreadyCompleted, Score: last.Score, Completed: true}, nil
	}

	passed := score >= s.PassMark
	switch {
	case last == nil:
		sub := &Submission{
			AssignmentID: a.ID,
			StudentID:    studentID,
			Score:        score,
			Passed:       passed,
			SubmittedAt:  now,
			UpdatedAt:    now,
		}
		if err := insertSubmission(ctx, q, sub); err != nil {
			return Receipt{}, err
		}
	case last.Score < score:
		if err := raiseScore(ctx, q, last.ID, score, passed, now); err != nil {
			return Receipt{}, err
		}
	}

	if passed {
		if err := markGraded(ctx, q, a.ID, now); err != nil {
			return Receipt{}, err
		}
		return Receipt{Status: ReceiptSuccess, Score: score, Completed: true}, nil
	}
	return Receipt{Status: ReceiptRetry, Score: score, Completed: false}, nil
}

// Reporter adapts Record to game.Reporter so an engine can report in-process.
// Failures are logged and swallowed; notify, when set, sees every result.
func (s *Service) Reporter(assignmentID, studentID string, notify func(Receipt, error)) game.Reporter {
	return game.ReporterFunc(func(ctx context.Context, o game.Outcome) error {
		rc, err := s.Record(ctx, assignmentID, studentID, o.Score)
		if err != nil {
			log.Warn().Err(err).
				Str("assignment", assignmentID).
				Str("student", studentID).
				Int("score", o.Score).
				Msg("game completion not recorded")
		}
		if notify != nil {
			notify(rc, err)
		}
		return nil
	})
}
