// internal/completion/store.go
//
// SQLite persistence for assignments and their submissions.
// Responsibilities:
//   - Create, fetch and list game assignments, by student or by the teacher
//     who handed them out.
//   - Read the latest submission of an assignment, insert new ones, raise scores.
//   - Flip an assignment to graded.
//
// Timestamps are stored as fixed-width RFC3339 text in UTC.

package completion

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/minigames/internal/game"
)

var (
	ErrNotFound     = errors.New("completion: assignment not found")
	ErrForbidden    = errors.New("completion: assignment belongs to another student")
	ErrInvalidScore = errors.New("completion: score must be within 0..100")
)

// Status is the grading state of an assignment.
type Status string

const (
	StatusAssigned Status = "assigned"
	StatusGraded   Status = "graded"
)

// Assignment is one game handed to a student.
type Assignment struct {
	ID        string          `json:"id"`
	StudentID string          `json:"studentId"`
	CreatedBy string          `json:"createdBy,omitempty"`
	Title     string          `json:"title"`
	Kind      game.Kind       `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	GradedAt  *time.Time      `json:"gradedAt,omitempty"`
}

// Submission is one recorded completion.
type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignmentId"`
	StudentID    string    `json:"studentId"`
	Score        int       `json:"score"`
	Passed       bool      `json:"passed"`
	SubmittedAt  time.Time `json:"submittedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// CreateAssignment inserts a; ID, Status and CreatedAt are filled in when empty.
func (s *Store) CreateAssignment(ctx context.Context, a *Assignment) error {
	if a.ID == "" {
		a.ID = game.NewID()
	}
	if a.Status == "" {
		a.Status = StatusAssigned
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (id, student_id, created_by, title, kind, payload, status, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.StudentID, a.CreatedBy, a.Title, string(a.Kind), string(a.Payload), string(a.Status), formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// GetAssignment returns the assignment with id or ErrNotFound.
func (s *Store) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	return getAssignment(ctx, s.db, id)
}

func getAssignment(ctx context.Context, q querier, id string) (*Assignment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, student_id, created_by, title, kind, payload, status, created_at, COALESCE(graded_at,'')
		 FROM assignments WHERE id=?`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAssignments returns a student's assignments, newest first.
func (s *Store) ListAssignments(ctx context.Context, studentID string) ([]Assignment, error) {
	return s.listAssignments(ctx, "student_id", studentID)
}

// ListCreated returns the assignments a teacher handed out, newest first.
func (s *Store) ListCreated(ctx context.Context, teacherID string) ([]Assignment, error) {
	return s.listAssignments(ctx, "created_by", teacherID)
}

// listAssignments filters on column, which is student_id or created_by.
func (s *Store) listAssignments(ctx context.Context, column, id string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, created_by, title, kind, payload, status, created_at, COALESCE(graded_at,'')
		 FROM assignments WHERE `+column+`=? ORDER BY created_at DESC LIMIT 100`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Submissions returns every submission of an assignment, oldest first.
func (s *Store) Submissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assignment_id, student_id, score, passed, submitted_at, updated_at
		 FROM submissions WHERE assignment_id=? ORDER BY submitted_at ASC, rowid ASC`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func lastSubmission(ctx context.Context, q querier, assignmentID string) (*Submission, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, assignment_id, student_id, score, passed, submitted_at, updated_at
		 FROM submissions WHERE assignment_id=? ORDER BY submitted_at DESC, rowid DESC LIMIT 1`, assignmentID)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func insertSubmission(ctx context.Context, q querier, sub *Submission) error {
	if sub.ID == "" {
		sub.ID = game.NewID()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO submissions (id, assignment_id, student_id, score, passed, submitted_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)`,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.Score, sub.Passed,
		formatTime(sub.SubmittedAt), formatTime(sub.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func raiseScore(ctx context.Context, q querier, id string, score int, passed bool, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE submissions SET score=?, passed=?, updated_at=? WHERE id=?`,
		score, passed, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

func markGraded(ctx context.Context, q querier, id string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE assignments SET status=?, graded_at=? WHERE id=?`,
		string(StatusGraded), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("grade assignment: %w", err)
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanAssignment(sc scanner) (*Assignment, error) {
	var (
		a                  Assignment
		kind, status       string
		payload            string
		created, gradedStr string
	)
	if err := sc.Scan(&a.ID, &a.StudentID, &a.CreatedBy, &a.Title, &kind, &payload, &status, &created, &gradedStr); err != nil {
		return nil, err
	}
	a.Kind = game.Kind(kind)
	a.Status = Status(status)
	a.Payload = json.RawMessage(payload)
	a.CreatedAt = parseTime(created)
	if gradedStr != "" {
		t := parseTime(gradedStr)
		a.GradedAt = &t
	}
	return &a, nil
}

func scanSubmission(sc scanner) (*Submission, error) {
	var (
		sub            Submission
		submitted, upd string
	)
	if err := sc.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &sub.Score, &sub.Passed, &submitted, &upd); err != nil {
		return nil, err
	}
	sub.SubmittedAt = parseTime(submitted)
	sub.UpdatedAt = parseTime(upd)
	return &sub, nil
}

// timeLayout is fixed width so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
