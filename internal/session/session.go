// Package session implements the practice-session engine: a frozen, ordered
// question list resolved once at creation, then navigated, answered, paused
// and resumed against a transactional session store.
package session

import (
	"fmt"
	"time"

	"github.com/examtrail/pyqbank/internal/catalog"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Filter selects the question set at session creation. The hierarchy scope is
// mandatory; everything else refines. It is evaluated exactly once — later
// catalog changes never affect an existing session.
type Filter struct {
	catalog.QuestionFilter

	// ShuffleQuestions randomizes the frozen order once at creation.
	ShuffleQuestions bool `json:"shuffle_questions,omitempty"`
}

// Validate checks that the filter carries a usable hierarchy scope.
func (f Filter) Validate() error {
	if f.Scope.IsZero() || f.Scope.ID == "" {
		return fmt.Errorf("%w: hierarchy scope is required", ErrInvalidFilter)
	}
	if _, err := catalog.ParseLevel(string(f.Scope.Level)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if f.YearFrom != 0 && f.YearTo != 0 && f.YearFrom > f.YearTo {
		return fmt.Errorf("%w: year range %d-%d is inverted", ErrInvalidFilter, f.YearFrom, f.YearTo)
	}
	return nil
}

// Response is a learner's answer to one question in a session. One response
// per question; resubmission overwrites in place but keeps the first ID.
type Response struct {
	ID          string    `json:"id"`
	QuestionID  string    `json:"question_id"`
	UserAnswer  []string  `json:"user_answer"`
	IsCorrect   bool      `json:"is_correct"`
	TimeTaken   int       `json:"time_taken_seconds"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Session is one practice run over a frozen question list.
type Session struct {
	ID               string   `json:"id"`
	UserID           string   `json:"user_id"`
	Name             string   `json:"name"`
	Filter           Filter   `json:"filters"`
	QuestionIDs      []string `json:"question_ids"`
	TimeLimitMinutes int      `json:"time_limit_minutes,omitempty"`

	Status       Status `json:"status"`
	CurrentIndex int    `json:"current_index"`

	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    time.Time  `json:"started_at"`
	LastActivity time.Time  `json:"last_activity"`
	PausedAt     *time.Time `json:"paused_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// PausedDuration accumulates completed pause intervals. Elapsed-time
	// accounting subtracts it (plus the open interval while paused).
	PausedDuration time.Duration `json:"paused_duration,omitempty"`

	// Responses is keyed by question id; every key is a member of QuestionIDs.
	Responses map[string]Response `json:"responses,omitempty"`

	// Version backs the store's compare-and-swap. Incremented on every write.
	Version int64 `json:"version"`
}

// TotalQuestions returns the frozen question count.
func (s *Session) TotalQuestions() int { return len(s.QuestionIDs) }

// Attempted returns the number of questions with a response.
func (s *Session) Attempted() int { return len(s.Responses) }

// Correct returns the number of correct responses.
func (s *Session) Correct() int {
	n := 0
	for _, r := range s.Responses {
		if r.IsCorrect {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so store callers can mutate freely.
func (s *Session) Clone() *Session {
	out := *s
	out.QuestionIDs = append([]string(nil), s.QuestionIDs...)
	if s.PausedAt != nil {
		t := *s.PausedAt
		out.PausedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	out.Responses = make(map[string]Response, len(s.Responses))
	for k, v := range s.Responses {
		v.UserAnswer = append([]string(nil), v.UserAnswer...)
		out.Responses[k] = v
	}
	return &out
}
