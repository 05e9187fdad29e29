package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/examtrail/pyqbank/internal/catalog"
)

// EngineConfig holds dependencies and policy for the session engine.
type EngineConfig struct {
	Catalog catalog.Reader
	Store   Store

	// CompleteOnFinalSubmit completes the session as soon as every question
	// has a response. When false (the default), completion happens only by
	// navigating past the last question, so learners can revisit answers.
	CompleteOnFinalSubmit bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine owns the practice-session lifecycle. Each call is an independent
// unit of work; writes to one session are serialized through the store's
// compare-and-swap, retried once on a lost race.
type Engine struct {
	catalog               catalog.Reader
	store                 Store
	completeOnFinalSubmit bool
	now                   func() time.Time
}

// NewEngine creates a session engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		catalog:               cfg.Catalog,
		store:                 store,
		completeOnFinalSubmit: cfg.CompleteOnFinalSubmit,
		now:                   now,
	}
}

const defaultSessionName = "PYQ Practice Session"

// CreateParams are the inputs to Create.
type CreateParams struct {
	UserID           string `json:"user_id"`
	Name             string `json:"session_name"`
	Filter           Filter `json:"filters"`
	TimeLimitMinutes int    `json:"time_limit"`
}

// CreateResult describes a freshly created session.
type CreateResult struct {
	Session        *Session      `json:"session"`
	TotalQuestions int           `json:"total_questions"`
	FirstQuestion  *QuestionView `json:"first_question,omitempty"`
}

// QuestionView is a question prepared for display: the correct answer is
// stripped, and any prior response in the session is attached.
type QuestionView struct {
	ID       string               `json:"id"`
	Content  string               `json:"content"`
	Options  map[string]string    `json:"options,omitempty"`
	Type     string               `json:"type"`
	TopicID  string               `json:"topic_id,omitempty"`
	Meta     catalog.QuestionMeta `json:"meta,omitempty"`
	Answered bool                 `json:"answered"`
	Previous *Response            `json:"previous_response,omitempty"`
}

func viewOf(q catalog.Question, prior *Response) *QuestionView {
	meta := q.Meta
	meta.Solution = "" // revealed only after submission
	v := &QuestionView{
		ID:      q.ID,
		Content: q.Content,
		Options: q.Options,
		Type:    q.Type,
		TopicID: q.TopicID,
		Meta:    meta,
	}
	if prior != nil {
		v.Answered = true
		v.Previous = prior
	}
	return v
}

// Create resolves the filter against the catalog and freezes the resulting
// question order into a new session. A filter matching zero questions yields
// a valid session born completed; an unresolvable hierarchy scope is
// ErrInvalidFilter.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidFilter)
	}
	if err := p.Filter.Validate(); err != nil {
		return nil, err
	}

	questions, err := e.catalog.ResolveQuestions(ctx, p.Filter.QuestionFilter)
	if err != nil {
		if errors.Is(err, catalog.ErrNodeNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		return nil, fmt.Errorf("resolve questions: %w", err)
	}

	if p.Filter.ShuffleQuestions {
		rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	name := p.Name
	if name == "" {
		name = defaultSessionName
	}

	now := e.now()
	sess := &Session{
		ID:               uuid.NewString(),
		UserID:           p.UserID,
		Name:             name,
		Filter:           p.Filter,
		TimeLimitMinutes: p.TimeLimitMinutes,
		Status:           StatusActive,
		CurrentIndex:     0,
		CreatedAt:        now,
		StartedAt:        now,
		LastActivity:     now,
		Responses:        make(map[string]Response),
	}
	for _, q := range questions {
		sess.QuestionIDs = append(sess.QuestionIDs, q.ID)
	}
	if len(sess.QuestionIDs) == 0 {
		sess.Status = StatusCompleted
		sess.CompletedAt = &now
	}

	if err := e.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	slog.Info("practice session created",
		"session_id", sess.ID,
		"user_id", sess.UserID,
		"questions", len(sess.QuestionIDs),
		"scope", string(p.Filter.Scope.Level)+":"+p.Filter.Scope.ID,
	)

	res := &CreateResult{Session: sess, TotalQuestions: len(sess.QuestionIDs)}
	if len(questions) > 0 {
		res.FirstQuestion = viewOf(questions[0], nil)
	}
	return res, nil
}

// CurrentQuestion is the GetCurrent payload.
type CurrentQuestion struct {
	Question         *QuestionView `json:"question"`
	SessionID        string        `json:"session_id"`
	CurrentIndex     int           `json:"current_index"`
	TotalQuestions   int           `json:"total_questions"`
	HasPrevious      bool          `json:"has_previous"`
	HasNext          bool          `json:"has_next"`
	IsLast           bool          `json:"is_last"`
	SessionCompleted bool          `json:"session_completed,omitempty"`
}

// GetCurrent returns the question at the session's current index. On a
// completed session it returns the last-viewed question flagged
// session_completed instead of erroring: reads stay valid after completion.
func (e *Engine) GetCurrent(ctx context.Context, sessionID string) (*CurrentQuestion, error) {
	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.QuestionIDs) == 0 {
		return &CurrentQuestion{
			SessionID:        sess.ID,
			SessionCompleted: true,
		}, nil
	}

	qid := sess.QuestionIDs[sess.CurrentIndex]
	q, err := e.catalog.GetQuestion(ctx, qid)
	if err != nil {
		return nil, err
	}

	var prior *Response
	if r, ok := sess.Responses[qid]; ok {
		prior = &r
	}

	return &CurrentQuestion{
		Question:         viewOf(q, prior),
		SessionID:        sess.ID,
		CurrentIndex:     sess.CurrentIndex,
		TotalQuestions:   len(sess.QuestionIDs),
		HasPrevious:      sess.CurrentIndex > 0,
		HasNext:          sess.CurrentIndex < len(sess.QuestionIDs)-1,
		IsLast:           sess.CurrentIndex == len(sess.QuestionIDs)-1,
		SessionCompleted: sess.Status == StatusCompleted,
	}, nil
}

// SubmitResult is returned after grading a submission.
type SubmitResult struct {
	ResponseID    string   `json:"response_id"`
	IsCorrect     bool     `json:"is_correct"`
	CorrectAnswer []string `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Completed     bool     `json:"completed,omitempty"`
}

// Submit grades an answer for the session's current question and upserts the
// response (last write wins, response id preserved). It never advances the
// index; navigation is a separate, explicit action.
func (e *Engine) Submit(ctx context.Context, sessionID, questionID string, answer []string, timeTakenSeconds int) (*SubmitResult, error) {
	var result *SubmitResult

	_, err := e.update(ctx, sessionID, func(sess *Session) error {
		if sess.Status != StatusActive {
			return fmt.Errorf("%w: cannot submit while %s", ErrInvalidState, sess.Status)
		}
		if questionID != sess.QuestionIDs[sess.CurrentIndex] {
			return fmt.Errorf("%w: submission must target the current question", ErrInvalidState)
		}

		q, err := e.catalog.GetQuestion(ctx, questionID)
		if err != nil {
			return err
		}

		resp := Response{
			ID:          uuid.NewString(),
			QuestionID:  questionID,
			UserAnswer:  answer,
			IsCorrect:   grade(q, answer),
			TimeTaken:   timeTakenSeconds,
			SubmittedAt: e.now(),
		}
		if prior, ok := sess.Responses[questionID]; ok {
			resp.ID = prior.ID
		}
		sess.Responses[questionID] = resp

		result = &SubmitResult{
			ResponseID:    resp.ID,
			IsCorrect:     resp.IsCorrect,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Meta.Solution,
		}

		if e.completeOnFinalSubmit && len(sess.Responses) == len(sess.QuestionIDs) {
			now := e.now()
			sess.Status = StatusCompleted
			sess.CompletedAt = &now
			result.Completed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Direction is a navigation direction.
type Direction string

const (
	DirectionNext     Direction = "next"
	DirectionPrevious Direction = "previous"
)

// NavigateResult reports the session position after a navigation.
type NavigateResult struct {
	CurrentIndex int    `json:"current_index"`
	Status       Status `json:"status"`
}

// Navigate moves the current index one step. Moving next from the last index
// is the completion trigger; moving previous clamps at zero.
func (e *Engine) Navigate(ctx context.Context, sessionID string, dir Direction) (*NavigateResult, error) {
	sess, err := e.update(ctx, sessionID, func(sess *Session) error {
		if sess.Status != StatusActive {
			return fmt.Errorf("%w: cannot navigate while %s", ErrInvalidState, sess.Status)
		}
		switch dir {
		case DirectionNext:
			if sess.CurrentIndex >= len(sess.QuestionIDs)-1 {
				now := e.now()
				sess.Status = StatusCompleted
				sess.CompletedAt = &now
			} else {
				sess.CurrentIndex++
			}
		case DirectionPrevious:
			if sess.CurrentIndex > 0 {
				sess.CurrentIndex--
			}
		default:
			return fmt.Errorf("%w: unknown direction %q", ErrInvalidState, dir)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &NavigateResult{CurrentIndex: sess.CurrentIndex, Status: sess.Status}, nil
}

// Jump sets the current index directly.
func (e *Engine) Jump(ctx context.Context, sessionID string, index int) (*NavigateResult, error) {
	sess, err := e.update(ctx, sessionID, func(sess *Session) error {
		if sess.Status != StatusActive {
			return fmt.Errorf("%w: cannot jump while %s", ErrInvalidState, sess.Status)
		}
		if index < 0 || index >= len(sess.QuestionIDs) {
			return fmt.Errorf("%w: index %d, have %d questions",
				ErrIndexOutOfRange, index, len(sess.QuestionIDs))
		}
		sess.CurrentIndex = index
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &NavigateResult{CurrentIndex: sess.CurrentIndex, Status: sess.Status}, nil
}

// QuestionState classifies one question's standing inside a session.
type QuestionState string

const (
	QuestionNotAttempted QuestionState = "not_attempted"
	QuestionCorrect      QuestionState = "correct"
	QuestionIncorrect    QuestionState = "incorrect"
)

// ProgressReport is the Progress payload.
type ProgressReport struct {
	SessionID        string          `json:"session_id"`
	Name             string          `json:"session_name"`
	Status           Status          `json:"status"`
	CurrentIndex     int             `json:"current_index"`
	TotalQuestions   int             `json:"total_questions"`
	Attempted        int             `json:"attempted"`
	Correct          int             `json:"correct"`
	Incorrect        int             `json:"incorrect"`
	Remaining        int             `json:"remaining"`
	Accuracy         float64         `json:"accuracy"`
	ElapsedSeconds   float64         `json:"elapsed_seconds"`
	TotalTimeSeconds int             `json:"total_time_seconds"`
	AvgTimeSeconds   float64         `json:"average_time_seconds"`
	TimeLimitMinutes int             `json:"time_limit_minutes,omitempty"`
	QuestionStates   []QuestionState `json:"question_states"`
}

// Progress reports session statistics. Pure read, valid in any state.
// Elapsed time excludes accumulated pause intervals, including the one still
// open on a paused session.
func (e *Engine) Progress(ctx context.Context, sessionID string) (*ProgressReport, error) {
	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	attempted := sess.Attempted()
	correct := sess.Correct()

	accuracy := 0.0
	if attempted > 0 {
		accuracy = float64(correct) / float64(attempted)
	}

	elapsed := e.now().Sub(sess.StartedAt) - sess.PausedDuration
	if sess.Status == StatusPaused && sess.PausedAt != nil {
		elapsed -= e.now().Sub(*sess.PausedAt)
	}
	if elapsed < 0 {
		elapsed = 0
	}

	totalTime := 0
	for _, r := range sess.Responses {
		totalTime += r.TimeTaken
	}
	avgTime := 0.0
	if attempted > 0 {
		avgTime = float64(totalTime) / float64(attempted)
	}

	states := make([]QuestionState, len(sess.QuestionIDs))
	for i, qid := range sess.QuestionIDs {
		switch r, ok := sess.Responses[qid]; {
		case !ok:
			states[i] = QuestionNotAttempted
		case r.IsCorrect:
			states[i] = QuestionCorrect
		default:
			states[i] = QuestionIncorrect
		}
	}

	return &ProgressReport{
		SessionID:        sess.ID,
		Name:             sess.Name,
		Status:           sess.Status,
		CurrentIndex:     sess.CurrentIndex,
		TotalQuestions:   len(sess.QuestionIDs),
		Attempted:        attempted,
		Correct:          correct,
		Incorrect:        attempted - correct,
		Remaining:        len(sess.QuestionIDs) - attempted,
		Accuracy:         accuracy,
		ElapsedSeconds:   elapsed.Seconds(),
		TotalTimeSeconds: totalTime,
		AvgTimeSeconds:   avgTime,
		TimeLimitMinutes: sess.TimeLimitMinutes,
		QuestionStates:   states,
	}, nil
}

// Pause suspends an active session.
func (e *Engine) Pause(ctx context.Context, sessionID string) error {
	_, err := e.update(ctx, sessionID, func(sess *Session) error {
		if sess.Status != StatusActive {
			return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, sess.Status)
		}
		now := e.now()
		sess.Status = StatusPaused
		sess.PausedAt = &now
		return nil
	})
	return err
}

// Resume reactivates a paused session, folding the pause interval into the
// accumulated paused duration.
func (e *Engine) Resume(ctx context.Context, sessionID string) error {
	_, err := e.update(ctx, sessionID, func(sess *Session) error {
		if sess.Status != StatusPaused {
			return fmt.Errorf("%w: cannot resume while %s", ErrInvalidState, sess.Status)
		}
		if sess.PausedAt != nil {
			sess.PausedDuration += e.now().Sub(*sess.PausedAt)
		}
		sess.Status = StatusActive
		sess.PausedAt = nil
		return nil
	})
	return err
}

// SessionSummary is one row of a user's session listing.
type SessionSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         Status    `json:"status"`
	TotalQuestions int       `json:"total_questions"`
	Attempted      int       `json:"attempted"`
	ProgressPct    float64   `json:"progress_percentage"`
	IsCompleted    bool      `json:"is_completed"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListUserSessions returns a user's sessions newest-first, optionally
// filtered by status ("all" or empty means no filter).
func (e *Engine) ListUserSessions(ctx context.Context, userID, status string) ([]SessionSummary, error) {
	sessions, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		if status != "" && status != "all" && string(sess.Status) != status {
			continue
		}
		total := len(sess.QuestionIDs)
		attempted := sess.Attempted()
		pct := 0.0
		if total > 0 {
			pct = float64(attempted) / float64(total) * 100
		}
		out = append(out, SessionSummary{
			ID:             sess.ID,
			Name:           sess.Name,
			Status:         sess.Status,
			TotalQuestions: total,
			Attempted:      attempted,
			ProgressPct:    pct,
			IsCompleted:    sess.Status == StatusCompleted,
			CreatedAt:      sess.CreatedAt,
		})
	}
	return out, nil
}

// update runs fn against a fresh read of the session and writes the result
// back via compare-and-swap, retrying once on a lost race.
func (e *Engine) update(ctx context.Context, sessionID string, fn func(*Session) error) (*Session, error) {
	for attempt := 0; ; attempt++ {
		sess, err := e.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := fn(sess); err != nil {
			return nil, err
		}
		sess.LastActivity = e.now()

		err = e.store.CompareAndSwap(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrConcurrentModification) || attempt > 0 {
			return nil, err
		}
		slog.Debug("session write lost compare-and-swap, retrying", "session_id", sessionID)
	}
}

// grade checks an answer against the question's stored correct answer.
// Comparison is exact and case-sensitive: multi-answer question types match
// as unordered sets, everything else as a single string.
func grade(q catalog.Question, answer []string) bool {
	if len(q.CorrectAnswer) == 0 {
		return false
	}
	if isMultiAnswer(q.Type) {
		return equalStringSets(answer, q.CorrectAnswer)
	}
	return len(answer) == 1 && answer[0] == q.CorrectAnswer[0]
}

func isMultiAnswer(questionType string) bool {
	return questionType == "mcq_multi" || questionType == "multiple_select"
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}
