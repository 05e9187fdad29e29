package session

import (
	"context"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema holds the DDL for the session tables. Applied by deploy tooling and
// by the integration tests.
//
//go:embed schema.sql
var Schema string

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation. Session-level
// optimistic concurrency rides on the version column: every write is an
// UPDATE guarded by the version the caller read.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Put(ctx context.Context, sess *Session) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}

	filters, err := json.Marshal(sess.Filter)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pyq_sessions
		   (id, user_id, name, filters, question_ids, time_limit_minutes,
		    status, current_index, created_at, started_at, last_activity,
		    paused_at, completed_at, paused_duration_ms, version)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)`,
		sess.ID, sess.UserID, sess.Name, filters, sess.QuestionIDs,
		nullIfZero(sess.TimeLimitMinutes), string(sess.Status), sess.CurrentIndex,
		sess.CreatedAt, sess.StartedAt, sess.LastActivity,
		sess.PausedAt, sess.CompletedAt, sess.PausedDuration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	sess.Version = 1
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sess, err := s.scanSession(ctx, s.pool.QueryRow(ctx,
		sessionSelect+` WHERE id = $1::uuid`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, question_id, user_answer, is_correct, time_taken_s, submitted_at
		 FROM pyq_responses
		 WHERE session_id = $1::uuid`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Response
		if err := rows.Scan(&r.ID, &r.QuestionID, &r.UserAnswer,
			&r.IsCorrect, &r.TimeTaken, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		sess.Responses[r.QuestionID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}

	return sess, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, sess *Session) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	filters, err := json.Marshal(sess.Filter)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	cmd, err := tx.Exec(ctx,
		`UPDATE pyq_sessions
		 SET status = $2, current_index = $3, last_activity = $4,
		     paused_at = $5, completed_at = $6, paused_duration_ms = $7,
		     filters = $8, version = version + 1
		 WHERE id = $1::uuid AND version = $9`,
		sess.ID, string(sess.Status), sess.CurrentIndex, sess.LastActivity,
		sess.PausedAt, sess.CompletedAt, sess.PausedDuration.Milliseconds(),
		filters, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		// Distinguish a lost race from a missing row.
		var one int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM pyq_sessions WHERE id = $1::uuid`, sess.ID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sess.ID)
		}
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		return fmt.Errorf("%w: %s", ErrConcurrentModification, sess.ID)
	}

	for _, r := range sess.Responses {
		_, err := tx.Exec(ctx,
			`INSERT INTO pyq_responses
			   (id, session_id, question_id, user_answer, is_correct, time_taken_s, submitted_at)
			 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7)
			 ON CONFLICT (session_id, question_id) DO UPDATE
			 SET user_answer = EXCLUDED.user_answer,
			     is_correct = EXCLUDED.is_correct,
			     time_taken_s = EXCLUDED.time_taken_s,
			     submitted_at = EXCLUDED.submitted_at`,
			r.ID, sess.ID, r.QuestionID, r.UserAnswer, r.IsCorrect, r.TimeTaken, r.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert response: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	sess.Version++
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		sessionSelect+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := s.scanSession(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	for _, sess := range out {
		respRows, err := s.pool.Query(ctx,
			`SELECT id::text, question_id, user_answer, is_correct, time_taken_s, submitted_at
			 FROM pyq_responses WHERE session_id = $1::uuid`,
			sess.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("query responses: %w", err)
		}
		for respRows.Next() {
			var r Response
			if err := respRows.Scan(&r.ID, &r.QuestionID, &r.UserAnswer,
				&r.IsCorrect, &r.TimeTaken, &r.SubmittedAt); err != nil {
				respRows.Close()
				return nil, fmt.Errorf("scan response: %w", err)
			}
			sess.Responses[r.QuestionID] = r
		}
		if err := respRows.Err(); err != nil {
			respRows.Close()
			return nil, fmt.Errorf("iterate responses: %w", err)
		}
		respRows.Close()
	}

	return out, nil
}

const sessionSelect = `SELECT id::text, user_id, name, filters, question_ids,
	time_limit_minutes, status, current_index, created_at, started_at,
	last_activity, paused_at, completed_at, paused_duration_ms, version
	FROM pyq_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanSession(_ context.Context, row rowScanner) (*Session, error) {
	sess := &Session{Responses: make(map[string]Response)}
	var filters []byte
	var timeLimit *int
	var status string
	var pausedMs int64

	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Name, &filters, &sess.QuestionIDs,
		&timeLimit, &status, &sess.CurrentIndex, &sess.CreatedAt, &sess.StartedAt,
		&sess.LastActivity, &sess.PausedAt, &sess.CompletedAt, &pausedMs, &sess.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w", ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if timeLimit != nil {
		sess.TimeLimitMinutes = *timeLimit
	}
	sess.Status = Status(status)
	sess.PausedDuration = time.Duration(pausedMs) * time.Millisecond
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &sess.Filter); err != nil {
			return nil, fmt.Errorf("unmarshal filters: %w", err)
		}
	}
	return sess, nil
}

func nullIfZero(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
