package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/examtrail/pyqbank/internal/session"
)

// startPostgres spins up a throwaway Postgres container, applies the schema
// and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pyqbank_test"),
		postgres.WithUsername("pyqbank"),
		postgres.WithPassword("pyqbank"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, session.Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := startPostgres(t)
	store, err := session.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := context.Background()

	s := sampleSession(uuid.NewString())
	s.TimeLimitMinutes = 30
	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	t.Run("round trip", func(t *testing.T) {
		got, err := store.Get(ctx, s.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.UserID != s.UserID || got.Name != s.Name || got.Version != 1 {
			t.Errorf("Get() = %+v", got)
		}
		if len(got.QuestionIDs) != 2 || got.QuestionIDs[0] != "q1" {
			t.Errorf("QuestionIDs = %v", got.QuestionIDs)
		}
		if got.Filter.Scope.ID != "projectiles" {
			t.Errorf("Filter scope = %+v", got.Filter.Scope)
		}
		if got.TimeLimitMinutes != 30 {
			t.Errorf("TimeLimitMinutes = %d, want 30", got.TimeLimitMinutes)
		}
	})

	t.Run("compare and swap with responses", func(t *testing.T) {
		got, err := store.Get(ctx, s.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		got.CurrentIndex = 1
		got.Responses["q1"] = session.Response{
			ID:          uuid.NewString(),
			QuestionID:  "q1",
			UserAnswer:  []string{"A"},
			IsCorrect:   true,
			TimeTaken:   25,
			SubmittedAt: time.Now().UTC(),
		}
		if err := store.CompareAndSwap(ctx, got); err != nil {
			t.Fatalf("CompareAndSwap() error = %v", err)
		}

		reread, err := store.Get(ctx, s.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if reread.Version != 2 || reread.CurrentIndex != 1 {
			t.Errorf("version/index = %d/%d, want 2/1", reread.Version, reread.CurrentIndex)
		}
		r, ok := reread.Responses["q1"]
		if !ok || !r.IsCorrect || r.TimeTaken != 25 {
			t.Errorf("response = %+v", r)
		}

		// Overwrite the response under the same question.
		reread.Responses["q1"] = session.Response{
			ID:         r.ID,
			QuestionID: "q1",
			UserAnswer: []string{"B"},
			IsCorrect:  false,
			TimeTaken:  40,
		}
		if err := store.CompareAndSwap(ctx, reread); err != nil {
			t.Fatalf("CompareAndSwap() error = %v", err)
		}
		again, err := store.Get(ctx, s.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if r := again.Responses["q1"]; r.IsCorrect || r.TimeTaken != 40 {
			t.Errorf("upserted response = %+v", r)
		}
	})

	t.Run("stale version rejected", func(t *testing.T) {
		stale, err := store.Get(ctx, s.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		stale.Version = 1
		if err := store.CompareAndSwap(ctx, stale); !errors.Is(err, session.ErrConcurrentModification) {
			t.Errorf("CompareAndSwap() error = %v, want ErrConcurrentModification", err)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		if _, err := store.Get(ctx, uuid.NewString()); !errors.Is(err, session.ErrSessionNotFound) {
			t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
		}
		ghost := sampleSession(uuid.NewString())
		ghost.Version = 1
		if err := store.CompareAndSwap(ctx, ghost); !errors.Is(err, session.ErrSessionNotFound) {
			t.Errorf("CompareAndSwap() error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("list by user", func(t *testing.T) {
		second := sampleSession(uuid.NewString())
		second.CreatedAt = second.CreatedAt.Add(time.Hour)
		if err := store.Put(ctx, second); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, err := store.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != second.ID {
			t.Errorf("ListByUser() = %v, want newest first", ids(got))
		}
	})
}
