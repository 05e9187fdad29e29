package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/examtrail/pyqbank/internal/catalog"
)

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

	if _, err := pool.Exec(ctx, catalog.Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func seedPostgres(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO exams (id, name) VALUES ('jee', 'JEE Main')`,
		`INSERT INTO classes (id, exam_id, name) VALUES ('class-11', 'jee', 'Class 11')`,
		`INSERT INTO subjects (id, class_id, name) VALUES ('physics', 'class-11', 'Physics')`,
		`INSERT INTO chapters (id, subject_id, name) VALUES ('kinematics', 'physics', 'Kinematics')`,
		`INSERT INTO topics (id, chapter_id, name) VALUES ('vectors', 'kinematics', 'Vectors')`,
		`INSERT INTO topics (id, chapter_id, name) VALUES ('projectiles', 'kinematics', 'Projectile Motion')`,
		`INSERT INTO attributes (id, name, topic_id) VALUES ('a1', 'vector addition', 'vectors')`,
		`INSERT INTO attributes (id, name, topic_id) VALUES ('a2', 'range equation', 'projectiles')`,
		`INSERT INTO questions (id, content, options, correct_answer, qtype, exam_id, class_id, subject_id, chapter_id, topic_id, year, difficulty_level)
		 VALUES ('q1', 'first', '{"A":"a","B":"b"}', '{A}', 'mcq_single', 'jee', 'class-11', 'physics', 'kinematics', 'vectors', 2021, 'easy')`,
		`INSERT INTO questions (id, content, correct_answer, qtype, exam_id, class_id, subject_id, chapter_id, topic_id, year, difficulty_level)
		 VALUES ('q2', 'second', '{B}', 'mcq_single', 'jee', 'class-11', 'physics', 'kinematics', 'projectiles', 2023, 'hard')`,
		`INSERT INTO q_matrix (question_id, attribute_id, value) VALUES ('q1', 'a1', true)`,
		`INSERT INTO q_matrix (question_id, attribute_id, value) VALUES ('q2', 'a1', false)`,
		`INSERT INTO q_matrix (question_id, attribute_id, value) VALUES ('q2', 'a2', true)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			t.Fatalf("seed: %v\n%s", err, s)
		}
	}
}

func TestPostgresCatalog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := startPostgres(t)
	seedPostgres(t, pool)

	c, err := catalog.NewPostgresCatalog(pool)
	if err != nil {
		t.Fatalf("NewPostgresCatalog() error = %v", err)
	}
	ctx := context.Background()

	t.Run("resolve questions", func(t *testing.T) {
		qs, err := c.ResolveQuestions(ctx, catalog.QuestionFilter{
			Scope: catalog.Scope{Level: catalog.LevelChapter, ID: "kinematics"},
		})
		if err != nil {
			t.Fatalf("ResolveQuestions() error = %v", err)
		}
		if len(qs) != 2 || qs[0].ID != "q1" || qs[1].ID != "q2" {
			t.Errorf("questions = %v", qs)
		}
		if qs[0].Options["A"] != "a" || qs[0].Meta.Year != 2021 {
			t.Errorf("q1 = %+v", qs[0])
		}

		hard, err := c.ResolveQuestions(ctx, catalog.QuestionFilter{
			Scope:           catalog.Scope{Level: catalog.LevelExam, ID: "jee"},
			DifficultyLevel: "hard",
		})
		if err != nil {
			t.Fatalf("ResolveQuestions() error = %v", err)
		}
		if len(hard) != 1 || hard[0].ID != "q2" {
			t.Errorf("hard questions = %v", hard)
		}

		if _, err := c.ResolveQuestions(ctx, catalog.QuestionFilter{
			Scope: catalog.Scope{Level: catalog.LevelTopic, ID: "nope"},
		}); !errors.Is(err, catalog.ErrNodeNotFound) {
			t.Errorf("unknown node error = %v, want ErrNodeNotFound", err)
		}
	})

	t.Run("get question", func(t *testing.T) {
		q, err := c.GetQuestion(ctx, "q2")
		if err != nil {
			t.Fatalf("GetQuestion() error = %v", err)
		}
		if q.TopicID != "projectiles" || q.Meta.DifficultyLevel != "hard" {
			t.Errorf("q2 = %+v", q)
		}
		if _, err := c.GetQuestion(ctx, "nope"); !errors.Is(err, catalog.ErrQuestionNotFound) {
			t.Errorf("error = %v, want ErrQuestionNotFound", err)
		}
	})

	t.Run("topics and attributes", func(t *testing.T) {
		topics, err := c.ListTopicsUnder(ctx, catalog.Scope{Level: catalog.LevelExam, ID: "jee"})
		if err != nil {
			t.Fatalf("ListTopicsUnder() error = %v", err)
		}
		if len(topics) != 2 || topics[0].ID != "vectors" {
			t.Errorf("topics = %v", topics)
		}

		attrs, err := c.ListAttributesForTopic(ctx, "projectiles")
		if err != nil {
			t.Fatalf("ListAttributesForTopic() error = %v", err)
		}
		if len(attrs) != 1 || attrs[0].ID != "a2" {
			t.Errorf("attributes = %v", attrs)
		}
	})

	t.Run("q-matrix entries", func(t *testing.T) {
		entries, err := c.ListQMatrixEntriesForQuestion(ctx, "q2")
		if err != nil {
			t.Fatalf("ListQMatrixEntriesForQuestion() error = %v", err)
		}
		// Only true entries come back; q2's explicit-false a1 is absent.
		if len(entries) != 1 || !entries["a2"] {
			t.Errorf("entries = %v", entries)
		}
	})

	t.Run("question page", func(t *testing.T) {
		page, err := c.QuestionPage(ctx, catalog.Scope{Level: catalog.LevelChapter, ID: "kinematics"}, 1, 1)
		if err != nil {
			t.Fatalf("QuestionPage() error = %v", err)
		}
		if page.Total != 2 || !page.HasMore || page.Questions[0].ID != "q1" {
			t.Errorf("page = %+v", page)
		}
	})
}
