package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema holds the DDL for the content tables.
//
//go:embed schema.sql
var Schema string

const dbTimeout = 5 * time.Second

// PostgresCatalog is a pgx-backed Reader over the content-management schema.
// The catalog service owns writes to these tables; this side only reads.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog creates a Postgres-backed catalog reader.
func NewPostgresCatalog(pool *pgxpool.Pool) (*PostgresCatalog, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresCatalog{pool: pool}, nil
}

const questionColumns = `id, content, options, correct_answer, qtype,
	exam_id, class_id, subject_id, chapter_id, topic_id,
	year, exam_session, source, difficulty_level, question_type, marks, solution`

func scanQuestion(row pgx.CollectableRow) (Question, error) {
	var q Question
	var options map[string]string
	var examID, classID, subjectID, chapterID, topicID *string
	var year *int
	var session, source, difficulty, qtype, solution *string
	var marks *float64

	err := row.Scan(
		&q.ID, &q.Content, &options, &q.CorrectAnswer, &q.Type,
		&examID, &classID, &subjectID, &chapterID, &topicID,
		&year, &session, &source, &difficulty, &qtype, &marks, &solution,
	)
	if err != nil {
		return Question{}, err
	}

	q.Options = options
	q.ExamID = deref(examID)
	q.ClassID = deref(classID)
	q.SubjectID = deref(subjectID)
	q.ChapterID = deref(chapterID)
	q.TopicID = deref(topicID)
	if year != nil {
		q.Meta.Year = *year
	}
	q.Meta.ExamSession = deref(session)
	q.Meta.Source = deref(source)
	q.Meta.DifficultyLevel = deref(difficulty)
	q.Meta.QuestionType = deref(qtype)
	if marks != nil {
		q.Meta.Marks = *marks
	}
	q.Meta.Solution = deref(solution)
	return q, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var levelTables = map[Level]string{
	LevelExam:    "exams",
	LevelClass:   "classes",
	LevelSubject: "subjects",
	LevelChapter: "chapters",
	LevelTopic:   "topics",
}

func (c *PostgresCatalog) nodeExists(ctx context.Context, s Scope) error {
	table, ok := levelTables[s.Level]
	if !ok {
		return fmt.Errorf("%w: unknown level %q", ErrNodeNotFound, s.Level)
	}

	var one int
	err := c.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1`, table), s.ID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %q", ErrNodeNotFound, s.Level, s.ID)
	}
	if err != nil {
		return fmt.Errorf("check %s node: %w", s.Level, err)
	}
	return nil
}

func (c *PostgresCatalog) ResolveQuestions(ctx context.Context, f QuestionFilter) ([]Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := c.nodeExists(ctx, f.Scope); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM questions WHERE %s_id = $1 ORDER BY created_at, id`,
		questionColumns, f.Scope.Level,
	)
	rows, err := c.pool.Query(ctx, query, f.Scope.ID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	all, err := pgx.CollectRows(rows, scanQuestion)
	if err != nil {
		return nil, fmt.Errorf("scan questions: %w", err)
	}

	// Metadata refinements are applied here rather than in SQL so every
	// backend filters identically.
	var out []Question
	for _, q := range all {
		if f.MatchesMeta(q) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (c *PostgresCatalog) GetQuestion(ctx context.Context, id string) (Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM questions WHERE id = $1`, questionColumns), id,
	)
	if err != nil {
		return Question{}, fmt.Errorf("query question: %w", err)
	}
	q, err := pgx.CollectOneRow(rows, scanQuestion)
	if errors.Is(err, pgx.ErrNoRows) {
		return Question{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	if err != nil {
		return Question{}, fmt.Errorf("scan question: %w", err)
	}
	return q, nil
}

func (c *PostgresCatalog) ListTopicsUnder(ctx context.Context, s Scope) ([]Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := c.nodeExists(ctx, s); err != nil {
		return nil, err
	}

	var query string
	switch s.Level {
	case LevelTopic:
		query = `SELECT t.id, t.chapter_id, t.name FROM topics t WHERE t.id = $1`
	case LevelChapter:
		query = `SELECT t.id, t.chapter_id, t.name FROM topics t
			 WHERE t.chapter_id = $1 ORDER BY t.created_at, t.id`
	case LevelSubject:
		query = `SELECT t.id, t.chapter_id, t.name FROM topics t
			 JOIN chapters ch ON ch.id = t.chapter_id
			 WHERE ch.subject_id = $1 ORDER BY t.created_at, t.id`
	case LevelClass:
		query = `SELECT t.id, t.chapter_id, t.name FROM topics t
			 JOIN chapters ch ON ch.id = t.chapter_id
			 JOIN subjects s ON s.id = ch.subject_id
			 WHERE s.class_id = $1 ORDER BY t.created_at, t.id`
	case LevelExam:
		query = `SELECT t.id, t.chapter_id, t.name FROM topics t
			 JOIN chapters ch ON ch.id = t.chapter_id
			 JOIN subjects s ON s.id = ch.subject_id
			 JOIN classes cl ON cl.id = s.class_id
			 WHERE cl.exam_id = $1 ORDER BY t.created_at, t.id`
	}

	rows, err := c.pool.Query(ctx, query, s.ID)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	topics, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Topic, error) {
		var t Topic
		err := row.Scan(&t.ID, &t.ChapterID, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan topics: %w", err)
	}
	return topics, nil
}

func (c *PostgresCatalog) ListAttributesForTopic(ctx context.Context, topicID string) ([]Attribute, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx,
		`SELECT id, name, COALESCE(description, ''), topic_id
		 FROM attributes
		 WHERE topic_id = $1
		 ORDER BY created_at, id`,
		topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attributes: %w", err)
	}
	attrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Attribute, error) {
		var a Attribute
		err := row.Scan(&a.ID, &a.Name, &a.Description, &a.TopicID)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan attributes: %w", err)
	}
	return attrs, nil
}

func (c *PostgresCatalog) ListQMatrixEntriesForQuestion(ctx context.Context, questionID string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx,
		`SELECT attribute_id FROM q_matrix WHERE question_id = $1 AND value`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query q_matrix: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var attrID string
		if err := rows.Scan(&attrID); err != nil {
			return nil, fmt.Errorf("scan q_matrix entry: %w", err)
		}
		out[attrID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate q_matrix: %w", err)
	}
	return out, nil
}

func (c *PostgresCatalog) QuestionPage(ctx context.Context, s Scope, page, pageSize int) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := c.nodeExists(ctx, s); err != nil {
		return Page{}, err
	}
	if pageSize <= 0 {
		return Page{}, fmt.Errorf("page_size must be positive, got %d", pageSize)
	}
	if page < 1 {
		page = 1
	}

	var total int
	err := c.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM questions WHERE %s_id = $1`, s.Level), s.ID,
	).Scan(&total)
	if err != nil {
		return Page{}, fmt.Errorf("count questions: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM questions WHERE %s_id = $1
		 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		questionColumns, s.Level,
	)
	rows, err := c.pool.Query(ctx, query, s.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("query question page: %w", err)
	}
	questions, err := pgx.CollectRows(rows, scanQuestion)
	if err != nil {
		return Page{}, fmt.Errorf("scan question page: %w", err)
	}

	totalPages := (total + pageSize - 1) / pageSize
	return Page{
		Questions:  questions,
		Total:      total,
		PageNum:    page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}, nil
}
