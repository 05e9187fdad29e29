// Package catalog defines the read-only view of the exam content hierarchy
// (exam -> class -> subject -> chapter -> topic) and the question bank that
// the session engine and the Q-matrix builder consume.
package catalog

import "fmt"

// Level identifies a node type in the content hierarchy.
type Level string

const (
	LevelExam    Level = "exam"
	LevelClass   Level = "class"
	LevelSubject Level = "subject"
	LevelChapter Level = "chapter"
	LevelTopic   Level = "topic"
)

// ParseLevel converts a wire-format level string into a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelExam, LevelClass, LevelSubject, LevelChapter, LevelTopic:
		return Level(s), nil
	default:
		return "", fmt.Errorf("invalid hierarchy level %q", s)
	}
}

// Scope pins a filter or lookup to exactly one hierarchy node.
type Scope struct {
	Level Level  `json:"level" yaml:"level"`
	ID    string `json:"id" yaml:"id"`
}

// IsZero reports whether the scope has not been set.
func (s Scope) IsZero() bool { return s.Level == "" && s.ID == "" }

// Exam is the root of a hierarchy tree.
type Exam struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Class is an optional grade level under an exam (e.g. Class 11).
type Class struct {
	ID     string `json:"id" yaml:"id"`
	ExamID string `json:"exam_id" yaml:"exam_id"`
	Name   string `json:"name" yaml:"name"`
}

type Subject struct {
	ID      string `json:"id" yaml:"id"`
	ClassID string `json:"class_id" yaml:"class_id"`
	Name    string `json:"name" yaml:"name"`
}

type Chapter struct {
	ID        string `json:"id" yaml:"id"`
	SubjectID string `json:"subject_id" yaml:"subject_id"`
	Name      string `json:"name" yaml:"name"`
}

// Topic is the leaf hierarchy level. Cognitive attributes hang off topics.
type Topic struct {
	ID        string `json:"id" yaml:"id"`
	ChapterID string `json:"chapter_id" yaml:"chapter_id"`
	Name      string `json:"name" yaml:"name"`
}

// Attribute is a cognitive skill tag owned by a topic. Its identity is
// immutable once referenced by a Q-matrix entry.
type Attribute struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	TopicID     string `json:"topic_id" yaml:"topic_id"`
}

// QuestionMeta carries the previous-year metadata attached to a question.
type QuestionMeta struct {
	Year            int     `json:"year,omitempty" yaml:"year,omitempty"`
	ExamSession     string  `json:"exam_session,omitempty" yaml:"exam_session,omitempty"`
	Source          string  `json:"source,omitempty" yaml:"source,omitempty"`
	DifficultyLevel string  `json:"difficulty_level,omitempty" yaml:"difficulty_level,omitempty"`
	QuestionType    string  `json:"question_type,omitempty" yaml:"question_type,omitempty"`
	Marks           float64 `json:"marks,omitempty" yaml:"marks,omitempty"`
	Solution        string  `json:"solution,omitempty" yaml:"solution,omitempty"`
}

// Question is a bank question with its position in the hierarchy denormalized
// onto the record, the way the backing store keeps it.
type Question struct {
	ID            string            `json:"id" yaml:"id"`
	Content       string            `json:"content" yaml:"content"`
	Options       map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
	CorrectAnswer []string          `json:"correct_answer,omitempty" yaml:"correct_answer,omitempty"`
	Type          string            `json:"type" yaml:"type"`

	ExamID    string `json:"exam_id,omitempty" yaml:"exam_id,omitempty"`
	ClassID   string `json:"class_id,omitempty" yaml:"class_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty" yaml:"subject_id,omitempty"`
	ChapterID string `json:"chapter_id,omitempty" yaml:"chapter_id,omitempty"`
	TopicID   string `json:"topic_id,omitempty" yaml:"topic_id,omitempty"`

	Meta QuestionMeta `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// MatchesScope reports whether the question sits under the given hierarchy node.
func (q Question) MatchesScope(s Scope) bool {
	switch s.Level {
	case LevelExam:
		return q.ExamID == s.ID
	case LevelClass:
		return q.ClassID == s.ID
	case LevelSubject:
		return q.SubjectID == s.ID
	case LevelChapter:
		return q.ChapterID == s.ID
	case LevelTopic:
		return q.TopicID == s.ID
	default:
		return false
	}
}

// QuestionFilter selects questions for session creation. Scope is mandatory;
// the metadata fields are optional refinements matched against QuestionMeta.
type QuestionFilter struct {
	Scope Scope `json:"scope"`

	Year            int    `json:"year,omitempty"`
	YearFrom        int    `json:"year_from,omitempty"`
	YearTo          int    `json:"year_to,omitempty"`
	ExamSession     string `json:"exam_session,omitempty"`
	Source          string `json:"source,omitempty"`
	DifficultyLevel string `json:"difficulty_level,omitempty"`
	QuestionType    string `json:"question_type,omitempty"`
}

// MatchesMeta reports whether a question passes the filter's metadata
// refinements. The hierarchy scope is checked separately.
func (f QuestionFilter) MatchesMeta(q Question) bool {
	m := q.Meta
	if f.Year != 0 && m.Year != f.Year {
		return false
	}
	if f.YearFrom != 0 && m.Year < f.YearFrom {
		return false
	}
	if f.YearTo != 0 && m.Year > f.YearTo {
		return false
	}
	if f.ExamSession != "" && m.ExamSession != f.ExamSession {
		return false
	}
	if f.Source != "" && m.Source != f.Source {
		return false
	}
	if f.DifficultyLevel != "" && m.DifficultyLevel != f.DifficultyLevel {
		return false
	}
	if f.QuestionType != "" && m.QuestionType != f.QuestionType {
		return false
	}
	return true
}

// Page is one page of questions under a hierarchy node.
type Page struct {
	Questions  []Question `json:"questions"`
	Total      int        `json:"total"`
	PageNum    int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
	HasMore    bool       `json:"has_more"`
}
