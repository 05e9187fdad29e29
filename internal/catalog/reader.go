package catalog

import (
	"context"
	"errors"
)

// ErrNodeNotFound is returned when a hierarchy node referenced by id does not
// exist at the given level.
var ErrNodeNotFound = errors.New("hierarchy node not found")

// ErrQuestionNotFound is returned when a question id cannot be resolved.
var ErrQuestionNotFound = errors.New("question not found")

// Reader is the read-only contract every catalog backend satisfies.
//
// Ordering is load-bearing: ResolveQuestions, ListTopicsUnder and
// ListAttributesForTopic must return rows in the catalog's natural listing
// order (creation order for a given backend), and repeated calls against an
// unchanged catalog must return identical sequences. The Q-matrix builder
// derives attribute indices directly from these orders.
type Reader interface {
	// ResolveQuestions returns all questions under the filter's hierarchy
	// scope that pass its metadata refinements. Returns ErrNodeNotFound if
	// the scope id does not exist.
	ResolveQuestions(ctx context.Context, f QuestionFilter) ([]Question, error)

	// GetQuestion resolves a single question by id.
	GetQuestion(ctx context.Context, id string) (Question, error)

	// ListTopicsUnder returns the topics under a hierarchy node — the node
	// itself when the scope is a topic, all descendant topics otherwise.
	ListTopicsUnder(ctx context.Context, s Scope) ([]Topic, error)

	// ListAttributesForTopic returns a topic's attributes in creation order.
	ListAttributesForTopic(ctx context.Context, topicID string) ([]Attribute, error)

	// ListQMatrixEntriesForQuestion returns the set of attribute ids the
	// question is marked as exercising (entries with value true). Absent
	// entries mean false.
	ListQMatrixEntriesForQuestion(ctx context.Context, questionID string) (map[string]bool, error)

	// QuestionPage returns one page of questions under a node, 1-based.
	// A page past the end yields an empty page with HasMore false.
	QuestionPage(ctx context.Context, s Scope, page, pageSize int) (Page, error)
}
