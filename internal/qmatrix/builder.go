// Package qmatrix builds binary question-attribute matrices over a catalog
// scope, in the shape cognitive-diagnosis tooling (EduCDM and friends)
// consumes them.
package qmatrix

import (
	"context"
	"fmt"

	"github.com/examtrail/pyqbank/internal/catalog"
)

// IndexedAttribute is one column of the matrix: an attribute with its fixed
// position.
type IndexedAttribute struct {
	Index       int    `json:"index"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TopicID     string `json:"topic_id"`
}

// AttributeIndex is the frozen column ordering for a hierarchy scope.
// Attributes are grouped by topic in the catalog's topic order, and within a
// topic in the catalog's attribute order, so the same scope always yields the
// same columns.
type AttributeIndex struct {
	Scope      catalog.Scope      `json:"scope"`
	Attributes []IndexedAttribute `json:"attributes"`

	// byID maps attribute id to column index. Rebuilt on demand after JSON
	// round trips.
	byID map[string]int
}

// Len returns the number of columns.
func (ix *AttributeIndex) Len() int { return len(ix.Attributes) }

// IndexOf returns the column for an attribute id.
func (ix *AttributeIndex) IndexOf(attributeID string) (int, bool) {
	if ix.byID == nil {
		ix.byID = make(map[string]int, len(ix.Attributes))
		for _, a := range ix.Attributes {
			ix.byID[a.ID] = a.Index
		}
	}
	i, ok := ix.byID[attributeID]
	return i, ok
}

// Vector is one matrix row: Values[i] is 1 when the question exercises the
// attribute at column i of the index it was built against. Count is the
// number of set columns.
type Vector struct {
	QuestionID string `json:"question_id"`
	Values     []int  `json:"vector"`
	Count      int    `json:"attribute_count"`
}

// Builder derives attribute indices and question vectors from a catalog.
type Builder struct {
	catalog catalog.Reader
}

// NewBuilder creates a matrix builder over the given catalog.
func NewBuilder(c catalog.Reader) *Builder {
	return &Builder{catalog: c}
}

// BuildAttributeIndex computes the attribute ordering for a scope. An empty
// scope (no topics, or topics without attributes) yields a valid zero-column
// index.
func (b *Builder) BuildAttributeIndex(ctx context.Context, scope catalog.Scope) (*AttributeIndex, error) {
	topics, err := b.catalog.ListTopicsUnder(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list topics under %s/%s: %w", scope.Level, scope.ID, err)
	}

	ix := &AttributeIndex{Scope: scope, byID: make(map[string]int)}
	for _, topic := range topics {
		attrs, err := b.catalog.ListAttributesForTopic(ctx, topic.ID)
		if err != nil {
			return nil, fmt.Errorf("list attributes for topic %s: %w", topic.ID, err)
		}
		for _, a := range attrs {
			col := len(ix.Attributes)
			ix.Attributes = append(ix.Attributes, IndexedAttribute{
				Index:       col,
				ID:          a.ID,
				Name:        a.Name,
				Description: a.Description,
				TopicID:     a.TopicID,
			})
			ix.byID[a.ID] = col
		}
	}
	return ix, nil
}

// BuildVector computes a question's binary row against an index. Q-matrix
// entries pointing at attributes outside the index (a question tagged beyond
// the scope) are ignored rather than erroring.
func (b *Builder) BuildVector(ctx context.Context, questionID string, ix *AttributeIndex) (Vector, error) {
	entries, err := b.catalog.ListQMatrixEntriesForQuestion(ctx, questionID)
	if err != nil {
		return Vector{}, fmt.Errorf("q-matrix entries for question %s: %w", questionID, err)
	}

	v := Vector{QuestionID: questionID, Values: make([]int, ix.Len())}
	for attrID, set := range entries {
		if !set {
			continue
		}
		if col, ok := ix.IndexOf(attrID); ok {
			v.Values[col] = 1
			v.Count++
		}
	}
	return v, nil
}

// EnhancedPage is a question page annotated with each question's attribute
// vector and the shared column legend.
type EnhancedPage struct {
	catalog.Page
	Vectors    []Vector           `json:"q_matrix_vectors"`
	Attributes []IndexedAttribute `json:"attributes"`
}

// EnhancedQuestionPage pages questions under a scope and attaches their
// matrix rows. Pages are 1-based; a page past the end is an empty page, not
// an error.
func (b *Builder) EnhancedQuestionPage(ctx context.Context, scope catalog.Scope, page, pageSize int) (*EnhancedPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be >= 1, got %d", pageSize)
	}

	ix, err := b.BuildAttributeIndex(ctx, scope)
	if err != nil {
		return nil, err
	}

	qp, err := b.catalog.QuestionPage(ctx, scope, page, pageSize)
	if err != nil {
		return nil, err
	}

	out := &EnhancedPage{
		Page:       qp,
		Vectors:    make([]Vector, 0, len(qp.Questions)),
		Attributes: ix.Attributes,
	}
	for _, q := range qp.Questions {
		v, err := b.BuildVector(ctx, q.ID, ix)
		if err != nil {
			return nil, err
		}
		out.Vectors = append(out.Vectors, v)
	}
	return out, nil
}
