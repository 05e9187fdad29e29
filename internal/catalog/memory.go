package catalog

import (
	"context"
	"fmt"
	"sync"
)

// MemoryCatalog is an in-memory Reader. It backs tests and the YAML-fixture
// deployment mode. All listings preserve insertion order, which makes the
// attribute-order contract trivially deterministic.
type MemoryCatalog struct {
	mu sync.RWMutex

	exams    []Exam
	classes  []Class
	subjects []Subject
	chapters []Chapter
	topics   []Topic

	examByID    map[string]Exam
	classByID   map[string]Class
	subjectByID map[string]Subject
	chapterByID map[string]Chapter
	topicByID   map[string]Topic

	questions    []Question
	questionByID map[string]Question

	attrsByTopic map[string][]Attribute

	// qmatrix[questionID][attributeID] = value
	qmatrix map[string]map[string]bool
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		examByID:     make(map[string]Exam),
		classByID:    make(map[string]Class),
		subjectByID:  make(map[string]Subject),
		chapterByID:  make(map[string]Chapter),
		topicByID:    make(map[string]Topic),
		questionByID: make(map[string]Question),
		attrsByTopic: make(map[string][]Attribute),
		qmatrix:      make(map[string]map[string]bool),
	}
}

func (c *MemoryCatalog) AddExam(e Exam) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exams = append(c.exams, e)
	c.examByID[e.ID] = e
}

func (c *MemoryCatalog) AddClass(cl Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes = append(c.classes, cl)
	c.classByID[cl.ID] = cl
}

func (c *MemoryCatalog) AddSubject(s Subject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, s)
	c.subjectByID[s.ID] = s
}

func (c *MemoryCatalog) AddChapter(ch Chapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chapters = append(c.chapters, ch)
	c.chapterByID[ch.ID] = ch
}

func (c *MemoryCatalog) AddTopic(t Topic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, t)
	c.topicByID[t.ID] = t
}

// AddQuestion registers a question. Hierarchy foreign keys missing from the
// record are filled in from the question's topic chain when possible.
func (c *MemoryCatalog) AddQuestion(q Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fillChain(&q)
	c.questions = append(c.questions, q)
	c.questionByID[q.ID] = q
}

// AddAttribute appends an attribute to its topic's listing.
func (c *MemoryCatalog) AddAttribute(a Attribute) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrsByTopic[a.TopicID] = append(c.attrsByTopic[a.TopicID], a)
}

// SetQMatrixEntry records whether a question exercises an attribute.
func (c *MemoryCatalog) SetQMatrixEntry(questionID, attributeID string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.qmatrix[questionID]
	if !ok {
		m = make(map[string]bool)
		c.qmatrix[questionID] = m
	}
	m[attributeID] = value
}

func (c *MemoryCatalog) fillChain(q *Question) {
	if q.ChapterID == "" && q.TopicID != "" {
		if t, ok := c.topicByID[q.TopicID]; ok {
			q.ChapterID = t.ChapterID
		}
	}
	if q.SubjectID == "" && q.ChapterID != "" {
		if ch, ok := c.chapterByID[q.ChapterID]; ok {
			q.SubjectID = ch.SubjectID
		}
	}
	if q.ClassID == "" && q.SubjectID != "" {
		if s, ok := c.subjectByID[q.SubjectID]; ok {
			q.ClassID = s.ClassID
		}
	}
	if q.ExamID == "" && q.ClassID != "" {
		if cl, ok := c.classByID[q.ClassID]; ok {
			q.ExamID = cl.ExamID
		}
	}
}

func (c *MemoryCatalog) nodeExists(s Scope) bool {
	switch s.Level {
	case LevelExam:
		_, ok := c.examByID[s.ID]
		return ok
	case LevelClass:
		_, ok := c.classByID[s.ID]
		return ok
	case LevelSubject:
		_, ok := c.subjectByID[s.ID]
		return ok
	case LevelChapter:
		_, ok := c.chapterByID[s.ID]
		return ok
	case LevelTopic:
		_, ok := c.topicByID[s.ID]
		return ok
	default:
		return false
	}
}

func (c *MemoryCatalog) ResolveQuestions(_ context.Context, f QuestionFilter) ([]Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.nodeExists(f.Scope) {
		return nil, fmt.Errorf("%w: %s %q", ErrNodeNotFound, f.Scope.Level, f.Scope.ID)
	}

	var out []Question
	for _, q := range c.questions {
		if q.MatchesScope(f.Scope) && f.MatchesMeta(q) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (c *MemoryCatalog) GetQuestion(_ context.Context, id string) (Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.questionByID[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	return q, nil
}

func (c *MemoryCatalog) ListTopicsUnder(_ context.Context, s Scope) ([]Topic, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.nodeExists(s) {
		return nil, fmt.Errorf("%w: %s %q", ErrNodeNotFound, s.Level, s.ID)
	}

	if s.Level == LevelTopic {
		return []Topic{c.topicByID[s.ID]}, nil
	}

	var out []Topic
	for _, t := range c.topics {
		if c.topicUnder(t, s) {
			out = append(out, t)
		}
	}
	return out, nil
}

// topicUnder walks the topic's ancestor chain looking for the scope node.
func (c *MemoryCatalog) topicUnder(t Topic, s Scope) bool {
	ch, ok := c.chapterByID[t.ChapterID]
	if !ok {
		return false
	}
	if s.Level == LevelChapter {
		return ch.ID == s.ID
	}
	sub, ok := c.subjectByID[ch.SubjectID]
	if !ok {
		return false
	}
	if s.Level == LevelSubject {
		return sub.ID == s.ID
	}
	cl, ok := c.classByID[sub.ClassID]
	if !ok {
		return false
	}
	if s.Level == LevelClass {
		return cl.ID == s.ID
	}
	return s.Level == LevelExam && cl.ExamID == s.ID
}

func (c *MemoryCatalog) ListAttributesForTopic(_ context.Context, topicID string) ([]Attribute, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	attrs := c.attrsByTopic[topicID]
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	return out, nil
}

func (c *MemoryCatalog) ListQMatrixEntriesForQuestion(_ context.Context, questionID string) (map[string]bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]bool)
	for attrID, v := range c.qmatrix[questionID] {
		if v {
			out[attrID] = true
		}
	}
	return out, nil
}

func (c *MemoryCatalog) QuestionPage(_ context.Context, s Scope, page, pageSize int) (Page, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.nodeExists(s) {
		return Page{}, fmt.Errorf("%w: %s %q", ErrNodeNotFound, s.Level, s.ID)
	}
	if pageSize <= 0 {
		return Page{}, fmt.Errorf("page_size must be positive, got %d", pageSize)
	}
	if page < 1 {
		page = 1
	}

	var matched []Question
	for _, q := range c.questions {
		if q.MatchesScope(s) {
			matched = append(matched, q)
		}
	}

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Questions:  matched[start:end],
		Total:      total,
		PageNum:    page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}, nil
}
