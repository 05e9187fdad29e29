package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fixtureFile is the on-disk shape of a catalog fixture. Hierarchy nodes are
// nested so fixtures stay readable; questions reference their topic and list
// the attribute ids they exercise (the Q-matrix true entries).
type fixtureFile struct {
	Exams     []fixtureExam     `yaml:"exams"`
	Questions []fixtureQuestion `yaml:"questions"`
}

type fixtureExam struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Classes []fixtureClass `yaml:"classes"`
}

type fixtureClass struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	Subjects []fixtureSubject `yaml:"subjects"`
}

type fixtureSubject struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	Chapters []fixtureChapter `yaml:"chapters"`
}

type fixtureChapter struct {
	ID     string         `yaml:"id"`
	Name   string         `yaml:"name"`
	Topics []fixtureTopic `yaml:"topics"`
}

type fixtureTopic struct {
	ID         string             `yaml:"id"`
	Name       string             `yaml:"name"`
	Attributes []fixtureAttribute `yaml:"attributes"`
}

type fixtureAttribute struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type fixtureQuestion struct {
	ID            string            `yaml:"id"`
	TopicID       string            `yaml:"topic_id"`
	Content       string            `yaml:"content"`
	Options       map[string]string `yaml:"options"`
	CorrectAnswer []string          `yaml:"correct_answer"`
	Type          string            `yaml:"type"`
	Meta          QuestionMeta      `yaml:"meta"`
	Attributes    []string          `yaml:"attributes"`
}

// LoadDir walks rootDir, loads every .yaml/.yml fixture into a fresh
// MemoryCatalog and returns it.
func LoadDir(rootDir string) (*MemoryCatalog, error) {
	c := NewMemoryCatalog()

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return loadFile(c, path)
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog fixtures: %w", err)
	}

	slog.Info("catalog loaded",
		"exams", len(c.exams),
		"topics", len(c.topics),
		"questions", len(c.questions),
	)
	return c, nil
}

// LoadFile loads a single fixture file into a fresh MemoryCatalog.
func LoadFile(path string) (*MemoryCatalog, error) {
	c := NewMemoryCatalog()
	if err := loadFile(c, path); err != nil {
		return nil, err
	}
	return c, nil
}

func loadFile(c *MemoryCatalog, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid catalog fixture", "path", path, "error", err)
		return nil
	}

	for _, e := range f.Exams {
		c.AddExam(Exam{ID: e.ID, Name: e.Name})
		for _, cl := range e.Classes {
			c.AddClass(Class{ID: cl.ID, ExamID: e.ID, Name: cl.Name})
			for _, sub := range cl.Subjects {
				c.AddSubject(Subject{ID: sub.ID, ClassID: cl.ID, Name: sub.Name})
				for _, ch := range sub.Chapters {
					c.AddChapter(Chapter{ID: ch.ID, SubjectID: sub.ID, Name: ch.Name})
					for _, t := range ch.Topics {
						c.AddTopic(Topic{ID: t.ID, ChapterID: ch.ID, Name: t.Name})
						for _, a := range t.Attributes {
							c.AddAttribute(Attribute{
								ID:          a.ID,
								Name:        a.Name,
								Description: a.Description,
								TopicID:     t.ID,
							})
						}
					}
				}
			}
		}
	}

	for _, q := range f.Questions {
		c.AddQuestion(Question{
			ID:            q.ID,
			Content:       q.Content,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Type:          q.Type,
			TopicID:       q.TopicID,
			Meta:          q.Meta,
		})
		for _, attrID := range q.Attributes {
			c.SetQMatrixEntry(q.ID, attrID, true)
		}
	}

	return nil
}
