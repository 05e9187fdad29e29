package httpapi

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// createSessionSchema validates the create-session body shape before any
// domain logic runs, so malformed payloads fail with a field-level message.
const createSessionSchema = `{
	"type": "object",
	"required": ["user_id", "filters"],
	"properties": {
		"user_id": {"type": "string", "minLength": 1},
		"session_name": {"type": "string"},
		"time_limit": {"type": "integer", "minimum": 0},
		"filters": {
			"type": "object",
			"properties": {
				"exam_id": {"type": "string"},
				"class_id": {"type": "string"},
				"subject_id": {"type": "string"},
				"chapter_id": {"type": "string"},
				"topic_id": {"type": "string"},
				"year": {"type": "integer"},
				"year_from": {"type": "integer"},
				"year_to": {"type": "integer"},
				"exam_session": {"type": "string"},
				"source": {"type": "string"},
				"difficulty_level": {"type": "string"},
				"question_type": {"type": "string"},
				"shuffle_questions": {"type": "boolean"}
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}`

var createSessionValidator = gojsonschema.NewStringLoader(createSessionSchema)

// validateCreateSession checks a raw body against the schema and flattens
// violations into one message.
func validateCreateSession(body []byte) error {
	result, err := gojsonschema.Validate(createSessionValidator, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
