package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/examtrail/pyqbank/internal/catalog"
	"github.com/examtrail/pyqbank/internal/session"
)

// createSessionRequest mirrors the wire shape: hierarchy ids arrive flat and
// the most specific one becomes the session's scope.
type createSessionRequest struct {
	UserID  string `json:"user_id"`
	Name    string `json:"session_name"`
	Filters struct {
		ExamID    string `json:"exam_id"`
		ClassID   string `json:"class_id"`
		SubjectID string `json:"subject_id"`
		ChapterID string `json:"chapter_id"`
		TopicID   string `json:"topic_id"`

		Year             int    `json:"year"`
		YearFrom         int    `json:"year_from"`
		YearTo           int    `json:"year_to"`
		ExamSession      string `json:"exam_session"`
		Source           string `json:"source"`
		DifficultyLevel  string `json:"difficulty_level"`
		QuestionType     string `json:"question_type"`
		ShuffleQuestions bool   `json:"shuffle_questions"`
	} `json:"filters"`
	TimeLimitMinutes int `json:"time_limit"`
}

func (req *createSessionRequest) scope() catalog.Scope {
	f := req.Filters
	switch {
	case f.TopicID != "":
		return catalog.Scope{Level: catalog.LevelTopic, ID: f.TopicID}
	case f.ChapterID != "":
		return catalog.Scope{Level: catalog.LevelChapter, ID: f.ChapterID}
	case f.SubjectID != "":
		return catalog.Scope{Level: catalog.LevelSubject, ID: f.SubjectID}
	case f.ClassID != "":
		return catalog.Scope{Level: catalog.LevelClass, ID: f.ClassID}
	case f.ExamID != "":
		return catalog.Scope{Level: catalog.LevelExam, ID: f.ExamID}
	default:
		return catalog.Scope{}
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		badRequest(w, "reading body: "+err.Error())
		return
	}
	if err := validateCreateSession(body); err != nil {
		badRequest(w, err.Error())
		return
	}

	var req createSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(w, "decoding body: "+err.Error())
		return
	}

	params := session.CreateParams{
		UserID:           req.UserID,
		Name:             req.Name,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Filter: session.Filter{
			QuestionFilter: catalog.QuestionFilter{
				Scope:           req.scope(),
				Year:            req.Filters.Year,
				YearFrom:        req.Filters.YearFrom,
				YearTo:          req.Filters.YearTo,
				ExamSession:     req.Filters.ExamSession,
				Source:          req.Filters.Source,
				DifficultyLevel: req.Filters.DifficultyLevel,
				QuestionType:    req.Filters.QuestionType,
			},
			ShuffleQuestions: req.Filters.ShuffleQuestions,
		},
	}

	res, err := s.engine.Create(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		badRequest(w, "user_id query parameter is required")
		return
	}
	status := r.URL.Query().Get("status")

	sessions, err := s.engine.ListUserSessions(r.Context(), userID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	cur, err := s.engine.GetCurrent(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID       string   `json:"question_id"`
		Answer           []string `json:"answer"`
		TimeTakenSeconds int      `json:"time_taken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "decoding body: "+err.Error())
		return
	}
	if req.QuestionID == "" {
		badRequest(w, "question_id is required")
		return
	}

	res, err := s.engine.Submit(r.Context(), chi.URLParam(r, "sessionID"),
		req.QuestionID, req.Answer, req.TimeTakenSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "decoding body: "+err.Error())
		return
	}

	dir := session.Direction(req.Direction)
	if dir != session.DirectionNext && dir != session.DirectionPrevious {
		badRequest(w, `direction must be "next" or "previous"`)
		return
	}

	res, err := s.engine.Navigate(r.Context(), chi.URLParam(r, "sessionID"), dir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"question_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "decoding body: "+err.Error())
		return
	}
	if req.Index == nil {
		badRequest(w, "question_index is required")
		return
	}

	res, err := s.engine.Jump(r.Context(), chi.URLParam(r, "sessionID"), *req.Index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Progress(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Pause(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(session.StatusPaused)})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Resume(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(session.StatusActive)})
}
