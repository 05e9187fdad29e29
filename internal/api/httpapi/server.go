// Package httpapi exposes the practice-session engine and Q-matrix builder
// over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/examtrail/pyqbank/internal/catalog"
	"github.com/examtrail/pyqbank/internal/qmatrix"
	"github.com/examtrail/pyqbank/internal/session"
)

// MatrixBuilder is the Q-matrix surface the API serves. Both the plain and
// the cache-backed builder satisfy it.
type MatrixBuilder interface {
	BuildAttributeIndex(ctx context.Context, scope catalog.Scope) (*qmatrix.AttributeIndex, error)
	EnhancedQuestionPage(ctx context.Context, scope catalog.Scope, page, pageSize int) (*qmatrix.EnhancedPage, error)
	BuildEduCDMExport(ctx context.Context, scope catalog.Scope) (*qmatrix.EduCDMExport, error)
}

// HealthChecker reports liveness of a backing service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server holds the API's dependencies.
type Server struct {
	engine *session.Engine
	matrix MatrixBuilder
	readyz []HealthChecker
}

// NewServer creates the API server. Health checkers are probed by /readyz;
// pass the database and cache handles when configured.
func NewServer(engine *session.Engine, matrix MatrixBuilder, checkers ...HealthChecker) *Server {
	return &Server{engine: engine, matrix: matrix, readyz: checkers}
}

// Routes builds the chi router with the full API surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/pyq", func(r chi.Router) {
			r.Post("/session", s.handleCreateSession)
			r.Get("/sessions", s.handleListSessions)

			r.Route("/session/{sessionID}", func(r chi.Router) {
				r.Get("/current", s.handleGetCurrent)
				r.Post("/submit", s.handleSubmit)
				r.Post("/navigate", s.handleNavigate)
				r.Post("/jump", s.handleJump)
				r.Get("/progress", s.handleProgress)
				r.Post("/pause", s.handlePause)
				r.Post("/resume", s.handleResume)
			})
		})

		r.Get("/hierarchy/{level}/{nodeID}/questions/enhanced", s.handleEnhancedQuestions)
		r.Get("/export/educdm/{level}/{nodeID}", s.handleEduCDMExport)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, c := range s.readyz {
		if err := c.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
