package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/examtrail/pyqbank/internal/catalog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func scopeFromURL(r *http.Request) (catalog.Scope, error) {
	level, err := catalog.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		return catalog.Scope{}, err
	}
	id := chi.URLParam(r, "nodeID")
	if id == "" {
		return catalog.Scope{}, fmt.Errorf("node id is required")
	}
	return catalog.Scope{Level: level, ID: id}, nil
}

func (s *Server) handleEnhancedQuestions(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromURL(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			badRequest(w, "page must be a positive integer")
			return
		}
	}
	pageSize := defaultPageSize
	if v := r.URL.Query().Get("page_size"); v != "" {
		if pageSize, err = strconv.Atoi(v); err != nil || pageSize < 1 || pageSize > maxPageSize {
			badRequest(w, fmt.Sprintf("page_size must be between 1 and %d", maxPageSize))
			return
		}
	}

	res, err := s.matrix.EnhancedQuestionPage(r.Context(), scope, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEduCDMExport(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromURL(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	export, err := s.matrix.BuildEduCDMExport(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, export)
	case "xlsx":
		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=qmatrix_%s_%s.xlsx", scope.Level, scope.ID))
		if err := export.WriteXLSX(w); err != nil {
			writeError(w, err)
		}
	default:
		badRequest(w, fmt.Sprintf("unsupported format %q", format))
	}
}
