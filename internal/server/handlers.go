package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/recommend"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type rebuildRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.recommend(w, r, &req)
}

func (s *Server) handleRecommendQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.RecommendRequest{Title: q.Get("title")}
	if raw := q.Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		req.K = k
	}
	s.recommend(w, r, &req)
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request, req *models.RecommendRequest) {
	s.logger.Debug("recommend request", zap.String("title", req.Title), zap.Int("k", req.K))
	resp, err := s.engine.Recommend(r.Context(), req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	resp, err := s.engine.Titles(q.Get("q"), limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuilder == nil {
		s.respondError(w, http.StatusNotImplemented, "rebuild not enabled")
		return
	}
	if s.feedPath == "" {
		s.respondError(w, http.StatusBadRequest, "no catalog feed configured")
		return
	}
	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("rebuild request", zap.String("feed", s.feedPath), zap.Bool("force", req.Force))
	res, err := s.rebuilder.Rebuild(r.Context(), s.feedPath, req.Force)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondErr maps domain errors to HTTP status codes.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	var (
		unknown      *models.UnknownTitleError
		missing      *models.MissingAttributeError
		insufficient *models.InsufficientDataError
		corrupt      *models.CorruptIndexError
	)
	switch {
	case errors.Is(err, recommend.ErrInvalidRequest):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unknown):
		s.respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Suggestions: unknown.Suggestions})
	case errors.Is(err, recommend.ErrNoIndex):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &missing), errors.As(err, &insufficient):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &corrupt):
		s.logger.Error("corrupt index", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
