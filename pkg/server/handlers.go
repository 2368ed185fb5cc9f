package server

import (
	"errors"
	"net/http"

	"github.com/nstogner/searchchat/pkg/domain"
)

var errNoServerCredential = errors.New("no server-side API key configured")

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.tools.Descriptors())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.info)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if s.listModels == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, errNoServerCredential)
		return
	}
	models, err := s.listModels(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, err)
		return
	}
	if models == nil {
		models = []domain.Model{}
	}
	s.jsonResponse(w, http.StatusOK, models)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
