package http

import (
	"net/http"
)

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listGoals(w, r)
	case http.MethodPost:
		s.createGoal(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(r.Context(), w)
	}
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	values, err := NewRequestBodyParser(w, r).Parse()
	if err != nil {
		writeError(w, r, err)
		return
	}

	goal, err := s.goals.CreateGoal(r.Context(), values)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, renderGoal(goal))
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.goals.ListGoals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]goalPayload, 0, len(goals))
	for _, g := range goals {
		out = append(out, renderGoal(g))
	}
	writeData(w, r, http.StatusOK, out)
}
