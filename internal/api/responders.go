package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
	"github.com/nerrad567/gray-logic-dmx/internal/responder"
)

// handleListResponders lists stored responders, optionally filtered by
// ?universe=N.
func (s *Server) handleListResponders(w http.ResponseWriter, r *http.Request) {
	if s.responders == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "responder store not configured")
		return
	}

	universe := 0
	if v := r.URL.Query().Get("universe"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "universe must be a non-negative integer")
			return
		}
		universe = n
	}

	list, err := s.responders.List(r.Context(), universe)
	if err != nil {
		s.logger.Error("failed to list responders", "error", err)
		writeInternalError(w, "failed to list responders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"responders": list,
		"count":      len(list),
	})
}

// handleGetResponder returns one responder by UID.
func (s *Server) handleGetResponder(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.responderUID(w, r)
	if !ok {
		return
	}

	resp, err := s.responders.GetByUID(r.Context(), uid)
	if err != nil {
		s.writeResponderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteResponder forgets a responder.
func (s *Server) handleDeleteResponder(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.responderUID(w, r)
	if !ok {
		return
	}

	if err := s.responders.Delete(r.Context(), uid); err != nil {
		s.writeResponderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// responderUID parses the {uid} path parameter, writing the error response
// itself when it cannot.
func (s *Server) responderUID(w http.ResponseWriter, r *http.Request) (rdm.UID, bool) {
	if s.responders == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "responder store not configured")
		return rdm.UID{}, false
	}
	uid, err := rdm.ParseUID(chi.URLParam(r, "uid"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return rdm.UID{}, false
	}
	return uid, true
}

func (s *Server) writeResponderError(w http.ResponseWriter, err error) {
	if errors.Is(err, responder.ErrResponderNotFound) {
		writeNotFound(w, "responder not found")
		return
	}
	s.logger.Error("responder store error", "error", err)
	writeInternalError(w, "responder store error")
}
