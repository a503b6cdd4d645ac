package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	pacingerrors "loom/contexts/narrative/pacing-service/domain/errors"
	pacinghttp "loom/contexts/narrative/pacing-service/transport/http"
)

func writePacingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pacinghttp.ErrorResponse{Code: code, Message: message})
}

func writePacingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pacingerrors.ErrInvalidPacingInput):
		writePacingError(w, http.StatusBadRequest, "invalid_pacing_input", err.Error())
	case errors.Is(err, pacingerrors.ErrInvalidTension):
		writePacingError(w, http.StatusBadRequest, "invalid_tension", err.Error())
	case errors.Is(err, pacingerrors.ErrActNotFound):
		writePacingError(w, http.StatusNotFound, "act_not_found", err.Error())
	case errors.Is(err, pacingerrors.ErrSceneNotFound):
		writePacingError(w, http.StatusNotFound, "scene_not_found", err.Error())
	case errors.Is(err, pacingerrors.ErrGameNotActive):
		writePacingError(w, http.StatusConflict, "game_not_active", err.Error())
	case errors.Is(err, pacingerrors.ErrActNotActive):
		writePacingError(w, http.StatusConflict, "act_not_active", err.Error())
	case errors.Is(err, pacingerrors.ErrSceneNotActive):
		writePacingError(w, http.StatusConflict, "scene_not_active", err.Error())
	case errors.Is(err, pacingerrors.ErrScenesStillOpen):
		writePacingError(w, http.StatusConflict, "scenes_still_open", err.Error())
	case errors.Is(err, pacingerrors.ErrConflict):
		writePacingError(w, http.StatusConflict, "pacing_conflict", err.Error())
	default:
		writePacingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleProposeAct(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writePacingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req pacinghttp.ProposeActRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePacingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.pacing.Handler.ProposeActHandler(r.Context(), userID, req)
	if err != nil {
		writePacingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetAct(w http.ResponseWriter, r *http.Request) {
	resp, err := s.pacing.Handler.GetActHandler(r.Context(), r.PathValue("act_id"))
	if err != nil {
		writePacingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListActs(w http.ResponseWriter, r *http.Request) {
	resp, err := s.pacing.Handler.ListActsHandler(r.Context(), r.PathValue("game_id"))
	if err != nil {
		writePacingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompleteAct(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writePacingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.pacing.Handler.CompleteActHandler(r.Context(), r.PathValue("act_id"), userID)
	if err != nil {
		writePacingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProposeScene(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writePacingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req pacinghttp.ProposeSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePacingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.pacing.Handler.ProposeSceneHandler(r.Context(), userID, req)
	if err != nil {
		writePacingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	resp, err := s.pacing.Handler.GetSceneHandler(r.Context(), r.PathValue("scene_id"))
	if err != nil {
		writePacingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	resp, err := s.pacing.Handler.ListScenesHandler(r.Context(), r.PathValue("act_id"))
	if err != nil {
		writePacingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompleteScene(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writePacingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.pacing.Handler.CompleteSceneHandler(r.Context(), r.PathValue("scene_id"), userID)
	if err != nil {
		writePacingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
