package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	beaterrors "loom/contexts/narrative/beat-service/domain/errors"
	beathttp "loom/contexts/narrative/beat-service/transport/http"
)

func writeBeatError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, beathttp.ErrorResponse{Code: code, Message: message})
}

func writeBeatDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, beaterrors.ErrInvalidBeatInput):
		writeBeatError(w, http.StatusBadRequest, "invalid_beat_input", err.Error())
	case errors.Is(err, beaterrors.ErrBeatNotFound):
		writeBeatError(w, http.StatusNotFound, "beat_not_found", err.Error())
	case errors.Is(err, beaterrors.ErrChallengeNotFound):
		writeBeatError(w, http.StatusNotFound, "challenge_not_found", err.Error())
	case errors.Is(err, beaterrors.ErrNotGameMember):
		writeBeatError(w, http.StatusForbidden, "not_game_member", err.Error())
	case errors.Is(err, beaterrors.ErrNotBeatAuthor):
		writeBeatError(w, http.StatusForbidden, "not_beat_author", err.Error())
	case errors.Is(err, beaterrors.ErrSceneNotActive):
		writeBeatError(w, http.StatusConflict, "scene_not_active", err.Error())
	case errors.Is(err, beaterrors.ErrBeatNotCanon):
		writeBeatError(w, http.StatusConflict, "beat_not_canon", err.Error())
	case errors.Is(err, beaterrors.ErrBeatNotRevised):
		writeBeatError(w, http.StatusConflict, "beat_not_revised", err.Error())
	case errors.Is(err, beaterrors.ErrChallengeNotOpen):
		writeBeatError(w, http.StatusConflict, "challenge_not_open", err.Error())
	case errors.Is(err, beaterrors.ErrOpenChallengeExists):
		writeBeatError(w, http.StatusConflict, "open_challenge_exists", err.Error())
	case errors.Is(err, beaterrors.ErrConflict):
		writeBeatError(w, http.StatusConflict, "beat_conflict", err.Error())
	default:
		writeBeatError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleSubmitBeat(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBeatError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req beathttp.SubmitBeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBeatError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.beats.Handler.SubmitBeatHandler(r.Context(), userID, req)
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetBeat(w http.ResponseWriter, r *http.Request) {
	resp, err := s.beats.Handler.GetBeatHandler(r.Context(), r.PathValue("beat_id"))
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListBeats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.beats.Handler.ListBeatsHandler(r.Context(), r.PathValue("scene_id"))
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFileChallenge(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBeatError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req beathttp.FileChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBeatError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.beats.Handler.FileChallengeHandler(r.Context(), r.PathValue("beat_id"), userID, req)
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	resp, err := s.beats.Handler.GetChallengeHandler(r.Context(), r.PathValue("challenge_id"))
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAcceptChallenge(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBeatError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req beathttp.AcceptChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBeatError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.beats.Handler.AcceptChallengeHandler(r.Context(), r.PathValue("challenge_id"), userID, req)
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDismissChallenge(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBeatError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.beats.Handler.DismissChallengeHandler(r.Context(), r.PathValue("challenge_id"), userID)
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBeatError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req beathttp.AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBeatError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.beats.Handler.AddCommentHandler(r.Context(), r.PathValue("challenge_id"), userID, req)
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	resp, err := s.beats.Handler.ListCommentsHandler(r.Context(), r.PathValue("challenge_id"))
	if err != nil {
		writeBeatDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
