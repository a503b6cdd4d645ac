package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	gameerrors "loom/contexts/narrative/game-service/domain/errors"
	gamehttp "loom/contexts/narrative/game-service/transport/http"
)

func writeGameError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, gamehttp.ErrorResponse{Code: code, Message: message})
}

func writeGameDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gameerrors.ErrInvalidGameInput):
		writeGameError(w, http.StatusBadRequest, "invalid_game", err.Error())
	case errors.Is(err, gameerrors.ErrGameNotFound):
		writeGameError(w, http.StatusNotFound, "game_not_found", err.Error())
	case errors.Is(err, gameerrors.ErrInvitationNotFound):
		writeGameError(w, http.StatusNotFound, "invitation_not_found", err.Error())
	case errors.Is(err, gameerrors.ErrNotGameMember):
		writeGameError(w, http.StatusForbidden, "not_game_member", err.Error())
	case errors.Is(err, gameerrors.ErrNotOrganizer):
		writeGameError(w, http.StatusForbidden, "not_organizer", err.Error())
	case errors.Is(err, gameerrors.ErrGameFull):
		writeGameError(w, http.StatusConflict, "game_full", err.Error())
	case errors.Is(err, gameerrors.ErrAlreadyMember):
		writeGameError(w, http.StatusConflict, "already_member", err.Error())
	case errors.Is(err, gameerrors.ErrInvitationInactive):
		writeGameError(w, http.StatusGone, "invitation_inactive", err.Error())
	case errors.Is(err, gameerrors.ErrConflict):
		writeGameError(w, http.StatusConflict, "game_conflict", err.Error())
	default:
		writeGameError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGameError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req gamehttp.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGameError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.games.Handler.CreateGameHandler(r.Context(), userID, req)
	if err != nil {
		writeGameDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	resp, err := s.games.Handler.GetGameHandler(r.Context(), r.PathValue("game_id"))
	if err != nil {
		writeGameDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGameError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req gamehttp.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGameError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.games.Handler.UpdateSettingsHandler(r.Context(), r.PathValue("game_id"), userID, req)
	if err != nil {
		writeGameDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.games.Handler.ListMembersHandler(r.Context(), r.PathValue("game_id"))
	if err != nil {
		writeGameDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGameError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.games.Handler.CreateInvitationHandler(r.Context(), r.PathValue("game_id"), userID)
	if err != nil {
		writeGameDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRedeemInvitation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGameError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req gamehttp.RedeemInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGameError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.games.Handler.RedeemInvitationHandler(r.Context(), userID, req)
	if err != nil {
		writeGameDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGameError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	if err := s.games.Handler.LeaveGameHandler(r.Context(), r.PathValue("game_id"), userID); err != nil {
		writeGameDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProposeReadyToPlay(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGameError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.games.Handler.ProposeReadyToPlayHandler(r.Context(), r.PathValue("game_id"), userID)
	if err != nil {
		writeGameDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleProposeWorldDocApproval(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGameError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.games.Handler.ProposeWorldDocApprovalHandler(r.Context(), r.PathValue("game_id"), userID)
	if err != nil {
		writeGameDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
