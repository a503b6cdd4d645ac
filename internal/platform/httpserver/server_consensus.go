package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	consensuserrors "loom/contexts/narrative/consensus-engine/domain/errors"
	consensushttp "loom/contexts/narrative/consensus-engine/transport/http"
)

func writeConsensusError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, consensushttp.ErrorResponse{Code: code, Message: message})
}

func writeConsensusDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consensuserrors.ErrInvalidProposalInput):
		writeConsensusError(w, http.StatusBadRequest, "invalid_proposal", err.Error())
	case errors.Is(err, consensuserrors.ErrInvalidChoice):
		writeConsensusError(w, http.StatusBadRequest, "invalid_choice", err.Error())
	case errors.Is(err, consensuserrors.ErrProposalNotFound):
		writeConsensusError(w, http.StatusNotFound, "proposal_not_found", err.Error())
	case errors.Is(err, consensuserrors.ErrVoteNotFound):
		writeConsensusError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, consensuserrors.ErrProposalNotOpen):
		writeConsensusError(w, http.StatusConflict, "proposal_not_open", err.Error())
	case errors.Is(err, consensuserrors.ErrOpenProposalExists):
		writeConsensusError(w, http.StatusConflict, "open_proposal_exists", err.Error())
	case errors.Is(err, consensuserrors.ErrNotGameMember):
		writeConsensusError(w, http.StatusForbidden, "not_game_member", err.Error())
	case errors.Is(err, consensuserrors.ErrConflict):
		writeConsensusError(w, http.StatusConflict, "proposal_conflict", err.Error())
	default:
		writeConsensusError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleOpenProposal(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeConsensusError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req consensushttp.OpenProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeConsensusError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.consensus.Handler.OpenProposalHandler(r.Context(), userID, req)
	if err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	resp, err := s.consensus.Handler.GetProposalHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeConsensusError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req consensushttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeConsensusError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.consensus.Handler.CastVoteHandler(r.Context(), r.PathValue("proposal_id"), userID, req)
	if err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListOpenProposals(w http.ResponseWriter, r *http.Request) {
	resp, err := s.consensus.Handler.ListOpenProposalsHandler(r.Context(), r.PathValue("game_id"))
	if err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
