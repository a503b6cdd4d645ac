package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	fortuneerrors "loom/contexts/narrative/fortune-service/domain/errors"
	fortunehttp "loom/contexts/narrative/fortune-service/transport/http"
)

func writeFortuneError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, fortunehttp.ErrorResponse{Code: code, Message: message})
}

func writeFortuneDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fortuneerrors.ErrInvalidOdds):
		writeFortuneError(w, http.StatusBadRequest, "invalid_odds", err.Error())
	case errors.Is(err, fortuneerrors.ErrInvalidTension):
		writeFortuneError(w, http.StatusBadRequest, "invalid_tension", err.Error())
	case errors.Is(err, fortuneerrors.ErrInvalidDiceNotation):
		writeFortuneError(w, http.StatusBadRequest, "invalid_dice_notation", err.Error())
	case errors.Is(err, fortuneerrors.ErrTooManyDice):
		writeFortuneError(w, http.StatusBadRequest, "too_many_dice", err.Error())
	case errors.Is(err, fortuneerrors.ErrTooManySides):
		writeFortuneError(w, http.StatusBadRequest, "too_many_sides", err.Error())
	default:
		writeFortuneError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleRollFortune(w http.ResponseWriter, r *http.Request) {
	var req fortunehttp.RollFortuneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFortuneError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.fortune.Handler.RollFortuneHandler(r.Context(), req)
	if err != nil {
		writeFortuneDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFortuneTable(w http.ResponseWriter, r *http.Request) {
	resp, err := s.fortune.Handler.ProbabilityTableHandler(r.Context())
	if err != nil {
		writeFortuneDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRollDice(w http.ResponseWriter, r *http.Request) {
	var req fortunehttp.RollDiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFortuneError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.fortune.Handler.RollDiceHandler(r.Context(), req)
	if err != nil {
		writeFortuneDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
