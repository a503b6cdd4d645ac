package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	beatservice "loom/contexts/narrative/beat-service"
	consensusengine "loom/contexts/narrative/consensus-engine"
	fortuneservice "loom/contexts/narrative/fortune-service"
	gameservice "loom/contexts/narrative/game-service"
	pacingservice "loom/contexts/narrative/pacing-service"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "loom/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	swaggerUI bool
	consensus consensusengine.Module
	games     gameservice.Module
	pacing    pacingservice.Module
	beats     beatservice.Module
	fortune   fortuneservice.Module
}

func New(
	consensus consensusengine.Module,
	games gameservice.Module,
	pacing pacingservice.Module,
	beats beatservice.Module,
	fortune fortuneservice.Module,
	logger *slog.Logger,
	addr string,
	swaggerUI bool,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		swaggerUI: swaggerUI,
		consensus: consensus,
		games:     games,
		pacing:    pacing,
		beats:     beats,
		fortune:   fortune,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	if s.swaggerUI {
		s.mux.Handle("/swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	s.mux.HandleFunc("POST /api/v1/proposals", s.handleOpenProposal)
	s.mux.HandleFunc("GET /api/v1/proposals/{proposal_id}", s.handleGetProposal)
	s.mux.HandleFunc("POST /api/v1/proposals/{proposal_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /api/v1/games/{game_id}/proposals", s.handleListOpenProposals)

	s.mux.HandleFunc("POST /api/v1/games", s.handleCreateGame)
	s.mux.HandleFunc("GET /api/v1/games/{game_id}", s.handleGetGame)
	s.mux.HandleFunc("PUT /api/v1/games/{game_id}/settings", s.handleUpdateSettings)
	s.mux.HandleFunc("GET /api/v1/games/{game_id}/members", s.handleListMembers)
	s.mux.HandleFunc("POST /api/v1/games/{game_id}/invitations", s.handleCreateInvitation)
	s.mux.HandleFunc("POST /api/v1/invitations/redeem", s.handleRedeemInvitation)
	s.mux.HandleFunc("POST /api/v1/games/{game_id}/leave", s.handleLeaveGame)
	s.mux.HandleFunc("POST /api/v1/games/{game_id}/ready", s.handleProposeReadyToPlay)
	s.mux.HandleFunc("POST /api/v1/games/{game_id}/world-doc", s.handleProposeWorldDocApproval)

	s.mux.HandleFunc("POST /api/v1/acts", s.handleProposeAct)
	s.mux.HandleFunc("GET /api/v1/acts/{act_id}", s.handleGetAct)
	s.mux.HandleFunc("GET /api/v1/games/{game_id}/acts", s.handleListActs)
	s.mux.HandleFunc("POST /api/v1/acts/{act_id}/complete", s.handleCompleteAct)
	s.mux.HandleFunc("POST /api/v1/scenes", s.handleProposeScene)
	s.mux.HandleFunc("GET /api/v1/scenes/{scene_id}", s.handleGetScene)
	s.mux.HandleFunc("GET /api/v1/acts/{act_id}/scenes", s.handleListScenes)
	s.mux.HandleFunc("POST /api/v1/scenes/{scene_id}/complete", s.handleCompleteScene)

	s.mux.HandleFunc("POST /api/v1/beats", s.handleSubmitBeat)
	s.mux.HandleFunc("GET /api/v1/beats/{beat_id}", s.handleGetBeat)
	s.mux.HandleFunc("GET /api/v1/scenes/{scene_id}/beats", s.handleListBeats)
	s.mux.HandleFunc("POST /api/v1/beats/{beat_id}/challenges", s.handleFileChallenge)
	s.mux.HandleFunc("GET /api/v1/challenges/{challenge_id}", s.handleGetChallenge)
	s.mux.HandleFunc("POST /api/v1/challenges/{challenge_id}/accept", s.handleAcceptChallenge)
	s.mux.HandleFunc("POST /api/v1/challenges/{challenge_id}/dismiss", s.handleDismissChallenge)
	s.mux.HandleFunc("POST /api/v1/challenges/{challenge_id}/comments", s.handleAddComment)
	s.mux.HandleFunc("GET /api/v1/challenges/{challenge_id}/comments", s.handleListComments)

	s.mux.HandleFunc("POST /api/v1/fortune/rolls", s.handleRollFortune)
	s.mux.HandleFunc("GET /api/v1/fortune/table", s.handleFortuneTable)
	s.mux.HandleFunc("POST /api/v1/dice/rolls", s.handleRollDice)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
