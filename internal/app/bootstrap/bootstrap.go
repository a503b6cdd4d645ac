package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	beatservice "loom/contexts/narrative/beat-service"
	beatpostgres "loom/contexts/narrative/beat-service/adapters/postgres"
	beatworkers "loom/contexts/narrative/beat-service/application/workers"
	beatports "loom/contexts/narrative/beat-service/ports"
	consensusengine "loom/contexts/narrative/consensus-engine"
	consensuspostgres "loom/contexts/narrative/consensus-engine/adapters/postgres"
	consensusworkers "loom/contexts/narrative/consensus-engine/application/workers"
	consensusports "loom/contexts/narrative/consensus-engine/ports"
	fortuneservice "loom/contexts/narrative/fortune-service"
	"loom/contexts/narrative/fortune-service/adapters/random"
	gameservice "loom/contexts/narrative/game-service"
	gamepostgres "loom/contexts/narrative/game-service/adapters/postgres"
	gamequeries "loom/contexts/narrative/game-service/application/queries"
	pacingservice "loom/contexts/narrative/pacing-service"
	pacingpostgres "loom/contexts/narrative/pacing-service/adapters/postgres"
	pacingports "loom/contexts/narrative/pacing-service/ports"
	"loom/internal/platform/ai"
	"loom/internal/platform/config"
	"loom/internal/platform/db"
	"loom/internal/platform/httpserver"
	"loom/internal/platform/messaging"
	"loom/internal/shared/outbox"
)

// Package bootstrap is the composition root. All cross-service wiring
// lives here so the service modules stay ignorant of each other.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	bus          *messaging.Bus
	overdue      consensusworkers.OverdueSweeper
	escalation   beatworkers.EscalationSweeper
	relays       []outbox.Relay
	resolved     beatworkers.ResolvedConsumer
	pollInterval time.Duration
	sweepEnabled bool
	relayEnabled bool
	logger       *slog.Logger
}

// moduleSet is every wired service module plus the repositories the
// worker process drives directly.
type moduleSet struct {
	consensus consensusengine.Module
	games     gameservice.Module
	pacing    pacingservice.Module
	beats     beatservice.Module
	fortune   fortuneservice.Module

	consensusRepo *consensuspostgres.Repository
	gameRepo      *gamepostgres.Repository
	pacingRepo    *pacingpostgres.Repository
	beatRepo      *beatpostgres.Repository
}

func buildModules(pg *db.Postgres, cfg config.Config, logger *slog.Logger) moduleSet {
	consensusRepo := consensuspostgres.NewRepository(pg.DB, logger)
	gameRepo := gamepostgres.NewRepository(pg.DB, logger)
	pacingRepo := pacingpostgres.NewRepository(pg.DB, logger)
	beatRepo := beatpostgres.NewRepository(pg.DB, logger)

	var classifier beatports.SignificanceClassifier
	var consensusSuggester consensusports.DeltaSuggester
	var pacingSuggester pacingports.DeltaSuggester
	if cfg.EnableAISuggestions && strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client := ai.NewClient(cfg, logger)
		classifier, consensusSuggester, pacingSuggester = client, client, client
	} else {
		stub := ai.Stub{}
		classifier, consensusSuggester, pacingSuggester = stub, stub, stub
	}

	// The game query side is constructed standalone so the consensus
	// engine can read rosters and settings without a module cycle.
	gameQueries := gamequeries.GameQueryUseCase{Games: gameRepo}
	directory := gameDirectory{games: gameQueries}

	consensusModule := consensusengine.NewModule(consensusengine.Dependencies{
		Proposals:  consensusRepo,
		Membership: directory,
		Settings:   directory,
		Suggester:  consensusSuggester,
		Outbox:     consensusRepo,
		Tx:         consensusRepo,
		Clock:      consensuspostgres.SystemClock{},
		IDGen:      consensuspostgres.UUIDGenerator{},
		Logger:     logger,
	})
	engine := consensusEngine{
		proposals: consensusModule.Proposals,
		queries:   consensusModule.Queries,
	}

	gamesModule := gameservice.NewModule(gameservice.Dependencies{
		Games:  gameRepo,
		Engine: gameProposalEngine{engine: engine},
		Outbox: gameRepo,
		Clock:  gamepostgres.SystemClock{},
		IDGen:  gamepostgres.UUIDGenerator{},
		Tokens: gamepostgres.UUIDTokenGenerator{},
		Logger: logger,
	})

	pacingModule := pacingservice.NewModule(pacingservice.Dependencies{
		Pacing:    pacingRepo,
		Engine:    pacingProposalEngine{engine: engine},
		Games:     directory,
		Suggester: pacingSuggester,
		Outbox:    pacingRepo,
		Clock:     pacingpostgres.SystemClock{},
		IDGen:     pacingpostgres.UUIDGenerator{},
		Logger:    logger,
	})

	fortuneModule := fortuneservice.NewModule(fortuneservice.Dependencies{
		Rand:   random.SystemSource{},
		Logger: logger,
	})

	beatModule := beatservice.NewModule(beatservice.Dependencies{
		Beats:      beatRepo,
		Scenes:     sceneDirectory{pacing: pacingModule.Pacing},
		Games:      beatGameDirectory{games: gameQueries},
		Members:    directory,
		Classifier: classifier,
		Roller:     fortuneRoller{fortune: fortuneModule.Fortune},
		Engine:     beatProposalEngine{engine: engine},
		Outbox:     beatRepo,
		Clock:      beatpostgres.SystemClock{},
		IDGen:      beatpostgres.UUIDGenerator{},
		Logger:     logger,
	})

	return moduleSet{
		consensus: consensusModule,
		games:     gamesModule,
		pacing:    pacingModule,
		beats:     beatModule,
		fortune:   fortuneModule,

		consensusRepo: consensusRepo,
		gameRepo:      gameRepo,
		pacingRepo:    pacingRepo,
		beatRepo:      beatRepo,
	}
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	mods := buildModules(pg, cfg, logger)
	server := httpserver.New(
		mods.consensus,
		mods.games,
		mods.pacing,
		mods.beats,
		mods.fortune,
		logger,
		normalizeAddr(cfg.HTTPPort),
		cfg.EnableSwaggerUI,
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus := messaging.NewBus(logger)
	mods := buildModules(pg, cfg, logger)

	relays := []outbox.Relay{
		{Store: mods.consensusRepo, Publisher: bus, Service: "consensus-engine", BatchSize: 100, Logger: logger},
		{Store: mods.gameRepo, Publisher: bus, Service: "game-service", BatchSize: 100, Logger: logger},
		{Store: mods.pacingRepo, Publisher: bus, Service: "pacing-service", BatchSize: 100, Logger: logger},
		{Store: mods.beatRepo, Publisher: bus, Service: "beat-service", BatchSize: 100, Logger: logger},
	}

	return &WorkerApp{
		postgres: pg,
		bus:      bus,
		overdue: consensusworkers.OverdueSweeper{
			Proposals: mods.consensusRepo,
			Resolver:  mods.consensus.Proposals,
			Clock:     consensuspostgres.SystemClock{},
			BatchSize: 50,
			Logger:    logger,
		},
		escalation: beatworkers.EscalationSweeper{
			Beats:     mods.beatRepo,
			Escalator: mods.beats.Beats,
			Clock:     beatpostgres.SystemClock{},
			BatchSize: 50,
			Logger:    logger,
		},
		relays: relays,
		resolved: beatworkers.ResolvedConsumer{
			Beats:  mods.beats.Beats,
			Logger: logger,
		},
		pollInterval: cfg.WorkerPollInterval,
		sweepEnabled: cfg.EnableOverdueSweep,
		relayEnabled: cfg.EnableOutboxRelay,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.bus.Subscribe(ctx, "proposal.resolved", "beat-service.proposal-resolved", w.resolved.Handle); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"sweep_enabled", w.sweepEnabled,
		"relay_enabled", w.relayEnabled,
	)

	for {
		if w.sweepEnabled {
			if err := w.overdue.RunOnce(ctx); err != nil {
				return err
			}
			if err := w.escalation.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.relayEnabled {
			for _, relay := range w.relays {
				if err := relay.RunOnce(ctx); err != nil {
					return err
				}
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
