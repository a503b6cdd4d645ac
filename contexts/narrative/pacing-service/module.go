package pacingservice

import (
	"log/slog"

	httpadapter "loom/contexts/narrative/pacing-service/adapters/http"
	"loom/contexts/narrative/pacing-service/adapters/memory"
	"loom/contexts/narrative/pacing-service/application/commands"
	"loom/contexts/narrative/pacing-service/application/queries"
	"loom/contexts/narrative/pacing-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Pacing  commands.PacingUseCase
	Queries queries.PacingQueryUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Pacing    ports.PacingRepository
	Engine    ports.ProposalEngine
	Games     ports.GameSource
	Suggester ports.DeltaSuggester
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pacingUseCase := commands.PacingUseCase{
		Pacing:    deps.Pacing,
		Engine:    deps.Engine,
		Games:     deps.Games,
		Suggester: deps.Suggester,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	queryUseCase := queries.PacingQueryUseCase{
		Pacing: deps.Pacing,
	}
	return Module{
		Handler: httpadapter.Handler{
			Pacing:  pacingUseCase,
			Queries: queryUseCase,
			Logger:  deps.Logger,
		},
		Pacing:  pacingUseCase,
		Queries: queryUseCase,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Pacing:    store,
		Engine:    store,
		Games:     store,
		Suggester: store,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
