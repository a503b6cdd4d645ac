package gameservice

import (
	"log/slog"

	httpadapter "loom/contexts/narrative/game-service/adapters/http"
	"loom/contexts/narrative/game-service/adapters/memory"
	"loom/contexts/narrative/game-service/application/commands"
	"loom/contexts/narrative/game-service/application/queries"
	"loom/contexts/narrative/game-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Games   commands.GameUseCase
	Queries queries.GameQueryUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Games  ports.GameRepository
	Engine ports.ProposalEngine
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Tokens ports.TokenGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	gameUseCase := commands.GameUseCase{
		Games:  deps.Games,
		Engine: deps.Engine,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Tokens: deps.Tokens,
		Logger: deps.Logger,
	}
	queryUseCase := queries.GameQueryUseCase{
		Games: deps.Games,
	}
	return Module{
		Handler: httpadapter.Handler{
			Games:   gameUseCase,
			Queries: queryUseCase,
			Logger:  deps.Logger,
		},
		Games:   gameUseCase,
		Queries: queryUseCase,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Games:  store,
		Engine: store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
		Tokens: store,
		Logger: logger,
	})
	module.Store = store
	return module
}
