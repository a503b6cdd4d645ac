package beatservice

import (
	"log/slog"

	httpadapter "loom/contexts/narrative/beat-service/adapters/http"
	"loom/contexts/narrative/beat-service/adapters/memory"
	"loom/contexts/narrative/beat-service/application/commands"
	"loom/contexts/narrative/beat-service/application/queries"
	"loom/contexts/narrative/beat-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Beats   commands.BeatUseCase
	Queries queries.BeatQueryUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Beats      ports.BeatRepository
	Scenes     ports.SceneSource
	Games      ports.GameSource
	Members    ports.MembershipSource
	Classifier ports.SignificanceClassifier
	Roller     ports.Roller
	Engine     ports.ProposalEngine
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	beatUseCase := commands.BeatUseCase{
		Beats:      deps.Beats,
		Scenes:     deps.Scenes,
		Games:      deps.Games,
		Members:    deps.Members,
		Classifier: deps.Classifier,
		Roller:     deps.Roller,
		Engine:     deps.Engine,
		Outbox:     deps.Outbox,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	queryUseCase := queries.BeatQueryUseCase{
		Beats: deps.Beats,
	}
	return Module{
		Handler: httpadapter.Handler{
			Beats:   beatUseCase,
			Queries: queryUseCase,
			Logger:  deps.Logger,
		},
		Beats:   beatUseCase,
		Queries: queryUseCase,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Beats:      store,
		Scenes:     store,
		Games:      store,
		Members:    store,
		Classifier: store,
		Roller:     store,
		Engine:     store,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
