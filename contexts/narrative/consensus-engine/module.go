package consensusengine

import (
	"log/slog"

	httpadapter "loom/contexts/narrative/consensus-engine/adapters/http"
	"loom/contexts/narrative/consensus-engine/adapters/memory"
	"loom/contexts/narrative/consensus-engine/application/commands"
	"loom/contexts/narrative/consensus-engine/application/queries"
	"loom/contexts/narrative/consensus-engine/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Proposals commands.ProposalUseCase
	Queries   queries.ProposalQueryUseCase
	Store     *memory.Store
}

type Dependencies struct {
	Proposals  ports.ProposalRepository
	Membership ports.MembershipSource
	Settings   ports.GameSettingsSource
	Suggester  ports.DeltaSuggester
	Outbox     ports.OutboxWriter
	Tx         ports.TxRunner
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	proposalUseCase := commands.ProposalUseCase{
		Proposals:  deps.Proposals,
		Membership: deps.Membership,
		Settings:   deps.Settings,
		Suggester:  deps.Suggester,
		Outbox:     deps.Outbox,
		Tx:         deps.Tx,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	queryUseCase := queries.ProposalQueryUseCase{
		Proposals:  deps.Proposals,
		Membership: deps.Membership,
	}
	return Module{
		Handler: httpadapter.Handler{
			Proposals: proposalUseCase,
			Queries:   queryUseCase,
			Logger:    deps.Logger,
		},
		Proposals: proposalUseCase,
		Queries:   queryUseCase,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Proposals:  store,
		Membership: store,
		Settings:   store,
		Suggester:  store,
		Outbox:     store,
		Tx:         store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
