package fortuneservice

import (
	"log/slog"

	httpadapter "loom/contexts/narrative/fortune-service/adapters/http"
	"loom/contexts/narrative/fortune-service/adapters/random"
	"loom/contexts/narrative/fortune-service/application/queries"
	"loom/contexts/narrative/fortune-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Fortune queries.FortuneUseCase
}

type Dependencies struct {
	Rand   ports.RandSource
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	fortuneUseCase := queries.FortuneUseCase{
		Rand:   deps.Rand,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Fortune: fortuneUseCase,
			Logger:  deps.Logger,
		},
		Fortune: fortuneUseCase,
	}
}

// NewSeededModule fixes the random source so rolls replay deterministically.
// Tests use it; production wiring passes a SystemSource instead.
func NewSeededModule(seed uint64, logger *slog.Logger) Module {
	return NewModule(Dependencies{
		Rand:   random.NewSeededSource(seed),
		Logger: logger,
	})
}
