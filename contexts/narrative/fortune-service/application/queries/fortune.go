package queries

import (
	"log/slog"

	application "loom/contexts/narrative/fortune-service/application"
	"loom/contexts/narrative/fortune-service/domain/entities"
	domainerrors "loom/contexts/narrative/fortune-service/domain/errors"
	"loom/contexts/narrative/fortune-service/ports"
)

// FortuneUseCase answers yes/no oracle questions and rolls dice.
// It has no persistence side effects; callers store results themselves.
type FortuneUseCase struct {
	Rand   ports.RandSource
	Logger *slog.Logger
}

// RollResult is one resolved fortune roll.
type RollResult struct {
	Odds         entities.Odds
	Tension      int
	Outcome      entities.Outcome
	Exceptional  bool
	Distribution entities.Distribution
}

// Roll draws a single outcome for the odds label at the scene's tension.
func (uc FortuneUseCase) Roll(odds entities.Odds, tension int) (RollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !odds.Valid() {
		return RollResult{}, domainerrors.ErrInvalidOdds
	}
	tension = entities.ClampTension(tension)

	dist := entities.NewDistribution(odds, tension)
	outcome := dist.Pick(uc.Rand.Float64())

	logger.Info("fortune roll resolved",
		"event", "fortune_roll_resolved",
		"module", "narrative/fortune-service",
		"layer", "application",
		"odds", string(odds),
		"tension", tension,
		"outcome", string(outcome),
	)
	return RollResult{
		Odds:         odds,
		Tension:      tension,
		Outcome:      outcome,
		Exceptional:  outcome.Exceptional(),
		Distribution: dist,
	}, nil
}

// Distribution exposes the outcome split without rolling, for table display.
func (uc FortuneUseCase) Distribution(odds entities.Odds, tension int) (entities.Distribution, error) {
	if !odds.Valid() {
		return entities.Distribution{}, domainerrors.ErrInvalidOdds
	}
	return entities.NewDistribution(odds, tension), nil
}

// Table returns the full distribution grid for all odds at every tension.
func (uc FortuneUseCase) Table() []entities.Distribution {
	table := make([]entities.Distribution, 0, len(entities.AllOdds)*entities.TensionMax)
	for _, odds := range entities.AllOdds {
		for tension := entities.TensionMin; tension <= entities.TensionMax; tension++ {
			table = append(table, entities.NewDistribution(odds, tension))
		}
	}
	return table
}

// DiceResult is one resolved dice-notation roll.
type DiceResult struct {
	Notation string
	Total    int
}

// RollDice parses XdY+Z notation and totals the dice server-side.
func (uc FortuneUseCase) RollDice(notation string) (DiceResult, error) {
	spec, err := entities.ParseDice(notation)
	if err != nil {
		return DiceResult{}, err
	}
	total := spec.Roll(uc.Rand.IntN)

	application.ResolveLogger(uc.Logger).Info("dice roll resolved",
		"event", "fortune_dice_resolved",
		"module", "narrative/fortune-service",
		"layer", "application",
		"notation", notation,
		"total", total,
	)
	return DiceResult{Notation: notation, Total: total}, nil
}
