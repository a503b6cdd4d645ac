package fortuneservice

import (
	"context"
	"errors"
	"testing"

	"loom/contexts/narrative/fortune-service/domain/entities"
	domainerrors "loom/contexts/narrative/fortune-service/domain/errors"
	httptransport "loom/contexts/narrative/fortune-service/transport/http"
)

func TestRollFortuneThroughHandler(t *testing.T) {
	module := NewSeededModule(1, nil)

	resp, err := module.Handler.RollFortuneHandler(context.Background(), httptransport.RollFortuneRequest{
		Odds:    "likely",
		Tension: 7,
	})
	if err != nil {
		t.Fatalf("roll failed: %v", err)
	}
	if resp.Odds != "likely" || resp.Tension != 7 {
		t.Fatalf("echoed inputs wrong: %+v", resp)
	}
	switch entities.Outcome(resp.Outcome) {
	case entities.OutcomeExceptionalYes, entities.OutcomeYes, entities.OutcomeNo, entities.OutcomeExceptionalNo:
	default:
		t.Fatalf("unexpected outcome %q", resp.Outcome)
	}
	if resp.Exceptional != entities.Outcome(resp.Outcome).Exceptional() {
		t.Fatalf("exceptional flag disagrees with outcome %q", resp.Outcome)
	}
}

func TestRollFortuneDeterministicUnderSeed(t *testing.T) {
	first := NewSeededModule(42, nil)
	second := NewSeededModule(42, nil)

	for i := 0; i < 20; i++ {
		a, err := first.Handler.RollFortuneHandler(context.Background(), httptransport.RollFortuneRequest{Odds: "fifty_fifty", Tension: 5})
		if err != nil {
			t.Fatalf("roll failed: %v", err)
		}
		b, err := second.Handler.RollFortuneHandler(context.Background(), httptransport.RollFortuneRequest{Odds: "fifty_fifty", Tension: 5})
		if err != nil {
			t.Fatalf("roll failed: %v", err)
		}
		if a.Outcome != b.Outcome {
			t.Fatalf("seeded rolls diverged at %d: %s vs %s", i, a.Outcome, b.Outcome)
		}
	}
}

func TestRollFortuneRejectsUnknownOdds(t *testing.T) {
	module := NewSeededModule(1, nil)
	_, err := module.Handler.RollFortuneHandler(context.Background(), httptransport.RollFortuneRequest{Odds: "certain", Tension: 5})
	if !errors.Is(err, domainerrors.ErrInvalidOdds) {
		t.Fatalf("got %v, want invalid odds", err)
	}
}

func TestRollFortuneClampsTension(t *testing.T) {
	module := NewSeededModule(1, nil)
	resp, err := module.Handler.RollFortuneHandler(context.Background(), httptransport.RollFortuneRequest{Odds: "unlikely", Tension: 99})
	if err != nil {
		t.Fatalf("roll failed: %v", err)
	}
	if resp.Tension != entities.TensionMax {
		t.Fatalf("tension not clamped: %d", resp.Tension)
	}
}

func TestProbabilityTableCoversGrid(t *testing.T) {
	module := NewSeededModule(1, nil)
	resp, err := module.Handler.ProbabilityTableHandler(context.Background())
	if err != nil {
		t.Fatalf("table failed: %v", err)
	}
	want := len(entities.AllOdds) * entities.TensionMax
	if len(resp.Rows) != want {
		t.Fatalf("table has %d rows, want %d", len(resp.Rows), want)
	}
}

func TestRollDiceThroughHandler(t *testing.T) {
	module := NewSeededModule(1, nil)
	resp, err := module.Handler.RollDiceHandler(context.Background(), httptransport.RollDiceRequest{Notation: "4d6+1"})
	if err != nil {
		t.Fatalf("dice roll failed: %v", err)
	}
	if resp.Total < 4+1 || resp.Total > 4*6+1 {
		t.Fatalf("total %d out of range for 4d6+1", resp.Total)
	}
	if _, err := module.Handler.RollDiceHandler(context.Background(), httptransport.RollDiceRequest{Notation: "nope"}); !errors.Is(err, domainerrors.ErrInvalidDiceNotation) {
		t.Fatalf("got %v, want invalid notation", err)
	}
}
