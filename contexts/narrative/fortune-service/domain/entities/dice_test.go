package entities

import (
	"errors"
	"testing"

	domainerrors "loom/contexts/narrative/fortune-service/domain/errors"
)

func TestParseDice(t *testing.T) {
	cases := []struct {
		notation string
		want     DiceSpec
	}{
		{"2d6", DiceSpec{Count: 2, Sides: 6}},
		{"d20", DiceSpec{Count: 1, Sides: 20}},
		{"3d8+2", DiceSpec{Count: 3, Sides: 8, Modifier: 2}},
		{"1d10-1", DiceSpec{Count: 1, Sides: 10, Modifier: -1}},
		{" 2D6 ", DiceSpec{Count: 2, Sides: 6}},
	}
	for _, tc := range cases {
		got, err := ParseDice(tc.notation)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.notation, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got %+v, want %+v", tc.notation, got, tc.want)
		}
	}
}

func TestParseDiceRejectsMalformed(t *testing.T) {
	for _, notation := range []string{"", "d", "2d", "0d6", "2d0", "2x6", "2d6+", "2d6++1"} {
		if _, err := ParseDice(notation); !errors.Is(err, domainerrors.ErrInvalidDiceNotation) {
			t.Fatalf("parse %q: got %v, want invalid notation", notation, err)
		}
	}
}

func TestParseDiceEnforcesLimits(t *testing.T) {
	if _, err := ParseDice("101d6"); !errors.Is(err, domainerrors.ErrTooManyDice) {
		t.Fatalf("got %v, want too many dice", err)
	}
	if _, err := ParseDice("1d1001"); !errors.Is(err, domainerrors.ErrTooManySides) {
		t.Fatalf("got %v, want too many sides", err)
	}
}

func TestDiceRollTotals(t *testing.T) {
	spec, err := ParseDice("3d6+2")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	// Fixed draw of 3 makes each die land on 4.
	total := spec.Roll(func(n int) int { return 3 })
	if total != 14 {
		t.Fatalf("total %d, want 14", total)
	}
}
