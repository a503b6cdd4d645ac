package entities

import (
	"math"
	"testing"
)

func TestDistributionSumsToOne(t *testing.T) {
	for _, odds := range AllOdds {
		for tension := TensionMin; tension <= TensionMax; tension++ {
			d := NewDistribution(odds, tension)
			sum := d.ExceptionalYes + d.Yes + d.No + d.ExceptionalNo
			if math.Abs(sum-1.0) > 1e-9 {
				t.Fatalf("distribution for %s at tension %d sums to %f", odds, tension, sum)
			}
		}
	}
}

func TestDistributionBaselineAtNeutralTension(t *testing.T) {
	cases := map[Odds]float64{
		OddsImpossible:   0.05,
		OddsVeryUnlikely: 0.20,
		OddsUnlikely:     0.35,
		OddsFiftyFifty:   0.50,
		OddsLikely:       0.65,
		OddsVeryLikely:   0.80,
		OddsNearCertain:  0.95,
	}
	for odds, want := range cases {
		d := NewDistribution(odds, TensionBaseline)
		if math.Abs(d.YesProbability()-want) > 1e-9 {
			t.Fatalf("%s at tension 5: yes probability %f, want %f", odds, d.YesProbability(), want)
		}
	}
}

func TestDistributionYesMonotonicInTension(t *testing.T) {
	for _, odds := range AllOdds {
		prev := NewDistribution(odds, TensionMin)
		for tension := TensionMin + 1; tension <= TensionMax; tension++ {
			d := NewDistribution(odds, tension)
			if d.YesProbability() < prev.YesProbability()-1e-9 {
				t.Fatalf("%s yes probability dropped from %f to %f at tension %d",
					odds, prev.YesProbability(), d.YesProbability(), tension)
			}
			if d.ExceptionalProbability() < prev.ExceptionalProbability()-1e-9 {
				t.Fatalf("%s exceptional share dropped at tension %d", odds, tension)
			}
			prev = d
		}
	}
}

func TestDistributionClampsExtremes(t *testing.T) {
	low := NewDistribution(OddsImpossible, TensionMin)
	if low.YesProbability() < 0.05-1e-9 {
		t.Fatalf("yes probability floor breached: %f", low.YesProbability())
	}
	high := NewDistribution(OddsNearCertain, TensionMax)
	if high.YesProbability() > 0.95+1e-9 {
		t.Fatalf("yes probability ceiling breached: %f", high.YesProbability())
	}
	if high.ExceptionalProbability() > 0.30+1e-9 {
		t.Fatalf("exceptional share ceiling breached: %f", high.ExceptionalProbability())
	}
}

func TestPickMapsDrawToBands(t *testing.T) {
	d := NewDistribution(OddsFiftyFifty, TensionBaseline)

	if got := d.Pick(0.0); got != OutcomeExceptionalYes {
		t.Fatalf("draw 0 resolved to %s", got)
	}
	if got := d.Pick(d.ExceptionalYes + d.Yes/2); got != OutcomeYes {
		t.Fatalf("mid-yes draw resolved to %s", got)
	}
	if got := d.Pick(d.ExceptionalYes + d.Yes + d.No/2); got != OutcomeNo {
		t.Fatalf("mid-no draw resolved to %s", got)
	}
	if got := d.Pick(1.0 - 1e-12); got != OutcomeExceptionalNo {
		t.Fatalf("top-of-range draw resolved to %s", got)
	}
}

func TestClampTension(t *testing.T) {
	if got := ClampTension(0); got != TensionMin {
		t.Fatalf("clamp below range returned %d", got)
	}
	if got := ClampTension(12); got != TensionMax {
		t.Fatalf("clamp above range returned %d", got)
	}
	if got := ClampTension(7); got != 7 {
		t.Fatalf("in-range tension changed to %d", got)
	}
}

func TestOddsValidation(t *testing.T) {
	if !OddsLikely.Valid() {
		t.Fatalf("likely should be a valid odds label")
	}
	if Odds("certain").Valid() {
		t.Fatalf("unknown odds label accepted")
	}
}
