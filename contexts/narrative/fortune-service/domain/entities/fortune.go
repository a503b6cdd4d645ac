package entities

// Odds is the stated likelihood of a yes answer before tension is applied.
type Odds string

const (
	OddsImpossible   Odds = "impossible"
	OddsVeryUnlikely Odds = "very_unlikely"
	OddsUnlikely     Odds = "unlikely"
	OddsFiftyFifty   Odds = "fifty_fifty"
	OddsLikely       Odds = "likely"
	OddsVeryLikely   Odds = "very_likely"
	OddsNearCertain  Odds = "near_certain"
)

// AllOdds is the odds ladder in ascending order of yes-probability.
var AllOdds = []Odds{
	OddsImpossible,
	OddsVeryUnlikely,
	OddsUnlikely,
	OddsFiftyFifty,
	OddsLikely,
	OddsVeryLikely,
	OddsNearCertain,
}

var oddsBaseline = map[Odds]float64{
	OddsImpossible:   0.05,
	OddsVeryUnlikely: 0.20,
	OddsUnlikely:     0.35,
	OddsFiftyFifty:   0.50,
	OddsLikely:       0.65,
	OddsVeryLikely:   0.80,
	OddsNearCertain:  0.95,
}

func (o Odds) Valid() bool {
	_, ok := oddsBaseline[o]
	return ok
}

func (o Odds) Label() string {
	switch o {
	case OddsImpossible:
		return "Impossible"
	case OddsVeryUnlikely:
		return "Very Unlikely"
	case OddsUnlikely:
		return "Unlikely"
	case OddsFiftyFifty:
		return "50/50"
	case OddsLikely:
		return "Likely"
	case OddsVeryLikely:
		return "Very Likely"
	case OddsNearCertain:
		return "Near Certain"
	default:
		return "Unknown"
	}
}

// Outcome is one of the four fortune roll results.
type Outcome string

const (
	OutcomeExceptionalYes Outcome = "exceptional_yes"
	OutcomeYes            Outcome = "yes"
	OutcomeNo             Outcome = "no"
	OutcomeExceptionalNo  Outcome = "exceptional_no"
)

func (o Outcome) Exceptional() bool {
	return o == OutcomeExceptionalYes || o == OutcomeExceptionalNo
}

func (o Outcome) Label() string {
	switch o {
	case OutcomeExceptionalYes:
		return "Exceptional Yes"
	case OutcomeYes:
		return "Yes"
	case OutcomeNo:
		return "No"
	case OutcomeExceptionalNo:
		return "Exceptional No"
	default:
		return "Unknown"
	}
}

const (
	TensionMin      = 1
	TensionMax      = 9
	TensionBaseline = 5
)

// ClampTension forces a tension value into the playable 1-9 range.
func ClampTension(tension int) int {
	if tension < TensionMin {
		return TensionMin
	}
	if tension > TensionMax {
		return TensionMax
	}
	return tension
}

// Distribution is the full outcome probability split for one (odds, tension)
// pair. The four fields always sum to 1.
type Distribution struct {
	Odds           Odds
	Tension        int
	ExceptionalYes float64
	Yes            float64
	No             float64
	ExceptionalNo  float64
}

// YesProbability is the total chance of any yes outcome.
func (d Distribution) YesProbability() float64 {
	return d.ExceptionalYes + d.Yes
}

// ExceptionalProbability is the fraction of each side upgraded to exceptional.
func (d Distribution) ExceptionalProbability() float64 {
	return d.ExceptionalYes + d.ExceptionalNo
}

// NewDistribution computes the outcome split for an odds label at a tension.
// Each tension point from the baseline 5 shifts 5% of probability toward yes,
// clamped so no side ever drops below a 5% chance. The exceptional share
// grows with tension independently on both sides.
func NewDistribution(odds Odds, tension int) Distribution {
	tension = ClampTension(tension)
	base := oddsBaseline[odds]

	pYes := clampFloat(base+float64(tension-TensionBaseline)*0.05, 0.05, 0.95)
	pExceptional := clampFloat(0.05+float64(tension)*0.02, 0.05, 0.30)

	return Distribution{
		Odds:           odds,
		Tension:        tension,
		ExceptionalYes: pYes * pExceptional,
		Yes:            pYes * (1 - pExceptional),
		No:             (1 - pYes) * (1 - pExceptional),
		ExceptionalNo:  (1 - pYes) * pExceptional,
	}
}

// Pick maps a single uniform draw in [0, 1) onto the cumulative outcome bands.
func (d Distribution) Pick(draw float64) Outcome {
	cut := d.ExceptionalYes
	if draw < cut {
		return OutcomeExceptionalYes
	}
	cut += d.Yes
	if draw < cut {
		return OutcomeYes
	}
	cut += d.No
	if draw < cut {
		return OutcomeNo
	}
	return OutcomeExceptionalNo
}

func clampFloat(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
