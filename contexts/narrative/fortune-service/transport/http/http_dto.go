package http

type RollFortuneRequest struct {
	Odds    string `json:"odds"`
	Tension int    `json:"tension"`
}

type DistributionBody struct {
	ExceptionalYes float64 `json:"exceptional_yes"`
	Yes            float64 `json:"yes"`
	No             float64 `json:"no"`
	ExceptionalNo  float64 `json:"exceptional_no"`
}

type RollFortuneResponse struct {
	Odds         string           `json:"odds"`
	OddsLabel    string           `json:"odds_label"`
	Tension      int              `json:"tension"`
	Outcome      string           `json:"outcome"`
	OutcomeLabel string           `json:"outcome_label"`
	Exceptional  bool             `json:"exceptional"`
	Distribution DistributionBody `json:"distribution"`
}

type TableRow struct {
	Odds         string           `json:"odds"`
	Tension      int              `json:"tension"`
	Distribution DistributionBody `json:"distribution"`
}

type TableResponse struct {
	Rows []TableRow `json:"rows"`
}

type RollDiceRequest struct {
	Notation string `json:"notation"`
}

type RollDiceResponse struct {
	Notation string `json:"notation"`
	Total    int    `json:"total"`
}

// ErrorResponse is the wire shape for every error this surface returns.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
