package http

type OpenProposalRequest struct {
	GameID      string `json:"game_id"`
	Kind        string `json:"kind"`
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
	Rationale   string `json:"rationale,omitempty"`
}

type CastVoteRequest struct {
	Choice string `json:"choice"`
}

type VoteBody struct {
	VoterID string `json:"voter_id"`
	Choice  string `json:"choice"`
}

type TallyBody struct {
	Yes       int `json:"yes"`
	No        int `json:"no"`
	Suggest   int `json:"suggest"`
	Eligible  int `json:"eligible"`
	Threshold int `json:"threshold"`
}

type ProposalResponse struct {
	ProposalID      string     `json:"proposal_id"`
	GameID          string     `json:"game_id"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	ProposerID      string     `json:"proposer_id"`
	SubjectType     string     `json:"subject_type"`
	SubjectID       string     `json:"subject_id"`
	OpenedAt        string     `json:"opened_at"`
	DeadlineAt      string     `json:"deadline_at"`
	Rationale       string     `json:"rationale,omitempty"`
	SuggestedDelta  *int       `json:"suggested_delta,omitempty"`
	ResolutionCause string     `json:"resolution_cause,omitempty"`
	WinningDelta    *int       `json:"winning_delta,omitempty"`
	Tally           TallyBody  `json:"tally"`
	Votes           []VoteBody `json:"votes"`
}

type ProposalListResponse struct {
	Items []ProposalResponse `json:"items"`
}

// ErrorResponse is the wire shape for every error this surface returns.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
