package http

type SettingsBody struct {
	SilenceTimerHours     int    `json:"silence_timer_hours"`
	TieBreakMethod        string `json:"tie_break_method"`
	SignificanceThreshold string `json:"significance_threshold"`
	TensionVotingMode     string `json:"tension_voting_mode"`
	StartingTension       int    `json:"starting_tension"`
}

type CreateGameRequest struct {
	Name     string        `json:"name"`
	Pitch    string        `json:"pitch,omitempty"`
	Settings *SettingsBody `json:"settings,omitempty"`
}

type UpdateSettingsRequest struct {
	Settings SettingsBody `json:"settings"`
}

type GameResponse struct {
	GameID   string       `json:"game_id"`
	Name     string       `json:"name"`
	Pitch    string       `json:"pitch,omitempty"`
	Status   string       `json:"status"`
	Settings SettingsBody `json:"settings"`
}

type MemberBody struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type MemberListResponse struct {
	Items []MemberBody `json:"items"`
}

type InvitationResponse struct {
	InvitationID string `json:"invitation_id"`
	GameID       string `json:"game_id"`
	Token        string `json:"token"`
	Active       bool   `json:"active"`
}

type RedeemInvitationRequest struct {
	Token string `json:"token"`
}

type ProposalRefResponse struct {
	ProposalID string `json:"proposal_id"`
	Status     string `json:"status"`
	GameStatus string `json:"game_status"`
}

// ErrorResponse is the wire shape for every error this surface returns.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
