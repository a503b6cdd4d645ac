package http

// ProposeActRequest opens an act_create ballot for a new act.
type ProposeActRequest struct {
	GameID          string `json:"game_id"`
	GuidingQuestion string `json:"guiding_question"`
}

// ProposeSceneRequest opens a scene_create ballot for a new scene. Tension
// is optional; the default comes from the previous scene's carry-forward.
type ProposeSceneRequest struct {
	ActID           string `json:"act_id"`
	GuidingQuestion string `json:"guiding_question"`
	Location        string `json:"location,omitempty"`
	Tension         *int   `json:"tension,omitempty"`
}

type ActResponse struct {
	ActID           string `json:"act_id"`
	GameID          string `json:"game_id"`
	GuidingQuestion string `json:"guiding_question"`
	Status          string `json:"status"`
	Order           int    `json:"order"`
	ProposalID      string `json:"proposal_id,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type ActListResponse struct {
	Acts []ActResponse `json:"acts"`
}

type SceneResponse struct {
	SceneID             string `json:"scene_id"`
	ActID               string `json:"act_id"`
	GameID              string `json:"game_id"`
	GuidingQuestion     string `json:"guiding_question"`
	Location            string `json:"location,omitempty"`
	Status              string `json:"status"`
	Tension             int    `json:"tension"`
	TensionCarryForward *int   `json:"tension_carry_forward,omitempty"`
	ProposalID          string `json:"proposal_id,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

type SceneListResponse struct {
	Scenes []SceneResponse `json:"scenes"`
}

// ErrorResponse is the wire shape for every error this surface returns.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
