package http

// EventBody is one submitted event. Roll and fortune_roll entries come in
// unresolved; responses carry the server-side results.
type EventBody struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Notation string `json:"notation,omitempty"`
	Rolls    []int  `json:"rolls,omitempty"`
	Total    int    `json:"total,omitempty"`
	Odds     string `json:"odds,omitempty"`
	Tension  int    `json:"tension,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

type SubmitBeatRequest struct {
	SceneID string `json:"scene_id"`
	// RevisesBeatID resubmits the replacement for a beat awaiting revision;
	// the new beat is forced major.
	RevisesBeatID string `json:"revises_beat_id,omitempty"`
	// Significance overrides the AI suggestion when set ("major"/"minor").
	Significance string      `json:"significance,omitempty"`
	Events       []EventBody `json:"events"`
}

type BeatResponse struct {
	BeatID        string      `json:"beat_id"`
	SceneID       string      `json:"scene_id"`
	GameID        string      `json:"game_id"`
	AuthorID      string      `json:"author_id"`
	Significance  string      `json:"significance"`
	Status        string      `json:"status"`
	Events        []EventBody `json:"events"`
	Version       int         `json:"version"`
	RevisesBeatID string      `json:"revises_beat_id,omitempty"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
}

type BeatListResponse struct {
	Beats []BeatResponse `json:"beats"`
}

type FileChallengeRequest struct {
	Reason string `json:"reason"`
}

type AcceptChallengeRequest struct {
	Events []EventBody `json:"events"`
}

type ChallengeResponse struct {
	ChallengeID  string `json:"challenge_id"`
	BeatID       string `json:"beat_id"`
	GameID       string `json:"game_id"`
	ChallengerID string `json:"challenger_id"`
	Reason       string `json:"reason"`
	Status       string `json:"status"`
	OpenedAt     string `json:"opened_at"`
	ResolvedAt   string `json:"resolved_at,omitempty"`
}

type ChallengeListResponse struct {
	Challenges []ChallengeResponse `json:"challenges"`
}

type AddCommentRequest struct {
	Text string `json:"text"`
}

type CommentBody struct {
	CommentID string `json:"comment_id"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

type CommentListResponse struct {
	Comments []CommentBody `json:"comments"`
}

// ErrorResponse is the wire shape for every error this surface returns.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
