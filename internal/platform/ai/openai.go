package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"loom/internal/platform/config"

	openai "github.com/sashabaranov/go-openai"
)

const classifySystemPrompt = `You classify one beat of collaborative fiction as "major" or "minor".
A major beat changes the story's direction, establishes or kills a named
character, settles an open question, or contradicts established canon.
The table's threshold setting tells you how eager to flag:
  flag_most:    lean major unless the beat is pure color
  flag_obvious: flag only clearly consequential beats
  minimal:      flag only beats that rewrite canon or end a storyline
Respond with JSON: {"significance":"major"|"minor","rationale":"..."}.`

const deltaSystemPrompt = `You pace collaborative fiction. Given the latest scene of a game, suggest
whether narrative tension should rise, hold, or fall for the next scene.
Respond with JSON: {"delta":1|0|-1,"rationale":"..."}.`

// Client adapts the OpenAI chat API onto the significance-classifier and
// delta-suggester ports. Every call degrades to a safe default on failure:
// minor significance, zero delta. The story never blocks on the model.
type Client struct {
	api                 *openai.Client
	modelClassification string
	modelSuggestion     string
	logger              *slog.Logger
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return &Client{
		api:                 openai.NewClientWithConfig(clientConfig),
		modelClassification: cfg.ModelClassification,
		modelSuggestion:     cfg.ModelSuggestion,
		logger:              logger,
	}
}

type classifyReply struct {
	Significance string `json:"significance"`
	Rationale    string `json:"rationale"`
}

// Classify suggests a significance for a submitted beat.
func (c *Client) Classify(ctx context.Context, gameID string, threshold string, text string) (string, string) {
	user := "Threshold: " + threshold + "\nBeat:\n" + text
	raw, err := c.complete(ctx, c.modelClassification, classifySystemPrompt, user)
	if err != nil {
		c.logDegrade("ai_classify_degraded", gameID, err)
		return "minor", ""
	}
	var reply classifyReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		c.logDegrade("ai_classify_degraded", gameID, err)
		return "minor", ""
	}
	significance := strings.ToLower(strings.TrimSpace(reply.Significance))
	if significance != "major" && significance != "minor" {
		return "minor", ""
	}
	return significance, strings.TrimSpace(reply.Rationale)
}

type deltaReply struct {
	Delta     int    `json:"delta"`
	Rationale string `json:"rationale"`
}

// SuggestDelta proposes a tension shift for a scene that just completed.
func (c *Client) SuggestDelta(ctx context.Context, gameID string, subjectID string) (int, string) {
	user := "Game: " + gameID + "\nScene: " + subjectID
	raw, err := c.complete(ctx, c.modelSuggestion, deltaSystemPrompt, user)
	if err != nil {
		c.logDegrade("ai_delta_degraded", gameID, err)
		return 0, ""
	}
	var reply deltaReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		c.logDegrade("ai_delta_degraded", gameID, err)
		return 0, ""
	}
	delta := reply.Delta
	if delta < -1 {
		delta = -1
	}
	if delta > 1 {
		delta = 1
	}
	return delta, strings.TrimSpace(reply.Rationale)
}

func (c *Client) complete(ctx context.Context, model string, system string, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) logDegrade(event string, gameID string, err error) {
	c.logger.Warn("ai call degraded to default",
		"event", event,
		"module", "internal/platform/ai",
		"layer", "platform",
		"game_id", gameID,
		"error", err.Error(),
	)
}
