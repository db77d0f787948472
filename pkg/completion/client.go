// Package completion drafts guidance prose from flow configurations using a
// chat-completion endpoint, with a deterministic local fallback when the
// endpoint is unconfigured or unavailable.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
	"github.com/borashehu-gorgias/flows-migrator/pkg/transform"
)

const systemPrompt = `You are an expert at converting helpdesk Flow configurations into AI Agent Guidance following best practices.

GUIDELINES FOR WRITING GUIDANCE:
- Use the "When, If, Then" framework
- Start with WHEN to set the scenario
- Add IF conditions when needed
- Use THEN for specific actions
- Keep language simple and scannable
- Use bullet points and numbered lists
- Format for readability
- Focus on "do's" rather than "don'ts"
- Explain what the customer should expect

Your task: Convert the Flow JSON into clear, actionable Guidance that an AI Agent can follow.`

// Client calls a chat-completion API. A zero-valued API key disables the
// remote path entirely and every request uses the local fallback.
type Client struct {
	BaseURL string
	Model   string

	apiKey string
	client *http.Client
	logger *slog.Logger
}

func NewClient(baseURL, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		Model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// GuidanceForFlow returns guidance prose for one flow. Remote failures are
// never fatal: the deterministic local assembly takes over and the failure
// is logged.
func (c *Client) GuidanceForFlow(ctx context.Context, flow models.FlowDocument) string {
	if c.apiKey == "" || c.BaseURL == "" {
		return transform.FlowToGuidanceContent(flow)
	}

	content, err := c.complete(ctx, flow)
	if err != nil {
		c.logger.Warn("completion endpoint failed, using local guidance assembly",
			"flow_id", models.FlowID(flow),
			"error", err)

		return transform.FlowToGuidanceContent(flow)
	}

	return fmt.Sprintf("%s\n\n---\nMigrated from Flow ID: %s\nMigration Date: %s\n",
		content, models.FlowID(flow), time.Now().UTC().Format(time.RFC3339))
}

func (c *Client) complete(ctx context.Context, flow models.FlowDocument) (string, error) {
	flowJSON, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return "", err
	}

	entrypointLabel := "N/A"
	if entrypoint, ok := flow["entrypoint"].(map[string]any); ok {
		if label, ok := entrypoint["label"].(string); ok && label != "" {
			entrypointLabel = label
		}
	}

	userPrompt := fmt.Sprintf("Convert this Flow into AI Agent Guidance:\n\nFlow Name: %s\nEntrypoint Question: %s\n\nFlow Structure:\n%s\n\nCreate well-formatted Guidance following the \"When, If, Then\" framework. Extract all messages, steps, and automated responses. Make it clear and actionable.",
		models.FlowName(flow), entrypointLabel, flowJSON)

	payload := map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	if len(body.Choices) == 0 || body.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion response carried no content")
	}

	return body.Choices[0].Message.Content, nil
}
