// Package generation talks to the assistant-text generation service. The
// engine treats it as best-effort: callers never surface its raw errors to a
// channel user.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wanderplan/trip-engine/internal/model"
)

// Generator produces one assistant reply from a transcript context and the
// trip's behavior instructions.
type Generator interface {
	Generate(ctx context.Context, transcript []model.ConversationMessage, behaviorInstructions, travelerText string) (string, error)
}

type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   modelName,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Generate(ctx context.Context, transcript []model.ConversationMessage, behaviorInstructions, travelerText string) (string, error) {
	if c.HTTP == nil {
		return "", errors.New("generation: http client is nil")
	}
	if strings.TrimSpace(c.Model) == "" {
		return "", errors.New("generation: model is required")
	}

	messages := make([]chatMessage, 0, len(transcript)+2)
	if strings.TrimSpace(behaviorInstructions) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: behaviorInstructions})
	}
	for _, m := range transcript {
		role := "assistant"
		if m.Role == model.RoleTraveler {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Body})
	}
	messages = append(messages, chatMessage{Role: "user", Content: travelerText})

	b, err := json.Marshal(chatRequest{Model: c.Model, Messages: messages})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("generation: %s", msg)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("generation: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}
