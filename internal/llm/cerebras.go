package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chadiek/interview-coach/internal/interview"
)

const cerebrasEndpoint = "https://api.cerebras.ai/v1/chat/completions"

type CerebrasClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
	Endpoint   string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

func NewCerebrasClient(apiKey, model string) *CerebrasClient {
	return &CerebrasClient{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		APIKey:     apiKey,
		Model:      model,
		Endpoint:   cerebrasEndpoint,
	}
}

// chatMessages maps the conversation onto chat roles: the interviewer is the
// assistant, the requester the user.
func chatMessages(history []interview.Turn, c interview.Context) []chatMessage {
	msgs := []chatMessage{{Role: "system", Content: SystemPrompt(c)}}
	if len(history) == 0 {
		return append(msgs, chatMessage{Role: "user", Content: GreetingInstruction(c)})
	}
	for _, t := range history {
		role := "user"
		if t.Speaker == interview.SpeakerInterviewer {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: t.Content})
	}
	return msgs
}

func (c *CerebrasClient) NextUtterance(ctx context.Context, history []interview.Turn, ic interview.Context) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("cerebras api key missing")
	}

	reqBody, _ := json.Marshal(chatCompletionsRequest{Model: c.Model, Messages: chatMessages(history, ic), Temperature: 0.7})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("cerebras error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("cerebras: empty choices")
	}
	answer := strings.TrimSpace(cr.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("cerebras: empty message")
	}
	return answer, nil
}
