package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/chadiek/interview-coach/internal/interview"
)

// GeminiClient generates utterances with the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a Gemini API client. An empty model selects gemini-2.5-flash.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key missing")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelName: model}, nil
}

// geminiContents maps turns onto user/model roles. An empty history becomes
// the greeting instruction.
func geminiContents(history []interview.Turn, c interview.Context) []*genai.Content {
	if len(history) == 0 {
		return []*genai.Content{genai.NewContentFromText(GreetingInstruction(c), genai.RoleUser)}
	}
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		var role genai.Role = genai.RoleUser
		if t.Speaker == interview.SpeakerInterviewer {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	// the model must answer a user turn
	if history[len(history)-1].Speaker == interview.SpeakerInterviewer {
		contents = append(contents, genai.NewContentFromText("Continue the interview with your next question.", genai.RoleUser))
	}
	return contents
}

func (g *GeminiClient) NextUtterance(ctx context.Context, history []interview.Turn, c interview.Context) (string, error) {
	temp := float32(0.7)
	topP := float32(0.9)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(c), genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   512,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, geminiContents(history, c), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}
