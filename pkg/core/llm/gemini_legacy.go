package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	legacygenai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// LegacyGeminiProvider talks to Gemini through the older generative-ai-go SDK,
// for deployments that have not moved to google.golang.org/genai.
type LegacyGeminiProvider struct {
	Model  string
	APIKey string
}

var _ Provider = (*LegacyGeminiProvider)(nil)

func (p *LegacyGeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := optString(options, OptAPIKey, p.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := legacygenai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	name := p.Model
	if name == "" {
		name = "gemini-1.5-pro"
	}
	model := client.GenerativeModel(optString(options, OptModel, name))
	model.SetTemperature(0.1)
	if systemPrompt != "" {
		model.SystemInstruction = &legacygenai.Content{Parts: []legacygenai.Part{legacygenai.Text(systemPrompt)}}
	}
	if wantsJSON(options, systemPrompt, prompt) {
		model.ResponseMIMEType = "application/json"
	}
	if schema := optSchema(options); schema != nil {
		model.ResponseSchema = schema.Legacy()
	}

	resp, err := model.GenerateContent(ctx, legacygenai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &ReplyError{Provider: "gemini", Err: fmt.Errorf("no candidates: %w", ErrEmptyReply)}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(legacygenai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

func (p *LegacyGeminiProvider) AdaptInstructions(raw string) string {
	return raw
}
