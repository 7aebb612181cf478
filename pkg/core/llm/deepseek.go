package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const deepSeekURL = "https://api.deepseek.com/chat/completions"

type DeepSeekProvider struct {
	Model      string
	APIKey     string
	BaseURL    string       // overrides deepSeekURL, used by tests
	HTTPClient *http.Client // defaults to http.DefaultClient
}

var _ Provider = (*DeepSeekProvider)(nil)

// DeepSeekRequest is the chat/completions request body.
type DeepSeekRequest struct {
	Messages         []Message      `json:"messages"`
	Model            string         `json:"model"`
	Thinking         *ThinkingParam `json:"thinking,omitempty"`
	FrequencyPenalty float64        `json:"frequency_penalty"`
	MaxTokens        int            `json:"max_tokens"`
	PresencePenalty  float64        `json:"presence_penalty"`
	ResponseFormat   ResponseFormat `json:"response_format"`
	Stream           bool           `json:"stream"`
	Temperature      float64        `json:"temperature"`
	TopP             float64        `json:"top_p"`
}

type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type ThinkingParam struct {
	Type string `json:"type"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type DeepSeekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *DeepSeekProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := optString(options, OptAPIKey, p.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("DEEPSEEK_API_KEY_MISSING: Please set DEEPSEEK_API_KEY env var")
	}

	model := p.Model
	if model == "" {
		model = "deepseek-chat"
	}
	model = optString(options, OptModel, model)

	format := "text"
	if wantsJSON(options, systemPrompt, prompt) {
		format = "json_object"
	}

	reqBody := DeepSeekRequest{
		Messages: []Message{
			{Content: withSchema(systemPrompt, optSchema(options)), Role: "system"},
			{Content: prompt, Role: "user"},
		},
		Model:          model,
		Thinking:       &ThinkingParam{Type: "disabled"},
		MaxTokens:      8192,
		ResponseFormat: ResponseFormat{Type: format},
		Temperature:    0.1,
		TopP:           1.0,
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_MARSHAL_ERROR: %w", err)
	}

	url := deepSeekURL
	if p.BaseURL != "" {
		url = p.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_REQ_CREATE_ERROR: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := httpClient(p.HTTPClient).Do(req)
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_API_CALL_ERROR: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", &ReplyError{Provider: "deepseek", Err: fmt.Errorf("DEEPSEEK_READ_BODY_ERROR: %w", err)}
	}
	if res.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "deepseek", Code: res.StatusCode, Body: string(body)}
	}

	var response DeepSeekResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &ReplyError{Provider: "deepseek", Err: fmt.Errorf("DEEPSEEK_UNMARSHAL_ERROR: %w", err)}
	}
	if len(response.Choices) == 0 {
		return "", &ReplyError{Provider: "deepseek", Err: fmt.Errorf("DEEPSEEK_NO_CHOICES: %s: %w", truncate(string(body), 256), ErrEmptyReply)}
	}
	return response.Choices[0].Message.Content, nil
}

func (p *DeepSeekProvider) AdaptInstructions(raw string) string {
	return raw
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

// withSchema appends the reply schema to the system prompt for providers
// without native structured output.
func withSchema(systemPrompt string, schema *Schema) string {
	if schema == nil {
		return systemPrompt
	}
	return systemPrompt + "\n\nRespond with a single JSON object matching this schema:\n" + schema.JSON()
}
