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

const dashScopeURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

type QwenProvider struct {
	Model      string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

var _ Provider = (*QwenProvider)(nil)

func (p *QwenProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := optString(options, OptAPIKey, p.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("DASHSCOPE_API_KEY")
	}
	// Fallback to QWEN_API_KEY if DASHSCOPE_API_KEY is not set
	if apiKey == "" {
		apiKey = os.Getenv("QWEN_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("QWEN_API_KEY_MISSING: Please set DASHSCOPE_API_KEY or QWEN_API_KEY")
	}

	model := p.Model
	if model == "" {
		model = "qwen-max"
	}
	model = optString(options, OptModel, model)

	// Native DashScope API format
	// See: https://help.aliyun.com/document_detail/2712532.html
	params := map[string]interface{}{
		"result_format": "message",
		"temperature":   0.1,
	}
	if wantsJSON(options, systemPrompt, prompt) {
		params["response_format"] = map[string]string{"type": "json_object"}
	}
	reqBody := map[string]interface{}{
		"model": model,
		"input": map[string]interface{}{
			"messages": []map[string]string{
				{"role": "system", "content": withSchema(systemPrompt, optSchema(options))},
				{"role": "user", "content": prompt},
			},
		},
		"parameters": params,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal qwen request: %w", err)
	}

	url := dashScopeURL
	if p.BaseURL != "" {
		url = p.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := httpClient(p.HTTPClient).Do(req)
	if err != nil {
		return "", fmt.Errorf("qwen api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: "qwen", Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	var result struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			// Some DashScope endpoints return 'text' directly in output
			Text string `json:"text"`
		} `json:"output"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ReplyError{Provider: "qwen", Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Code != "" {
		return "", fmt.Errorf("qwen api error: %s - %s", result.Code, result.Message)
	}

	if len(result.Output.Choices) > 0 {
		return result.Output.Choices[0].Message.Content, nil
	}
	if result.Output.Text != "" {
		return result.Output.Text, nil
	}
	return "", &ReplyError{Provider: "qwen", Err: ErrEmptyReply}
}

func (p *QwenProvider) AdaptInstructions(raw string) string {
	return raw
}
