package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// ErrMissingOpenAIKey is returned when OPENAI_API_KEY was not configured.
var ErrMissingOpenAIKey = errors.New("OPENAI_API_KEY is not set")

// OpenAIProvider calls the OpenAI Responses API. SDK retries are disabled;
// the resilience layer owns retry timing.
type OpenAIProvider struct {
	Model   string
	APIKey  string
	BaseURL string
}

var _ Provider = (*OpenAIProvider)(nil)

func (p *OpenAIProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := optString(options, OptAPIKey, p.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", ErrMissingOpenAIKey
	}

	model := p.Model
	if model == "" {
		model = "gpt-4.1"
	}
	model = optString(options, OptModel, model)

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	client := openai.NewClient(opts...)

	resp, err := client.Responses.New(ctx, responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(withSchema(systemPrompt, optSchema(options)), responses.EasyInputMessageRoleSystem),
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("call OpenAI: %w", err)
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return "", &ReplyError{Provider: "openai", Err: ErrEmptyReply}
	}
	return output, nil
}

func (p *OpenAIProvider) AdaptInstructions(raw string) string {
	return raw
}
