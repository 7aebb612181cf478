package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// Option keys understood by the providers.
const (
	OptModel          = "model"
	OptAPIKey         = "api_key"
	OptResponseSchema = "response_schema" // *Schema; implies JSON output
	OptResponseFormat = "response_format" // map[string]interface{}{"type": "json_object"}
)

func optString(options map[string]interface{}, key, fallback string) string {
	if val, ok := options[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

func optSchema(options map[string]interface{}) *Schema {
	if s, ok := options[OptResponseSchema].(*Schema); ok {
		return s
	}
	return nil
}

// wantsJSON reports whether the caller asked for a JSON object reply.
func wantsJSON(options map[string]interface{}, prompts ...string) bool {
	if optSchema(options) != nil {
		return true
	}
	if val, ok := options[OptResponseFormat].(map[string]interface{}); ok {
		return val["type"] == "json_object"
	}
	for _, p := range prompts {
		if strings.Contains(strings.ToLower(p), "json") {
			return true
		}
	}
	return false
}

// StatusError is a non-2xx reply from an HTTP provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api returned status %d: %s", e.Provider, e.Code, truncate(e.Body, 512))
}

func (e *StatusError) StatusCode() int { return e.Code }

// ErrEmptyReply means the provider answered without any usable text.
var ErrEmptyReply = errors.New("empty reply")

// ReplyError is a successful HTTP exchange whose body could not be turned
// into a reply: no content, no choices, or a page from a proxy in front of
// the API. The remote side is at fault, so callers may retry.
type ReplyError struct {
	Provider string
	Err      error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s reply unusable: %v", e.Provider, e.Err)
}

func (e *ReplyError) Unwrap() error   { return e.Err }
func (e *ReplyError) Transient() bool { return true }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
