// Package prompt provides a centralized prompt library for LLM interactions.
// Prompts are defined in JSON files, embedded as defaults and optionally
// overridden from a directory at runtime, so wording changes need no code change.
package prompt

// PromptTemplate represents a reusable prompt with metadata
type PromptTemplate struct {
	ID             string           `json:"id"`                   // Unique identifier (e.g., "assessment.sme_audit")
	Name           string           `json:"name"`                 // Human-readable name
	Category       string           `json:"category"`             // Category (assessment, support, ...)
	Description    string           `json:"description"`          // Description of prompt purpose
	SystemPrompt   string           `json:"system_prompt"`        // The system prompt content
	UserPromptTmpl string           `json:"user_prompt_template"` // Go template for user prompt
	Variables      []PromptVariable `json:"variables"`            // Variables used in template
	Version        string           `json:"version"`              // Version for tracking changes
}

// PromptVariable defines a variable used in a prompt template
type PromptVariable struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, number, object
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default"`
}

// PromptExecutionContext holds runtime values for prompt execution
type PromptExecutionContext struct {
	Variables map[string]interface{}
}

// NewContext creates a new execution context
func NewContext() *PromptExecutionContext {
	return &PromptExecutionContext{
		Variables: make(map[string]interface{}),
	}
}

// Set adds a variable to the context
func (c *PromptExecutionContext) Set(key string, value interface{}) *PromptExecutionContext {
	c.Variables[key] = value
	return c
}
