package llm

import (
	"encoding/json"

	legacygenai "github.com/google/generative-ai-go/genai"
	"google.golang.org/genai"
)

type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
)

// Schema is a provider-neutral description of a structured reply. Gemini
// providers translate it into their SDK types; the others embed its JSON form
// in the system prompt.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

func (s *Schema) JSON() string {
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

var genaiTypes = map[SchemaType]genai.Type{
	TypeObject:  genai.TypeObject,
	TypeArray:   genai.TypeArray,
	TypeString:  genai.TypeString,
	TypeNumber:  genai.TypeNumber,
	TypeInteger: genai.TypeInteger,
	TypeBoolean: genai.TypeBoolean,
}

// GenAI converts to the google.golang.org/genai schema.
func (s *Schema) GenAI() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiTypes[s.Type],
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       s.Items.GenAI(),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = v.GenAI()
		}
	}
	return out
}

var legacyTypes = map[SchemaType]legacygenai.Type{
	TypeObject:  legacygenai.TypeObject,
	TypeArray:   legacygenai.TypeArray,
	TypeString:  legacygenai.TypeString,
	TypeNumber:  legacygenai.TypeNumber,
	TypeInteger: legacygenai.TypeInteger,
	TypeBoolean: legacygenai.TypeBoolean,
}

// Legacy converts to the github.com/google/generative-ai-go schema.
func (s *Schema) Legacy() *legacygenai.Schema {
	if s == nil {
		return nil
	}
	out := &legacygenai.Schema{
		Type:        legacyTypes[s.Type],
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       s.Items.Legacy(),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*legacygenai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = v.Legacy()
		}
	}
	return out
}
