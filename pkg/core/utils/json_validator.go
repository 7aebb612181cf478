package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON attempts to fix common JSON errors from LLM outputs.
// Uses github.com/RealAlexandreAI/json-repair for intelligent repair.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - Trailing commas
// - Comments in JSON
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %w", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %w", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %w", err)
	}
	return string(jsonBytes), nil
}

// SmartParse tries multiple parsing strategies to decode a model reply into v.
// Order of attempts:
// 1. Standard JSON parse of the extracted payload
// 2. JSON repair
// 3. Hjson parse (most lenient)
//
// The returned string is the JSON text that decoded successfully.
func SmartParse(input string, v interface{}) (string, error) {
	payload := ExtractJSON(input)

	if err := json.Unmarshal([]byte(payload), v); err == nil {
		return payload, nil
	}

	if repaired, err := RepairJSON(payload); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return repaired, nil
		}
	}

	if hjsonResult, err := ParseHJSON(payload); err == nil {
		if err := json.Unmarshal([]byte(hjsonResult), v); err == nil {
			return hjsonResult, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
