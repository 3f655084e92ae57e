// Package utils holds helpers for handling model output: lenient JSON
// decoding and markdown cleanup/rendering.
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned by SmartParse when no strategy yields a value.
var ErrUnparseable = errors.New("SMART_PARSE_FAILED")

// RepairJSON fixes the usual defects of model-produced JSON: unquoted keys,
// single quotes, trailing commas, unclosed brackets and code fences.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %w", err)
	}
	return repaired, nil
}

// ParseHJSON parses Hjson (comments, unquoted keys and strings, optional
// commas) and returns the equivalent standard JSON.
func ParseHJSON(data string) (string, error) {
	var v interface{}
	if err := hjson.Unmarshal([]byte(data), &v); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %w", err)
	}
	return string(out), nil
}

// SmartParse decodes input into dst, trying in order:
//  1. standard JSON
//  2. JSON repair
//  3. Hjson
//
// It returns the JSON text that finally decoded.
func SmartParse(input string, dst interface{}) (string, error) {
	input = CleanMarkdown(input)
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%w: empty input", ErrUnparseable)
	}

	if err := json.Unmarshal([]byte(input), dst); err == nil {
		return input, nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), dst); err == nil {
			return repaired, nil
		}
	}

	if converted, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), dst); err == nil {
			return converted, nil
		}
	}

	return "", fmt.Errorf("%w: all parsing strategies failed", ErrUnparseable)
}
