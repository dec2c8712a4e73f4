// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.

	// fencedObjectRegex extracts a JSON object if the response is wrapped in markdown.
	fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*({.*})\\s*\x60\x60\x60")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// ErrNoJSONObject is returned when a response contains no brace-delimited object.
var ErrNoJSONObject = errors.New("no JSON object found in model response")

// ExtractJSONObject isolates the JSON object inside a model response.
// Vision models regularly wrap their answer in markdown fences or surround it
// with prose even when JSON output was requested.
func ExtractJSONObject(response string) (string, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", ErrNoJSONObject
	}

	// 1. Markdown wrapping.
	if strings.HasPrefix(response, "```") {
		if matches := fencedObjectRegex.FindStringSubmatch(response); len(matches) > 1 {
			return matches[1], nil
		}
	}

	// 2. Already a bare object.
	if strings.HasPrefix(response, "{") && strings.HasSuffix(response, "}") {
		return response, nil
	}

	// 3. Object embedded in conversational text.
	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first == -1 || last <= first {
		return "", fmt.Errorf("%w (response: %s)", ErrNoJSONObject, TruncateString(response, 200))
	}
	return response[first : last+1], nil
}

// ParseJSONResponse attempts to parse an LLM response string into a target Go type using generics.
func ParseJSONResponse[T any](response string) (*T, error) {
	doc, err := ExtractJSONObject(response)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, TruncateString(doc, 500))
	}
	return &result, nil
}

// TruncateString truncates a string to a maximum length for logging.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Simple truncation; does not account for rune boundaries but sufficient for error logging.
	return s[:maxLen] + "..."
}
