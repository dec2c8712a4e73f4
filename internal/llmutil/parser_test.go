// internal/llmutil/parser_test.go
package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "Bare object", input: `{"action":"finish"}`, want: `{"action":"finish"}`},
		{name: "Fenced with tag", input: "```json\n{\"action\":\"wait\"}\n```", want: `{"action":"wait"}`},
		{name: "Fenced without tag", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "Chatty prefix and suffix", input: "Sure! Here it is: {\"action\":\"click\"} Let me know.", want: `{"action":"click"}`},
		{name: "Nested braces", input: `noise {"a":{"b":2}} tail`, want: `{"a":{"b":2}}`},
		{name: "Empty", input: "   ", wantErr: true},
		{name: "No braces", input: "I cannot help with that.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSONObject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	type payload struct {
		Action string `json:"action"`
		Count  int    `json:"count"`
	}

	got, err := ParseJSONResponse[payload]("```json\n{\"action\":\"type\",\"count\":3}\n```")
	require.NoError(t, err)
	assert.Equal(t, "type", got.Action)
	assert.Equal(t, 3, got.Count)

	_, err = ParseJSONResponse[payload](`{"action": 5}`)
	assert.Error(t, err)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 5))
	assert.Equal(t, "ab...", TruncateString("abcdef", 2))
	assert.Equal(t, "", TruncateString("abc", 0))
}
