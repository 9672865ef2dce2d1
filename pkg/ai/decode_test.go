package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\": 1}\n```": `{"a": 1}`,
		"```\n{\"a\": 1}\n```":     `{"a": 1}`,
		"  {\"a\": 1}  ":           `{"a": 1}`,
		"```{\"a\": 1}```":         `{"a": 1}`,
		"```go\nfunc A() {}\n```":  "func A() {}",
		"plain feedback":           "plain feedback",
	}
	for input, want := range cases {
		require.Equal(t, want, StripFences(input), input)
	}
}

func TestDecodeJSONValidatesShape(t *testing.T) {
	var payload struct {
		Time  string `json:"time"`
		Space string `json:"space"`
	}

	require.NoError(t, decodeJSON("```json\n{\"time\": \"O(n)\", \"space\": \"O(1)\"}\n```", complexityValidator, &payload))
	require.Equal(t, "O(n)", payload.Time)

	err := decodeJSON(`{"time": "O(n)"}`, complexityValidator, &payload)
	require.ErrorIs(t, err, ErrMalformedResponse)

	err = decodeJSON("not json", complexityValidator, &payload)
	require.ErrorIs(t, err, ErrMalformedResponse)

	err = decodeJSON("", complexityValidator, &payload)
	require.ErrorIs(t, err, ErrMalformedResponse)
}
