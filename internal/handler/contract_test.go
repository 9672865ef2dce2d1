package handler_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func requireSubmissionContract(t *testing.T, data json.RawMessage) {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("..", "..", "contracts", "submission.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var payload interface{}
	require.NoError(t, decoder.Decode(&payload))
	require.NoError(t, schema.Validate(payload))
}
