package annotation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationSerializesAllFields(t *testing.T) {
	data, err := json.Marshal(Annotation{})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	for _, key := range []string{
		"text", "vocabulary_id", "category", "subcategory", "term",
		"score", "keyword", "inclusion", "exclusion", "mapper",
	} {
		assert.Contains(t, fields, key)
		assert.NotNil(t, fields[key], "field %s must not serialize as null", key)
	}
}

func TestNewResultNeverNull(t *testing.T) {
	data, err := json.Marshal(NewResult(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"result": []}`, string(data))
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"text": "patients with glioblastoma"}`))
	require.NoError(t, err)
	assert.Equal(t, "patients with glioblastoma", req.Text)
}

func TestParseRequestMalformed(t *testing.T) {
	_, err := ParseRequest([]byte(`{"text": `))
	require.Error(t, err)
	assert.True(t, IsInput(err))
	assert.False(t, IsLoad(err))
}

func TestBackendErrorClassification(t *testing.T) {
	err := NewBackendError(TagMesh, Timeout, assert.AnError)

	be, ok := AsBackend(err)
	require.True(t, ok)
	assert.Equal(t, TagMesh, be.Backend)
	assert.Equal(t, Timeout, be.Kind)
	assert.ErrorIs(t, err, assert.AnError)
}
