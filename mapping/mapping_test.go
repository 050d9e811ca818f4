package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtag/annotation"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mesh.csv", "CUI,vocab_id\nC0027651,V1\nC0024485,V2\n")

	m, err := Load("mesh", path, "CUI", "vocab_id")
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "mesh", m.Name())

	id, ok := m.Resolve("C0027651")
	assert.True(t, ok)
	assert.Equal(t, "V1", id)

	_, ok = m.Resolve("C9999999")
	assert.False(t, ok)
}

func TestLoadLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dup.csv", "CUI,vocab_id\nC0027651,V1\nC0027651,V9\n")

	m, err := Load("mesh", path, "CUI", "vocab_id")
	require.NoError(t, err)

	id, ok := m.Resolve("C0027651")
	require.True(t, ok)
	assert.Equal(t, "V9", id, "later row overwrites earlier")
	assert.Equal(t, 1, m.Len())
}

func TestLoadMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.csv", "identifier,vocab_id\nX,V1\n")

	_, err := Load("mesh", path, "CUI", "vocab_id")
	require.Error(t, err)
	assert.True(t, annotation.IsLoad(err))
}

func TestLoadGlobMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "part_a.csv", "curie,vocab_id\nNCIT:C1,V1\nNCIT:C2,V2\n")
	writeFile(t, dir, "part_b.csv", "curie,vocab_id\nNCIT:C2,V8\nNCIT:C3,V3\n")

	m, err := Load("ontology", filepath.Join(dir, "part_*.csv"), "curie", "vocab_id")
	require.NoError(t, err)

	assert.Equal(t, 3, m.Len())
	id, _ := m.Resolve("NCIT:C2")
	assert.Equal(t, "V8", id, "later file overwrites earlier in glob order")
}

func TestLoadTSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "map.tsv", "CUI\tvocab_id\nC0001\tV1\n")

	m, err := Load("mesh", path, "CUI", "vocab_id")
	require.NoError(t, err)

	id, ok := m.Resolve("C0001")
	assert.True(t, ok)
	assert.Equal(t, "V1", id)
}

func TestLoadSkipsShortAndEmptyRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ragged.csv", "CUI,vocab_id\nC0001\n,V2\nC0003,V3\n")

	m, err := Load("mesh", path, "CUI", "vocab_id")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("mesh", "/nonexistent/mesh.csv", "CUI", "vocab_id")
	require.Error(t, err)
	assert.True(t, annotation.IsLoad(err))
}

func TestLoadEmptyGlob(t *testing.T) {
	dir := t.TempDir()
	_, err := Load("mesh", filepath.Join(dir, "*.csv"), "CUI", "vocab_id")
	assert.Error(t, err)
}
