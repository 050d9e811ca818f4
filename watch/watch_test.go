package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtag/vocabulary"
)

func writeHierarchy(t *testing.T, path, label string) {
	t.Helper()
	doc := fmt.Sprintf(`[{"id":"C1","label":%q}]`, label)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
}

func loaderFor(path string) Loader {
	return func() (*Resources, error) {
		h, err := vocabulary.Load(path)
		if err != nil {
			return nil, err
		}
		return &Resources{Hierarchy: h}, nil
	}
}

func TestInitialLoadMustSucceed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hierarchy.json")

	_, err := New([]string{path}, loaderFor(path))
	assert.Error(t, err, "missing startup data is fatal")

	writeHierarchy(t, path, "Imaging")
	w, err := New([]string{path}, loaderFor(path))
	require.NoError(t, err)
	assert.Equal(t, vocabulary.Path{Category: "Imaging"}, w.Current().Hierarchy.Lookup("C1"))
}

func TestReloadSwapsGeneration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hierarchy.json")
	writeHierarchy(t, path, "Imaging")

	w, err := New([]string{path}, loaderFor(path))
	require.NoError(t, err)
	before := w.Current()

	writeHierarchy(t, path, "Labs")
	require.NoError(t, w.Reload())

	after := w.Current()
	assert.NotSame(t, before, after)
	assert.Equal(t, "Labs", after.Hierarchy.Lookup("C1").Category)
	assert.Equal(t, "Imaging", before.Hierarchy.Lookup("C1").Category,
		"old generation stays immutable")
}

func TestFailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hierarchy.json")
	writeHierarchy(t, path, "Imaging")

	w, err := New([]string{path}, loaderFor(path))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	assert.Error(t, w.Reload())
	assert.Equal(t, "Imaging", w.Current().Hierarchy.Lookup("C1").Category)
}

func TestRunReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hierarchy.json")
	writeHierarchy(t, path, "Imaging")

	w, err := New([]string{path}, loaderFor(path), WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	// Give the watcher a moment to register, then rewrite the file.
	time.Sleep(100 * time.Millisecond)
	writeHierarchy(t, path, "Labs")

	require.Eventually(t, func() bool {
		return w.Current().Hierarchy.Lookup("C1").Category == "Labs"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}
