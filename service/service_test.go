package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtag/aggregate"
	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/backend"
	"github.com/c360studio/semtag/cache"
	"github.com/c360studio/semtag/vocabulary"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedBackend struct {
	tag  annotation.Tag
	raws []annotation.Raw
	runs int
}

func (s *scriptedBackend) Tag() annotation.Tag {
	return s.tag
}

func (s *scriptedBackend) Run(_ context.Context, text string) ([]annotation.Raw, error) {
	s.runs++
	if text == "" {
		return nil, nil
	}
	return s.raws, nil
}

func testService(t *testing.T, opts ...Option) (*Service, *scriptedBackend) {
	t.Helper()
	h, err := vocabulary.Build([]*vocabulary.Node{
		{ID: "C1", Label: "Imaging", Children: []*vocabulary.Node{{ID: "V1", Label: "MRI"}}},
	})
	require.NoError(t, err)

	b := &scriptedBackend{tag: annotation.TagGliner,
		raws: []annotation.Raw{{Text: "mri", VocabularyID: "V1", Score: 0.9}}}
	agg, err := aggregate.New(h, []backend.Backend{b})
	require.NoError(t, err)

	// handle does not touch the connection, so a nil-conn service would do;
	// the constructor insists on one, so build the struct the long way.
	s := &Service{provider: func() *aggregate.Aggregator { return agg }, logger: testLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s, b
}

func TestHandleAnnotates(t *testing.T) {
	s, _ := testService(t)

	reply := s.handle(context.Background(), []byte(`{"text": "an mri"}`))

	var res annotation.Result
	require.NoError(t, json.Unmarshal(reply, &res))
	require.Len(t, res.Annotations, 1)
	assert.Equal(t, "V1", res.Annotations[0].VocabularyID)
	assert.Equal(t, "Imaging", res.Annotations[0].Category)
}

func TestHandleEmptyText(t *testing.T) {
	s, _ := testService(t)
	reply := s.handle(context.Background(), []byte(`{"text": ""}`))
	assert.JSONEq(t, `{"result": []}`, string(reply))
}

func TestHandleMalformedPayload(t *testing.T) {
	s, _ := testService(t)

	reply := s.handle(context.Background(), []byte(`{`))

	var errResp errorResponse
	require.NoError(t, json.Unmarshal(reply, &errResp))
	assert.NotEmpty(t, errResp.Error)
	assert.NotContains(t, string(reply), "result")
}

func TestHandleUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, b := testService(t, WithCache(cache.New(client)))

	first := s.handle(context.Background(), []byte(`{"text": "an mri"}`))
	second := s.handle(context.Background(), []byte(`{"text": "an mri"}`))

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, 1, b.runs, "second request served from cache")
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, "", func() *aggregate.Aggregator { return nil })
	assert.Error(t, err)
}
