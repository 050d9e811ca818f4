package predict

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtag/backend"
)

func TestSpanMatcherClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/match", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req matchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "an MRI scan", req.Text)
		assert.Equal(t, []string{"MRI", "CT"}, req.Labels)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spans":[{"text":"MRI scan","label":"MRI","score":0.91,"inclusion":true}]}`))
	}))
	defer srv.Close()

	client := NewSpanMatcher(srv.URL)
	spans, err := client.MatchSpans(context.Background(), "an MRI scan", []string{"MRI", "CT"})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, backend.Span{Text: "MRI scan", Label: "MRI", Score: 0.91, Inclusion: true}, spans[0])
}

func TestEntityLinkerClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/link", r.URL.Path)
		_, _ = w.Write([]byte(`{"entities":[{"text":"glioblastoma","concept_id":"C0017636","score":0.95}]}`))
	}))
	defer srv.Close()

	client := NewEntityLinker(srv.URL)
	entities, err := client.LinkEntities(context.Background(), "glioblastoma")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "C0017636", entities[0].ConceptID)
}

func TestMentionExtractorClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/mentions", r.URL.Path)
		_, _ = w.Write([]byte(`{"mentions":["glioblastoma","headache"]}`))
	}))
	defer srv.Close()

	client := NewMentionExtractor(srv.URL)
	mentions, err := client.ExtractMentions(context.Background(), "glioblastoma with headache")
	require.NoError(t, err)
	assert.Equal(t, []string{"glioblastoma", "headache"}, mentions)
}

func TestTermMapperClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/map", r.URL.Path)
		_, _ = w.Write([]byte(`{"mappings":[{"curie":"NCIT:C3058","score":0.97},{"curie":"NCIT:C0000","score":0.41}]}`))
	}))
	defer srv.Close()

	client := NewTermMapper(srv.URL)
	term, found, err := client.MapTerm(context.Background(), "glioblastoma")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "NCIT:C3058", term.CURIE, "top candidate wins")
}

func TestTermMapperClientNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"mappings":[]}`))
	}))
	defer srv.Close()

	client := NewTermMapper(srv.URL)
	_, found, err := client.MapTerm(context.Background(), "xyzzy")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatusErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewSpanMatcher(srv.URL)
	_, err := client.MatchSpans(context.Background(), "text", nil)
	require.Error(t, err)

	var statusErr *backend.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Contains(t, statusErr.Body, "model not loaded")
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewEntityLinker(srv.URL)
	_, err := client.LinkEntities(context.Background(), "text")
	assert.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"mentions":[]}`))
	}))
	defer srv.Close()

	client := NewMentionExtractor(srv.URL)
	_, err := client.ExtractMentions(ctx, "text")
	assert.Error(t, err)
}
