package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/mapping"
	"github.com/c360studio/semtag/vocabulary"
)

// Function adapters so tests can fake each predictor inline.

type matcherFunc func(ctx context.Context, text string, labels []string) ([]Span, error)

func (f matcherFunc) MatchSpans(ctx context.Context, text string, labels []string) ([]Span, error) {
	return f(ctx, text, labels)
}

type linkerFunc func(ctx context.Context, text string) ([]LinkedEntity, error)

func (f linkerFunc) LinkEntities(ctx context.Context, text string) ([]LinkedEntity, error) {
	return f(ctx, text)
}

type extractorFunc func(ctx context.Context, text string) ([]string, error)

func (f extractorFunc) ExtractMentions(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}

type termMapperFunc func(ctx context.Context, mention string) (TermMapping, bool, error)

func (f termMapperFunc) MapTerm(ctx context.Context, mention string) (TermMapping, bool, error) {
	return f(ctx, mention)
}

func testHierarchy(t *testing.T) *vocabulary.Hierarchy {
	t.Helper()
	h, err := vocabulary.Build([]*vocabulary.Node{
		{
			ID: "C1", Label: "Imaging",
			Children: []*vocabulary.Node{
				{ID: "C1.1", Label: "MRI", Children: []*vocabulary.Node{{ID: "C1.1.1", Label: "T1-weighted"}}},
				{ID: "C1.2", Label: "CT"},
			},
		},
		{ID: "C2", Label: "Demographics"},
	})
	require.NoError(t, err)
	return h
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want annotation.FailureKind
	}{
		{"deadline", context.DeadlineExceeded, annotation.Timeout},
		{"canceled", context.Canceled, annotation.Timeout},
		{"server error", &StatusError{Code: 503}, annotation.ModelUnavailable},
		{"other", assert.AnError, annotation.IOFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be, ok := annotation.AsBackend(classify(annotation.TagGliner, tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.want, be.Kind)
			assert.Equal(t, annotation.TagGliner, be.Backend)
		})
	}
}

func TestClassifyKeepsExistingBackendError(t *testing.T) {
	orig := annotation.NewBackendError(annotation.TagMesh, annotation.MappingMiss, assert.AnError)
	be, ok := annotation.AsBackend(classify(annotation.TagMesh, orig))
	require.True(t, ok)
	assert.Equal(t, annotation.MappingMiss, be.Kind)
}

func TestGlinerResolvesLabels(t *testing.T) {
	matcher := matcherFunc(func(_ context.Context, _ string, labels []string) ([]Span, error) {
		assert.Equal(t, []string{"MRI", "CT", "Demographics"}, labels)
		return []Span{
			{Text: "an MRI scan", Label: "MRI", Score: 0.9, Inclusion: true},
			{Text: "ct", Label: "CT", Score: 0.8},
			{Text: "something", Label: "Unknown", Score: 0.99},
		}, nil
	})

	g, err := NewGliner(matcher, testHierarchy(t))
	require.NoError(t, err)

	raws, err := g.Run(context.Background(), "an MRI scan and ct")
	require.NoError(t, err)
	require.Len(t, raws, 2, "unknown label dropped")

	assert.Equal(t, "C1.1", raws[0].VocabularyID)
	assert.True(t, raws[0].Inclusion)
	assert.False(t, raws[0].Keyword)

	assert.Equal(t, "C1.2", raws[1].VocabularyID)
	assert.True(t, raws[1].Keyword, "span text equal to label marks a keyword hit")
}

func TestGlinerThreshold(t *testing.T) {
	matcher := matcherFunc(func(context.Context, string, []string) ([]Span, error) {
		return []Span{
			{Text: "mri", Label: "MRI", Score: 0.2},
			{Text: "ct", Label: "CT", Score: 0.9},
		}, nil
	})

	g, err := NewGliner(matcher, testHierarchy(t), WithGlinerThreshold(0.5))
	require.NoError(t, err)

	raws, err := g.Run(context.Background(), "mri ct")
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "C1.2", raws[0].VocabularyID)
}

func TestGlinerEmptyText(t *testing.T) {
	matcher := matcherFunc(func(context.Context, string, []string) ([]Span, error) {
		t.Fatal("matcher must not be called for empty text")
		return nil, nil
	})
	g, err := NewGliner(matcher, testHierarchy(t))
	require.NoError(t, err)

	raws, err := g.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestGlinerTimeoutClassified(t *testing.T) {
	matcher := matcherFunc(func(context.Context, string, []string) ([]Span, error) {
		return nil, context.DeadlineExceeded
	})
	g, err := NewGliner(matcher, testHierarchy(t))
	require.NoError(t, err)

	_, err = g.Run(context.Background(), "text")
	be, ok := annotation.AsBackend(err)
	require.True(t, ok)
	assert.Equal(t, annotation.Timeout, be.Kind)
}

func TestMeshResolvesAndDrops(t *testing.T) {
	linker := linkerFunc(func(context.Context, string) ([]LinkedEntity, error) {
		return []LinkedEntity{
			{Text: "glioblastoma", ConceptID: "C0017636", Score: 0.95},
			{Text: "aspirin", ConceptID: "C0004057", Score: 0.9},
		}, nil
	})
	cuis := mapping.New("mesh", map[string]string{"C0017636": "C1.1.1"})

	m, err := NewMesh(linker, cuis)
	require.NoError(t, err)

	raws, err := m.Run(context.Background(), "glioblastoma patients on aspirin")
	require.NoError(t, err)
	require.Len(t, raws, 1, "unmapped CUI dropped")
	assert.Equal(t, "C1.1.1", raws[0].VocabularyID)
	assert.Equal(t, "glioblastoma", raws[0].Text)
	assert.InDelta(t, 0.95, raws[0].Score, 1e-9)
}

func TestMeshEmptyMapping(t *testing.T) {
	linker := linkerFunc(func(context.Context, string) ([]LinkedEntity, error) {
		return nil, nil
	})
	m, err := NewMesh(linker, mapping.New("mesh", nil))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), "text")
	be, ok := annotation.AsBackend(err)
	require.True(t, ok)
	assert.Equal(t, annotation.MappingMiss, be.Kind)
}

func TestMeshEmptyText(t *testing.T) {
	m, err := NewMesh(linkerFunc(func(context.Context, string) ([]LinkedEntity, error) {
		t.Fatal("linker must not be called for empty text")
		return nil, nil
	}), mapping.New("mesh", map[string]string{"x": "y"}))
	require.NoError(t, err)

	raws, err := m.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestTextToTermChain(t *testing.T) {
	extractor := extractorFunc(func(context.Context, string) ([]string, error) {
		return []string{"glioblastoma", "headache", "mystery"}, nil
	})
	mapper := termMapperFunc(func(_ context.Context, mention string) (TermMapping, bool, error) {
		switch mention {
		case "glioblastoma":
			return TermMapping{CURIE: "NCIT:C3058", Score: 0.97}, true, nil
		case "headache":
			return TermMapping{CURIE: "NCIT:C34661", Score: 0.3}, true, nil
		default:
			return TermMapping{}, false, nil
		}
	})
	curies := mapping.New("ontology", map[string]string{"NCIT:C3058": "C1.1.1"})

	b, err := NewTextToTerm(extractor, mapper, curies, WithT2TMinScore(0.5))
	require.NoError(t, err)

	raws, err := b.Run(context.Background(), "glioblastoma with headache")
	require.NoError(t, err)
	require.Len(t, raws, 1, "low score and not-found mentions dropped")
	assert.Equal(t, "C1.1.1", raws[0].VocabularyID)
	assert.Equal(t, "glioblastoma", raws[0].Text)
}

func TestTextToTermMapperFailure(t *testing.T) {
	extractor := extractorFunc(func(context.Context, string) ([]string, error) {
		return []string{"term"}, nil
	})
	mapper := termMapperFunc(func(context.Context, string) (TermMapping, bool, error) {
		return TermMapping{}, false, &StatusError{Code: 502}
	})

	b, err := NewTextToTerm(extractor, mapper, mapping.New("ontology", map[string]string{"x": "y"}))
	require.NoError(t, err)

	_, err = b.Run(context.Background(), "term")
	be, ok := annotation.AsBackend(err)
	require.True(t, ok)
	assert.Equal(t, annotation.ModelUnavailable, be.Kind)
}

func TestConstructorValidation(t *testing.T) {
	h := testHierarchy(t)
	m := mapping.New("m", nil)

	_, err := NewGliner(nil, h)
	assert.Error(t, err)
	_, err = NewGliner(matcherFunc(nil), nil)
	assert.Error(t, err)
	_, err = NewMesh(nil, m)
	assert.Error(t, err)
	_, err = NewMesh(linkerFunc(nil), nil)
	assert.Error(t, err)
	_, err = NewTextToTerm(nil, termMapperFunc(nil), m)
	assert.Error(t, err)
	_, err = NewTextToTerm(extractorFunc(nil), nil, m)
	assert.Error(t, err)
	_, err = NewTextToTerm(extractorFunc(nil), termMapperFunc(nil), nil)
	assert.Error(t, err)
}
