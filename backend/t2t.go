package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/mapping"
)

// TextToTerm is the ontology-mapping backend: a mention extractor produces
// raw entity mentions, a term-similarity service maps each mention to an
// ontology CURIE, and the CURIE resolves to a vocabulary id through the
// ontology mapping. Mentions that miss at either stage are dropped.
type TextToTerm struct {
	extractor MentionExtractor
	mapper    TermMapper
	curies    *mapping.Mapping
	minScore  float64
	logger    *slog.Logger
}

// T2TOption configures a TextToTerm backend.
type T2TOption func(*TextToTerm)

// WithT2TMinScore drops term mappings scoring below the floor.
func WithT2TMinScore(minScore float64) T2TOption {
	return func(t *TextToTerm) {
		t.minScore = minScore
	}
}

// WithT2TLogger sets the logger.
func WithT2TLogger(logger *slog.Logger) T2TOption {
	return func(t *TextToTerm) {
		t.logger = logger
	}
}

// NewTextToTerm creates the ontology-mapping backend.
func NewTextToTerm(extractor MentionExtractor, mapper TermMapper, curies *mapping.Mapping, opts ...T2TOption) (*TextToTerm, error) {
	if extractor == nil {
		return nil, fmt.Errorf("t2t: mention extractor is required")
	}
	if mapper == nil {
		return nil, fmt.Errorf("t2t: term mapper is required")
	}
	if curies == nil {
		return nil, fmt.Errorf("t2t: ontology mapping is required")
	}

	t := &TextToTerm{
		extractor: extractor,
		mapper:    mapper,
		curies:    curies,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Tag implements Backend.
func (t *TextToTerm) Tag() annotation.Tag {
	return annotation.TagT2T
}

// Run implements Backend.
func (t *TextToTerm) Run(ctx context.Context, text string) ([]annotation.Raw, error) {
	if text == "" {
		return nil, nil
	}
	if t.curies.Len() == 0 {
		return nil, annotation.NewBackendError(annotation.TagT2T, annotation.MappingMiss,
			fmt.Errorf("mapping %q has no entries", t.curies.Name()))
	}

	mentions, err := t.extractor.ExtractMentions(ctx, text)
	if err != nil {
		return nil, classify(annotation.TagT2T, err)
	}

	raws := make([]annotation.Raw, 0, len(mentions))
	for _, mention := range mentions {
		term, found, err := t.mapper.MapTerm(ctx, mention)
		if err != nil {
			return nil, classify(annotation.TagT2T, err)
		}
		if !found || term.Score < t.minScore {
			continue
		}
		id, ok := t.curies.Resolve(term.CURIE)
		if !ok {
			t.logger.Debug("dropping mention with unmapped ontology id",
				slog.String("curie", term.CURIE),
				slog.String("mention", mention))
			continue
		}
		raws = append(raws, annotation.Raw{
			Text:         mention,
			VocabularyID: id,
			Score:        term.Score,
		})
	}
	return raws, nil
}
