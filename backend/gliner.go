package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/vocabulary"
)

// Gliner is the label-driven backend: it asks a span-matching model to find
// spans matching the hierarchy's drivable labels, then maps each returned
// label back to a vocabulary id through a private label→id side index.
type Gliner struct {
	matcher   SpanMatcher
	labels    []string
	labelToID map[string]string
	threshold float64
	logger    *slog.Logger
}

// GlinerOption configures a Gliner backend.
type GlinerOption func(*Gliner)

// WithGlinerThreshold drops spans scoring below the threshold.
func WithGlinerThreshold(threshold float64) GlinerOption {
	return func(g *Gliner) {
		g.threshold = threshold
	}
}

// WithGlinerLogger sets the logger.
func WithGlinerLogger(logger *slog.Logger) GlinerOption {
	return func(g *Gliner) {
		g.logger = logger
	}
}

// NewGliner creates the label-driven backend. The label→id index is built
// once from the hierarchy's drivable nodes; when two ids share a label the
// first one in document order wins, mirroring the label index itself.
func NewGliner(matcher SpanMatcher, hierarchy *vocabulary.Hierarchy, opts ...GlinerOption) (*Gliner, error) {
	if matcher == nil {
		return nil, fmt.Errorf("gliner: span matcher is required")
	}
	if hierarchy == nil {
		return nil, fmt.Errorf("gliner: hierarchy is required")
	}

	g := &Gliner{
		matcher:   matcher,
		labels:    hierarchy.LabelIndex(),
		labelToID: make(map[string]string),
		logger:    slog.Default(),
	}
	for _, entry := range hierarchy.Drivable() {
		if _, dup := g.labelToID[entry.Label]; !dup {
			g.labelToID[entry.Label] = entry.ID
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Tag implements Backend.
func (g *Gliner) Tag() annotation.Tag {
	return annotation.TagGliner
}

// Run implements Backend.
func (g *Gliner) Run(ctx context.Context, text string) ([]annotation.Raw, error) {
	if text == "" {
		return nil, nil
	}

	spans, err := g.matcher.MatchSpans(ctx, text, g.labels)
	if err != nil {
		return nil, classify(annotation.TagGliner, err)
	}

	raws := make([]annotation.Raw, 0, len(spans))
	for _, span := range spans {
		if span.Score < g.threshold {
			continue
		}
		id, ok := g.labelToID[span.Label]
		if !ok {
			g.logger.Debug("dropping span with unknown label",
				slog.String("label", span.Label),
				slog.String("text", span.Text))
			continue
		}
		raws = append(raws, annotation.Raw{
			Text:         span.Text,
			VocabularyID: id,
			Score:        span.Score,
			Keyword:      strings.EqualFold(span.Text, span.Label),
			Inclusion:    span.Inclusion,
			Exclusion:    span.Exclusion,
		})
	}
	return raws, nil
}
