// Package backend defines the annotation backend contract and its three
// implementations: the label-driven span model (gliner), the biomedical
// entity linker (mesh), and the ontology term mapper (t2t).
//
// A backend operates only on its own private resources — its model client
// and, where applicable, an identifier mapping — plus the shared read-only
// vocabulary hierarchy. Backends never mutate shared state. Spans that fail
// to resolve to a vocabulary id are dropped inside the backend; a backend
// never emits a raw annotation with an empty vocabulary id.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/c360studio/semtag/annotation"
)

// Backend is one independent entity-extraction method.
type Backend interface {
	// Tag identifies the backend in results and diagnostics.
	Tag() annotation.Tag

	// Run extracts raw annotations from text. It gets exactly one attempt
	// per request; failures are typed *annotation.BackendError.
	Run(ctx context.Context, text string) ([]annotation.Raw, error)
}

// Span is one labeled text span found by a span-matching model.
type Span struct {
	Text      string
	Label     string
	Score     float64
	Inclusion bool
	Exclusion bool
}

// SpanMatcher finds spans of text matching any of the candidate labels.
type SpanMatcher interface {
	MatchSpans(ctx context.Context, text string, labels []string) ([]Span, error)
}

// LinkedEntity is one entity mention with the foreign concept id the linker
// resolved it to.
type LinkedEntity struct {
	Text      string
	ConceptID string
	Score     float64
}

// EntityLinker extracts entity mentions and links each to a foreign concept id.
type EntityLinker interface {
	LinkEntities(ctx context.Context, text string) ([]LinkedEntity, error)
}

// MentionExtractor extracts raw entity mention strings from text.
type MentionExtractor interface {
	ExtractMentions(ctx context.Context, text string) ([]string, error)
}

// TermMapping is the best ontology identifier a term mapper found for a mention.
type TermMapping struct {
	CURIE string
	Score float64
}

// TermMapper maps a mention string to an ontology identifier by term
// similarity. found is false when no candidate clears the service's floor.
type TermMapper interface {
	MapTerm(ctx context.Context, mention string) (mapping TermMapping, found bool, err error)
}

// StatusError reports a non-2xx response from a model service. It is
// declared here so every predictor client and backend classifies failures
// the same way.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// classify wraps a predictor failure as a BackendError with the right kind.
func classify(tag annotation.Tag, err error) error {
	if be, ok := annotation.AsBackend(err); ok {
		return be
	}

	kind := annotation.IOFailure
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = annotation.Timeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = annotation.Timeout
	case errors.As(err, &statusErr):
		kind = annotation.ModelUnavailable
	case errors.Is(err, context.Canceled):
		kind = annotation.Timeout
	}
	return annotation.NewBackendError(tag, kind, err)
}
