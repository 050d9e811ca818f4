// Package annotation defines the types shared by every extraction backend
// and the aggregation pipeline: raw backend candidates, resolved annotations,
// the request/result wire envelopes, and the error taxonomy.
package annotation

import (
	"encoding/json"
	"fmt"
)

// Tag identifies the originating backend of an annotation. It is serialized
// as the "mapper" field of the wire format.
type Tag string

const (
	// TagGliner is the label-driven span model backend.
	TagGliner Tag = "gliner"
	// TagMesh is the biomedical entity-linking backend.
	TagMesh Tag = "mesh"
	// TagT2T is the ontology term-mapping backend.
	TagT2T Tag = "t2t"
)

// Raw is a candidate annotation as produced by a backend, before the
// vocabulary hierarchy fills in the category path. Backends only emit
// entries whose VocabularyID resolved; unresolved spans are dropped
// inside the backend.
type Raw struct {
	Text         string
	VocabularyID string
	Score        float64
	Keyword      bool
	Inclusion    bool
	Exclusion    bool
}

// Annotation is one entry of the merged result. Every field is always
// present on the wire: unresolved string fields serialize as "" and
// flags/score as their zero values, never as null.
type Annotation struct {
	Text         string  `json:"text"`
	VocabularyID string  `json:"vocabulary_id"`
	Category     string  `json:"category"`
	Subcategory  string  `json:"subcategory"`
	Term         string  `json:"term"`
	Score        float64 `json:"score"`
	Keyword      bool    `json:"keyword"`
	Inclusion    bool    `json:"inclusion"`
	Exclusion    bool    `json:"exclusion"`
	Mapper       Tag     `json:"mapper"`
}

// Result is the envelope emitted for one request.
type Result struct {
	Annotations []Annotation `json:"result"`
}

// NewResult wraps annotations in a Result, normalizing nil to an empty
// slice so the envelope serializes as {"result": []} rather than null.
func NewResult(annotations []Annotation) Result {
	if annotations == nil {
		annotations = []Annotation{}
	}
	return Result{Annotations: annotations}
}

// Request is the inbound envelope: a single free-text document.
type Request struct {
	Text string `json:"text"`
}

// ParseRequest decodes a request envelope. A payload that is not a JSON
// object with the expected shape yields an InputError.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, &InputError{Err: fmt.Errorf("decode request: %w", err)}
	}
	return req, nil
}
