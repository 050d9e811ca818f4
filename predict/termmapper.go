package predict

import (
	"context"

	"github.com/c360studio/semtag/backend"
)

// TermMapperClient talks to the term-similarity service that maps a mention
// string to an ontology identifier (CURIE). The service returns candidates
// best-first; the client keeps only the top one.
type TermMapperClient struct {
	Client
}

// NewTermMapper creates a term mapper client for the service at baseURL.
func NewTermMapper(baseURL string, opts ...Option) *TermMapperClient {
	return &TermMapperClient{Client: newClient(baseURL, opts...)}
}

type mapRequest struct {
	Term string `json:"term"`
}

type mapResponse struct {
	Mappings []struct {
		CURIE string  `json:"curie"`
		Score float64 `json:"score"`
	} `json:"mappings"`
}

// MapTerm implements backend.TermMapper.
func (c *TermMapperClient) MapTerm(ctx context.Context, mention string) (backend.TermMapping, bool, error) {
	var resp mapResponse
	if err := c.post(ctx, "/v1/map", mapRequest{Term: mention}, &resp); err != nil {
		return backend.TermMapping{}, false, err
	}
	if len(resp.Mappings) == 0 {
		return backend.TermMapping{}, false, nil
	}
	best := resp.Mappings[0]
	return backend.TermMapping{CURIE: best.CURIE, Score: best.Score}, true, nil
}
