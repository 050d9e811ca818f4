package predict

import (
	"context"

	"github.com/c360studio/semtag/backend"
)

// SpanMatcherClient talks to the span-matching model service used by the
// label-driven backend. The service receives the text plus the candidate
// labels and returns every matching span.
type SpanMatcherClient struct {
	Client
}

// NewSpanMatcher creates a span matcher client for the service at baseURL.
func NewSpanMatcher(baseURL string, opts ...Option) *SpanMatcherClient {
	return &SpanMatcherClient{Client: newClient(baseURL, opts...)}
}

type matchRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

type matchResponse struct {
	Spans []struct {
		Text      string  `json:"text"`
		Label     string  `json:"label"`
		Score     float64 `json:"score"`
		Inclusion bool    `json:"inclusion"`
		Exclusion bool    `json:"exclusion"`
	} `json:"spans"`
}

// MatchSpans implements backend.SpanMatcher.
func (c *SpanMatcherClient) MatchSpans(ctx context.Context, text string, labels []string) ([]backend.Span, error) {
	var resp matchResponse
	if err := c.post(ctx, "/v1/match", matchRequest{Text: text, Labels: labels}, &resp); err != nil {
		return nil, err
	}

	spans := make([]backend.Span, len(resp.Spans))
	for i, s := range resp.Spans {
		spans[i] = backend.Span{
			Text:      s.Text,
			Label:     s.Label,
			Score:     s.Score,
			Inclusion: s.Inclusion,
			Exclusion: s.Exclusion,
		}
	}
	return spans, nil
}
