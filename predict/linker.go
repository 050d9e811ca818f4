package predict

import (
	"context"

	"github.com/c360studio/semtag/backend"
)

// EntityLinkerClient talks to the biomedical entity-linking service used by
// the identifier-linking backend. The service returns entity mentions with
// the concept id (CUI) each linked to.
type EntityLinkerClient struct {
	Client
}

// NewEntityLinker creates an entity linker client for the service at baseURL.
func NewEntityLinker(baseURL string, opts ...Option) *EntityLinkerClient {
	return &EntityLinkerClient{Client: newClient(baseURL, opts...)}
}

type linkRequest struct {
	Text string `json:"text"`
}

type linkResponse struct {
	Entities []struct {
		Text      string  `json:"text"`
		ConceptID string  `json:"concept_id"`
		Score     float64 `json:"score"`
	} `json:"entities"`
}

// LinkEntities implements backend.EntityLinker.
func (c *EntityLinkerClient) LinkEntities(ctx context.Context, text string) ([]backend.LinkedEntity, error) {
	var resp linkResponse
	if err := c.post(ctx, "/v1/link", linkRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	entities := make([]backend.LinkedEntity, len(resp.Entities))
	for i, e := range resp.Entities {
		entities[i] = backend.LinkedEntity{
			Text:      e.Text,
			ConceptID: e.ConceptID,
			Score:     e.Score,
		}
	}
	return entities, nil
}

// MentionExtractorClient talks to the mention-extraction endpoint of the
// entity service, used as the first stage of the ontology-mapping backend.
type MentionExtractorClient struct {
	Client
}

// NewMentionExtractor creates a mention extractor client for the service at baseURL.
func NewMentionExtractor(baseURL string, opts ...Option) *MentionExtractorClient {
	return &MentionExtractorClient{Client: newClient(baseURL, opts...)}
}

type mentionsResponse struct {
	Mentions []string `json:"mentions"`
}

// ExtractMentions implements backend.MentionExtractor.
func (c *MentionExtractorClient) ExtractMentions(ctx context.Context, text string) ([]string, error) {
	var resp mentionsResponse
	if err := c.post(ctx, "/v1/mentions", linkRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Mentions, nil
}
