package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/mapping"
)

// Mesh is the identifier-linking backend: an entity linker returns spans with
// biomedical concept ids (CUIs), which are resolved to vocabulary ids through
// the CUI mapping. Spans whose CUI has no mapping entry are dropped.
type Mesh struct {
	linker EntityLinker
	cuis   *mapping.Mapping
	logger *slog.Logger
}

// MeshOption configures a Mesh backend.
type MeshOption func(*Mesh)

// WithMeshLogger sets the logger.
func WithMeshLogger(logger *slog.Logger) MeshOption {
	return func(m *Mesh) {
		m.logger = logger
	}
}

// NewMesh creates the identifier-linking backend.
func NewMesh(linker EntityLinker, cuis *mapping.Mapping, opts ...MeshOption) (*Mesh, error) {
	if linker == nil {
		return nil, fmt.Errorf("mesh: entity linker is required")
	}
	if cuis == nil {
		return nil, fmt.Errorf("mesh: CUI mapping is required")
	}

	m := &Mesh{linker: linker, cuis: cuis, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Tag implements Backend.
func (m *Mesh) Tag() annotation.Tag {
	return annotation.TagMesh
}

// Run implements Backend.
func (m *Mesh) Run(ctx context.Context, text string) ([]annotation.Raw, error) {
	if text == "" {
		return nil, nil
	}
	if m.cuis.Len() == 0 {
		return nil, annotation.NewBackendError(annotation.TagMesh, annotation.MappingMiss,
			fmt.Errorf("mapping %q has no entries", m.cuis.Name()))
	}

	entities, err := m.linker.LinkEntities(ctx, text)
	if err != nil {
		return nil, classify(annotation.TagMesh, err)
	}

	raws := make([]annotation.Raw, 0, len(entities))
	for _, entity := range entities {
		id, ok := m.cuis.Resolve(entity.ConceptID)
		if !ok {
			m.logger.Debug("dropping entity with unmapped concept id",
				slog.String("concept_id", entity.ConceptID),
				slog.String("text", entity.Text))
			continue
		}
		raws = append(raws, annotation.Raw{
			Text:         entity.Text,
			VocabularyID: id,
			Score:        entity.Score,
		})
	}
	return raws, nil
}
