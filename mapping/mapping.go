// Package mapping loads external-id → vocabulary-id tables. One Mapping
// exists per foreign identifier space (biomedical CUIs, ontology CURIEs);
// each is immutable after load and safe for concurrent reads.
package mapping

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/semtag/annotation"
)

// Mapping is an immutable external-id → vocabulary-id table.
type Mapping struct {
	name  string
	pairs map[string]string
}

// New builds a Mapping from in-memory pairs. The map is copied.
func New(name string, pairs map[string]string) *Mapping {
	m := &Mapping{name: name, pairs: make(map[string]string, len(pairs))}
	for k, v := range pairs {
		m.pairs[k] = v
	}
	return m
}

// Option configures Load.
type Option func(*loader)

// WithLogger sets the logger used for duplicate-row diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *loader) {
		l.logger = logger
	}
}

type loader struct {
	logger *slog.Logger
}

// Load reads every CSV file matching pattern (a literal path or a doublestar
// glob) into a single Mapping. Columns are selected by header name; a file
// missing either required column yields a LoadError. A duplicate external id
// is overwritten by the later row — within a file and across files in glob
// order — and logged at Warn. name identifies the mapping in diagnostics.
func Load(name, pattern, externalCol, vocabCol string, opts ...Option) (*Mapping, error) {
	l := &loader{logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}

	paths, err := expand(pattern)
	if err != nil {
		return nil, annotation.NewLoadError(pattern, err)
	}

	m := &Mapping{name: name, pairs: make(map[string]string)}
	for _, path := range paths {
		if err := l.loadFile(m, path, externalCol, vocabCol); err != nil {
			return nil, annotation.NewLoadError(path, err)
		}
	}
	return m, nil
}

func expand(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		if _, err := os.Stat(pattern); err != nil {
			return nil, err
		}
		return []string{pattern}, nil
	}
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand glob: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}
	return paths, nil
}

func (l *loader) loadFile(m *Mapping, path, externalCol, vocabCol string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	externalIdx, vocabIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case externalCol:
			externalIdx = i
		case vocabCol:
			vocabIdx = i
		}
	}
	if externalIdx < 0 {
		return fmt.Errorf("missing column %q", externalCol)
	}
	if vocabIdx < 0 {
		return fmt.Errorf("missing column %q", vocabCol)
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if externalIdx >= len(record) || vocabIdx >= len(record) {
			continue
		}
		external := strings.TrimSpace(record[externalIdx])
		vocab := strings.TrimSpace(record[vocabIdx])
		if external == "" || vocab == "" {
			continue
		}
		if prev, dup := m.pairs[external]; dup && prev != vocab {
			l.logger.Warn("duplicate mapping row, keeping later value",
				slog.String("mapping", m.name),
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("external_id", external))
		}
		m.pairs[external] = vocab
	}
}

// Name returns the identifier-space name given at load time.
func (m *Mapping) Name() string {
	return m.name
}

// Resolve looks up the vocabulary id for an external id. A pure lookup:
// the second return is false when the external id is unknown.
func (m *Mapping) Resolve(externalID string) (string, bool) {
	id, ok := m.pairs[externalID]
	return id, ok
}

// Len returns the number of loaded pairs.
func (m *Mapping) Len() int {
	return len(m.pairs)
}
