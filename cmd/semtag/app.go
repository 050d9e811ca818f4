package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/c360studio/semtag/aggregate"
	"github.com/c360studio/semtag/annotation"
	"github.com/c360studio/semtag/backend"
	"github.com/c360studio/semtag/config"
	"github.com/c360studio/semtag/mapping"
	"github.com/c360studio/semtag/predict"
	"github.com/c360studio/semtag/vocabulary"
	"github.com/c360studio/semtag/watch"
)

// App wires configuration into a ready aggregator. Resources (hierarchy and
// mapping tables) come in as one immutable generation so serve mode can swap
// them under a running service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewApp creates the application wiring for the given configuration.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// loadAppConfig resolves the effective configuration: an explicit --config
// path wins, otherwise the layered user/project lookup applies.
func loadAppConfig(flags *rootFlags) (*config.Config, error) {
	loader := config.NewLoader(slog.Default())
	if flags.configPath != "" {
		return loader.LoadPath(flags.configPath)
	}
	return loader.Load()
}

// LoadResources reads the vocabulary hierarchy and every configured mapping
// table from disk. Any failure here is fatal: the annotator never starts on
// partial resources.
func (a *App) LoadResources() (*watch.Resources, error) {
	hierarchy, err := vocabulary.Load(a.cfg.Vocabulary.Path)
	if err != nil {
		return nil, err
	}

	mappings := make(map[string]*mapping.Mapping, len(a.cfg.Mappings))
	for name, mc := range a.cfg.Mappings {
		m, err := mapping.Load(name, mc.Path, mc.ExternalColumn, mc.VocabularyColumn,
			mapping.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.logger.Debug("mapping loaded",
			slog.String("name", name),
			slog.Int("entries", m.Len()))
		mappings[name] = m
	}

	return &watch.Resources{Hierarchy: hierarchy, Mappings: mappings}, nil
}

// BuildAggregator assembles the enabled backends in declared order over one
// resource generation. Declared order fixes the merge order of results.
func (a *App) BuildAggregator(res *watch.Resources, metrics *aggregate.Metrics) (*aggregate.Aggregator, error) {
	backends := make([]backend.Backend, 0, len(a.cfg.Backends.Enabled))
	for _, name := range a.cfg.Backends.Enabled {
		b, err := a.buildBackend(name, res)
		if err != nil {
			return nil, fmt.Errorf("build backend %s: %w", name, err)
		}
		backends = append(backends, b)
	}

	opts := []aggregate.Option{
		aggregate.WithWorkers(a.cfg.Aggregate.Workers),
		aggregate.WithBackendTimeout(a.cfg.Aggregate.BackendTimeout.Std()),
		aggregate.WithOverallTimeout(a.cfg.Aggregate.OverallTimeout.Std()),
		aggregate.WithLogger(a.logger),
	}
	if metrics != nil {
		opts = append(opts, aggregate.WithMetrics(metrics))
	}
	return aggregate.New(res.Hierarchy, backends, opts...)
}

func (a *App) buildBackend(name string, res *watch.Resources) (backend.Backend, error) {
	switch name {
	case "gliner":
		matcher := predict.NewSpanMatcher(a.cfg.Backends.Gliner.Endpoint)
		return backend.NewGliner(matcher, res.Hierarchy,
			backend.WithGlinerThreshold(a.cfg.Backends.Gliner.Threshold),
			backend.WithGlinerLogger(a.logger))
	case "mesh":
		linker := predict.NewEntityLinker(a.cfg.Backends.Mesh.Endpoint)
		cuis, ok := res.Mappings[a.cfg.Backends.Mesh.Mapping]
		if !ok {
			return nil, annotation.NewLoadError(a.cfg.Backends.Mesh.Mapping,
				fmt.Errorf("mapping not loaded"))
		}
		return backend.NewMesh(linker, cuis, backend.WithMeshLogger(a.logger))
	case "t2t":
		extractor := predict.NewMentionExtractor(a.cfg.Backends.T2T.Endpoint)
		mapper := predict.NewTermMapper(a.cfg.Backends.T2T.MapperEndpoint)
		curies, ok := res.Mappings[a.cfg.Backends.T2T.Mapping]
		if !ok {
			return nil, annotation.NewLoadError(a.cfg.Backends.T2T.Mapping,
				fmt.Errorf("mapping not loaded"))
		}
		return backend.NewTextToTerm(extractor, mapper, curies,
			backend.WithT2TMinScore(a.cfg.Backends.T2T.MinScore),
			backend.WithT2TLogger(a.logger))
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// watchPaths lists the filesystem locations to watch for hot reload: the
// hierarchy file plus, for each mapping, the deepest directory above any
// glob metacharacter.
func (a *App) watchPaths() []string {
	paths := []string{a.cfg.Vocabulary.Path}
	for _, mc := range a.cfg.Mappings {
		paths = append(paths, globBase(mc.Path))
	}
	return paths
}

// globBase returns the longest directory prefix of pattern without glob
// metacharacters, or the pattern itself when it names a plain file.
func globBase(pattern string) string {
	if !strings.ContainsAny(pattern, "*?[{") {
		return pattern
	}
	dir := pattern
	for strings.ContainsAny(dir, "*?[{") {
		dir = filepath.Dir(dir)
	}
	return dir
}
