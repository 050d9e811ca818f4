// Package config provides configuration loading and management for semtag.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml configs can say "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML accepts a duration string or a bare number of nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value at line %d", value.Line)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete semtag configuration.
type Config struct {
	Vocabulary VocabularyConfig         `yaml:"vocabulary"`
	Mappings   map[string]MappingConfig `yaml:"mappings"`
	Backends   BackendsConfig           `yaml:"backends"`
	Aggregate  AggregateConfig          `yaml:"aggregate"`
	NATS       NATSConfig               `yaml:"nats"`
	Cache      CacheConfig              `yaml:"cache"`
	Metrics    MetricsConfig            `yaml:"metrics"`
	Watch      WatchConfig              `yaml:"watch"`
}

// VocabularyConfig locates the hierarchy document.
type VocabularyConfig struct {
	// Path is the hierarchy JSON document
	Path string `yaml:"path"`
}

// MappingConfig describes one external-id to vocabulary-id table.
type MappingConfig struct {
	// Path is a file path or glob of CSV/TSV files
	Path string `yaml:"path"`
	// ExternalColumn is the header name of the external id column
	ExternalColumn string `yaml:"external_column"`
	// VocabularyColumn is the header name of the vocabulary id column
	VocabularyColumn string `yaml:"vocabulary_column"`
}

// BackendsConfig selects and configures the annotation backends.
type BackendsConfig struct {
	// Enabled lists the backends to run. Declared order fixes the merge
	// order of the final result.
	Enabled []string `yaml:"enabled"`

	Gliner GlinerConfig `yaml:"gliner"`
	Mesh   MeshConfig   `yaml:"mesh"`
	T2T    T2TConfig    `yaml:"t2t"`
}

// GlinerConfig configures the label-driven span model backend.
type GlinerConfig struct {
	// Endpoint is the span matching service base URL
	Endpoint string `yaml:"endpoint"`
	// Threshold drops spans scoring below it (0 keeps everything)
	Threshold float64 `yaml:"threshold"`
}

// MeshConfig configures the biomedical entity-linking backend.
type MeshConfig struct {
	// Endpoint is the entity linker service base URL
	Endpoint string `yaml:"endpoint"`
	// Mapping names the entry in mappings holding the CUI table
	Mapping string `yaml:"mapping"`
}

// T2TConfig configures the ontology term-mapping backend.
type T2TConfig struct {
	// Endpoint is the mention extractor service base URL
	Endpoint string `yaml:"endpoint"`
	// MapperEndpoint is the term similarity service base URL
	MapperEndpoint string `yaml:"mapper_endpoint"`
	// Mapping names the entry in mappings holding the ontology CURIE table
	Mapping string `yaml:"mapping"`
	// MinScore drops term mappings scoring below it
	MinScore float64 `yaml:"min_score"`
}

// AggregateConfig tunes the backend fan-out.
type AggregateConfig struct {
	// Workers bounds the pool; 0 means one worker per backend
	Workers int `yaml:"workers"`
	// BackendTimeout bounds each backend invocation
	BackendTimeout Duration `yaml:"backend_timeout"`
	// OverallTimeout bounds total wall time per request
	OverallTimeout Duration `yaml:"overall_timeout"`
}

// NATSConfig configures serve mode.
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
	// Subject is the request subject
	Subject string `yaml:"subject"`
}

// CacheConfig configures the optional redis result cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr is the redis host:port
	Addr string `yaml:"addr"`
	// TTL bounds entry lifetime
	TTL Duration `yaml:"ttl"`
}

// MetricsConfig configures the prometheus listener in serve mode.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the listener
	Addr string `yaml:"addr"`
}

// WatchConfig configures hot reload of hierarchy and mapping files.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// KnownBackends are the valid entries for backends.enabled.
var KnownBackends = []string{"gliner", "mesh", "t2t"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Vocabulary: VocabularyConfig{
			Path: "data/vocabulary.json",
		},
		Mappings: map[string]MappingConfig{
			"mesh": {
				Path:             "data/mappings/mesh/*.csv",
				ExternalColumn:   "cui",
				VocabularyColumn: "vocabulary_id",
			},
			"ontology": {
				Path:             "data/mappings/ontology/*.tsv",
				ExternalColumn:   "curie",
				VocabularyColumn: "vocabulary_id",
			},
		},
		Backends: BackendsConfig{
			Enabled: []string{"gliner", "mesh", "t2t"},
			Gliner: GlinerConfig{
				Endpoint:  "http://localhost:8081",
				Threshold: 0.3,
			},
			Mesh: MeshConfig{
				Endpoint: "http://localhost:8082",
				Mapping:  "mesh",
			},
			T2T: T2TConfig{
				Endpoint:       "http://localhost:8082",
				MapperEndpoint: "http://localhost:8083",
				Mapping:        "ontology",
				MinScore:       0.5,
			},
		},
		Aggregate: AggregateConfig{
			Workers:        0, // one per backend
			BackendTimeout: Duration(30 * time.Second),
			OverallTimeout: Duration(90 * time.Second),
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "semtag.annotate",
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     Duration(15 * time.Minute),
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Vocabulary.Path == "" {
		return fmt.Errorf("vocabulary.path is required")
	}
	if len(c.Backends.Enabled) == 0 {
		return fmt.Errorf("backends.enabled must list at least one backend")
	}
	for _, name := range c.Backends.Enabled {
		switch name {
		case "gliner":
			if c.Backends.Gliner.Endpoint == "" {
				return fmt.Errorf("backends.gliner.endpoint is required")
			}
		case "mesh":
			if c.Backends.Mesh.Endpoint == "" {
				return fmt.Errorf("backends.mesh.endpoint is required")
			}
			if _, ok := c.Mappings[c.Backends.Mesh.Mapping]; !ok {
				return fmt.Errorf("backends.mesh.mapping %q is not defined in mappings", c.Backends.Mesh.Mapping)
			}
		case "t2t":
			if c.Backends.T2T.Endpoint == "" {
				return fmt.Errorf("backends.t2t.endpoint is required")
			}
			if c.Backends.T2T.MapperEndpoint == "" {
				return fmt.Errorf("backends.t2t.mapper_endpoint is required")
			}
			if _, ok := c.Mappings[c.Backends.T2T.Mapping]; !ok {
				return fmt.Errorf("backends.t2t.mapping %q is not defined in mappings", c.Backends.T2T.Mapping)
			}
		default:
			return fmt.Errorf("unknown backend %q (known: %v)", name, KnownBackends)
		}
	}
	for name, m := range c.Mappings {
		if m.Path == "" {
			return fmt.Errorf("mappings.%s.path is required", name)
		}
		if m.ExternalColumn == "" || m.VocabularyColumn == "" {
			return fmt.Errorf("mappings.%s needs external_column and vocabulary_column", name)
		}
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when the cache is enabled")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Vocabulary.Path != "" {
		c.Vocabulary.Path = other.Vocabulary.Path
	}
	for name, m := range other.Mappings {
		if c.Mappings == nil {
			c.Mappings = map[string]MappingConfig{}
		}
		c.Mappings[name] = m
	}
	if len(other.Backends.Enabled) > 0 {
		c.Backends.Enabled = other.Backends.Enabled
	}
	if other.Backends.Gliner.Endpoint != "" {
		c.Backends.Gliner.Endpoint = other.Backends.Gliner.Endpoint
	}
	if other.Backends.Gliner.Threshold != 0 {
		c.Backends.Gliner.Threshold = other.Backends.Gliner.Threshold
	}
	if other.Backends.Mesh.Endpoint != "" {
		c.Backends.Mesh.Endpoint = other.Backends.Mesh.Endpoint
	}
	if other.Backends.Mesh.Mapping != "" {
		c.Backends.Mesh.Mapping = other.Backends.Mesh.Mapping
	}
	if other.Backends.T2T.Endpoint != "" {
		c.Backends.T2T.Endpoint = other.Backends.T2T.Endpoint
	}
	if other.Backends.T2T.MapperEndpoint != "" {
		c.Backends.T2T.MapperEndpoint = other.Backends.T2T.MapperEndpoint
	}
	if other.Backends.T2T.Mapping != "" {
		c.Backends.T2T.Mapping = other.Backends.T2T.Mapping
	}
	if other.Backends.T2T.MinScore != 0 {
		c.Backends.T2T.MinScore = other.Backends.T2T.MinScore
	}
	if other.Aggregate.Workers != 0 {
		c.Aggregate.Workers = other.Aggregate.Workers
	}
	if other.Aggregate.BackendTimeout != 0 {
		c.Aggregate.BackendTimeout = other.Aggregate.BackendTimeout
	}
	if other.Aggregate.OverallTimeout != 0 {
		c.Aggregate.OverallTimeout = other.Aggregate.OverallTimeout
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}
	if other.Cache.Enabled {
		c.Cache.Enabled = true
	}
	if other.Cache.Addr != "" {
		c.Cache.Addr = other.Cache.Addr
	}
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
	if other.Watch.Enabled {
		c.Watch.Enabled = true
	}
}
