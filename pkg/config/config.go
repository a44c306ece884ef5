// Package config loads the asset collections and service settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/illmade-knight/go-assetcache/pkg/loader"
	"github.com/illmade-knight/go-assetcache/pkg/registry"
	"gopkg.in/yaml.v3"
)

// Source kinds understood by SourceConfig.Kind.
const (
	SourceFile      = "file"
	SourceGCS       = "gcs"
	SourceRedis     = "redis"
	SourceFirestore = "firestore"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of the YAML document.
type Config struct {
	LogLevel        string `yaml:"log_level"`
	HTTPPort        string `yaml:"http_port"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`

	Source       SourceConfig        `yaml:"source"`
	Invalidation *InvalidationConfig `yaml:"invalidation"`

	// Preload loads every registered asset at startup.
	Preload    bool `yaml:"preload"`
	MaxEntries int  `yaml:"max_entries"`
	// PreloadConcurrency bounds concurrent loads during preload.
	PreloadConcurrency int `yaml:"preload_concurrency"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Collections []Collection `yaml:"collections"`
}

// SourceConfig selects where asset bytes come from.
type SourceConfig struct {
	Kind string `yaml:"kind"`

	// Root is the directory file sources read below.
	Root string `yaml:"root"`

	Bucket       string `yaml:"bucket"`
	ObjectPrefix string `yaml:"object_prefix"`

	Redis     loader.RedisConfig     `yaml:"redis"`
	Firestore loader.FirestoreConfig `yaml:"firestore"`
}

// InvalidationConfig enables the Pub/Sub eviction listener.
type InvalidationConfig struct {
	SubscriptionID         string `yaml:"subscription_id"`
	MaxOutstandingMessages int    `yaml:"max_outstanding_messages"`
	NumGoroutines          int    `yaml:"num_goroutines"`
}

// Collection is one named group of assets sharing an optional base path.
type Collection struct {
	Name     string  `yaml:"name"`
	BasePath string  `yaml:"base_path"`
	Assets   []Asset `yaml:"assets"`
}

// Asset registers one key. BasePath overrides the collection's base path when set.
type Asset struct {
	Key      string `yaml:"key"`
	Path     string `yaml:"path"`
	BasePath string `yaml:"base_path"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPPort == "" {
		c.HTTPPort = ":8080"
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceFile
	}
	if c.Source.Kind == SourceFile && c.Source.Root == "" {
		c.Source.Root = "."
	}
	if c.PreloadConcurrency <= 0 {
		c.PreloadConcurrency = 4
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	c.Source.Firestore.ProjectID = c.ProjectID
	for i := range c.Collections {
		c.Collections[i].Name = strings.TrimSpace(c.Collections[i].Name)
	}
	if inv := c.Invalidation; inv != nil {
		if inv.MaxOutstandingMessages <= 0 {
			inv.MaxOutstandingMessages = 100
		}
		if inv.NumGoroutines <= 0 {
			inv.NumGoroutines = 2
		}
	}
}

// Validate checks everything that can be checked without touching a backend.
// Registries are built here too, so duplicate keys fail at load time.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceFile:
	case SourceGCS:
		if c.Source.Bucket == "" {
			return fmt.Errorf("%w: source.bucket is required for gcs", ErrInvalidConfig)
		}
	case SourceRedis:
		if c.Source.Redis.Addr == "" {
			return fmt.Errorf("%w: source.redis.addr is required for redis", ErrInvalidConfig)
		}
	case SourceFirestore:
		if c.Source.Firestore.CollectionName == "" {
			return fmt.Errorf("%w: source.firestore.collection is required for firestore", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalidConfig, c.Source.Kind)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: max_entries must not be negative", ErrInvalidConfig)
	}
	if c.Invalidation != nil && c.Invalidation.SubscriptionID == "" {
		return fmt.Errorf("%w: invalidation.subscription_id is required", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Collections))
	for i, col := range c.Collections {
		name := strings.TrimSpace(col.Name)
		if name == "" {
			return fmt.Errorf("%w: collection %d has no name", ErrInvalidConfig, i)
		}
		if name != col.Name {
			return fmt.Errorf("%w: collection name %q has surrounding whitespace", ErrInvalidConfig, col.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate collection %q", ErrInvalidConfig, name)
		}
		seen[name] = struct{}{}
		if _, err := col.Registry(); err != nil {
			return fmt.Errorf("%w: collection %q: %w", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

// Entries converts the collection to registry entries.
func (c Collection) Entries() []registry.Entry[string] {
	entries := make([]registry.Entry[string], len(c.Assets))
	for i, a := range c.Assets {
		base := c.BasePath
		if a.BasePath != "" {
			base = a.BasePath
		}
		entries[i] = registry.Entry[string]{Key: a.Key, BasePath: base, RelativePath: a.Path}
	}
	return entries
}

// Registry builds the collection's registry.
func (c Collection) Registry() (*registry.Registry[string], error) {
	return registry.New(c.Entries()...)
}
