// Package config loads nodemap settings from defaults, an optional YAML file
// and NODEMAP_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/vanderheijden86/nodemap/pkg/graph"
	"github.com/vanderheijden86/nodemap/pkg/i18n"
	"github.com/vanderheijden86/nodemap/pkg/layout"
	"github.com/vanderheijden86/nodemap/pkg/theme"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	DirName   = ".nodemap"
	FileName  = "config.yaml"
	EnvPrefix = "NODEMAP_"
)

// LayoutSection is the layout geometry plus an optional jitter seed. Without
// a seed every load produces a slightly different layout.
type LayoutSection struct {
	layout.Config `yaml:",inline" koanf:",squash"`
	Seed          *uint64 `yaml:"seed,omitempty" koanf:"seed"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Addr           string   `yaml:"addr" koanf:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	Gzip           bool     `yaml:"gzip" koanf:"gzip"`
}

// DiscoveryConfig controls how item files are found when none is configured.
type DiscoveryConfig struct {
	Patterns []string `yaml:"patterns" koanf:"patterns"`
	MaxDepth int      `yaml:"max_depth" koanf:"max_depth"`
}

// Config is the full nodemap configuration.
type Config struct {
	Items      string          `yaml:"items" koanf:"items"`
	Theme      string          `yaml:"theme" koanf:"theme"`
	Language   string          `yaml:"language" koanf:"language"`
	LocalesDir string          `yaml:"locales_dir,omitempty" koanf:"locales_dir"`
	LogFile    string          `yaml:"log_file,omitempty" koanf:"log_file"`
	Strict     bool            `yaml:"strict" koanf:"strict"`
	Watch      bool            `yaml:"watch" koanf:"watch"`
	Layout     LayoutSection   `yaml:"layout" koanf:"layout"`
	Graph      graph.Options   `yaml:"graph" koanf:"graph"`
	Viewport   viewport.Config `yaml:"viewport" koanf:"viewport"`
	Server     ServerConfig    `yaml:"server" koanf:"server"`
	Discovery  DiscoveryConfig `yaml:"discovery" koanf:"discovery"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Theme:    theme.Default,
		Language: i18n.DefaultLanguage,
		Watch:    true,
		Layout:   LayoutSection{Config: layout.DefaultConfig()},
		Graph:    graph.DefaultOptions(),
		Viewport: viewport.DefaultConfig(),
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"*"},
			Gzip:           true,
		},
		Discovery: DiscoveryConfig{
			Patterns: []string{"**/gallery-data.json", "**/*.items.json", "**/*.items.yaml", "**/items.db"},
			MaxDepth: 4,
		},
	}
}

// envKey maps NODEMAP_LAYOUT__NODE_SIZE to layout.node_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Theme) {
	case theme.NameLight, theme.NameDark, theme.NameAuto:
	default:
		return fmt.Errorf("invalid theme %q: must be one of light, dark, auto", c.Theme)
	}
	if _, ok := i18n.LookupLanguage(c.Language); !ok {
		return fmt.Errorf("unsupported language %q", c.Language)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if err := c.Viewport.Validate(); err != nil {
		return fmt.Errorf("viewport: %w", err)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Discovery.MaxDepth < 0 {
		return fmt.Errorf("discovery.max_depth must be non-negative")
	}
	return nil
}

// ResolveItems returns the items location relative to root unless it is
// absolute or a URL.
func (c *Config) ResolveItems(root string) string {
	it := c.Items
	if it == "" || root == "" || filepath.IsAbs(it) || strings.Contains(it, "://") {
		return it
	}
	return filepath.Join(root, it)
}

// Path returns the config file location for a project root.
func Path(root string) string {
	return filepath.Join(root, DirName, FileName)
}
