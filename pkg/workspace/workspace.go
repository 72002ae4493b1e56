// Package workspace groups several item collections under one
// .nodemap/workspace.yaml file so they can be shown as a single map.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/nodemap/pkg/config"
)

// FileName is the workspace file inside the .nodemap directory.
const FileName = "workspace.yaml"

// Config is the parsed workspace file.
type Config struct {
	Name    string         `yaml:"name,omitempty" json:"name,omitempty"`
	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// SourceConfig is one collection. Path is resolved against the workspace
// root unless it is absolute or a URL. Prefix namespaces item ids in the
// merged map and defaults to the lowercased title plus "-".
type SourceConfig struct {
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Path    string `yaml:"path" json:"path"`
	Prefix  string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Validate requires at least one source, a path on every source and
// distinct id prefixes.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("workspace must have at least one source")
	}
	owner := make(map[string]int, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("source[%d]: path is required", i)
		}
		p := s.IDPrefix()
		if j, dup := owner[p]; dup {
			return fmt.Errorf("source[%d]: duplicate prefix %q (also source[%d])", i, p, j)
		}
		owner[p] = i
	}
	return nil
}

// Title is Name, or the file name without its extension.
func (s SourceConfig) Title() string {
	if s.Name != "" {
		return s.Name
	}
	base := filepath.Base(s.Path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func (s SourceConfig) IDPrefix() string {
	if s.Prefix != "" {
		return s.Prefix
	}
	return strings.ToLower(s.Title()) + "-"
}

// Active reports whether the source takes part; sources are on unless
// enabled is false.
func (s SourceConfig) Active() bool {
	return s.Enabled == nil || *s.Enabled
}

// Location resolves the source path against root.
func (s SourceConfig) Location(root string) string {
	if filepath.IsAbs(s.Path) || strings.Contains(s.Path, "://") {
		return s.Path
	}
	return filepath.Join(root, s.Path)
}

// Locations lists the resolved locations of the active sources.
func (c *Config) Locations(root string) []string {
	out := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Active() {
			out = append(out, s.Location(root))
		}
	}
	return out
}

// Load reads and validates a workspace file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := new(Config)
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parsing workspace %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Root is the directory source paths resolve against, the parent of the
// .nodemap directory holding the workspace file.
func Root(path string) string {
	return filepath.Dir(filepath.Dir(path))
}

// Find returns the nearest .nodemap/workspace.yaml at or above dir, or an
// error matching os.ErrNotExist.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, config.DirName, FileName)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
		up := filepath.Dir(dir)
		if up == dir {
			return "", fmt.Errorf("no %s above %s: %w", FileName, dir, os.ErrNotExist)
		}
		dir = up
	}
}

// ExampleConfig is the workspace written by 'nodemap init --example-workspace'.
func ExampleConfig() Config {
	off := false
	return Config{
		Name: "my-galleries",
		Sources: []SourceConfig{
			{Name: "harbour", Path: "galleries/harbour/gallery-data.json", Prefix: "hb-"},
			{Name: "temples", Path: "galleries/temples/gallery-data.json"},
			{Name: "archive", Path: "archive/items.db", Enabled: &off},
		},
	}
}

// QualifyID puts id in the prefix namespace. Ids already carrying the
// prefix are returned as is.
func QualifyID(id, prefix string) string {
	if strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}
