// Package manifest handles oxido.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "oxido.toml"

// Manifest represents an oxido.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Build   BuildConfig `toml:"build"`
	Run     RunConfig   `toml:"run"`

	// Dir is the directory containing the oxido.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// BuildConfig configures oxidate.
type BuildConfig struct {
	Entry  string `toml:"entry"`
	Output string `toml:"output"`
	// Cache is the path of the SQLite artifact cache; empty disables it.
	Cache string `toml:"cache"`
}

// RunConfig configures ignite.
type RunConfig struct {
	Quantum int    `toml:"quantum"`
	Trace   string `toml:"trace"`
}

// Load parses an oxido.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Build.Entry == "" {
		m.Build.Entry = "main.ox"
	}
	if m.Build.Output == "" {
		m.Build.Output = strings.TrimSuffix(m.Build.Entry, filepath.Ext(m.Build.Entry)) + ".oxbc"
	}
	if m.Run.Quantum < 0 {
		return nil, fmt.Errorf("%s: run.quantum must not be negative, got %d", path, m.Run.Quantum)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find an oxido.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the entry source file.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Build.Entry)
}

// OutputPath returns the absolute path of the compiled artifact.
func (m *Manifest) OutputPath() string {
	return m.resolve(m.Build.Output)
}

// CachePath returns the absolute path of the build cache, or "" when
// caching is off.
func (m *Manifest) CachePath() string {
	if m.Build.Cache == "" {
		return ""
	}
	return m.resolve(m.Build.Cache)
}

// TracePath returns the absolute path scheduler traces are written to,
// or "" when tracing is off.
func (m *Manifest) TracePath() string {
	if m.Run.Trace == "" {
		return ""
	}
	return m.resolve(m.Run.Trace)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
