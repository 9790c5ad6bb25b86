package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "counters"
version = "0.1.0"

[build]
entry = "src/guarded.ox"
output = "out/guarded.oxbc"
cache = ".oxido/cache.db"

[run]
quantum = 7
trace = "trace.cbor"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "counters" {
		t.Errorf("project name = %q, want counters", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Run.Quantum != 7 {
		t.Errorf("quantum = %d, want 7", m.Run.Quantum)
	}
	if got := m.EntryPath(); got != filepath.Join(m.Dir, "src", "guarded.ox") {
		t.Errorf("entry path = %q", got)
	}
	if got := m.OutputPath(); got != filepath.Join(m.Dir, "out", "guarded.oxbc") {
		t.Errorf("output path = %q", got)
	}
	if got := m.CachePath(); got != filepath.Join(m.Dir, ".oxido", "cache.db") {
		t.Errorf("cache path = %q", got)
	}
	if got := m.TracePath(); got != filepath.Join(m.Dir, "trace.cbor") {
		t.Errorf("trace path = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"

[build]
entry = "hello.ox"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Build.Output != "hello.oxbc" {
		t.Errorf("default output = %q, want hello.oxbc", m.Build.Output)
	}
	if m.CachePath() != "" || m.TracePath() != "" {
		t.Errorf("cache %q trace %q, want both off", m.CachePath(), m.TracePath())
	}
	if m.Run.Quantum != 0 {
		t.Errorf("quantum = %d, want 0 (VM default)", m.Run.Quantum)
	}

	writeManifest(t, dir, "[project]\nname = \"bare\"\n")
	if m, err = Load(dir); err != nil {
		t.Fatal(err)
	}
	if m.Build.Entry != "main.ox" || m.Build.Output != "main.oxbc" {
		t.Errorf("defaults = %+v", m.Build)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", "parse error in"},
		{"type", "[run]\nquantum = \"fast\"", "parse error in"},
		{"negative quantum", "[run]\nquantum = -1", "run.quantum must not be negative"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load error = %v, want %q", err, tc.want)
			}
		})
	}

	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "cannot read") {
		t.Errorf("missing manifest: %v", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
	if m.EntryPath() != filepath.Join(m.Dir, "main.ox") {
		t.Errorf("entry resolved against %q", m.EntryPath())
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no oxido.toml exists")
	}
}

func TestAbsolutePathsUnchanged(t *testing.T) {
	m := &Manifest{Dir: "/app", Build: BuildConfig{Entry: "/src/x.ox", Output: "x.oxbc"}}
	if m.EntryPath() != "/src/x.ox" {
		t.Errorf("entry = %q", m.EntryPath())
	}
	if m.OutputPath() != "/app/x.oxbc" {
		t.Errorf("output = %q", m.OutputPath())
	}
}
