package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/oxido/buildcache"
	"github.com/chazu/oxido/compiler"
	"github.com/chazu/oxido/manifest"
	"github.com/chazu/oxido/pkg/bytecode"
)

const (
	sourceExt   = ".ox"
	artifactExt = ".oxbc"
)

type buildOptions struct {
	Source      string // empty: the manifest entry
	Output      string
	Disassemble bool
	NoCache     bool
	Dir         string // where to look for oxido.toml; empty means "."
}

type buildResult struct {
	Source string
	Output string // empty when only disassembling
	Cached bool
}

// build compiles one source file. The listing of -S goes to stdout.
func build(opts buildOptions, stdout io.Writer) (*buildResult, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	source, output := opts.Source, opts.Output
	if source == "" {
		if m == nil {
			return nil, fmt.Errorf("no source file given and no %s found", manifest.FileName)
		}
		source = m.EntryPath()
		if output == "" {
			output = m.OutputPath()
		}
	}
	if output == "" {
		output = strings.TrimSuffix(source, filepath.Ext(source)) + artifactExt
	}

	if err := checkSource(source); err != nil {
		return nil, err
	}
	text, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", source, err)
	}

	var cache *buildcache.Cache
	if m != nil && m.CachePath() != "" && !opts.NoCache {
		cache, err = buildcache.Open(m.CachePath())
		if err != nil {
			return nil, fmt.Errorf("opening build cache: %w", err)
		}
		defer cache.Close()
	}

	art, cached, err := compileSource(cache, source, string(text))
	if err != nil {
		return nil, err
	}

	res := &buildResult{Source: source, Cached: cached}
	if opts.Disassemble {
		_, err := io.WriteString(stdout, art.DisassembleWithName(filepath.Base(source)))
		return res, err
	}

	data, err := art.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing %s: %w", source, err)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", output, err)
	}
	res.Output = output
	return res, nil
}

func checkSource(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if filepath.Ext(path) != sourceExt {
		return fmt.Errorf("file %s does not have extension %s", path, sourceExt)
	}
	return nil
}

// compileSource compiles text, going through cache when it is non-nil.
func compileSource(cache *buildcache.Cache, file, text string) (*bytecode.Artifact, bool, error) {
	if cache == nil {
		art, err := compiler.Compile(file, text)
		return art, false, err
	}

	sum := buildcache.Sum(file, text)
	art, ok, err := cache.Get(sum)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return art, true, nil
	}

	art, err = compiler.Compile(file, text)
	if err != nil {
		return nil, false, err
	}
	if _, err := cache.Put(sum, art); err != nil {
		return nil, false, err
	}
	return art, false, nil
}
