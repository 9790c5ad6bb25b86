package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chazu/oxido/manifest"
	"github.com/chazu/oxido/pkg/bytecode"
	"github.com/chazu/oxido/vm"
)

const artifactExt = ".oxbc"

type runOptions struct {
	Artifact string
	Quantum  int    // 0: manifest value, else the VM default
	Trace    string // empty: manifest value, else no trace
	Debug    bool
	Verbose  bool
	Dir      string // where to look for oxido.toml; empty means "."

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// run executes one artifact and returns the process exit code.
func run(ctx context.Context, opts runOptions) int {
	art, err := loadArtifact(opts.Artifact)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
		return 1
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "Error loading manifest: %v\n", err)
		return 1
	}

	quantum, tracePath := opts.Quantum, opts.Trace
	if m != nil {
		if quantum == 0 {
			quantum = m.Run.Quantum
		}
		if tracePath == "" {
			tracePath = m.TracePath()
		}
	}

	machine := vm.New(art)
	machine.Quantum = quantum
	machine.Debug = opts.Debug
	machine.Stdin = opts.Stdin
	machine.Stdout = opts.Stdout
	machine.Stderr = opts.Stderr
	if tracePath != "" {
		machine.Trace = vm.NewTrace()
	}

	result, runErr := machine.Run(ctx)

	code := 0
	for _, f := range machine.Faults() {
		fmt.Fprintf(opts.Stderr, "Error: %v\n", f)
		code = 1
	}
	if runErr != nil {
		fmt.Fprintf(opts.Stderr, "Error: %v\n", runErr)
		code = 1
	} else if !result.IsUnit() {
		fmt.Fprintln(opts.Stdout, result)
	}

	if machine.Trace != nil {
		if err := writeTrace(tracePath, machine.Trace); err != nil {
			fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
			code = 1
		}
	}

	if opts.Verbose {
		fmt.Fprintf(opts.Stderr, "%d instructions, %d threads\n", machine.Steps(), len(machine.Threads()))
	}
	return code
}

func loadArtifact(path string) (*bytecode.Artifact, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() || filepath.Ext(path) != artifactExt {
		return nil, fmt.Errorf("file %s is not a %s file", path, artifactExt)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	art, err := bytecode.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return art, nil
}

func writeTrace(path string, tr *vm.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace: %w", err)
	}
	if _, err := tr.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing trace: %w", err)
	}
	return f.Close()
}
