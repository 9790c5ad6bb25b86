package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/oxido/pkg/bytecode"
)

var log = commonlog.GetLogger("oxido.compiler")

// Compile parses, type-checks and compiles one source file. Static errors
// come back as *Diagnostic with file set; no artifact is produced for them.
func Compile(file, source string) (*bytecode.Artifact, error) {
	prog, err := ParseFile(file, source)
	if err != nil {
		return nil, err
	}
	return CompileChecked(file, prog)
}

// ParseFile parses source, tagging any diagnostic with file.
func ParseFile(file, source string) (*Program, error) {
	prog, err := Parse(source)
	if err != nil {
		if d, ok := AsDiagnostic(err); ok {
			d.File = file
		}
		return nil, err
	}
	return prog, nil
}

// CompileChecked type-checks prog and lowers it to an artifact.
func CompileChecked(file string, prog *Program) (*bytecode.Artifact, error) {
	if err := NewChecker(file).Check(prog); err != nil {
		return nil, err
	}

	art, err := NewCompiler().CompileProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	art.File = file

	if err := art.Validate(); err != nil {
		return nil, fmt.Errorf("%s: generated invalid bytecode: %w", file, err)
	}

	log.Debugf("compiled %s: %d functions, %d constants, %d bytes of code",
		file, len(art.Functions), len(art.Constants), len(art.Code))
	return art, nil
}
