package compiler

import (
	"errors"
	"fmt"
)

// Diagnostic is a static error with the position of the offending source.
// It implements error.
type Diagnostic struct {
	File string
	Pos  Position
	Msg  string
}

func (d *Diagnostic) Error() string {
	if d.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Pos.Line, d.Pos.Column, d.Msg)
	}
	return fmt.Sprintf("%d:%d: %s", d.Pos.Line, d.Pos.Column, d.Msg)
}

func diagnosticf(pos Position, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// AsDiagnostic extracts a *Diagnostic from err, if it carries one.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
