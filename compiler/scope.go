package compiler

import "github.com/chazu/oxido/pkg/bytecode"

// ---------------------------------------------------------------------------
// Scopes: name resolution shared by the checker and code generator
// ---------------------------------------------------------------------------

// symbol is a declared name.
type symbol struct {
	name   string
	ty     *Type
	global bool
	slot   int
	isFunc bool
	pos    Position
}

// funcScope tracks the block scopes and slots of one function body. The
// program's top level is a funcScope without info; everything declared
// there is a global.
type funcScope struct {
	parent   *funcScope
	info     *FuncInfo
	blocks   []map[string]*symbol
	nextSlot int
	captured map[*symbol]int
	result   *Type
	loops    int
}

func newFuncScope(parent *funcScope, info *FuncInfo, result *Type) *funcScope {
	return &funcScope{
		parent:   parent,
		info:     info,
		blocks:   []map[string]*symbol{{}},
		captured: make(map[*symbol]int),
		result:   result,
	}
}

func (fs *funcScope) push() {
	fs.blocks = append(fs.blocks, map[string]*symbol{})
}

func (fs *funcScope) pop() {
	fs.blocks = fs.blocks[:len(fs.blocks)-1]
}

// bind adds sym to the innermost block, shadowing outer bindings.
func (fs *funcScope) bind(sym *symbol) {
	fs.blocks[len(fs.blocks)-1][sym.name] = sym
}

// local finds name in this function's own blocks.
func (fs *funcScope) local(name string) *symbol {
	for i := len(fs.blocks) - 1; i >= 0; i-- {
		if sym, ok := fs.blocks[i][name]; ok {
			return sym
		}
	}
	return nil
}

// lookup finds name in this function or any enclosing one without
// recording captures.
func (fs *funcScope) lookup(name string) *symbol {
	for s := fs; s != nil; s = s.parent {
		if sym := s.local(name); sym != nil {
			return sym
		}
	}
	return nil
}

// resolve finds name and returns how this function reaches it. A local of
// an enclosing function becomes a capture, chained through every function
// in between.
func (fs *funcScope) resolve(name string) (Ref, *symbol) {
	if sym := fs.local(name); sym != nil {
		if sym.global {
			return Ref{Kind: RefGlobal, Index: sym.slot}, sym
		}
		return Ref{Kind: RefLocal, Index: sym.slot}, sym
	}
	if fs.parent == nil {
		return Ref{}, nil
	}

	outer, sym := fs.parent.resolve(name)
	switch outer.Kind {
	case RefLocal, RefCapture:
		return Ref{Kind: RefCapture, Index: fs.capture(sym, outer)}, sym
	}
	return outer, sym
}

// capture returns the environment index of sym, adding it on first use.
func (fs *funcScope) capture(sym *symbol, outer Ref) int {
	if i, ok := fs.captured[sym]; ok {
		return i
	}
	src := bytecode.CaptureLocal
	if outer.Kind == RefCapture {
		src = bytecode.CaptureOuter
	}
	i := len(fs.info.Captures)
	fs.info.Captures = append(fs.info.Captures, bytecode.Capture{Source: src, Index: uint16(outer.Index)})
	fs.captured[sym] = i
	return i
}
