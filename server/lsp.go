// Package server implements the oxido language server.
package server

import (
	"strings"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/oxido/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "oxido-lsp"

var log = commonlog.GetLogger("oxido.lsp")

// LspServer bridges LSP editor features to the oxido checker.
type LspServer struct {
	docs *Documents

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		docs:    NewDocuments(),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("oxido LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.docs.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.docs.Close(string(uri))

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	d, err := s.docs.Update(string(uri), text)
	if err != nil {
		log.Errorf("analyzing %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(d),
	})
}

// --- Language features ---

// withDocument runs fn on the current analysis of uri. It returns nil when
// uri is not open.
func (s *LspServer) withDocument(uri protocol.DocumentUri, fn func(*Document) interface{}) interface{} {
	var result interface{}
	err := s.docs.Read(string(uri), func(d *Document) {
		result = fn(d)
	})
	if err != nil {
		log.Errorf("%s: %s", uri, err)
		return nil
	}
	return result
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	result := s.withDocument(params.TextDocument.URI, func(d *Document) interface{} {
		prefix := extractPrefix(d.Text, params.Position)
		if prefix == "" {
			return nil
		}
		return completionItems(d.Complete(prefix))
	})
	if result == nil {
		return nil, nil
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	result := s.withDocument(params.TextDocument.URI, func(d *Document) interface{} {
		word := extractWord(d.Text, params.Position)
		if word == "" {
			return nil
		}
		text := d.Hover(word, offsetAt(d.Text, params.Position))
		if text == "" {
			return nil
		}
		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: text,
			},
		}
	})
	if result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	result := s.withDocument(uri, func(d *Document) interface{} {
		word := extractWord(d.Text, params.Position)
		if word == "" {
			return nil
		}
		decl, ok := d.declarationOf(word, offsetAt(d.Text, params.Position))
		if !ok {
			return nil
		}
		start := lspPosition(decl.pos)
		end := start
		end.Character += protocol.UInteger(len(decl.name))
		return []protocol.Location{{URI: uri, Range: protocol.Range{Start: start, End: end}}}
	})
	if result == nil {
		return nil, nil
	}
	return result, nil
}

// --- Conversions ---

func diagnostics(d *Document) []protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lspName
	out := []protocol.Diagnostic{}
	for _, diag := range d.Diags {
		start := lspPosition(diag.Pos)
		end := start
		end.Character++
		out = append(out, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Source:   &source,
			Message:  diag.Msg,
		})
	}
	return out
}

func completionItems(cands []Candidate) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(cands))
	for _, c := range cands {
		kind := protocol.CompletionItemKindVariable
		switch c.Kind {
		case "keyword":
			kind = protocol.CompletionItemKindKeyword
		case "builtin", "fn":
			kind = protocol.CompletionItemKindFunction
		}
		label, detail := c.Label, c.Detail
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// lspPosition converts a 1-based source position to a 0-based LSP one.
func lspPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// offsetAt converts an LSP position to a byte offset into text.
func offsetAt(text string, pos protocol.Position) int {
	offset := 0
	for line := 0; line < int(pos.Line); line++ {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
	}
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text) - offset
	}
	if int(pos.Character) < end {
		return offset + int(pos.Character)
	}
	return offset + end
}

// --- Text extraction helpers ---

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
