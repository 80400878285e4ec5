package server

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/mlbf/compiler"
	"github.com/chazu/mlbf/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "mlbf-lsp"

var lspLog = commonlog.GetLogger("mlbf.lsp")

// LspServer publishes bracket errors as diagnostics and shows, on hover,
// the instruction a command character compiles to.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover: s.textDocumentHover,
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
	lspLog.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true

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
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

// hover describes the instruction compiled from the command under pos.
// Nothing is shown for comment characters or unbalanced documents.
func hover(text string, pos protocol.Position) *protocol.Hover {
	res, err := compiler.Compile(text)
	if err != nil {
		return nil
	}

	// LSP positions are 0-based UTF-16 offsets, compiler positions 1-based
	// rune columns.
	col := runeColumn(lineOf(text, int(pos.Line)), int(pos.Character))
	i := res.InstructionAt(int(pos.Line)+1, col)
	if i < 0 || i >= res.Program.Len()-1 {
		return nil
	}

	ins := res.Program.At(i)
	var sb strings.Builder
	sb.WriteString("```\n")
	sb.WriteString(bytecode.FormatInstruction(i, ins))
	sb.WriteString("\n```")
	switch ins.Opcode {
	case bytecode.OpBranchZ:
		fmt.Fprintf(&sb, "\n\nJumps past the matching `]` (instruction %d) when the cell is zero.", ins.Argument)
	case bytecode.OpBranchNZ:
		fmt.Fprintf(&sb, "\n\nJumps back into the loop (instruction %d) while the cell is non-zero.", ins.Argument)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: sb.String(),
		},
		Range: &protocol.Range{
			Start: pos,
			End:   protocol.Position{Line: pos.Line, Character: pos.Character + 1},
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(text),
	})
}

// diagnostics reports every unmatched bracket in text.
func diagnostics(text string) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	for _, e := range compiler.Check(text) {
		severity := protocol.DiagnosticSeverityError
		source := lspName
		line := lineOf(text, e.Pos.Line-1)
		start := protocol.Position{
			Line:      protocol.UInteger(e.Pos.Line - 1),
			Character: protocol.UInteger(utf16Offset(line, e.Pos.Column)),
		}
		diags = append(diags, protocol.Diagnostic{
			Range: protocol.Range{
				Start: start,
				End:   protocol.Position{Line: start.Line, Character: start.Character + 1},
			},
			Severity: &severity,
			Source:   &source,
			Message:  e.Err.Error(),
		})
	}
	return diags
}

// lineOf returns the 0-based line n of text without its newline.
func lineOf(text string, n int) string {
	for ; n > 0; n-- {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			return ""
		}
		text = text[i+1:]
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}

// runeColumn converts a UTF-16 offset within line to a 1-based rune column.
// Offsets past the end of the line keep counting one column per unit.
func runeColumn(line string, offset int) int {
	col, units := 1, 0
	for _, r := range line {
		if units >= offset {
			return col
		}
		units += utf16.RuneLen(r)
		col++
	}
	return col + offset - units
}

// utf16Offset converts a 1-based rune column within line to a UTF-16 offset.
func utf16Offset(line string, col int) int {
	units := 0
	for _, r := range line {
		if col <= 1 {
			break
		}
		units += utf16.RuneLen(r)
		col--
	}
	return units + max(col-1, 0)
}

func boolPtr(b bool) *bool {
	return &b
}
