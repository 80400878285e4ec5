package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnostics_Balanced(t *testing.T) {
	diags := diagnostics("+[->+<]. a comment")
	if diags == nil {
		t.Fatal("diagnostics should be an empty slice, not nil")
	}
	if len(diags) != 0 {
		t.Errorf("got %d diagnostics, want 0", len(diags))
	}
}

func TestDiagnostics_UnmatchedClose(t *testing.T) {
	diags := diagnostics("+\n -]")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}

	d := diags[0]
	if d.Range.Start.Line != 1 || d.Range.Start.Character != 2 {
		t.Errorf("start = %d:%d, want 1:2", d.Range.Start.Line, d.Range.Start.Character)
	}
	if d.Range.End.Character != 3 {
		t.Errorf("end character = %d, want 3", d.Range.End.Character)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("severity should be error")
	}
	if !strings.Contains(d.Message, "unmatched ']'") {
		t.Errorf("message = %q", d.Message)
	}
}

func TestDiagnostics_AllErrorsReported(t *testing.T) {
	diags := diagnostics("][[")
	if len(diags) != 3 {
		t.Fatalf("got %d diagnostics, want 3", len(diags))
	}
	if !strings.Contains(diags[0].Message, "']'") {
		t.Errorf("first message = %q, want the unmatched ']'", diags[0].Message)
	}
	for _, d := range diags[1:] {
		if !strings.Contains(d.Message, "'['") {
			t.Errorf("message = %q, want an unmatched '['", d.Message)
		}
	}
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("contents type = %T, want MarkupContent", h.Contents)
	}
	return mc.Value
}

func TestHover_Command(t *testing.T) {
	h := hover("+>[-]", protocol.Position{Line: 0, Character: 1})
	if h == nil {
		t.Fatal("hover should describe '>'")
	}
	text := hoverText(t, h)
	if !strings.Contains(text, "INC_P") {
		t.Errorf("hover = %q, want INC_P", text)
	}
	if h.Range == nil || h.Range.Start.Character != 1 || h.Range.End.Character != 2 {
		t.Errorf("range = %+v, want one character at 1", h.Range)
	}
}

func TestHover_Branch(t *testing.T) {
	h := hover("+\n[-]", protocol.Position{Line: 1, Character: 0})
	if h == nil {
		t.Fatal("hover should describe '['")
	}
	text := hoverText(t, h)
	if !strings.Contains(text, "BRANCH_Z") {
		t.Errorf("hover = %q, want BRANCH_Z", text)
	}
	// '[' is instruction 1 and its partner ']' is instruction 3.
	if !strings.Contains(text, "instruction 4") {
		t.Errorf("hover = %q, want the target past the loop", text)
	}
}

func TestHover_NoCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
	}{
		{"comment", "+ note", protocol.Position{Line: 0, Character: 3}},
		{"past end", "+", protocol.Position{Line: 0, Character: 5}},
		{"line beyond document", "+", protocol.Position{Line: 4, Character: 0}},
		{"unbalanced", "+[", protocol.Position{Line: 0, Character: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if h := hover(tt.text, tt.pos); h != nil {
				t.Errorf("hover = %+v, want nil", h)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Position encoding
// ---------------------------------------------------------------------------

func TestDiagnostics_AstralComment(t *testing.T) {
	// U+1F600 is two UTF-16 units but one rune.
	diags := diagnostics("+\n\U0001F600 x]")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	r := diags[0].Range
	if r.Start.Line != 1 || r.Start.Character != 4 || r.End.Character != 5 {
		t.Errorf("range = %+v, want line 1 characters 4-5", r)
	}
}

func TestHover_AstralComment(t *testing.T) {
	h := hover("\U0001F600\U0001F600>[-]", protocol.Position{Line: 0, Character: 4})
	if h == nil {
		t.Fatal("hover should describe '>'")
	}
	if text := hoverText(t, h); !strings.Contains(text, "INC_P") {
		t.Errorf("hover = %q, want INC_P", text)
	}
}

func TestPositionConversion(t *testing.T) {
	line := "a\U0001F600b"
	for col, offset := range map[int]int{1: 0, 2: 1, 3: 3, 4: 4, 6: 6} {
		if got := utf16Offset(line, col); got != offset {
			t.Errorf("utf16Offset(%d) = %d, want %d", col, got, offset)
		}
		if got := runeColumn(line, offset); got != col {
			t.Errorf("runeColumn(%d) = %d, want %d", offset, got, col)
		}
	}
	if got := lineOf("one\ntwo\nthree", 1); got != "two" {
		t.Errorf("lineOf = %q, want two", got)
	}
	if got := lineOf("one", 3); got != "" {
		t.Errorf("lineOf past end = %q, want empty", got)
	}
}

// ---------------------------------------------------------------------------
// Document store
// ---------------------------------------------------------------------------

func TestLSP_HoverUnknownDocument(t *testing.T) {
	lsp := NewLSP()
	h, err := lsp.textDocumentHover(nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///missing.b"},
		},
	})
	if err != nil {
		t.Fatalf("hover returned error: %v", err)
	}
	if h != nil {
		t.Error("hover on an unknown document should be nil")
	}
}

func TestLSP_HoverStoredDocument(t *testing.T) {
	lsp := NewLSP()
	lsp.mu.Lock()
	lsp.docs["file:///test.b"] = "-"
	lsp.mu.Unlock()

	h, err := lsp.textDocumentHover(nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///test.b"},
			Position:     protocol.Position{Line: 0, Character: 0},
		},
	})
	if err != nil {
		t.Fatalf("hover returned error: %v", err)
	}
	if h == nil || !strings.Contains(hoverText(t, h), "DEC_V") {
		t.Errorf("hover = %+v, want DEC_V", h)
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}

	p = boolPtr(false)
	if *p != false {
		t.Errorf("boolPtr(false) = %v, want false", *p)
	}
}
