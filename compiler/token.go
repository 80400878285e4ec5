package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Brainfuck lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota

	TokenIncrement // +
	TokenDecrement // -
	TokenRight     // >
	TokenLeft      // <
	TokenOutput    // .
	TokenInput     // ,
	TokenLoopStart // [
	TokenLoopEnd   // ]
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIncrement: "+",
	TokenDecrement: "-",
	TokenRight:     ">",
	TokenLeft:      "<",
	TokenOutput:    ".",
	TokenInput:     ",",
	TokenLoopStart: "[",
	TokenLoopEnd:   "]",
}

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

var commandTokens = map[rune]TokenType{
	'+': TokenIncrement,
	'-': TokenDecrement,
	'>': TokenRight,
	'<': TokenLeft,
	'.': TokenOutput,
	',': TokenInput,
	'[': TokenLoopStart,
	']': TokenLoopEnd,
}

// Position represents a location in source code.
type Position struct {
	Offset int // byte offset (0-based)
	Line   int // line number (1-based)
	Column int // column number (1-based)
}

// String returns "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single command character and where it was found.
type Token struct {
	Type TokenType
	Pos  Position
}

// String returns a debug representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s@%s", t.Type, t.Pos)
}
