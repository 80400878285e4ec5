package compiler

import "unicode/utf8"

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for Brainfuck source
// ---------------------------------------------------------------------------

// Lexer tokenizes Brainfuck source. Every character that is not one of the
// eight commands is a comment.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}

	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next command token, or TokenEOF at end of input.
func (l *Lexer) NextToken() Token {
	for !l.atEOF() {
		if tt, ok := commandTokens[l.ch]; ok {
			tok := Token{Type: tt, Pos: l.position()}
			l.readChar()
			return tok
		}
		l.readChar()
	}
	return Token{Type: TokenEOF, Pos: l.position()}
}

// Tokenize returns every command token in the input, ending with TokenEOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
