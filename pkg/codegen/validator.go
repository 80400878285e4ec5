package codegen

// In-memory validation of generated Go using go/parser and go/types.

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// ValidationError is a parse or type error in generated code.
type ValidationError struct {
	Line     int
	Column   int
	Function string // function containing the error, "<package>" at top level
	Message  string
}

// CodeValidator type-checks generated Go source.
type CodeValidator struct {
	fset     *token.FileSet
	filename string
}

// NewCodeValidator creates a validator; filename only appears in messages.
func NewCodeValidator(filename string) *CodeValidator {
	return &CodeValidator{filename: filename}
}

// Validate parses and type-checks source, returning every error found.
func (cv *CodeValidator) Validate(source string) []ValidationError {
	cv.fset = token.NewFileSet()

	file, err := parser.ParseFile(cv.fset, cv.filename, source, parser.AllErrors)
	if err != nil {
		return []ValidationError{{Line: 1, Column: 1, Message: err.Error()}}
	}

	funcs := cv.functionLines(file)

	var errs []ValidationError
	conf := types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			typeErr, ok := err.(types.Error)
			if !ok {
				return
			}
			pos := cv.fset.Position(typeErr.Pos)
			fn, ok := funcs[pos.Line]
			if !ok {
				fn = "<package>"
			}
			errs = append(errs, ValidationError{
				Line:     pos.Line,
				Column:   pos.Column,
				Function: fn,
				Message:  typeErr.Msg,
			})
		},
	}

	_, _ = conf.Check(file.Name.Name, cv.fset, []*ast.File{file}, nil)
	return errs
}

// functionLines maps every line inside a function declaration to its name.
func (cv *CodeValidator) functionLines(file *ast.File) map[int]string {
	lines := make(map[int]string)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		start := cv.fset.Position(fn.Pos()).Line
		end := cv.fset.Position(fn.End()).Line
		for line := start; line <= end; line++ {
			lines[line] = fn.Name.Name
		}
	}
	return lines
}

// FormatValidationErrors returns a human-readable report, one error per line.
func FormatValidationErrors(errs []ValidationError, filename string) string {
	var sb strings.Builder
	for _, err := range errs {
		sb.WriteString("  ")
		sb.WriteString(filename)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(err.Line))
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(err.Column))
		sb.WriteString(": ")
		if err.Function != "" && err.Function != "<package>" {
			sb.WriteString(err.Function)
			sb.WriteString(": ")
		}
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}
