package codegen

import (
	"strings"
	"testing"
)

func TestValidate_ValidCode(t *testing.T) {
	cv := NewCodeValidator("test.go")
	source := `package main

func main() {
	x := 1
	_ = x
}
`
	if errs := cv.Validate(source); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidate_SyntaxError(t *testing.T) {
	cv := NewCodeValidator("test.go")
	source := `package main

func main() {
	x :=
}
`
	if errs := cv.Validate(source); len(errs) == 0 {
		t.Error("Validate() found no syntax error")
	}
}

func TestValidate_TypeErrorInFunction(t *testing.T) {
	cv := NewCodeValidator("test.go")
	source := `package main

func main() {
	_ = undefinedVariable
}
`
	errs := cv.Validate(source)
	if len(errs) == 0 {
		t.Fatal("Validate() found no type error")
	}
	if errs[0].Function != "main" {
		t.Errorf("Function = %q, want %q", errs[0].Function, "main")
	}
	if errs[0].Line != 4 {
		t.Errorf("Line = %d, want 4", errs[0].Line)
	}
	if !strings.Contains(errs[0].Message, "undefinedVariable") {
		t.Errorf("Message = %q, want it to name undefinedVariable", errs[0].Message)
	}
}

func TestValidate_PackageLevelError(t *testing.T) {
	cv := NewCodeValidator("test.go")
	source := `package main

var x int = "text"

func main() {}
`
	errs := cv.Validate(source)
	if len(errs) == 0 {
		t.Fatal("Validate() found no type error")
	}
	if errs[0].Function != "<package>" {
		t.Errorf("Function = %q, want <package>", errs[0].Function)
	}
}

func TestFormatValidationErrors(t *testing.T) {
	if got := FormatValidationErrors(nil, "main.go"); got != "" {
		t.Errorf("FormatValidationErrors(nil) = %q, want empty", got)
	}

	errs := []ValidationError{
		{Line: 3, Column: 2, Function: "main", Message: "boom"},
		{Line: 1, Column: 1, Function: "<package>", Message: "bad"},
	}
	want := "  main.go:3:2: main: boom\n  main.go:1:1: bad\n"
	if got := FormatValidationErrors(errs, "main.go"); got != want {
		t.Errorf("FormatValidationErrors() = %q, want %q", got, want)
	}
}
