package codegen

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/mlbf/pkg/bytecode"
	"github.com/chazu/mlbf/vm"
)

// GenerateGo returns a standalone main package equivalent to p.
func GenerateGo(p *bytecode.Program, opts Options) (string, error) {
	nodes, err := buildTree(p)
	if err != nil {
		return "", err
	}

	f := jen.NewFile("main")
	f.HeaderComment("Code generated by mlbf. DO NOT EDIT.")

	f.Var().Defs(
		jen.Id("t").Index(jen.Lit(opts.tapeSize())).Byte(),
		jen.Id("p").Int(),
		jen.Id("in").Op("=").Qual("bufio", "NewReader").Call(jen.Qual("os", "Stdin")),
		jen.Id("out").Op("=").Qual("bufio", "NewWriter").Call(jen.Qual("os", "Stdout")),
	)
	f.Line()

	generateRead(f, opts.EOF)
	f.Line()

	body := []jen.Code{jen.Defer().Id("out").Dot("Flush").Call()}
	body = append(body, goStatements(nodes)...)
	f.Func().Id("main").Params().Block(body...)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	src := buf.String()

	if !opts.SkipValidation {
		if errs := NewCodeValidator("main.go").Validate(src); len(errs) > 0 {
			return "", fmt.Errorf("%w:\n%s", ErrInvalidOutput, FormatValidationErrors(errs, "main.go"))
		}
	}
	return src, nil
}

// generateRead emits the input helper for the given EOF policy.
func generateRead(f *jen.File, eof vm.EOFPolicy) {
	onEOF := []jen.Code{jen.Return()}
	if eof == vm.EOFZero {
		onEOF = []jen.Code{jen.Op("*").Id("cell").Op("=").Lit(0), jen.Return()}
	}

	f.Func().Id("read").Params(jen.Id("cell").Op("*").Byte()).Block(
		jen.Id("out").Dot("Flush").Call(),
		jen.List(jen.Id("c"), jen.Id("err")).Op(":=").Id("in").Dot("ReadByte").Call(),
		jen.If(jen.Id("err").Op("!=").Nil()).Block(onEOF...),
		jen.Op("*").Id("cell").Op("=").Id("c"),
	)
}

// goCell renders t[p+offset].
func goCell(offset int32) *jen.Statement {
	var idx *jen.Statement
	switch {
	case offset > 0:
		idx = jen.Id("p").Op("+").Lit(int(offset))
	case offset < 0:
		idx = jen.Id("p").Op("-").Lit(int(-offset))
	default:
		idx = jen.Id("p")
	}
	return jen.Id("t").Index(idx)
}

// byteLit renders an argument reduced to the cell width.
func byteLit(arg int32) *jen.Statement {
	return jen.Lit(int(uint8(arg)))
}

func goStatements(nodes []node) []jen.Code {
	var stmts []jen.Code
	for _, n := range nodes {
		if n.loop {
			stmts = append(stmts, jen.For(jen.Id("t").Index(jen.Id("p")).Op("!=").Lit(0)).Block(goStatements(n.body)...))
			continue
		}

		ins := n.ins
		switch ins.Opcode {
		case bytecode.OpIn:
			stmts = append(stmts, jen.Id("read").Call(jen.Op("&").Add(goCell(ins.Offset))))
		case bytecode.OpOut:
			stmts = append(stmts, jen.Id("out").Dot("WriteByte").Call(goCell(ins.Offset)))
		case bytecode.OpIncV:
			stmts = append(stmts, goCell(ins.Offset).Op("++"))
		case bytecode.OpDecV:
			stmts = append(stmts, goCell(ins.Offset).Op("--"))
		case bytecode.OpAddV:
			stmts = append(stmts, goCell(ins.Offset).Op("+=").Add(byteLit(ins.Argument)))
		case bytecode.OpSubV:
			stmts = append(stmts, goCell(ins.Offset).Op("-=").Add(byteLit(ins.Argument)))
		case bytecode.OpIncP:
			stmts = append(stmts, jen.Id("p").Op("++"))
		case bytecode.OpDecP:
			stmts = append(stmts, jen.Id("p").Op("--"))
		case bytecode.OpAddP:
			stmts = append(stmts, jen.Id("p").Op("+=").Lit(int(ins.Argument)))
		case bytecode.OpSubP:
			stmts = append(stmts, jen.Id("p").Op("-=").Lit(int(ins.Argument)))
		case bytecode.OpHalt:
			stmts = append(stmts, jen.Return())
		case bytecode.OpClear:
			stmts = append(stmts, goCell(ins.Offset).Op("=").Lit(0))
		case bytecode.OpCopy:
			stmts = append(stmts, goCell(ins.Offset).Op("+=").Id("t").Index(jen.Id("p")))
		case bytecode.OpMul:
			stmts = append(stmts, goCell(ins.Offset).Op("+=").Id("t").Index(jen.Id("p")).Op("*").Add(byteLit(ins.Argument)))
		}
	}
	return stmts
}
