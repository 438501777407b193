package testutil

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// LoadSource builds the SSA representation of a single-file package given
// as a source string. Test sources should avoid imports so no build system
// needs to be invoked.
func LoadSource(t *testing.T, content string) *ssa.Package {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "main.go", content, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	pkg := types.NewPackage(file.Name.Name, file.Name.Name)
	ssapkg, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()},
		fset, pkg, []*ast.File{file},
		ssa.SanityCheckFunctions,
	)
	if err != nil {
		t.Fatal(err)
	}

	return ssapkg
}

// Func returns a named function of the package, failing the test when it
// does not exist.
func Func(t *testing.T, pkg *ssa.Package, name string) *ssa.Function {
	t.Helper()

	fn := pkg.Func(name)
	if fn == nil {
		t.Fatalf("no function %q in package %s", name, pkg.Pkg.Path())
	}
	return fn
}

// Global returns a named global of the package, failing the test when it
// does not exist.
func Global(t *testing.T, pkg *ssa.Package, name string) *ssa.Global {
	t.Helper()

	g, ok := pkg.Members[name].(*ssa.Global)
	if !ok {
		t.Fatalf("no global %q in package %s", name, pkg.Pkg.Path())
	}
	return g
}

// InstructionsOf collects all instructions of type T in the function, in
// block order.
func InstructionsOf[T ssa.Instruction](fn *ssa.Function) (res []T) {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if i, ok := instr.(T); ok {
				res = append(res, i)
			}
		}
	}
	return
}

// FirstInstructionOf returns the first instruction of type T in the
// function, failing the test when there is none.
func FirstInstructionOf[T ssa.Instruction](t *testing.T, fn *ssa.Function) T {
	t.Helper()

	instrs := InstructionsOf[T](fn)
	if len(instrs) == 0 {
		t.Fatalf("no %T instruction in %s", *new(T), fn)
	}
	return instrs[0]
}
