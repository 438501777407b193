package dependency

import (
	"fmt"
	"go/token"
	"go/types"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/veriweft/weft/analysis/symexpr"
)

// fakeValue implements ssa.Value for tests where only identity and a name
// matter.
type fakeValue struct{ name string }

func (f *fakeValue) Name() string                  { return f.name }
func (*fakeValue) Parent() *ssa.Function           { return nil }
func (*fakeValue) Pos() token.Pos                  { return token.NoPos }
func (*fakeValue) Referrers() *[]ssa.Instruction   { return nil }
func (f *fakeValue) String() string                { return f.name }
func (*fakeValue) Type() types.Type {
	return types.NewPointer(types.Typ[types.Int])
}

var _ ssa.Value = &fakeValue{}

// driver feeds the instructions of a function to a dependency node the way
// the symbolic executor would: allocations get fresh concrete base
// addresses, constants become constant expressions, unary, binary and
// address results are built from their operand expressions, and every other
// operand or result is minted as a fresh symbolic read.
type driver struct {
	t     *testing.T
	dep   *Dependency
	exprs map[ssa.Value]symexpr.Expr

	nextAddr uint64
	nextSym  int
}

func newDriver(t *testing.T, dep *Dependency) *driver {
	return &driver{
		t:        t,
		dep:      dep,
		exprs:    make(map[ssa.Value]symexpr.Expr),
		nextAddr: 0x1000,
	}
}

// fresh mints a new symbolic read for the value.
func (d *driver) fresh(v ssa.Value) symexpr.Expr {
	d.nextSym++
	arr := symexpr.NewArray(fmt.Sprintf("%s#%d", v.Name(), d.nextSym), 8)
	return symexpr.NewReadOf(arr, symexpr.NewConstant(0, symexpr.W32))
}

// eval returns the memoized expression of an operand, minting constants for
// *ssa.Const and symbolic reads otherwise.
func (d *driver) eval(v ssa.Value) symexpr.Expr {
	if e, ok := d.exprs[v]; ok {
		return e
	}

	var e symexpr.Expr
	if c, ok := v.(*ssa.Const); ok {
		var val uint64
		if c.Value != nil {
			val = uint64(c.Int64())
		}
		e = symexpr.NewConstant(val, symexpr.W64)
	} else {
		e = d.fresh(v)
	}

	d.exprs[v] = e
	return e
}

// step executes one instruction on the dependency node.
func (d *driver) step(instr ssa.Instruction) {
	switch instr := instr.(type) {
	case *ssa.Alloc:
		addr := symexpr.NewConstant(d.nextAddr, symexpr.W64)
		d.nextAddr += 16
		d.exprs[instr] = addr
		d.dep.Execute(instr, []symexpr.Expr{addr})

	case *ssa.Store:
		d.dep.Execute(instr, []symexpr.Expr{d.eval(instr.Addr), d.eval(instr.Val)})

	case *ssa.UnOp:
		x := d.eval(instr.X)
		var res symexpr.Expr
		if instr.Op == token.MUL {
			res = d.fresh(instr)
		} else {
			res = symexpr.NewUnOp(instr.Op, x, symexpr.W64)
		}
		d.exprs[instr] = res
		d.dep.Execute(instr, []symexpr.Expr{res, x})

	case *ssa.BinOp:
		x, y := d.eval(instr.X), d.eval(instr.Y)
		res := symexpr.NewBinOp(instr.Op, x, y, symexpr.W64)
		d.exprs[instr] = res
		d.dep.Execute(instr, []symexpr.Expr{res, x, y})

	case *ssa.FieldAddr:
		d.stepAddr(instr, instr.X, uint64(instr.Field))

	case *ssa.IndexAddr:
		d.stepAddr(instr, instr.X, 0)

	case *ssa.Phi:
		args := make([]symexpr.Expr, 1, 1+len(instr.Edges))
		for _, e := range instr.Edges {
			args = append(args, d.eval(e))
		}
		res := d.fresh(instr)
		d.exprs[instr] = res
		args[0] = res
		d.dep.Execute(instr, args)

	default:
		d.dep.Execute(instr, nil)
	}
}

func (d *driver) stepAddr(instr ssa.Value, base ssa.Value, offset uint64) {
	be := d.eval(base)
	res := symexpr.NewBinOp(token.ADD, be, symexpr.NewConstant(offset*8, symexpr.W64), symexpr.W64)
	d.exprs[instr] = res
	d.dep.Execute(instr.(ssa.Instruction), []symexpr.Expr{res, be})
}

// runBlock executes all instructions of a block in order.
func (d *driver) runBlock(b *ssa.BasicBlock) {
	for _, instr := range b.Instrs {
		d.step(instr)
	}
}

// runLinear executes every block of the function in layout order. Only
// suitable for functions without joins.
func (d *driver) runLinear(fn *ssa.Function) {
	for _, b := range fn.Blocks {
		d.runBlock(b)
	}
}

// latest is a test shorthand for the newest versioned value of an IR value.
func (d *driver) latest(v ssa.Value) *VersionedValue {
	vv := d.dep.getLatestValueNoConstantCheck(v)
	if vv == nil {
		d.t.Fatalf("no versioned value for %s", v.Name())
	}
	return vv
}

// dependsOn checks membership of source in the transitive flow sources of
// target.
func dependsOn(dep *Dependency, target, source *VersionedValue) bool {
	for _, src := range dep.allFlowSources(target) {
		if src == source {
			return true
		}
	}
	return false
}

// dependsOnExpr checks whether any transitive flow source of target carries
// the given expression.
func dependsOnExpr(dep *Dependency, target *VersionedValue, expr symexpr.Expr) bool {
	for _, src := range dep.allFlowSources(target) {
		if src.Expression() != nil && src.Expression().Equal(expr) {
			return true
		}
	}
	return false
}
