package dependency

import (
	"go/token"

	"golang.org/x/tools/go/ssa"

	"github.com/veriweft/weft/analysis/symexpr"
)

// Execute applies the abstract dependency semantics of one instruction.
//
// args carries the symbolic expressions the executor computed for the
// instruction: for value-producing instructions args[0] is the result
// expression followed by the operand expressions in operand order; for
// *ssa.Store, args is [address, value] following the field order of the
// instruction. Operands that resolve to IR values are looked up as the
// latest versioned value; constant operands are minted fresh so flow edges
// still exist.
//
// Storing through the environment pointer is undefined: the transition
// records no changes and the caller is expected to terminate the path.
func (dep *Dependency) Execute(instr ssa.Instruction, args []symexpr.Expr) {
	switch instr := instr.(type) {
	case *ssa.Alloc:
		dep.executeAlloc(instr, args)

	case *ssa.Store:
		dep.executeStore(instr, args)

	case *ssa.UnOp:
		if instr.Op == token.MUL {
			dep.executeLoad(instr, args)
			break
		}
		dep.executeOperand(instr, instr.X, args)

	case *ssa.ChangeType:
		dep.executeOperand(instr, instr.X, args)

	case *ssa.Convert:
		dep.executeOperand(instr, instr.X, args)

	case *ssa.ChangeInterface:
		dep.executeOperand(instr, instr.X, args)

	case *ssa.FieldAddr:
		dep.executeGep(instr, instr.X, args)

	case *ssa.IndexAddr:
		dep.executeGep(instr, instr.X, args)

	case *ssa.BinOp:
		dep.executeBinOp(instr, args)

	case *ssa.Phi:
		dep.executePhi(instr, args)

	case *ssa.Call, *ssa.Return:
		// Handled by BindCallArguments / BindReturnValue.
	}

	dep.updateIncomingBlock(instr)
}

// executeAlloc implements `v = alloca`: bind the fresh version of v to the
// allocation of this site, unless the allocation is already bound.
func (dep *Dependency) executeAlloc(instr *ssa.Alloc, args []symexpr.Expr) {
	address := argAt(args, 0)
	v := dep.getNewVersionedValue(instr, address)
	m := dep.getInitialAllocation(instr, address)
	if !dep.hasPointerEquality(m) {
		dep.addPointerEquality(v, m)
	}
}

// executeStore implements `store v', v`.
func (dep *Dependency) executeStore(instr *ssa.Store, args []symexpr.Expr) {
	valExpr := argAt(args, 1)

	// A store directly through the environment pointer is undefined.
	if IsEnvironmentAllocation(instr.Addr) {
		return
	}

	vAddr := dep.getLatestValueNoConstantCheck(instr.Addr)

	var targets []indTarget
	if vAddr != nil {
		targets = dep.indirectionTargets(vAddr)
		for _, t := range targets {
			if dep.ctx.isEnvironmentTarget(t.alloc) {
				// Undefined store into the environment: abort with no
				// changes; the caller treats this as path-terminating.
				return
			}
		}
	}

	// The stored value may itself be a pointer with a constant address
	// expression; it still needs its representative, not a fresh constant.
	vVal := dep.getLatestValueNoConstantCheck(instr.Val)
	if vVal == nil {
		vVal = dep.getNewVersionedValue(instr.Val, valExpr)
	}

	if len(targets) == 0 {
		// Unknown address write.
		dep.updateStore(dep.ctx.unknown, vVal)
		return
	}

	// The write is destructive: each target gets a fresh allocation
	// version, for multi-step targets one per (m, i) witness.
	for _, t := range targets {
		m := dep.getNewAllocationVersion(t.alloc.Site(), t.alloc.Address())
		dep.updateStore(m, vVal)
	}
}

// executeLoad implements `v = load v'`, including the environment load
// `v = load @_environ`. The load rules are non-exclusive; their effects are
// evaluated against the pre-state and unioned.
func (dep *Dependency) executeLoad(instr *ssa.UnOp, args []symexpr.Expr) {
	result := argAt(args, 0)

	// Environment load: the result is the unknown environment pointer.
	if IsEnvironmentAllocation(instr.X) {
		v := dep.getNewVersionedValue(instr, result)
		dep.addPointerEquality(v, dep.ctx.unknownEnvPtr)
		return
	}

	// Pre-state lookup for the unknown-store rule.
	priorUnknown, hasPriorUnknown := dep.storedValue(dep.ctx.unknown)

	vAddr := dep.getLatestValueNoConstantCheck(instr.X)
	v := dep.getNewVersionedValue(instr, result)

	built := false
	if vAddr != nil {
		for _, t := range dep.indirectionTargets(vAddr) {
			if dep.ctx.isEnvironmentTarget(t.alloc) {
				dep.addDependency(dep.ctx.unknownEnvValue, v)
				built = true
				continue
			}

			m := t.alloc
			if t.level == 0 {
				// Only the latest version of a 0-step allocation is read.
				if latest := dep.getLatestAllocation(m.Site(), m.Address()); latest != nil {
					m = latest
				}
			}
			if stored, ok := dep.storedValue(m); ok {
				dep.addDependencyViaAllocation(stored, v, m)
				built = true
			}
		}
	}

	if !built {
		// Loading through an unresolved address makes the result a sink of
		// the unknown store.
		dep.updateStore(dep.ctx.unknown, v)
	}

	// Any store to an unknown address could be the loaded value.
	if hasPriorUnknown {
		dep.addDependency(priorUnknown, v)
	}
}

// executeGep implements the address-arithmetic rule. The flow edge suffices:
// no equality is produced, and a later load through the result rediscovers
// the mediating allocation by indirection. The base is a pointer, so its
// representative is looked up without the constant short-circuit.
func (dep *Dependency) executeGep(instr ssa.Value, base ssa.Value, args []symexpr.Expr) {
	result, baseExpr := argAt(args, 0), argAt(args, 1)

	src := dep.getLatestValueNoConstantCheck(base)
	if src == nil {
		src = dep.getNewVersionedValue(base, baseExpr)
	}
	v := dep.getNewVersionedValue(instr, result)
	dep.addDependency(src, v)
}

// executeOperand implements the unary-operation rule, shared by casts and
// unary operators: the result depends on the single operand.
func (dep *Dependency) executeOperand(instr ssa.Value, operand ssa.Value, args []symexpr.Expr) {
	result, opExpr := argAt(args, 0), argAt(args, 1)

	src := dep.GetLatestValue(operand, opExpr)
	if src == nil {
		src = dep.getNewVersionedValue(operand, opExpr)
	}
	v := dep.getNewVersionedValue(instr, result)
	dep.addDependency(src, v)
}

// executeBinOp implements `v = v' op v''`. Constant operands are minted
// fresh, which degenerates the rule to the unary one without losing the
// edge.
func (dep *Dependency) executeBinOp(instr *ssa.BinOp, args []symexpr.Expr) {
	result, xExpr, yExpr := argAt(args, 0), argAt(args, 1), argAt(args, 2)

	x := dep.GetLatestValue(instr.X, xExpr)
	if x == nil {
		x = dep.getNewVersionedValue(instr.X, xExpr)
	}
	y := dep.GetLatestValue(instr.Y, yExpr)
	if y == nil {
		y = dep.getNewVersionedValue(instr.Y, yExpr)
	}

	v := dep.getNewVersionedValue(instr, result)
	dep.addDependency(x, v)
	dep.addDependency(y, v)
}

// executePhi implements `v = phi(v1, …, vn)`: only the operand of the one
// live predecessor flows into v. With an unknown incoming block every
// operand flows in, conservatively.
func (dep *Dependency) executePhi(instr *ssa.Phi, args []symexpr.Expr) {
	result := argAt(args, 0)
	v := dep.getNewVersionedValue(instr, result)

	live := -1
	if b := instr.Block(); b != nil && dep.incoming != nil {
		for i, pred := range b.Preds {
			if pred == dep.incoming {
				live = i
				break
			}
		}
	}

	bind := func(i int) {
		e := instr.Edges[i]
		src := dep.GetLatestValue(e, argAt(args, 1+i))
		if src == nil {
			src = dep.getNewVersionedValue(e, argAt(args, 1+i))
		}
		dep.addDependency(src, v)
	}

	if live >= 0 {
		bind(live)
		return
	}
	for i := range instr.Edges {
		bind(i)
	}
}

// updateIncomingBlock records the basic block of the executed instruction.
// Phi nodes do not update it: all phis of a block resolve against the same
// predecessor.
func (dep *Dependency) updateIncomingBlock(instr ssa.Instruction) {
	if _, isPhi := instr.(*ssa.Phi); isPhi {
		return
	}
	if b := instr.Block(); b != nil {
		dep.incoming = b
	}
}

/* Interprocedural binding */

// BindCallArguments reads the latest versioned value of each call argument
// and queues them for the callee frame; the child node pops them in order to
// form the callee's parameter values.
func (dep *Dependency) BindCallArguments(call *ssa.Call, args []symexpr.Expr) {
	dep.argumentValues = dep.populateArgumentValuesList(call, args)
}

func (dep *Dependency) populateArgumentValuesList(call *ssa.Call, args []symexpr.Expr) []*VersionedValue {
	res := make([]*VersionedValue, 0, len(call.Call.Args))
	for i, a := range call.Call.Args {
		expr := argAt(args, i)
		vv := dep.GetLatestValue(a, expr)
		if vv == nil {
			vv = dep.getNewVersionedValue(a, expr)
		}
		res = append(res, vv)
	}
	return res
}

// BindFunctionArguments pops the argument values queued by the parent and
// binds them, in order, to the parameters of fn.
func (dep *Dependency) BindFunctionArguments(fn *ssa.Function) {
	if dep.parent == nil {
		return
	}
	argVals := dep.parent.argumentValues
	dep.parent.argumentValues = nil

	for i, p := range fn.Params {
		if i >= len(argVals) {
			break
		}
		pv := dep.getNewVersionedValue(p, argVals[i].Expression())
		dep.addDependency(argVals[i], pv)
	}
}

// BindReturnValue makes the call-site value depend on the callee's returned
// value.
func (dep *Dependency) BindReturnValue(site *ssa.Call, retInst ssa.Instruction, returnValue symexpr.Expr) {
	ret, ok := retInst.(*ssa.Return)
	if !ok || len(ret.Results) == 0 {
		return
	}

	vRet := dep.GetLatestValue(ret.Results[0], returnValue)
	vCall := dep.getNewVersionedValue(site, returnValue)
	if vRet != nil {
		dep.addDependency(vRet, vCall)
	}
}

// argAt is a bounds-tolerant args accessor: executors may omit trailing
// operand expressions.
func argAt(args []symexpr.Expr, i int) symexpr.Expr {
	if i < len(args) {
		return args[i]
	}
	return nil
}
