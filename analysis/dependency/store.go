package dependency

import (
	"golang.org/x/tools/go/ssa"

	"github.com/veriweft/weft/analysis/symexpr"
)

// An AddressValuePair is one exported store entry: the address expression
// and the value expression deposited there.
type AddressValuePair struct {
	Address symexpr.Expr
	Value   symexpr.Expr
}

// ConcreteStoreMap indexes stores with constant addresses by their unsigned
// address value.
type ConcreteStoreMap map[uint64]AddressValuePair

// SymbolicStoreMap lists stores with symbolic addresses in insertion order.
type SymbolicStoreMap []AddressValuePair

// ConcreteStore groups concrete store entries per allocation site.
type ConcreteStore map[ssa.Value]ConcreteStoreMap

// SymbolicStore groups symbolic store entries per allocation site.
type SymbolicStore map[ssa.Value]SymbolicStoreMap

// GetStoredExpressions projects the store relations of the chain into a
// concrete-address map and a symbolic-address map for interpolation.
//
// With coreOnly set, only entries whose allocation is in the owning node's
// core set and whose value is core-marked are exported, and every emitted
// expression is rewritten through the shadow registry; the arrays observed
// along the way are accumulated into replacements, so the exported
// interpolant references only shadow names.
func (dep *Dependency) GetStoredExpressions(
	replacements map[*symexpr.Array]bool,
	coreOnly bool,
) (ConcreteStore, SymbolicStore) {
	concrete := make(ConcreteStore)
	symbolic := make(SymbolicStore)
	dep.collectStoredExpressions(concrete, symbolic, replacements, coreOnly)
	return concrete, symbolic
}

// collectStoredExpressions emits ancestors first, preserving the insertion
// order of the store relations within each node.
func (dep *Dependency) collectStoredExpressions(
	concrete ConcreteStore,
	symbolic SymbolicStore,
	replacements map[*symexpr.Array]bool,
	coreOnly bool,
) {
	if dep.parent != nil {
		dep.parent.collectStoredExpressions(concrete, symbolic, replacements, coreOnly)
	}

	for _, a := range dep.storesOrder {
		site := a.Site()
		if site == nil {
			// Sentinel locations have no allocation site and are never
			// exported.
			continue
		}

		v := dep.stores[a]
		address, value := a.Address(), v.Expression()

		if coreOnly {
			if !dep.coreAllocations[a] || !v.IsCore() {
				continue
			}

			symexpr.CollectArrays(address, replacements)
			symexpr.CollectArrays(value, replacements)
			for arr := range replacements {
				dep.ctx.shadows.ShadowArray(arr)
			}
			address = dep.ctx.shadows.ShadowExpression(address, replacements)
			value = dep.ctx.shadows.ShadowExpression(value, replacements)
		}

		pair := AddressValuePair{Address: address, Value: value}
		if a.HasConstantAddress() {
			m, ok := concrete[site]
			if !ok {
				m = make(ConcreteStoreMap)
				concrete[site] = m
			}
			m[a.UIntAddress()] = pair
		} else {
			symbolic[site] = append(symbolic[site], pair)
		}
	}
}
