package dependency

import (
	"golang.org/x/tools/go/ssa"

	"github.com/veriweft/weft/analysis/symexpr"
)

// A VersionedValue is one version of an IR value along the current path,
// together with the symbolic expression it evaluated to. Newer versions of
// the same IR value shadow older ones along the dependency chain.
type VersionedValue struct {
	value ssa.Value
	expr  symexpr.Expr

	// core indicates that an unsatisfiability core depends on this value
	core bool
}

func NewVersionedValue(value ssa.Value, expr symexpr.Expr) *VersionedValue {
	return &VersionedValue{value: value, expr: expr}
}

func (vv *VersionedValue) HasValue(value ssa.Value) bool { return vv.value == value }

func (vv *VersionedValue) Value() ssa.Value { return vv.value }

func (vv *VersionedValue) Expression() symexpr.Expr { return vv.expr }

// markCore monotonically flags the value as part of the unsatisfiability
// core.
func (vv *VersionedValue) markCore() { vv.core = true }

func (vv *VersionedValue) IsCore() bool { return vv.core }
