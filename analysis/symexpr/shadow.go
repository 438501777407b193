package symexpr

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/immutable"
	"github.com/veriweft/weft/utils"
	"github.com/veriweft/weft/utils/hmap"
)

// ShadowName derives the name of the shadow counterpart of an array name.
func ShadowName(name string) string {
	return "__shadow__" + name
}

// A ShadowMap is the insert-only registry mapping original arrays to their
// shadow counterparts. Writes are monotone; the map must be shared by every
// dependency chain of one engine instance and is guarded for use under a
// multi-threaded host.
type ShadowMap struct {
	mu     sync.Mutex
	arrays *immutable.Map[*Array, *Array]
}

func NewShadowMap() *ShadowMap {
	return &ShadowMap{
		arrays: immutable.NewMap[*Array, *Array](utils.PointerHasher[*Array]{}),
	}
}

// AddShadowArrayMap registers target as the shadow of source. An original is
// inserted at most once; later registrations for the same source are no-ops.
func (sm *ShadowMap) AddShadowArrayMap(source, target *Array) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.arrays.Get(source); ok {
		return
	}
	sm.arrays = sm.arrays.Set(source, target)
}

// ShadowArray returns the shadow of source, creating and registering one
// when absent.
func (sm *ShadowMap) ShadowArray(source *Array) *Array {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if tgt, ok := sm.arrays.Get(source); ok {
		return tgt
	}
	tgt := NewArray(ShadowName(source.name), source.size)
	sm.arrays = sm.arrays.Set(source, tgt)
	return tgt
}

func (sm *ShadowMap) lookup(source *Array) (*Array, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.arrays.Get(source)
}

// CreateBinaryOfSameKind rebuilds a binary expression around new operands,
// preserving the operator kind and its attributes.
func CreateBinaryOfSameKind(original Expr, newLhs, newRhs Expr) Expr {
	b, ok := original.(*BinOpExpr)
	if !ok {
		panic(fmt.Sprintf("cannot rebuild non-binary expression %v (%T)", original, original))
	}
	return NewBinOp(b.op, newLhs, newRhs, b.width)
}

// ShadowExpression returns e with every reference to an array in the
// replacement set rewritten to the array's registered shadow. Sub-terms whose
// array has no registered shadow are left intact. The rewrite preserves
// expression kinds and operator attributes, and update chains are rewritten
// bottom-up at most once per node.
func (sm *ShadowMap) ShadowExpression(e Expr, replacements map[*Array]bool) Expr {
	// The memo is keyed on update-node identity, not structure, which keeps
	// sharing between chains and bounds the traversal of a chain to one pass.
	memo := hmap.NewMap[*UpdateNode, *UpdateNode](utils.PointerHasher[*UpdateNode]{})
	return sm.shadowExpression(e, replacements, memo)
}

func (sm *ShadowMap) shadowExpression(
	e Expr,
	replacements map[*Array]bool,
	memo *hmap.Map[*UpdateNode, *UpdateNode],
) Expr {
	switch e := e.(type) {
	case *ConstantExpr:
		return e

	case *ReadExpr:
		root := e.updates.Root
		if replacements[root] {
			if shadow, ok := sm.lookup(root); ok {
				root = shadow
			}
		}
		head := sm.shadowUpdate(e.updates.Head, replacements, memo)
		index := sm.shadowExpression(e.index, replacements, memo)
		if root == e.updates.Root && head == e.updates.Head && index == e.index {
			return e
		}
		return NewRead(UpdateList{Root: root, Head: head}, index)

	case *UnOpExpr:
		x := sm.shadowExpression(e.x, replacements, memo)
		if x == e.x {
			return e
		}
		return NewUnOp(e.op, x, e.width)

	case *BinOpExpr:
		x := sm.shadowExpression(e.x, replacements, memo)
		y := sm.shadowExpression(e.y, replacements, memo)
		if x == e.x && y == e.y {
			return e
		}
		return CreateBinaryOfSameKind(e, x, y)
	}

	return e
}

func (sm *ShadowMap) shadowUpdate(
	un *UpdateNode,
	replacements map[*Array]bool,
	memo *hmap.Map[*UpdateNode, *UpdateNode],
) *UpdateNode {
	if un == nil {
		return nil
	}
	if res, ok := memo.GetOk(un); ok {
		return res
	}

	next := sm.shadowUpdate(un.Next, replacements, memo)
	index := sm.shadowExpression(un.Index, replacements, memo)
	value := sm.shadowExpression(un.Value, replacements, memo)

	res := un
	if next != un.Next || index != un.Index || value != un.Value {
		res = &UpdateNode{Next: next, Index: index, Value: value}
	}
	memo.Set(un, res)
	return res
}
