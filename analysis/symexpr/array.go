package symexpr

import (
	"fmt"

	"github.com/veriweft/weft/utils"
)

// An Array names a symbolic array of bytes. Arrays are identified by
// pointer: two arrays with the same name are distinct objects, which keeps
// shadow arrays apart from their originals even under name clashes.
type Array struct {
	name string
	size int
}

func NewArray(name string, size int) *Array {
	return &Array{name: name, size: size}
}

func (a *Array) Name() string { return a.name }

func (a *Array) Size() int { return a.size }

func (a *Array) String() string { return a.name }

// An UpdateNode records a single symbolic write `[index] := value` on top of
// the chain of writes in next. Chains are shared between expressions, so
// node identity is significant: rewriters memoize per node pointer.
type UpdateNode struct {
	Next  *UpdateNode
	Index Expr
	Value Expr
}

// Length is the number of writes in the chain.
func (un *UpdateNode) Length() (n int) {
	for ; un != nil; un = un.Next {
		n++
	}
	return
}

func (un *UpdateNode) equal(o *UpdateNode) bool {
	for {
		if un == o {
			return true
		}
		if un == nil || o == nil {
			return false
		}
		if !un.Index.Equal(o.Index) || !un.Value.Equal(o.Value) {
			return false
		}
		un, o = un.Next, o.Next
	}
}

func (un *UpdateNode) hash() uint32 {
	var hs []uint32
	for ; un != nil; un = un.Next {
		hs = append(hs, un.Index.Hash(), un.Value.Hash())
	}
	return utils.HashCombine(hs...)
}

// An UpdateList pairs a root array with the chain of symbolic writes
// performed on it.
type UpdateList struct {
	Root *Array
	Head *UpdateNode
}

func (ul UpdateList) equal(o UpdateList) bool {
	return ul.Root == o.Root && ul.Head.equal(o.Head)
}

func (ul UpdateList) hash() uint32 {
	return utils.HashCombine(utils.HashString(ul.Root.name), ul.Head.hash())
}

func (ul UpdateList) String() string {
	s := ul.Root.name
	for un := ul.Head; un != nil; un = un.Next {
		s += fmt.Sprintf("[%s:=%s]", un.Index, un.Value)
	}
	return s
}
