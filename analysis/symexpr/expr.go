package symexpr

import (
	"fmt"
	"go/token"

	"github.com/veriweft/weft/utils"
)

// Width is an expression bit-width.
type Width uint8

const (
	Bool Width = 1
	W8   Width = 8
	W16  Width = 16
	W32  Width = 32
	W64  Width = 64
)

// kind tags for hashing
const (
	kindConstant uint32 = iota + 1
	kindRead
	kindUnOp
	kindBinOp
)

// An Expr is an immutable symbolic bitvector expression. Expressions are
// compared structurally with Equal; sub-expression sharing is permitted and
// exploited by rewriters.
type Expr interface {
	utils.Hashable
	Width() Width
	Equal(Expr) bool
	String() string
}

// IsConstant is the constant? predicate: it reports whether e is a constant
// expression and yields its unsigned value when it is.
func IsConstant(e Expr) (uint64, bool) {
	if c, ok := e.(*ConstantExpr); ok {
		return c.value, true
	}
	return 0, false
}

// A ConstantExpr is a concrete unsigned bitvector value.
type ConstantExpr struct {
	value uint64
	width Width
}

func NewConstant(value uint64, width Width) *ConstantExpr {
	return &ConstantExpr{value: value, width: width}
}

func (e *ConstantExpr) Width() Width { return e.width }

// ZExtValue is the zero-extended unsigned value of the constant.
func (e *ConstantExpr) ZExtValue() uint64 { return e.value }

func (e *ConstantExpr) Equal(o Expr) bool {
	oc, ok := o.(*ConstantExpr)
	return ok && e.value == oc.value && e.width == oc.width
}

func (e *ConstantExpr) Hash() uint32 {
	return utils.HashCombine(kindConstant, uint32(e.value), uint32(e.value>>32), uint32(e.width))
}

func (e *ConstantExpr) String() string {
	return fmt.Sprintf("%d", e.value)
}

// A ReadExpr selects the byte at index from an array under a chain of
// symbolic writes.
type ReadExpr struct {
	updates UpdateList
	index   Expr
}

func NewRead(updates UpdateList, index Expr) *ReadExpr {
	return &ReadExpr{updates: updates, index: index}
}

// NewReadOf reads directly from the root array, with no write history.
func NewReadOf(array *Array, index Expr) *ReadExpr {
	return NewRead(UpdateList{Root: array}, index)
}

func (e *ReadExpr) Updates() UpdateList { return e.updates }

func (e *ReadExpr) Index() Expr { return e.index }

func (e *ReadExpr) Width() Width { return W8 }

func (e *ReadExpr) Equal(o Expr) bool {
	or, ok := o.(*ReadExpr)
	return ok && e.updates.equal(or.updates) && e.index.Equal(or.index)
}

func (e *ReadExpr) Hash() uint32 {
	return utils.HashCombine(kindRead, e.updates.hash(), e.index.Hash())
}

func (e *ReadExpr) String() string {
	return fmt.Sprintf("%s[%s]", e.updates, e.index)
}

// A UnOpExpr applies a unary operator. Operators reuse the go/token
// vocabulary of the IR (SUB for negation, XOR for complement, NOT for
// logical negation).
type UnOpExpr struct {
	op    token.Token
	x     Expr
	width Width
}

func NewUnOp(op token.Token, x Expr, width Width) *UnOpExpr {
	return &UnOpExpr{op: op, x: x, width: width}
}

func (e *UnOpExpr) Op() token.Token { return e.op }

func (e *UnOpExpr) X() Expr { return e.x }

func (e *UnOpExpr) Width() Width { return e.width }

func (e *UnOpExpr) Equal(o Expr) bool {
	ou, ok := o.(*UnOpExpr)
	return ok && e.op == ou.op && e.width == ou.width && e.x.Equal(ou.x)
}

func (e *UnOpExpr) Hash() uint32 {
	return utils.HashCombine(kindUnOp, uint32(e.op), e.x.Hash(), uint32(e.width))
}

func (e *UnOpExpr) String() string {
	return fmt.Sprintf("(%s%s)", e.op, e.x)
}

// A BinOpExpr applies a binary operator to two operands. The operator and
// the width are the operator attributes a kind-preserving rebuild must keep.
type BinOpExpr struct {
	op    token.Token
	x, y  Expr
	width Width
}

func NewBinOp(op token.Token, x, y Expr, width Width) *BinOpExpr {
	return &BinOpExpr{op: op, x: x, y: y, width: width}
}

func (e *BinOpExpr) Op() token.Token { return e.op }

func (e *BinOpExpr) X() Expr { return e.x }

func (e *BinOpExpr) Y() Expr { return e.y }

func (e *BinOpExpr) Width() Width { return e.width }

func (e *BinOpExpr) Equal(o Expr) bool {
	ob, ok := o.(*BinOpExpr)
	return ok && e.op == ob.op && e.width == ob.width &&
		e.x.Equal(ob.x) && e.y.Equal(ob.y)
}

func (e *BinOpExpr) Hash() uint32 {
	return utils.HashCombine(kindBinOp, uint32(e.op), e.x.Hash(), e.y.Hash(), uint32(e.width))
}

func (e *BinOpExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.x, e.op, e.y)
}

// CollectArrays adds every array referenced by e, including arrays reached
// through update chains and index expressions, to the set.
func CollectArrays(e Expr, set map[*Array]bool) {
	switch e := e.(type) {
	case *ConstantExpr:
	case *ReadExpr:
		set[e.updates.Root] = true
		for un := e.updates.Head; un != nil; un = un.Next {
			CollectArrays(un.Index, set)
			CollectArrays(un.Value, set)
		}
		CollectArrays(e.index, set)
	case *UnOpExpr:
		CollectArrays(e.x, set)
	case *BinOpExpr:
		CollectArrays(e.x, set)
		CollectArrays(e.y, set)
	}
}
