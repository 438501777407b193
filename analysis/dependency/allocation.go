package dependency

import (
	"golang.org/x/tools/go/ssa"

	"github.com/veriweft/weft/analysis/symexpr"
)

// An Allocation is an abstract memory location identified by its allocation
// site and base-address expression. Destructive writes version allocations:
// a new Allocation object is minted per overwrite, and only the most recent
// version along a dependency chain is the current one.
type Allocation interface {
	Site() ssa.Value
	Address() symexpr.Expr

	// HasAllocationSite tests allocation identity against a (site, address)
	// pair. The comparison is kind-dispatched: environment allocations
	// ignore the caller-supplied site.
	HasAllocationSite(site ssa.Value, address symexpr.Expr) bool

	HasConstantAddress() bool
	UIntAddress() uint64

	IsCore() bool
	markCore()

	String() string
}

// allocation carries the attributes shared by all allocation kinds.
type allocation struct {
	core    bool
	site    ssa.Value
	address symexpr.Expr
}

func (a *allocation) Site() ssa.Value { return a.site }

func (a *allocation) Address() symexpr.Expr { return a.address }

func (a *allocation) HasConstantAddress() bool {
	_, ok := symexpr.IsConstant(a.address)
	return ok
}

// UIntAddress is the unsigned value of a constant address. Callers must
// check HasConstantAddress first.
func (a *allocation) UIntAddress() uint64 {
	v, ok := symexpr.IsConstant(a.address)
	if !ok {
		panic("address of allocation is not constant")
	}
	return v
}

// markCore monotonically flags the allocation as part of the
// unsatisfiability core.
func (a *allocation) markCore() { a.core = true }

func (a *allocation) IsCore() bool { return a.core }

// A VersionedAllocation is an ordinary abstract memory object created at an
// allocation instruction.
type VersionedAllocation struct {
	allocation
}

func NewVersionedAllocation(site ssa.Value, address symexpr.Expr) *VersionedAllocation {
	return &VersionedAllocation{allocation{site: site, address: address}}
}

func (a *VersionedAllocation) HasAllocationSite(site ssa.Value, address symexpr.Expr) bool {
	return a.site == site && address != nil && a.address.Equal(address)
}

// An EnvironmentAllocation is the abstract object representing the program
// environment. All environment allocations alias the canonical site fixed by
// the first one; identity ignores the caller-supplied site and matches on
// the canonical environment address.
type EnvironmentAllocation struct {
	allocation
	ctx *Context
}

func newEnvironmentAllocation(ctx *Context, site ssa.Value, address symexpr.Expr) *EnvironmentAllocation {
	canonical := ctx.registerEnvironmentSite(site, address)
	return &EnvironmentAllocation{
		allocation: allocation{site: canonical, address: address},
		ctx:        ctx,
	}
}

func (a *EnvironmentAllocation) HasAllocationSite(_ ssa.Value, address symexpr.Expr) bool {
	return address != nil && a.ctx.canonicalEnvAddr != nil &&
		a.ctx.canonicalEnvAddr.Equal(address)
}
