package dependency

import (
	uf "github.com/spakin/disjoint"
	"golang.org/x/tools/go/ssa"

	"github.com/veriweft/weft/analysis/symexpr"
)

// A Context carries the process-wide mutable state of one engine instance:
// the shadow-array registry, the sentinel abstract locations, and the
// canonicalization of environment allocation sites. Encapsulating these in a
// context keeps separate engine instances independent and tests hermetic.
type Context struct {
	shadows *symexpr.ShadowMap

	// unknown is the abstract location of writes through unresolvable
	// addresses. It is never versioned.
	unknown *VersionedAllocation

	// unknownEnvPtr is the abstract location bound to the result of loading
	// the environment pointer.
	unknownEnvPtr *VersionedAllocation

	// unknownEnvValue is the sentinel source of loads through the
	// environment pointer.
	unknownEnvValue *VersionedValue

	// Environment allocation sites form a single equivalence class; the
	// first registered site is the canonical one.
	canonicalEnvSite ssa.Value
	canonicalEnvAddr symexpr.Expr
	envSites         map[ssa.Value]*uf.Element
	envClass         *uf.Element
}

func NewContext() *Context {
	ctx := &Context{
		shadows:  symexpr.NewShadowMap(),
		envSites: make(map[ssa.Value]*uf.Element),
	}

	// Sentinel addresses are reads of reserved arrays so that they are
	// non-constant and can never collide with program addresses.
	zero := symexpr.NewConstant(0, symexpr.W64)
	ctx.unknown = &VersionedAllocation{allocation{
		address: symexpr.NewReadOf(symexpr.NewArray("__unknown__", 1), zero),
	}}
	ctx.unknownEnvPtr = &VersionedAllocation{allocation{
		address: symexpr.NewReadOf(symexpr.NewArray("__environ_ptr__", 1), zero),
	}}
	ctx.unknownEnvValue = &VersionedValue{
		expr: symexpr.NewReadOf(symexpr.NewArray("__environ__", 1), zero),
	}

	return ctx
}

// ShadowMap exposes the shadow-array registry of the engine instance.
func (ctx *Context) ShadowMap() *symexpr.ShadowMap {
	return ctx.shadows
}

// registerEnvironmentSite unions site into the environment equivalence class
// and returns the canonical site. The first registration fixes the canonical
// site and address.
func (ctx *Context) registerEnvironmentSite(site ssa.Value, address symexpr.Expr) ssa.Value {
	el, ok := ctx.envSites[site]
	if !ok {
		el = uf.NewElement()
		el.Data = site
		ctx.envSites[site] = el
	}

	if ctx.envClass == nil {
		ctx.envClass = el
		ctx.canonicalEnvSite = site
		ctx.canonicalEnvAddr = address
	} else {
		uf.Union(ctx.envClass, el)
	}

	return ctx.canonicalEnvSite
}

// isEnvironmentSite reports whether site has been registered as aliasing the
// canonical environment site.
func (ctx *Context) isEnvironmentSite(site ssa.Value) bool {
	el, ok := ctx.envSites[site]
	return ok && ctx.envClass != nil && el.Find() == ctx.envClass.Find()
}

// isEnvironmentTarget reports whether the allocation stands for the
// program's environment, either as the sentinel pointer or as an environment
// allocation proper.
func (ctx *Context) isEnvironmentTarget(a Allocation) bool {
	if a == Allocation(ctx.unknownEnvPtr) {
		return true
	}
	_, ok := a.(*EnvironmentAllocation)
	return ok
}
