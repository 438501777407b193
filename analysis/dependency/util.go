package dependency

import "golang.org/x/tools/go/ssa"

// environGlobal is the well-known name of the environment pointer.
const environGlobal = "_environ"

// IsEnvironmentAllocation reports whether the site is the program's
// environment pointer.
func IsEnvironmentAllocation(site ssa.Value) bool {
	g, ok := site.(*ssa.Global)
	if !ok {
		return false
	}
	if g.Name() == environGlobal {
		return true
	}
	return g.Pkg != nil && g.Pkg.Pkg.Path() == "syscall" && g.Name() == "envs"
}

// IsMainArgument reports whether the site is a parameter of the program
// entry point.
func IsMainArgument(site ssa.Value) bool {
	p, ok := site.(*ssa.Parameter)
	return ok && p.Parent() != nil && p.Parent().Name() == "main"
}
