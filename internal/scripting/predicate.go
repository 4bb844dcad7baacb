// Package scripting evaluates an optional .syruprc predicate script that
// filters which declared shared variables actually get watchpoints for a
// given run: a build-time variable selection hook driven by an embedded
// Lua interpreter, rather than a fixed list in syrup.yaml.
package scripting

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
)

// Predicate holds a loaded .syruprc script. A script defines a global Lua
// function named "select_variable(name)" returning true/false/nil; nil is
// treated as true, matching the "if unset, want everything" default a
// recorder without a predicate script has always had.
type Predicate struct {
	state *lua.LState
	fn    *lua.LFunction
}

// Load reads and compiles path, then resolves its global select_variable
// function.
func Load(path string) (*Predicate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: read %s: %w", path, err)
	}

	l := lua.NewState()
	if err := l.DoString(string(data)); err != nil {
		l.Close()
		return nil, fmt.Errorf("scripting: load %s: %w", path, err)
	}

	fnVal := l.GetGlobal("select_variable")
	fn, ok := fnVal.(*lua.LFunction)
	if !ok {
		l.Close()
		return nil, fmt.Errorf("scripting: %s: select_variable is not a function", path)
	}

	return &Predicate{state: l, fn: fn}, nil
}

// Select reports whether name should be watched, by calling the script's
// select_variable(name) with name pushed as a Lua string.
func (p *Predicate) Select(name string) (bool, error) {
	p.state.Push(p.fn)
	p.state.Push(lua.LString(name))
	if err := p.state.PCall(1, 1, nil); err != nil {
		return false, fmt.Errorf("scripting: select_variable(%q): %w", name, err)
	}
	ret := p.state.Get(-1)
	p.state.Pop(1)

	switch v := ret.(type) {
	case lua.LBool:
		return bool(v), nil
	case *lua.LNilType:
		return true, nil
	default:
		return false, fmt.Errorf("scripting: select_variable(%q) returned %s, want boolean or nil", name, ret.Type())
	}
}

// Close releases the underlying Lua state.
func (p *Predicate) Close() { p.state.Close() }

// Filter applies a loaded Predicate to a declared shared-variable list,
// returning the subset it selects. A nil predicate selects every variable,
// matching a record run configured without a .syruprc.
func Filter(p *Predicate, declared []string) ([]string, error) {
	if p == nil {
		return declared, nil
	}
	var out []string
	for _, name := range declared {
		ok, err := p.Select(name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, name)
		}
	}
	return out, nil
}
