package ellex

import (
	"fmt"
	"io"
	"os"
)

// A Runtime executes Ellex programs: it owns the environment, the function
// table, the safety monitor, and the turtle. A Runtime is single-threaded;
// one execution runs at a time.
type Runtime struct {
	config    Config
	monitor   *Monitor
	env       map[string]Value
	functions map[string]*Function
	turtle    *Turtle
	output    io.Writer
	input     func(prompt string) (string, error)

	// compiled maps each function to its compiled body, shared by every
	// call site that resolves to it.
	compiled map[*Function][]CachedStatement

	pipeline Pipeline
}

// NewRuntime returns a runtime with the given config, writing output to
// stdout until SetOutput changes it.
func NewRuntime(cfg Config) *Runtime {
	return &Runtime{
		config:    cfg,
		monitor:   NewMonitor(cfg.Limits()),
		env:       map[string]Value{},
		functions: map[string]*Function{},
		turtle:    NewTurtle(),
		output:    os.Stdout,
		compiled:  map[*Function][]CachedStatement{},
	}
}

// Config returns the runtime's config.
func (r *Runtime) Config() Config { return r.config }

// Monitor returns the runtime's safety monitor.
func (r *Runtime) Monitor() *Monitor { return r.monitor }

// Turtle returns the runtime's turtle.
func (r *Runtime) Turtle() *Turtle { return r.turtle }

// SetOutput redirects program output.
func (r *Runtime) SetOutput(w io.Writer) { r.output = w }

// SetInput provides the source ask reads from. Without one, ask fails.
func (r *Runtime) SetInput(f func(prompt string) (string, error)) { r.input = f }

// Variable returns the named variable's value. Lists are copied so callers
// cannot alias the environment.
func (r *Runtime) Variable(name string) (Value, bool) {
	v, ok := r.env[name]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// SetVariable binds a variable in the environment.
func (r *Runtime) SetVariable(name string, v Value) { r.env[name] = v }

// Variables returns a copy of the environment.
func (r *Runtime) Variables() map[string]Value {
	m := make(map[string]Value, len(r.env))
	for k, v := range r.env {
		m[k] = cloneValue(v)
	}
	return m
}

// DefineFunction installs or replaces a function. Replacing a function
// invalidates every call cache, here and in other runtimes, via the global
// cache version.
func (r *Runtime) DefineFunction(f *Function) {
	if old, ok := r.functions[f.Name]; ok {
		delete(r.compiled, old)
	}
	r.functions[f.Name] = f
	InvalidateAllCaches()
}

// Function returns the named function.
func (r *Runtime) Function(name string) (*Function, bool) {
	f, ok := r.functions[name]
	return f, ok
}

// Functions returns the function table keyed by name.
func (r *Runtime) Functions() map[string]*Function {
	m := make(map[string]*Function, len(r.functions))
	for k, v := range r.functions {
		m[k] = v
	}
	return m
}

// AddPass appends an optimization pass applied by Run before compiling.
func (r *Runtime) AddPass(p Pass) { r.pipeline.Add(p) }

// Run optimizes, compiles, and executes a program, returning the value of
// its last statement. Each Run is a fresh execution: the monitor resets, but
// the environment and function table persist.
func (r *Runtime) Run(stmts []Statement) (Value, error) {
	stmts = r.pipeline.Run(stmts, r)
	return r.RunCached(Compile(stmts))
}

// RunCached executes an already-compiled program. Reusing the same tree
// across runs is what lets its caches pay off.
func (r *Runtime) RunCached(stmts []CachedStatement) (Value, error) {
	r.monitor.CheckStart()
	return r.execBlock(stmts)
}

// cloneValue copies v deeply enough that the caller cannot mutate the
// environment through it. Only lists need copying.
func cloneValue(v Value) Value {
	if l, ok := v.(List); ok {
		out := make(List, len(l))
		for i, e := range l {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

func (r *Runtime) print(s string) {
	fmt.Fprintln(r.output, s)
}

func (r *Runtime) lookupVar(name string) (Value, bool) {
	v, ok := r.env[name]
	return v, ok
}

// compiledBody returns fn's compiled body, compiling it on first use. The
// compiled form is shared by every call site, so a recursive function's
// compiled body contains call sites that resolve back to itself.
func (r *Runtime) compiledBody(fn *Function) []CachedStatement {
	if body, ok := r.compiled[fn]; ok {
		return body
	}
	body := Compile(fn.Body)
	r.compiled[fn] = body
	return body
}
