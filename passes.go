package ellex

// A Pass rewrites a program before it is compiled. Passes must preserve
// observable behavior.
type Pass interface {
	// Name identifies the pass in diagnostics.
	Name() string
	// Apply returns the rewritten program. The input must not be mutated.
	Apply(stmts []Statement, r *Runtime) []Statement
}

// A Pipeline applies passes in order.
type Pipeline struct {
	passes []Pass
}

// Add appends a pass.
func (p *Pipeline) Add(pass Pass) { p.passes = append(p.passes, pass) }

// Run applies every pass in order.
func (p *Pipeline) Run(stmts []Statement, r *Runtime) []Statement {
	for _, pass := range p.passes {
		stmts = pass.Apply(stmts, r)
	}
	return stmts
}

// DefaultPipeline returns the standard pass order: fold constants, drop dead
// bindings, inline small functions, unroll tiny loops.
func DefaultPipeline() Pipeline {
	var p Pipeline
	p.Add(ConstantFolding{})
	p.Add(DeadCodeElim{})
	p.Add(Inlining{})
	p.Add(LoopUnroll{})
	return p
}

// ConstantFolding pre-interpolates tells whose referenced variables were all
// assigned constants earlier in the same block.
type ConstantFolding struct{}

// Name returns "constant-folding".
func (ConstantFolding) Name() string { return "constant-folding" }

// Apply folds constant interpolations.
func (ConstantFolding) Apply(stmts []Statement, r *Runtime) []Statement {
	return foldBlock(stmts, map[string]Value{})
}

func foldBlock(stmts []Statement, consts map[string]Value) []Statement {
	out := make([]Statement, 0, len(stmts))
	for _, s := range stmts {
		switch s := s.(type) {
		case Assign:
			consts[s.Var] = s.Value
			out = append(out, s)
		case Ask:
			// The answer is unknown, so the variable stops being constant.
			delete(consts, s.Var)
			out = append(out, s)
		case Tell:
			out = append(out, Tell{Value: foldValue(s.Value, consts)})
		case Repeat:
			// The body rebinds count and may run zero times; fold its
			// interior against a copy and invalidate its assignments.
			inner := copyConsts(consts)
			delete(inner, "count")
			body := foldBlock(s.Body, inner)
			invalidateAssigned(s.Body, consts)
			out = append(out, Repeat{Count: s.Count, Body: body})
		case When:
			then := foldBlock(s.Then, copyConsts(consts))
			otherwise := foldBlock(s.Otherwise, copyConsts(consts))
			invalidateAssigned(s.Then, consts)
			invalidateAssigned(s.Otherwise, consts)
			out = append(out, When{Var: s.Var, Is: s.Is, Then: then, Otherwise: otherwise})
		default:
			out = append(out, s)
		}
	}
	return out
}

func foldValue(v Value, consts map[string]Value) Value {
	str, ok := v.(String)
	if !ok {
		return v
	}
	refs := interpolationRefs(string(str))
	if len(refs) == 0 {
		return v
	}
	for _, name := range refs {
		if _, ok := consts[name]; !ok {
			return v
		}
	}
	return String(Interpolate(string(str), func(name string) (Value, bool) {
		c, ok := consts[name]
		return c, ok
	}))
}

func copyConsts(m map[string]Value) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// invalidateAssigned removes from consts every variable a nested block might
// reassign, since the block may or may not run.
func invalidateAssigned(stmts []Statement, consts map[string]Value) {
	for _, s := range stmts {
		switch s := s.(type) {
		case Assign:
			delete(consts, s.Var)
		case Ask:
			delete(consts, s.Var)
		case Repeat:
			invalidateAssigned(s.Body, consts)
		case When:
			invalidateAssigned(s.Then, consts)
			invalidateAssigned(s.Otherwise, consts)
		}
	}
}

// DeadCodeElim removes assignments to variables no later statement reads.
// Ask statements are kept even when unread: consuming input is observable.
type DeadCodeElim struct{}

// Name returns "dead-code-elim".
func (DeadCodeElim) Name() string { return "dead-code-elim" }

// Apply drops dead assignments.
func (DeadCodeElim) Apply(stmts []Statement, r *Runtime) []Statement {
	used := map[string]bool{}
	collectReads(stmts, used)
	return elimBlock(stmts, used)
}

func collectReads(stmts []Statement, used map[string]bool) {
	for _, s := range stmts {
		switch s := s.(type) {
		case Tell:
			if str, ok := s.Value.(String); ok {
				for _, name := range interpolationRefs(string(str)) {
					used[name] = true
				}
			}
		case When:
			used[s.Var] = true
			collectReads(s.Then, used)
			collectReads(s.Otherwise, used)
		case Repeat:
			collectReads(s.Body, used)
		}
	}
}

func elimBlock(stmts []Statement, used map[string]bool) []Statement {
	out := make([]Statement, 0, len(stmts))
	for i, s := range stmts {
		switch s := s.(type) {
		case Assign:
			// The last statement's value is the program's result.
			if !used[s.Var] && i != len(stmts)-1 {
				continue
			}
			out = append(out, s)
		case Repeat:
			out = append(out, Repeat{Count: s.Count, Body: elimBlock(s.Body, used)})
		case When:
			out = append(out, When{Var: s.Var, Is: s.Is, Then: elimBlock(s.Then, used), Otherwise: elimBlock(s.Otherwise, used)})
		default:
			out = append(out, s)
		}
	}
	return out
}

// inlineBodyLimit bounds the size of a function body Inlining will splice in.
const inlineBodyLimit = 4

// Inlining splices the bodies of small parameterless functions into their
// call sites, removing the call dispatch entirely.
type Inlining struct{}

// Name returns "inlining".
func (Inlining) Name() string { return "inlining" }

// Apply inlines eligible calls using the runtime's function table.
func (i Inlining) Apply(stmts []Statement, r *Runtime) []Statement {
	if r == nil {
		return stmts
	}
	return i.inlineBlock(stmts, r)
}

func (i Inlining) inlineBlock(stmts []Statement, r *Runtime) []Statement {
	out := make([]Statement, 0, len(stmts))
	for _, s := range stmts {
		switch s := s.(type) {
		case Call:
			fn, ok := r.functions[s.Name]
			if ok && len(fn.Params) == 0 && len(s.Args) == 0 &&
				len(fn.Body) <= inlineBodyLimit && !callsFunction(fn.Body, s.Name) {
				out = append(out, fn.Body...)
				continue
			}
			out = append(out, s)
		case Repeat:
			out = append(out, Repeat{Count: s.Count, Body: i.inlineBlock(s.Body, r)})
		case When:
			out = append(out, When{Var: s.Var, Is: s.Is, Then: i.inlineBlock(s.Then, r), Otherwise: i.inlineBlock(s.Otherwise, r)})
		default:
			out = append(out, s)
		}
	}
	return out
}

func callsFunction(stmts []Statement, name string) bool {
	for _, s := range stmts {
		switch s := s.(type) {
		case Call:
			if s.Name == name {
				return true
			}
		case Repeat:
			if callsFunction(s.Body, name) {
				return true
			}
		case When:
			if callsFunction(s.Then, name) || callsFunction(s.Otherwise, name) {
				return true
			}
		}
	}
	return false
}

// unrollLimit bounds the iteration count LoopUnroll will expand.
const unrollLimit = 4

// LoopUnroll replaces tiny fixed loops with repeated copies of their body,
// when the body does not read the loop counter.
type LoopUnroll struct{}

// Name returns "loop-unroll".
func (LoopUnroll) Name() string { return "loop-unroll" }

// Apply unrolls eligible loops.
func (u LoopUnroll) Apply(stmts []Statement, r *Runtime) []Statement {
	out := make([]Statement, 0, len(stmts))
	for _, s := range stmts {
		switch s := s.(type) {
		case Repeat:
			body := u.Apply(s.Body, r)
			if s.Count <= unrollLimit && !readsCounter(body) {
				for i := 0; i < s.Count; i++ {
					out = append(out, body...)
				}
				continue
			}
			out = append(out, Repeat{Count: s.Count, Body: body})
		case When:
			out = append(out, When{Var: s.Var, Is: s.Is, Then: u.Apply(s.Then, r), Otherwise: u.Apply(s.Otherwise, r)})
		default:
			out = append(out, s)
		}
	}
	return out
}

func readsCounter(stmts []Statement) bool {
	used := map[string]bool{}
	collectReads(stmts, used)
	return used["count"]
}
