package ellex

import (
	"strings"

	"github.com/zephyrtronium/contains"
)

// A CachedStatement is a Statement compiled with inline cache sites attached.
// Compiling is a pure transformation; caches fill in as the tree executes.
type CachedStatement interface {
	isCachedStatement()
}

// CachedTellConst outputs a constant. Literal output needs no cache, so the
// compiler emits this fast path for tells with no interpolation.
type CachedTellConst struct {
	Value Value
}

func (*CachedTellConst) isCachedStatement() {}

// CachedTell outputs an interpolated string, with one variable cache per
// referenced variable.
type CachedTell struct {
	Value  Value
	Caches []*VariableCache
}

func (*CachedTell) isCachedStatement() {}

// CachedAsk reads input into a variable. Input sites are not cached; the
// answer's type is the user's choice every time.
type CachedAsk struct {
	Var  string
	Hint *Type
}

func (*CachedAsk) isCachedStatement() {}

// CachedAssign binds a variable to a constant.
type CachedAssign struct {
	Var   string
	Value Value
}

func (*CachedAssign) isCachedStatement() {}

// CachedRepeat runs its body a fixed number of times. Iter tracks the loop
// counter, which is always a Number; the entry exists for statistics, not
// dispatch.
type CachedRepeat struct {
	Count int
	Iter  CacheEntry
	Body  []CachedStatement
}

func (*CachedRepeat) isCachedStatement() {}

// CachedWhen branches on a variable comparison. The condition's cache
// pre-validates the variable's type; the equality comparison itself always
// executes. A cache hit never substitutes for the comparison.
type CachedWhen struct {
	Cond      *CachedAccess
	Is        *CachedConstAccess
	Then      []CachedStatement
	Otherwise []CachedStatement
}

func (*CachedWhen) isCachedStatement() {}

// CachedCall invokes a function through a call cache. Once the executor
// resolves and compiles the callee, Body holds the compiled body, shared by
// every site calling the same function.
type CachedCall struct {
	Cache *FunctionCallCache
	Args  []Value
	Body  []CachedStatement
}

func (*CachedCall) isCachedStatement() {}

// CachedAccess evaluates a variable through an inline cache.
type CachedAccess struct {
	Cache *VariableCache
}

func (*CachedAccess) isCachedStatement() {}

// CachedConstAccess yields a constant. Like CachedTellConst, constants
// bypass caching entirely.
type CachedConstAccess struct {
	Value Value
}

func (*CachedConstAccess) isCachedStatement() {}

// interpolationRefs returns the distinct variable names referenced by {name}
// holes in s, in first-appearance order.
func interpolationRefs(s string) []string {
	var names []string
	seen := map[string]bool{}
	for {
		i := strings.IndexByte(s, '{')
		if i < 0 {
			return names
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			return names
		}
		name := s[i+1 : i+j]
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		s = s[i+j+1:]
	}
}

// Compile transforms statements into their cached form. The result shares no
// state with other compilations; caches start empty.
func Compile(stmts []Statement) []CachedStatement {
	out := make([]CachedStatement, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, compileStatement(s))
	}
	return out
}

func compileStatement(s Statement) CachedStatement {
	switch s := s.(type) {
	case Tell:
		if str, ok := s.Value.(String); ok {
			if refs := interpolationRefs(string(str)); len(refs) > 0 {
				caches := make([]*VariableCache, len(refs))
				for i, name := range refs {
					caches[i] = NewVariableCache(name)
				}
				return &CachedTell{Value: s.Value, Caches: caches}
			}
		}
		return &CachedTellConst{Value: s.Value}
	case Ask:
		return &CachedAsk{Var: s.Var, Hint: s.Hint}
	case Assign:
		return &CachedAssign{Var: s.Var, Value: s.Value}
	case Repeat:
		return &CachedRepeat{
			Count: s.Count,
			Iter:  CacheEntry{Type: TypeNumber},
			Body:  Compile(s.Body),
		}
	case When:
		return &CachedWhen{
			Cond:      &CachedAccess{Cache: NewVariableCache(s.Var)},
			Is:        &CachedConstAccess{Value: s.Is},
			Then:      Compile(s.Then),
			Otherwise: Compile(s.Otherwise),
		}
	case Call:
		return &CachedCall{Cache: NewFunctionCallCache(s.Name), Args: s.Args}
	}
	return &CachedTellConst{Value: Nil{}}
}

// WarmCaches primes every variable cache in the tree with the current value
// of its variable, so the first execution starts monomorphic. Variables not
// yet bound are skipped.
func WarmCaches(stmts []CachedStatement, lookup func(name string) (Value, bool)) {
	if lookup == nil {
		return
	}
	walk(stmts, func(n CachedStatement) {
		for _, c := range variableCaches(n) {
			if v, ok := lookup(c.Name); ok {
				c.Lookup(v)
			}
		}
	})
}

// StatsOf aggregates cache statistics over the tree, counting each site
// once even when compiled function bodies are shared between call sites.
func StatsOf(stmts []CachedStatement) CacheStats {
	var stats CacheStats
	walk(stmts, func(n CachedStatement) {
		for _, c := range variableCaches(n) {
			stats.addVariable(c)
		}
		if c, ok := n.(*CachedCall); ok {
			stats.addFunction(c.Cache)
		}
	})
	return stats
}

// ResetCaches empties every cache site in the tree. Compiled call bodies are
// kept; only cache state clears.
func ResetCaches(stmts []CachedStatement) {
	walk(stmts, func(n CachedStatement) {
		for _, c := range variableCaches(n) {
			c.Reset()
		}
		if c, ok := n.(*CachedCall); ok {
			c.Cache.Reset()
		}
	})
}

func variableCaches(n CachedStatement) []*VariableCache {
	switch n := n.(type) {
	case *CachedTell:
		return n.Caches
	case *CachedWhen:
		return []*VariableCache{n.Cond.Cache}
	case *CachedAccess:
		return []*VariableCache{n.Cache}
	}
	return nil
}

// walk visits every node reachable from stmts exactly once. Shared call
// bodies make the tree a graph, and recursive functions make it cyclic, so
// the traversal dedups on node identity.
func walk(stmts []CachedStatement, visit func(CachedStatement)) {
	seen := contains.Set{}
	var rec func([]CachedStatement)
	rec = func(stmts []CachedStatement) {
		for _, n := range stmts {
			if !seen.Add(nodeID(n)) {
				continue
			}
			visit(n)
			switch n := n.(type) {
			case *CachedRepeat:
				rec(n.Body)
			case *CachedWhen:
				rec(n.Then)
				rec(n.Otherwise)
			case *CachedCall:
				rec(n.Body)
			}
		}
	}
	rec(stmts)
}
