package ellex

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// resultCacheLimit caps the result cache. Insertion simply stops at the cap;
// entries are never evicted.
const resultCacheLimit = 1000

// cacheComplexityThreshold is the minimum complexity score worth caching.
// Below it, recomputing is cheaper than the lookup.
const cacheComplexityThreshold = 3

// A CachedExpr carries an expression with the metadata the interpreter
// tracks about it: its canonical key, whether results can be reused, how
// expensive it looks, and how it has behaved so far.
type CachedExpr struct {
	// Expr is the expression itself.
	Expr Expr
	// Key is the expression's canonical structural rendering.
	Key string
	// Deterministic reports whether equal bindings imply equal results.
	Deterministic bool
	// Complexity is the expression's complexity score.
	Complexity int
	// Refs are the variables the expression reads.
	Refs []string

	execCount uint64
	evalCount uint64
	totalTime time.Duration
}

// NewCachedExpr analyzes e for caching.
func NewCachedExpr(e Expr) *CachedExpr {
	return &CachedExpr{
		Expr:          e,
		Key:           exprKey(e),
		Deterministic: IsDeterministic(e),
		Complexity:    ComplexityScore(e),
		Refs:          FreeVars(e),
	}
}

// Cacheable reports whether the expression's results may be reused:
// deterministic and complex enough to be worth it.
func (ce *CachedExpr) Cacheable() bool {
	return ce.Deterministic && ce.Complexity >= cacheComplexityThreshold
}

// ExecCount returns how many times the expression has been evaluated,
// counting cache hits.
func (ce *CachedExpr) ExecCount() uint64 { return ce.execCount }

// AvgTime returns the mean evaluation time over actual evaluations. Cache
// hits cost no evaluation and do not dilute the mean.
func (ce *CachedExpr) AvgTime() time.Duration {
	if ce.evalCount == 0 {
		return 0
	}
	return ce.totalTime / time.Duration(ce.evalCount)
}

// An Interpreter evaluates MiniElixir with validation and a result cache in
// front of Eval. It is single-threaded, like the Runtime that hosts it.
type Interpreter struct {
	validator *Validator
	results   map[string]Value
	exprs     map[string]*CachedExpr

	evalCounter  uint64
	hits, misses uint64
}

// NewInterpreter returns an interpreter with the standard validator and an
// empty cache.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		validator: NewValidator(),
		results:   map[string]Value{},
		exprs:     map[string]*CachedExpr{},
	}
}

// Validator returns the interpreter's validator for adjusting bounds.
func (in *Interpreter) Validator() *Validator { return in.validator }

// EvalCode parses, validates, and evaluates MiniElixir source.
func (in *Interpreter) EvalCode(src string, ctx *EvalContext) (Value, error) {
	e, err := ParseMiniElixir(src)
	if err != nil {
		return nil, err
	}
	return in.EvalExpr(e, ctx)
}

// EvalExpr validates and evaluates an expression, serving repeat
// evaluations of cacheable expressions from the result cache.
func (in *Interpreter) EvalExpr(e Expr, ctx *EvalContext) (Value, error) {
	if err := in.validator.Validate(e); err != nil {
		return nil, err
	}
	ce := in.exprs[exprKey(e)]
	if ce == nil {
		ce = NewCachedExpr(e)
		in.exprs[ce.Key] = ce
	}
	key := in.resultKey(ce, ctx)
	if ce.Cacheable() {
		if v, ok := in.results[key]; ok {
			in.hits++
			ce.execCount++
			return cloneValue(v), nil
		}
	}
	in.misses++
	start := time.Now()
	v, err := Eval(ce.Expr, ctx)
	ce.totalTime += time.Since(start)
	ce.execCount++
	ce.evalCount++
	if err != nil {
		return nil, err
	}
	if ce.Cacheable() && len(in.results) < resultCacheLimit {
		in.results[key] = cloneValue(v)
	}
	return v, nil
}

// EvalBlock evaluates expressions in order, returning the last value.
func (in *Interpreter) EvalBlock(exprs []Expr, ctx *EvalContext) (Value, error) {
	var last Value = Nil{}
	for _, e := range exprs {
		v, err := in.EvalExpr(e, ctx)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

// resultKey builds the cache key: the expression's structural key plus the
// values of the variables it reads. Non-deterministic expressions get a key
// that never repeats, so they never hit.
func (in *Interpreter) resultKey(ce *CachedExpr, ctx *EvalContext) string {
	if !ce.Deterministic {
		in.evalCounter++
		return fmt.Sprintf("%s#%d", ce.Key, in.evalCounter)
	}
	if len(ce.Refs) == 0 {
		return ce.Key
	}
	var b strings.Builder
	b.WriteString(ce.Key)
	for _, name := range ce.Refs {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		if v, ok := ctx.Bindings[name]; ok {
			b.WriteString(TypeOf(v).String())
			b.WriteByte(':')
			b.WriteString(v.String())
		} else {
			b.WriteString("unbound")
		}
	}
	return b.String()
}

// ClearCache empties the result cache and counters, keeping expression
// metadata.
func (in *Interpreter) ClearCache() {
	in.results = map[string]Value{}
	in.hits = 0
	in.misses = 0
}

// ResultCacheStats summarizes the result cache.
type ResultCacheStats struct {
	// Size is the number of cached results.
	Size int
	// Hits and Misses count lookups.
	Hits, Misses uint64
	// Expressions is the number of distinct expressions seen.
	Expressions int
}

// HitRate returns the fraction of lookups that hit, or 0 with none.
func (s ResultCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CacheStats returns a snapshot of the result cache counters.
func (in *Interpreter) CacheStats() ResultCacheStats {
	return ResultCacheStats{
		Size:        len(in.results),
		Hits:        in.hits,
		Misses:      in.misses,
		Expressions: len(in.exprs),
	}
}

// hotThreshold is the execution count past which an expression counts as
// hot in Analysis.
const hotThreshold = 10

// Analysis splits the seen expressions into hot and cold by execution
// count, hot first, most-executed first within each group.
func (in *Interpreter) Analysis() (hot, cold []*CachedExpr) {
	for _, ce := range in.exprs {
		if ce.execCount > hotThreshold {
			hot = append(hot, ce)
		} else {
			cold = append(cold, ce)
		}
	}
	byCount := func(s []*CachedExpr) func(i, j int) bool {
		return func(i, j int) bool { return s[i].execCount > s[j].execCount }
	}
	sort.Slice(hot, byCount(hot))
	sort.Slice(cold, byCount(cold))
	return hot, cold
}
