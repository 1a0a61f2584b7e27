package ellex

import "testing"

func TestVariableCacheTransitions(t *testing.T) {
	c := NewVariableCache("x")
	if c.IsMonomorphic() || c.IsPolymorphic() || c.IsMegamorphic() {
		t.Error("empty cache already classified")
	}

	if !c.Lookup(String("a")) {
		t.Error("first observation missed despite room")
	}
	if !c.IsMonomorphic() {
		t.Error("one observed type is not monomorphic")
	}
	if !c.Lookup(String("b")) {
		t.Error("repeat of a cached type missed")
	}
	if !c.IsMonomorphic() {
		t.Error("repeat observation broke monomorphism")
	}

	if !c.Lookup(Number(1)) {
		t.Error("second type missed despite room")
	}
	if !c.IsPolymorphic() {
		t.Error("two observed types are not polymorphic")
	}
	if c.IsMegamorphic() {
		t.Error("two observed types are already megamorphic")
	}

	c.Lookup(List{})
	if !c.IsMegamorphic() {
		t.Error("a full cache is not megamorphic")
	}
	if c.IsMonomorphic() || c.IsPolymorphic() {
		t.Error("full cache still classified as mono or poly")
	}

	// A fourth type never evicts the cached three.
	c.Lookup(Nil{})
	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("cache has %d entries, want 3", len(entries))
	}
	want := []Type{TypeString, TypeNumber, TypeList}
	for i, e := range entries {
		if e.Type != want[i] {
			t.Errorf("entry %d is %v, want %v", i, e.Type, want[i])
		}
	}
	// Only the full-cache observation counts as a miss; entries created
	// with room are hits.
	if c.MissCount() != 1 {
		t.Errorf("miss count %d, want 1", c.MissCount())
	}
}

func TestVariableCacheHitCounts(t *testing.T) {
	c := NewVariableCache("x")
	c.Lookup(String("a"))
	for i := 0; i < 5; i++ {
		c.Lookup(String("b"))
	}
	// The creating observation counts as the entry's first hit.
	if got := c.Hits(); got != 6 {
		t.Errorf("hits = %d, want 6", got)
	}
	e := c.Entries()[0]
	if e.HitCount != 6 {
		t.Errorf("entry hit count = %d, want 6", e.HitCount)
	}
	if !Equal(e.LastValue, String("b")) {
		t.Errorf("last value = %s, want b", e.LastValue)
	}
}

func TestVariableCacheMissRule(t *testing.T) {
	c := NewVariableCache("x")
	c.Lookup(String("a"))
	c.Lookup(Number(1))
	c.Lookup(List{})
	// Eleven more misses on an unseen type push the count past the rule's
	// threshold as well; the cache stays megamorphic and unchanged.
	for i := 0; i < 11; i++ {
		if c.Lookup(&Function{Name: "f"}) {
			t.Fatal("uncacheable type hit")
		}
	}
	if !c.IsMegamorphic() {
		t.Error("11 misses did not degrade the cache")
	}
	if len(c.Entries()) != 3 {
		t.Errorf("misses grew the cache to %d entries", len(c.Entries()))
	}
}

func TestVariableCacheReset(t *testing.T) {
	c := NewVariableCache("x")
	c.Lookup(String("a"))
	c.Lookup(Number(1))
	c.Reset()
	if len(c.Entries()) != 0 || c.MissCount() != 0 {
		t.Error("reset left state behind")
	}
}

func TestFunctionCallCache(t *testing.T) {
	fn := &Function{Name: "greet", Params: []string{"who"}}
	c := NewFunctionCallCache("greet")

	if _, ok := c.Lookup([]Value{String("Ada")}); ok {
		t.Error("empty cache hit")
	}
	c.Store(fn, []Value{String("Ada")})
	got, ok := c.Lookup([]Value{String("Grace")})
	if !ok || got != fn {
		t.Error("same argument types missed")
	}
	if _, ok := c.Lookup([]Value{Number(1)}); ok {
		t.Error("different argument type hit")
	}
	if _, ok := c.Lookup([]Value{String("x"), String("y")}); ok {
		t.Error("different arity hit")
	}
	if c.Hits() != 1 || c.Misses() != 3 {
		t.Errorf("hits=%d misses=%d, want 1 and 3", c.Hits(), c.Misses())
	}
}

func TestGlobalInvalidation(t *testing.T) {
	fn := &Function{Name: "f"}
	c := NewFunctionCallCache("f")
	c.Store(fn, nil)
	if _, ok := c.Lookup(nil); !ok {
		t.Fatal("fresh entry missed")
	}
	InvalidateAllCaches()
	if _, ok := c.Lookup(nil); ok {
		t.Error("stale entry hit after global invalidation")
	}
	// Invalidation is idempotent with respect to already-cleared entries.
	InvalidateAllCaches()
	if _, ok := c.Lookup(nil); ok {
		t.Error("entry resurrected by second invalidation")
	}
	c.Store(fn, nil)
	if _, ok := c.Lookup(nil); !ok {
		t.Error("restored entry missed")
	}
}

func TestCacheStats(t *testing.T) {
	s := CacheStats{
		VariableHits: 6, VariableMisses: 2,
		FunctionHits: 3, FunctionMisses: 1,
		Monomorphic: 3, Polymorphic: 1, Megamorphic: 1,
	}
	if got := s.HitRate(); got != 0.75 {
		t.Errorf("hit rate = %v, want 0.75", got)
	}
	if got := s.Efficiency(); got != 0.6 {
		t.Errorf("efficiency = %v, want 0.6", got)
	}
	var zero CacheStats
	if zero.HitRate() != 0 || zero.Efficiency() != 0 {
		t.Error("zero stats divide")
	}
}

func TestCompile(t *testing.T) {
	hint := TypeNumber
	stmts := []Statement{
		Tell{Value: String("plain")},
		Tell{Value: String("Hello, {name}!")},
		Tell{Value: Number(42)},
		Ask{Var: "age", Hint: &hint},
		Assign{Var: "x", Value: Number(1)},
		Repeat{Count: 3, Body: []Statement{Tell{Value: String("{x}")}}},
		When{Var: "x", Is: Number(1), Then: []Statement{Tell{Value: String("one")}}},
		Call{Name: "dance"},
	}
	cached := Compile(stmts)
	if len(cached) != len(stmts) {
		t.Fatalf("compiled %d statements from %d", len(cached), len(stmts))
	}
	if _, ok := cached[0].(*CachedTellConst); !ok {
		t.Errorf("plain tell compiled to %T, want CachedTellConst", cached[0])
	}
	tell, ok := cached[1].(*CachedTell)
	if !ok {
		t.Fatalf("interpolating tell compiled to %T", cached[1])
	}
	if len(tell.Caches) != 1 || tell.Caches[0].Name != "name" {
		t.Error("interpolating tell did not cache its variable")
	}
	if _, ok := cached[2].(*CachedTellConst); !ok {
		t.Errorf("numeric tell compiled to %T, want CachedTellConst", cached[2])
	}
	rep, ok := cached[5].(*CachedRepeat)
	if !ok {
		t.Fatalf("repeat compiled to %T", cached[5])
	}
	if rep.Iter.Type != TypeNumber {
		t.Error("loop counter entry is not a Number")
	}
	when, ok := cached[6].(*CachedWhen)
	if !ok {
		t.Fatalf("when compiled to %T", cached[6])
	}
	if when.Cond.Cache.Name != "x" {
		t.Error("when condition caches the wrong variable")
	}
	call, ok := cached[7].(*CachedCall)
	if !ok {
		t.Fatalf("call compiled to %T", cached[7])
	}
	if call.Cache.Name != "dance" {
		t.Error("call caches the wrong name")
	}
}

func TestWarmCaches(t *testing.T) {
	cached := Compile([]Statement{
		Tell{Value: String("{x} and {y}")},
		When{Var: "x", Is: Number(1), Then: nil},
	})
	env := map[string]Value{"x": Number(5)}
	WarmCaches(cached, func(name string) (Value, bool) {
		v, ok := env[name]
		return v, ok
	})
	tell := cached[0].(*CachedTell)
	if !tell.Caches[0].IsMonomorphic() {
		t.Error("bound variable not warmed")
	}
	if len(tell.Caches[1].Entries()) != 0 {
		t.Error("unbound variable warmed")
	}
	when := cached[1].(*CachedWhen)
	if !when.Cond.Cache.IsMonomorphic() {
		t.Error("when condition not warmed")
	}
}

func TestStatsWalkSharedBodies(t *testing.T) {
	// Two call sites sharing one compiled body, which recurses into the
	// first site. The walk must terminate and count each site once.
	a := &CachedCall{Cache: NewFunctionCallCache("f")}
	b := &CachedCall{Cache: NewFunctionCallCache("f")}
	shared := []CachedStatement{a, &CachedAccess{Cache: NewVariableCache("x")}}
	a.Body = shared
	b.Body = shared
	a.Cache.Lookup(nil) // one miss
	stats := StatsOf([]CachedStatement{a, b})
	if stats.FunctionMisses != 1 {
		t.Errorf("function misses = %d, want 1", stats.FunctionMisses)
	}
	if stats.VariableHits != 0 || stats.VariableMisses != 0 {
		t.Error("untouched variable cache counted lookups")
	}
}

func TestResetCaches(t *testing.T) {
	cached := Compile([]Statement{
		Tell{Value: String("{x}")},
		Call{Name: "f"},
	})
	tell := cached[0].(*CachedTell)
	tell.Caches[0].Lookup(Number(1))
	call := cached[1].(*CachedCall)
	call.Cache.Store(&Function{Name: "f"}, nil)
	ResetCaches(cached)
	if len(tell.Caches[0].Entries()) != 0 {
		t.Error("variable cache survived reset")
	}
	if _, ok := call.Cache.Lookup(nil); ok {
		t.Error("call cache survived reset")
	}
}
