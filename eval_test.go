package ellex_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/zephyrtronium/ellex"
)

func evalSrc(t *testing.T, src string, binds map[string]ellex.Value) (ellex.Value, error) {
	t.Helper()
	ctx := ellex.NewEvalContext()
	for k, v := range binds {
		ctx.Bind(k, v)
	}
	return ellex.Eval(mustExpr(t, src), ctx)
}

func TestEval(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		binds map[string]ellex.Value
		want  ellex.Value
	}{
		{"Add", `1 + 2`, nil, ellex.Number(3)},
		{"Precedence", `1 + 2 * 3`, nil, ellex.Number(7)},
		{"Div", `10 / 4`, nil, ellex.Number(2.5)},
		{"Rem", `rem(7, 2)`, nil, ellex.Number(1)},
		{"Neg", `-(1 + 2)`, nil, ellex.Number(-3)},
		{"Concat", `"a" <> "b"`, nil, ellex.String("ab")},
		{"Append", `[1] ++ [2, 3]`, nil, ellex.List{ellex.Number(1), ellex.Number(2), ellex.Number(3)}},
		{"Eq", `1 == 1.0`, nil, ellex.String("true")},
		{"Neq", `1 != 2`, nil, ellex.String("true")},
		{"Lt", `"abc" < "abd"`, nil, ellex.String("true")},
		{"Not", `!true`, nil, ellex.String("false")},
		{"AndShortCircuit", `nil && missing`, nil, ellex.String("false")},
		{"OrShortCircuit", `1 || missing`, nil, ellex.String("true")},
		{"Var", `x + 1`, map[string]ellex.Value{"x": ellex.Number(41)}, ellex.Number(42)},
		{"Atom", `:hello`, nil, ellex.String("hello")},
		{"Tuple", `{1, 2}`, nil, ellex.List{ellex.Number(1), ellex.Number(2)}},
		{"Map", `%{"a" => 1}`, nil, ellex.List{ellex.List{ellex.String("a"), ellex.Number(1)}}},
		{"If", `if 2 > 1 do "yes" else "no" end`, nil, ellex.String("yes")},
		{"IfNoElse", `if nil do "yes" end`, nil, ellex.Nil{}},
		{"Match", `x = 5
x + 1`, nil, ellex.Number(6)},
		{"Case", `case 5 do 1 -> "one" n when n > 3 -> "big" _ -> "other" end`, nil, ellex.String("big")},
		{"CaseFallthrough", `case 2 do 1 -> "one" _ -> "other" end`, nil, ellex.String("other")},
		{"Pipe", `[1, 2, 3] |> Enum.sum()`, nil, ellex.Number(6)},
		{"PipeString", `"hi" |> String.upcase()`, nil, ellex.String("HI")},
		{"Index", `[10, 20, 30][1]`, nil, ellex.Number(20)},
		{"IndexOut", `[10][5]`, nil, ellex.Nil{}},
		{"MapAccess", `%{"a" => 1}["a"]`, nil, ellex.Number(1)},
		{"Length", `length([1, 2, 3])`, nil, ellex.Number(3)},
		{"HdTl", `hd(tl([1, 2, 3]))`, nil, ellex.Number(2)},
		{"Elem", `elem({1, 2}, 1)`, nil, ellex.Number(2)},
		{"ToString", `to_string(42)`, nil, ellex.String("42")},
		{"IsNumber", `is_number(1)`, nil, ellex.String("true")},
		{"IsBinary", `is_binary(1)`, nil, ellex.String("false")},
		{"Upcase", `String.upcase("hello")`, nil, ellex.String("HELLO")},
		{"Capitalize", `String.capitalize("wORLD")`, nil, ellex.String("World")},
		{"Trim", `String.trim("  x  ")`, nil, ellex.String("x")},
		{"Contains", `String.contains?("hello", "ell")`, nil, ellex.String("true")},
		{"Split", `String.split("a,b", ",")`, nil, ellex.List{ellex.String("a"), ellex.String("b")}},
		{"EnumReverse", `Enum.reverse([1, 2])`, nil, ellex.List{ellex.Number(2), ellex.Number(1)}},
		{"EnumMember", `Enum.member?([1, 2], 2)`, nil, ellex.String("true")},
		{"EnumAtOut", `Enum.at([1], 9)`, nil, ellex.Nil{}},
		{"MapGet", `Map.get(%{"a" => 1}, "a")`, nil, ellex.Number(1)},
		{"MapGetMissing", `Map.get(%{"a" => 1}, "b")`, nil, ellex.Nil{}},
		{"MapHasKey", `Map.has_key?(%{"a" => 1}, "a")`, nil, ellex.String("true")},
		{"MapPut", `Map.keys(Map.put(%{"a" => 1}, "b", 2))`, nil, ellex.List{ellex.String("a"), ellex.String("b")}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := evalSrc(t, c.src, c.binds)
			if err != nil {
				t.Fatalf("Eval(%s) failed: %v", c.src, err)
			}
			if !ellex.Equal(got, c.want) {
				t.Errorf("Eval(%s) = %v, want %v", c.src, got, c.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"DivZero", `1 / 0`},
		{"RemZero", `rem(1, 0)`},
		{"Unbound", `missing + 1`},
		{"AddStrings", `"a" + "b"`},
		{"ConcatNumbers", `1 <> 2`},
		{"HdEmpty", `hd([])`},
		{"ElemOut", `elem({1}, 5)`},
		{"NoClause", `case 3 do 1 -> "one" end`},
		{"MatchFail", `1 = 2`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := evalSrc(t, c.src, nil)
			var logic *ellex.LogicError
			if !errors.As(err, &logic) {
				t.Errorf("Eval(%s) = %v, want LogicError", c.src, err)
			}
		})
	}
}

func TestEvalDepthBudget(t *testing.T) {
	src := strings.Repeat("(1+", 60) + "2" + strings.Repeat(")", 60)
	_, err := evalSrc(t, src, nil)
	var sv *ellex.SafetyViolationError
	if !errors.As(err, &sv) {
		t.Errorf("deep evaluation gave %v, want SafetyViolationError", err)
	}
}

func TestCaseBindingsScoped(t *testing.T) {
	ctx := ellex.NewEvalContext()
	if _, err := ellex.Eval(mustExpr(t, `case 5 do n -> n + 1 end`), ctx); err != nil {
		t.Fatal(err)
	}
	// Clause bindings do not escape the clause.
	if _, ok := ctx.Bindings["n"]; ok {
		t.Error("case clause binding leaked into the outer context")
	}
}

func TestInterpreterResultCache(t *testing.T) {
	in := ellex.NewInterpreter()
	ctx := ellex.NewEvalContext()
	v, err := in.EvalCode(`length([1, 2, 3])`, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ellex.Equal(v, ellex.Number(3)) {
		t.Fatalf("got %v, want 3", v)
	}
	stats := in.CacheStats()
	if stats.Hits != 0 || stats.Misses != 1 || stats.Size != 1 {
		t.Errorf("after first eval: %+v", stats)
	}
	v, err = in.EvalCode(`length([1, 2, 3])`, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ellex.Equal(v, ellex.Number(3)) {
		t.Fatalf("second eval got %v, want 3", v)
	}
	stats = in.CacheStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("after second eval: %+v", stats)
	}
	if stats.HitRate() != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", stats.HitRate())
	}
}

func TestInterpreterTrivialNotCached(t *testing.T) {
	in := ellex.NewInterpreter()
	ctx := ellex.NewEvalContext()
	in.EvalCode(`5`, ctx)
	in.EvalCode(`5`, ctx)
	stats := in.CacheStats()
	if stats.Hits != 0 {
		t.Errorf("trivial expression hit the cache: %+v", stats)
	}
	if stats.Size != 0 {
		t.Errorf("trivial expression was cached: %+v", stats)
	}
}

func TestInterpreterNondeterministicNeverHits(t *testing.T) {
	in := ellex.NewInterpreter()
	ctx := ellex.NewEvalContext()
	for i := 0; i < 3; i++ {
		if _, err := in.EvalCode(`DateTime.utc_now()`, ctx); err != nil {
			t.Fatal(err)
		}
	}
	stats := in.CacheStats()
	if stats.Hits != 0 || stats.Misses != 3 {
		t.Errorf("time-dependent expression cached: %+v", stats)
	}
}

func TestInterpreterKeyIncludesBindings(t *testing.T) {
	in := ellex.NewInterpreter()
	ctx := ellex.NewEvalContext()
	ctx.Bind("x", ellex.Number(1))
	if v, _ := in.EvalCode(`x * 10`, ctx); !ellex.Equal(v, ellex.Number(10)) {
		t.Fatalf("got %v, want 10", v)
	}
	ctx.Bind("x", ellex.Number(2))
	if v, _ := in.EvalCode(`x * 10`, ctx); !ellex.Equal(v, ellex.Number(20)) {
		t.Fatalf("rebinding got a stale result: %v", v)
	}
	ctx.Bind("x", ellex.Number(1))
	if v, _ := in.EvalCode(`x * 10`, ctx); !ellex.Equal(v, ellex.Number(10)) {
		t.Fatalf("got %v, want 10", v)
	}
	stats := in.CacheStats()
	if stats.Hits != 1 || stats.Misses != 2 {
		t.Errorf("binding-keyed caching: %+v", stats)
	}
}

func TestInterpreterValidatesFirst(t *testing.T) {
	in := ellex.NewInterpreter()
	_, err := in.EvalCode(`System.cmd("ls", [])`, ellex.NewEvalContext())
	var sv *ellex.SafetyViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("got %v, want SafetyViolationError", err)
	}
}

func TestInterpreterRejectsForbiddenStrings(t *testing.T) {
	// A quoted command is as dangerous as a bare one: content checks stop
	// strings that smuggle denied names past the call allow-list.
	in := ellex.NewInterpreter()
	_, err := in.EvalCode(`"System.cmd('rm -rf /')"`, ellex.NewEvalContext())
	var sv *ellex.SafetyViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("got %v, want SafetyViolationError", err)
	}
}

func TestAvgTimeExcludesCacheHits(t *testing.T) {
	in := ellex.NewInterpreter()
	ctx := ellex.NewEvalContext()
	if _, err := in.EvalCode(`length([1, 2, 3])`, ctx); err != nil {
		t.Fatal(err)
	}
	_, cold := in.Analysis()
	if len(cold) != 1 {
		t.Fatalf("expressions seen = %d, want 1", len(cold))
	}
	ce := cold[0]
	avg := ce.AvgTime()
	// Serving from the cache is not an evaluation, so the mean holds still
	// while the execution count grows.
	for i := 0; i < 5; i++ {
		if _, err := in.EvalCode(`length([1, 2, 3])`, ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := ce.AvgTime(); got != avg {
		t.Errorf("cache hits moved the mean from %v to %v", avg, got)
	}
	if got := ce.ExecCount(); got != 6 {
		t.Errorf("exec count = %d, want 6", got)
	}
}

func TestInterpreterClearCache(t *testing.T) {
	in := ellex.NewInterpreter()
	ctx := ellex.NewEvalContext()
	in.EvalCode(`length([1, 2, 3])`, ctx)
	in.EvalCode(`length([1, 2, 3])`, ctx)
	in.ClearCache()
	stats := in.CacheStats()
	if stats.Size != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("ClearCache left counters: %+v", stats)
	}
	if stats.Expressions == 0 {
		t.Error("ClearCache dropped expression metadata")
	}
}

func TestInterpreterAnalysis(t *testing.T) {
	in := ellex.NewInterpreter()
	ctx := ellex.NewEvalContext()
	for i := 0; i < 12; i++ {
		in.EvalCode(`1 + 1`, ctx)
	}
	in.EvalCode(`2 + 2`, ctx)
	hot, cold := in.Analysis()
	if len(hot) != 1 || hot[0].Key != "(1+1)" {
		t.Errorf("hot = %v", hot)
	}
	if len(cold) != 1 || cold[0].Key != "(2+2)" {
		t.Errorf("cold = %v", cold)
	}
	if hot[0].ExecCount() != 12 {
		t.Errorf("hot exec count = %d, want 12", hot[0].ExecCount())
	}
}
