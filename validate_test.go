package ellex_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/zephyrtronium/ellex"
)

func mustExpr(t *testing.T, src string) ellex.Expr {
	t.Helper()
	e, err := ellex.ParseMiniElixir(src)
	if err != nil {
		t.Fatalf("could not parse %q: %v", src, err)
	}
	return e
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"SystemCmd", `System.cmd("ls", [])`},
		{"FileRead", `File.read("/etc/passwd")`},
		{"ProcessExit", `Process.exit(1, 2)`},
		{"IOPuts", `IO.puts("hi")`},
		{"Spawn", `spawn(1)`},
		{"Apply", `apply(1)`},
		{"Eval", `eval("code")`},
		{"OsAtom", `:os`},
		{"SystemInString", `"System.cmd('rm -rf /')"`},
		{"FileInString", `"please File.read this"`},
		{"SpawnInString", `"spawn" <> "me"`},
		{"OsColonInString", `":os.cmd"`},
		{"PatternInAtom", `:spawn_helper`},
		{"NestedDenied", `1 + length(tl(hd([spawn(1)])))`},
		{"DeniedInPipe", `[1] |> spawn()`},
		{"UnknownCall", `frobnicate(1)`},
		{"UnknownModuleCall", `String.to_atom("x")`},
		{"BadArity", `length([1], [2])`},
		{"BadModuleArity", `String.upcase("a", "b")`},
	}
	v := ellex.NewValidator()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := v.Validate(mustExpr(t, c.src))
			var sv *ellex.SafetyViolationError
			if !errors.As(err, &sv) {
				t.Errorf("Validate(%s) = %v, want a safety violation", c.src, err)
			}
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	cases := []string{
		`1 + 2 * 3`,
		`length([1, 2, 3])`,
		`String.upcase("hello")`,
		`[1, 2] |> Enum.count()`,
		`x = %{"a" => 1}`,
		`if x > 0 do "pos" else "neg" end`,
		`case x do 1 -> "one" _ -> "other" end`,
		`elem({1, 2}, 0)`,
	}
	v := ellex.NewValidator()
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			if err := v.Validate(mustExpr(t, src)); err != nil {
				t.Errorf("Validate(%s) = %v", src, err)
			}
		})
	}
}

func TestValidateBounds(t *testing.T) {
	v := ellex.NewValidator()
	t.Run("Depth", func(t *testing.T) {
		src := strings.Repeat("(1+", 60) + "2" + strings.Repeat(")", 60)
		err := v.Validate(mustExpr(t, src))
		var sv *ellex.SafetyViolationError
		if !errors.As(err, &sv) {
			t.Errorf("deep nesting passed: %v", err)
		}
	})
	t.Run("DepthAtLimit", func(t *testing.T) {
		src := strings.Repeat("(1+", 40) + "2" + strings.Repeat(")", 40)
		if err := v.Validate(mustExpr(t, src)); err != nil {
			t.Errorf("nesting inside the limit failed: %v", err)
		}
	})
	t.Run("Collection", func(t *testing.T) {
		elems := make([]string, 1001)
		for i := range elems {
			elems[i] = "1"
		}
		src := "[" + strings.Join(elems, ",") + "]"
		err := v.Validate(mustExpr(t, src))
		var sv *ellex.SafetyViolationError
		if !errors.As(err, &sv) {
			t.Errorf("oversized list passed: %v", err)
		}
	})
	t.Run("String", func(t *testing.T) {
		src := `"` + strings.Repeat("a", 10001) + `"`
		err := v.Validate(mustExpr(t, src))
		var sv *ellex.SafetyViolationError
		if !errors.As(err, &sv) {
			t.Errorf("oversized string passed: %v", err)
		}
	})
}

func TestIsDeterministic(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{`1 + 2`, true},
		{`length([1, 2, 3])`, true},
		{`String.upcase(name)`, true},
		{`DateTime.utc_now()`, false},
		{`1 + DateTime.utc_now()`, false},
		{`case x do 1 -> "one" end`, false},
		{`frobnicate(1)`, false},
		{`if x do 1 else 2 end`, true},
		{`x = [1, 2]`, true},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			if got := ellex.IsDeterministic(mustExpr(t, c.src)); got != c.want {
				t.Errorf("IsDeterministic(%s) = %v, want %v", c.src, got, c.want)
			}
		})
	}
}

func TestComplexityScore(t *testing.T) {
	cases := []struct {
		src  string
		want int
	}{
		{`1`, 1},
		{`x`, 1},
		{`1 + 2`, 4},
		{`1 + 2 * 3`, 7},
		{`length([1, 2, 3])`, 9},
		{`[1] |> Enum.count()`, 10},
		{`x = 1`, 6},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s=%d", c.src, c.want), func(t *testing.T) {
			if got := ellex.ComplexityScore(mustExpr(t, c.src)); got != c.want {
				t.Errorf("ComplexityScore(%s) = %d, want %d", c.src, got, c.want)
			}
		})
	}
}
