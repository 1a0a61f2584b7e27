package ellex_test

import (
	"testing"

	"github.com/zephyrtronium/ellex"
)

func TestConstantFolding(t *testing.T) {
	t.Run("Folds", func(t *testing.T) {
		stmts := mustParse(t, "set name to \"Ada\"\ntell \"Hi, {name}!\"")
		out := ellex.ConstantFolding{}.Apply(stmts, nil)
		tell := out[1].(ellex.Tell)
		if !ellex.Equal(tell.Value, ellex.String("Hi, Ada!")) {
			t.Errorf("folded to %v", tell.Value)
		}
	})
	t.Run("AskBlocks", func(t *testing.T) {
		stmts := mustParse(t, "set name to \"Ada\"\nask name\ntell \"Hi, {name}!\"")
		out := ellex.ConstantFolding{}.Apply(stmts, nil)
		tell := out[2].(ellex.Tell)
		if !ellex.Equal(tell.Value, ellex.String("Hi, {name}!")) {
			t.Errorf("folded through an ask: %v", tell.Value)
		}
	})
	t.Run("CounterNotConstant", func(t *testing.T) {
		stmts := mustParse(t, "set count to 9\nrepeat 2 times\ntell \"{count}\"\nend")
		out := ellex.ConstantFolding{}.Apply(stmts, nil)
		tell := out[1].(ellex.Repeat).Body[0].(ellex.Tell)
		if !ellex.Equal(tell.Value, ellex.String("{count}")) {
			t.Errorf("folded the loop counter: %v", tell.Value)
		}
	})
	t.Run("BranchAssignInvalidates", func(t *testing.T) {
		src := "set x to 1\nwhen y is 1\nset x to 2\nend\ntell \"{x}\""
		stmts := mustParse(t, src)
		out := ellex.ConstantFolding{}.Apply(stmts, nil)
		tell := out[2].(ellex.Tell)
		if !ellex.Equal(tell.Value, ellex.String("{x}")) {
			t.Errorf("folded past a conditional reassignment: %v", tell.Value)
		}
	})
}

func TestDeadCodeElim(t *testing.T) {
	t.Run("DropsUnread", func(t *testing.T) {
		stmts := mustParse(t, "set unused to 1\ntell \"hi\"")
		out := ellex.DeadCodeElim{}.Apply(stmts, nil)
		if len(out) != 1 {
			t.Fatalf("kept %d statements, want 1", len(out))
		}
		if _, ok := out[0].(ellex.Tell); !ok {
			t.Errorf("kept the wrong statement: %#v", out[0])
		}
	})
	t.Run("KeepsRead", func(t *testing.T) {
		stmts := mustParse(t, "set x to 1\ntell \"{x}\"")
		out := ellex.DeadCodeElim{}.Apply(stmts, nil)
		if len(out) != 2 {
			t.Errorf("kept %d statements, want 2", len(out))
		}
	})
	t.Run("KeepsAsk", func(t *testing.T) {
		stmts := mustParse(t, "ask unused\ntell \"hi\"")
		out := ellex.DeadCodeElim{}.Apply(stmts, nil)
		if len(out) != 2 {
			t.Errorf("dropped an ask: %d statements", len(out))
		}
	})
	t.Run("KeepsFinalAssign", func(t *testing.T) {
		stmts := mustParse(t, "tell \"hi\"\nset x to 1")
		out := ellex.DeadCodeElim{}.Apply(stmts, nil)
		if len(out) != 2 {
			t.Errorf("dropped the program's result: %d statements", len(out))
		}
	})
	t.Run("KeepsWhenCondition", func(t *testing.T) {
		stmts := mustParse(t, "set x to 1\nwhen x is 1\ntell \"one\"\nend")
		out := ellex.DeadCodeElim{}.Apply(stmts, nil)
		if len(out) != 2 {
			t.Errorf("dropped a branched-on assignment: %d statements", len(out))
		}
	})
}

func TestInlining(t *testing.T) {
	r := ellex.NewRuntime(ellex.DefaultConfig())
	r.DefineFunction(&ellex.Function{Name: "small", Body: mustParse(t, "tell \"a\"\ntell \"b\"")})
	r.DefineFunction(&ellex.Function{Name: "big", Body: mustParse(t, "tell \"1\"\ntell \"2\"\ntell \"3\"\ntell \"4\"\ntell \"5\"")})
	r.DefineFunction(&ellex.Function{Name: "param", Params: []string{"x"}, Body: mustParse(t, "tell \"{x}\"")})
	r.DefineFunction(&ellex.Function{Name: "rec", Body: mustParse(t, "call rec")})

	t.Run("Small", func(t *testing.T) {
		out := ellex.Inlining{}.Apply(mustParse(t, "call small"), r)
		if len(out) != 2 {
			t.Fatalf("got %d statements, want the 2-statement body", len(out))
		}
		if _, ok := out[0].(ellex.Tell); !ok {
			t.Errorf("inlined to %#v", out[0])
		}
	})
	t.Run("Big", func(t *testing.T) {
		out := ellex.Inlining{}.Apply(mustParse(t, "call big"), r)
		if len(out) != 1 {
			t.Errorf("inlined a %d-statement body", 5)
		}
	})
	t.Run("Parameterized", func(t *testing.T) {
		out := ellex.Inlining{}.Apply(mustParse(t, `call param with "v"`), r)
		if _, ok := out[0].(ellex.Call); !ok {
			t.Errorf("inlined a parameterized call: %#v", out[0])
		}
	})
	t.Run("Recursive", func(t *testing.T) {
		out := ellex.Inlining{}.Apply(mustParse(t, "call rec"), r)
		if _, ok := out[0].(ellex.Call); !ok {
			t.Errorf("inlined a recursive call: %#v", out[0])
		}
	})
	t.Run("Undefined", func(t *testing.T) {
		out := ellex.Inlining{}.Apply(mustParse(t, "call ghost"), r)
		if _, ok := out[0].(ellex.Call); !ok {
			t.Errorf("rewrote an unresolved call: %#v", out[0])
		}
	})
}

func TestLoopUnroll(t *testing.T) {
	t.Run("Unrolls", func(t *testing.T) {
		out := ellex.LoopUnroll{}.Apply(mustParse(t, "repeat 3 times\ntell \"x\"\nend"), nil)
		if len(out) != 3 {
			t.Fatalf("got %d statements, want 3", len(out))
		}
		for _, s := range out {
			if _, ok := s.(ellex.Tell); !ok {
				t.Errorf("unrolled to %#v", s)
			}
		}
	})
	t.Run("TooBig", func(t *testing.T) {
		out := ellex.LoopUnroll{}.Apply(mustParse(t, "repeat 5 times\ntell \"x\"\nend"), nil)
		if _, ok := out[0].(ellex.Repeat); !ok || len(out) != 1 {
			t.Errorf("unrolled a 5-iteration loop: %#v", out)
		}
	})
	t.Run("ReadsCounter", func(t *testing.T) {
		out := ellex.LoopUnroll{}.Apply(mustParse(t, "repeat 2 times\ntell count\nend"), nil)
		if _, ok := out[0].(ellex.Repeat); !ok || len(out) != 1 {
			t.Errorf("unrolled a counter-reading loop: %#v", out)
		}
	})
	t.Run("Nested", func(t *testing.T) {
		out := ellex.LoopUnroll{}.Apply(mustParse(t, "repeat 2 times\nrepeat 2 times\ntell \"x\"\nend\nend"), nil)
		if len(out) != 4 {
			t.Errorf("nested unroll gave %d statements, want 4", len(out))
		}
	})
}

func TestDefaultPipeline(t *testing.T) {
	r := ellex.NewRuntime(ellex.DefaultConfig())
	r.DefineFunction(&ellex.Function{Name: "cheer", Body: mustParse(t, "tell \"yay\"")})
	p := ellex.DefaultPipeline()
	src := `set name to "Ada"
tell "Hi, {name}!"
repeat 2 times
call cheer
end`
	out := p.Run(mustParse(t, src), r)
	// Folding feeds elimination, inlining feeds unrolling.
	want := []ellex.Value{ellex.String("Hi, Ada!"), ellex.String("yay"), ellex.String("yay")}
	if len(out) != len(want) {
		t.Fatalf("got %d statements, want %d", len(out), len(want))
	}
	for i, w := range want {
		tell, ok := out[i].(ellex.Tell)
		if !ok || !ellex.Equal(tell.Value, w) {
			t.Errorf("statement %d = %#v, want tell %v", i, out[i], w)
		}
	}
}

func TestPipelineOrder(t *testing.T) {
	var p ellex.Pipeline
	p.Add(ellex.ConstantFolding{})
	p.Add(ellex.DeadCodeElim{})
	stmts := mustParse(t, "set name to \"Ada\"\ntell \"Hi, {name}!\"")
	out := p.Run(stmts, nil)
	// Folding makes the assignment dead, and elimination then removes it.
	if len(out) != 1 {
		t.Fatalf("got %d statements, want 1", len(out))
	}
	tell, ok := out[0].(ellex.Tell)
	if !ok || !ellex.Equal(tell.Value, ellex.String("Hi, Ada!")) {
		t.Errorf("pipeline produced %#v", out[0])
	}
}
