package ellex_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zephyrtronium/ellex"
)

func TestSessionRoundTrip(t *testing.T) {
	r := ellex.NewRuntime(ellex.BeginnerConfig())
	r.SetVariable("name", ellex.String("Ada"))
	r.SetVariable("n", ellex.Number(3))
	r.SetVariable("threes", ellex.List{ellex.Number(3), ellex.String("3")})
	r.SetVariable("nothing", ellex.Nil{})
	greet := &ellex.Function{
		Name:   "greet",
		Params: []string{"who"},
		Body:   mustParse(t, "tell \"Hello, {who}!\"\nrepeat 2 times\ntell count\nend"),
	}
	r.DefineFunction(greet)
	r.SetVariable("fn", greet)

	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := ellex.Snapshot(r, []string{"tell \"hi\""}).Save(path); err != nil {
		t.Fatal(err)
	}
	s, err := ellex.LoadSession(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Config != ellex.BeginnerConfig() {
		t.Errorf("config %+v, want the beginner preset", s.Config)
	}
	if len(s.History) != 1 || s.History[0] != `tell "hi"` {
		t.Errorf("history %v", s.History)
	}

	r2 := s.Restore()
	for name, want := range map[string]ellex.Value{
		"name":    ellex.String("Ada"),
		"n":       ellex.Number(3),
		"threes":  ellex.List{ellex.Number(3), ellex.String("3")},
		"nothing": ellex.Nil{},
	} {
		got, ok := r2.Variable(name)
		if !ok || !ellex.Equal(got, want) {
			t.Errorf("restored %s = %v, want %v", name, got, want)
		}
	}
	// The function-valued variable resolves to the restored definition.
	fn, ok := r2.Variable("fn")
	if !ok {
		t.Fatal("fn not restored")
	}
	restored, ok := r2.Function("greet")
	if !ok {
		t.Fatal("greet not restored")
	}
	if fn != ellex.Value(restored) {
		t.Error("fn does not reference the restored greet")
	}
	if len(restored.Params) != 1 || restored.Params[0] != "who" {
		t.Errorf("restored params %v", restored.Params)
	}

	// The restored function still runs.
	var out strings.Builder
	r2.SetOutput(&out)
	if _, err := r2.Run(mustParse(t, `call greet with "Eve"`)); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Hello, Eve!\n1\n2\n" {
		t.Errorf("restored function output %q", out.String())
	}
}

func TestSessionStatementKinds(t *testing.T) {
	src := `tell "hi"
ask age as number
set x to 5
repeat 2 times
tell x
end
when x is 5
tell "five"
otherwise
tell "other"
end
call helper with 1`
	r := ellex.NewRuntime(ellex.DefaultConfig())
	r.DefineFunction(&ellex.Function{Name: "f", Body: mustParse(t, src)})
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := ellex.Snapshot(r, nil).Save(path); err != nil {
		t.Fatal(err)
	}
	s, err := ellex.LoadSession(path)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := s.Functions["f"]
	if !ok {
		t.Fatal("function not restored")
	}
	want := mustParse(t, src)
	if len(f.Body) != len(want) {
		t.Fatalf("restored %d statements, want %d", len(f.Body), len(want))
	}
	ask := f.Body[1].(ellex.Ask)
	if ask.Hint == nil || *ask.Hint != ellex.TypeNumber {
		t.Errorf("ask hint lost: %#v", ask)
	}
	rep := f.Body[3].(ellex.Repeat)
	if rep.Count != 2 || len(rep.Body) != 1 {
		t.Errorf("repeat mangled: %#v", rep)
	}
	when := f.Body[4].(ellex.When)
	if when.Var != "x" || len(when.Then) != 1 || len(when.Otherwise) != 1 {
		t.Errorf("when mangled: %#v", when)
	}
	call := f.Body[5].(ellex.Call)
	if call.Name != "helper" || len(call.Args) != 1 {
		t.Errorf("call mangled: %#v", call)
	}
}

func TestLoadSessionUndefinedFunction(t *testing.T) {
	r := ellex.NewRuntime(ellex.DefaultConfig())
	s := ellex.Snapshot(r, nil)
	s.Variables["fn"] = &ellex.Function{Name: "ghost"}
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	if _, err := ellex.LoadSession(path); err == nil {
		t.Error("session with a dangling function reference loaded")
	}
}
