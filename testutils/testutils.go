// Package testutils provides utilities for testing Ellex programs in Go.
package testutils

import (
	"strings"
	"sync"
	"testing"

	"github.com/zephyrtronium/ellex"
)

// testRuntime is the runtime used for all tests.
var testRuntime *ellex.Runtime

var testRuntimeInit sync.Once

// output accumulates everything the shared runtime tells.
var output strings.Builder

// TestingRuntime returns a runtime for testing Ellex programs. The runtime
// is shared by all tests that use this package.
func TestingRuntime() *ellex.Runtime {
	testRuntimeInit.Do(ResetTestingRuntime)
	return testRuntime
}

// ResetTestingRuntime reinitializes the runtime returned by TestingRuntime.
// It is not safe to call this in parallel tests.
func ResetTestingRuntime() {
	testRuntime = ellex.NewRuntime(ellex.DefaultConfig())
	testRuntime.SetOutput(&output)
}

// TakeOutput returns everything the shared runtime has told since the last
// call and clears the buffer.
func TakeOutput() string {
	s := output.String()
	output.Reset()
	return s
}

// A SourceTestCase is a test case containing Ellex line-syntax source code
// and a predicate to check the result.
type SourceTestCase struct {
	// Source is the Ellex source code to execute.
	Source string
	// Pass is a predicate taking the result of executing Source. If Pass
	// returns false, then the test fails.
	Pass func(result ellex.Value, err error) bool
}

// TestFunc returns a test function for the test case. This uses
// TestingRuntime to parse and execute the code.
func (c SourceTestCase) TestFunc(name string) func(*testing.T) {
	return func(t *testing.T) {
		r := TestingRuntime()
		stmts, err := ellex.ParseProgram(c.Source)
		if err != nil {
			t.Fatalf("could not parse %q: %v", c.Source, err)
		}
		TakeOutput()
		if v, err := r.Run(stmts); !c.Pass(v, err) {
			if err != nil {
				t.Errorf("%q produced wrong result; failed with %v", c.Source, err)
			} else {
				t.Errorf("%q produced wrong result; got %s", c.Source, v)
			}
		}
	}
}

// PassEqual returns a Pass function for a SourceTestCase that predicates on
// structural equality. If execution failed, the predicate returns false.
func PassEqual(want ellex.Value) func(ellex.Value, error) bool {
	return func(result ellex.Value, err error) bool {
		if err != nil {
			return false
		}
		return ellex.Equal(want, result)
	}
}

// PassFailure returns a Pass function for a SourceTestCase that returns true
// iff the execution failed.
func PassFailure() func(ellex.Value, error) bool {
	// This doesn't need to be a function returning a function, but it's
	// nice to stay consistent with the other predicate generators.
	return func(result ellex.Value, err error) bool {
		return err != nil
	}
}

// PassSuccess returns a Pass function for a SourceTestCase that returns true
// iff the execution succeeded, regardless of its value.
func PassSuccess() func(ellex.Value, error) bool {
	return func(result ellex.Value, err error) bool {
		return err == nil
	}
}

// PassType returns a Pass function for a SourceTestCase that predicates on
// the type of the result. If execution failed, the predicate returns false.
func PassType(want ellex.Type) func(ellex.Value, error) bool {
	return func(result ellex.Value, err error) bool {
		if err != nil {
			return false
		}
		return ellex.TypeOf(result) == want
	}
}

// PassOutput returns a Pass function for a SourceTestCase that predicates on
// the text the program told, newline-terminated lines joined.
func PassOutput(want string) func(ellex.Value, error) bool {
	return func(result ellex.Value, err error) bool {
		if err != nil {
			return false
		}
		return TakeOutput() == want
	}
}

// CheckVariables is a testing helper to check that the shared runtime has
// exactly the given variable values.
func CheckVariables(t *testing.T, want map[string]ellex.Value) {
	t.Helper()
	r := TestingRuntime()
	for name, v := range want {
		t.Run("Have_"+name, func(t *testing.T) {
			got, ok := r.Variable(name)
			if !ok {
				t.Fatal("no variable", name)
			}
			if !ellex.Equal(v, got) {
				t.Fatalf("wrong value for %s: want %s, have %s", name, v, got)
			}
		})
	}
}
