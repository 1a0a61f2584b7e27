package ellex

import (
	"fmt"
	"strings"
)

// A Validator vets MiniElixir expressions before evaluation. Validation is
// purely structural: it bounds nesting and collection sizes and restricts
// calls to a fixed allow-list, so rejected code never evaluates at all.
type Validator struct {
	// MaxDepth bounds expression nesting.
	MaxDepth int
	// MaxCollectionSize bounds list, tuple, and map literals.
	MaxCollectionSize int
	// MaxStringLen bounds string literals.
	MaxStringLen int
}

// NewValidator returns a validator with the standard bounds: depth 50,
// collections to 1000 elements, strings to 10000 bytes.
func NewValidator() *Validator {
	return &Validator{
		MaxDepth:          50,
		MaxCollectionSize: 1000,
		MaxStringLen:      10000,
	}
}

// deniedModules are namespaces that reach outside the sandbox.
var deniedModules = map[string]bool{
	"System":  true,
	"File":    true,
	"Process": true,
	"IO":      true,
	"Port":    true,
	"Code":    true,
	"Kernel":  true,
	"Node":    true,
}

// deniedAtoms are atoms naming dangerous services.
var deniedAtoms = map[string]bool{
	"os":   true,
	"erts": true,
}

// forbiddenPatterns are substrings that mark a string or atom as smuggling a
// reference to something outside the sandbox. Scanning content closes the
// hole left by quoting: "System.cmd(...)" is as rejected as System.cmd(...).
var forbiddenPatterns = []string{
	"System",
	"File",
	"Process",
	":os",
	"spawn",
}

func forbiddenPatternIn(s string) (string, bool) {
	for _, p := range forbiddenPatterns {
		if strings.Contains(s, p) {
			return p, true
		}
	}
	return "", false
}

// deniedCalls are unqualified functions with effects.
var deniedCalls = map[string]bool{
	"spawn":      true,
	"spawn_link": true,
	"send":       true,
	"receive":    true,
	"apply":      true,
	"eval":       true,
	"exit":       true,
	"throw":      true,
}

// allowedCalls maps each permitted unqualified function to its arity.
var allowedCalls = map[string]int{
	"length":     1,
	"hd":         1,
	"tl":         1,
	"to_string":  1,
	"is_list":    1,
	"is_atom":    1,
	"is_number":  1,
	"is_binary":  1,
	"elem":       2,
	"tuple_size": 1,
	"rem":        2,
}

// allowedModuleCalls maps Module.function to its arity.
var allowedModuleCalls = map[string]int{
	"String.upcase":     1,
	"String.downcase":   1,
	"String.capitalize": 1,
	"String.trim":       1,
	"String.contains?":  2,
	"String.split":      2,
	"Enum.count":        1,
	"Enum.at":           2,
	"Enum.member?":      2,
	"Enum.empty?":       1,
	"Enum.reverse":      1,
	"Enum.sum":          1,
	"Map.get":           2,
	"Map.put":           3,
	"Map.has_key?":      2,
	"Map.keys":          1,
	"Map.values":        1,
	"DateTime.utc_now":  0,
	"DateTime.to_string": 1,
}

// Validate checks e against the sandbox rules, returning a
// SafetyViolationError describing the first offending construct.
func (v *Validator) Validate(e Expr) error {
	return v.validate(e, 0)
}

func (v *Validator) validate(e Expr, depth int) error {
	if depth > v.MaxDepth {
		return &SafetyViolationError{Reason: fmt.Sprintf("expression nests deeper than %d levels", v.MaxDepth)}
	}
	switch e := e.(type) {
	case AtomLit:
		if deniedAtoms[e.Name] {
			return &SafetyViolationError{Reason: fmt.Sprintf("atom :%s is not allowed", e.Name)}
		}
		// Match patterns against the atom's written form, so :os trips
		// the ":os" pattern.
		if p, ok := forbiddenPatternIn(":" + e.Name); ok {
			return &SafetyViolationError{Reason: fmt.Sprintf("forbidden pattern %q in atom :%s", p, e.Name)}
		}
	case StringLit:
		if p, ok := forbiddenPatternIn(e.Val); ok {
			return &SafetyViolationError{Reason: fmt.Sprintf("forbidden pattern %q in string", p)}
		}
		if len(e.Val) > v.MaxStringLen {
			return &SafetyViolationError{Reason: fmt.Sprintf("string longer than %d bytes", v.MaxStringLen)}
		}
	case ListExpr:
		return v.validateElems(e.Elems, depth)
	case TupleExpr:
		return v.validateElems(e.Elems, depth)
	case MapExpr:
		if len(e.Pairs) > v.MaxCollectionSize {
			return &SafetyViolationError{Reason: fmt.Sprintf("map larger than %d entries", v.MaxCollectionSize)}
		}
		for _, p := range e.Pairs {
			if err := v.validate(p.Key, depth+1); err != nil {
				return err
			}
			if err := v.validate(p.Val, depth+1); err != nil {
				return err
			}
		}
	case BinaryExpr:
		if err := v.validate(e.L, depth+1); err != nil {
			return err
		}
		return v.validate(e.R, depth+1)
	case UnaryExpr:
		return v.validate(e.Operand, depth+1)
	case CallExpr:
		if err := v.validateCall(e); err != nil {
			return err
		}
		for _, a := range e.Args {
			if err := v.validate(a, depth+1); err != nil {
				return err
			}
		}
	case PipeExpr:
		if err := v.validate(e.L, depth+1); err != nil {
			return err
		}
		// The right side of a pipe gains the piped argument.
		if call, ok := e.R.(CallExpr); ok {
			shifted := CallExpr{Module: call.Module, Func: call.Func, Args: append([]Expr{NilLit{}}, call.Args...)}
			if err := v.validateCall(shifted); err != nil {
				return err
			}
			for _, a := range call.Args {
				if err := v.validate(a, depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		return v.validate(e.R, depth+1)
	case MatchExpr:
		if err := v.validate(e.Pattern, depth+1); err != nil {
			return err
		}
		return v.validate(e.Value, depth+1)
	case CaseExpr:
		if err := v.validate(e.Subject, depth+1); err != nil {
			return err
		}
		for _, cl := range e.Clauses {
			if err := v.validate(cl.Pattern, depth+1); err != nil {
				return err
			}
			if cl.Guard != nil {
				if err := v.validate(cl.Guard, depth+1); err != nil {
					return err
				}
			}
			if err := v.validate(cl.Body, depth+1); err != nil {
				return err
			}
		}
	case IfExpr:
		if err := v.validate(e.Cond, depth+1); err != nil {
			return err
		}
		if err := v.validate(e.Then, depth+1); err != nil {
			return err
		}
		if e.Else != nil {
			return v.validate(e.Else, depth+1)
		}
	case BlockExpr:
		for _, el := range e.Exprs {
			if err := v.validate(el, depth+1); err != nil {
				return err
			}
		}
	case AccessExpr:
		if err := v.validate(e.Subject, depth+1); err != nil {
			return err
		}
		return v.validate(e.Key, depth+1)
	}
	return nil
}

func (v *Validator) validateElems(elems []Expr, depth int) error {
	if len(elems) > v.MaxCollectionSize {
		return &SafetyViolationError{Reason: fmt.Sprintf("collection larger than %d elements", v.MaxCollectionSize)}
	}
	for _, el := range elems {
		if err := v.validate(el, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateCall(e CallExpr) error {
	if e.Module != "" {
		if deniedModules[e.Module] {
			return &SafetyViolationError{Reason: fmt.Sprintf("module %s is not allowed", e.Module)}
		}
		arity, ok := allowedModuleCalls[e.Module+"."+e.Func]
		if !ok {
			return &SafetyViolationError{Reason: fmt.Sprintf("call to %s.%s is not allowed", e.Module, e.Func)}
		}
		if len(e.Args) != arity {
			return &SafetyViolationError{Reason: fmt.Sprintf("%s.%s takes %d arguments, got %d", e.Module, e.Func, arity, len(e.Args))}
		}
		return nil
	}
	if deniedCalls[e.Func] {
		return &SafetyViolationError{Reason: fmt.Sprintf("call to %s is not allowed", e.Func)}
	}
	arity, ok := allowedCalls[e.Func]
	if !ok {
		return &SafetyViolationError{Reason: fmt.Sprintf("call to unknown function %s", e.Func)}
	}
	if len(e.Args) != arity {
		return &SafetyViolationError{Reason: fmt.Sprintf("%s takes %d arguments, got %d", e.Func, arity, len(e.Args))}
	}
	return nil
}

// IsDeterministic reports whether e always yields the same value for the
// same bindings. The analysis is conservative: time-dependent calls and all
// case expressions report false.
func IsDeterministic(e Expr) bool {
	switch e := e.(type) {
	case CallExpr:
		if e.Module == "DateTime" && e.Func == "utc_now" {
			return false
		}
		if e.Module == "" {
			if _, ok := allowedCalls[e.Func]; !ok {
				return false
			}
		} else if _, ok := allowedModuleCalls[e.Module+"."+e.Func]; !ok {
			return false
		}
		for _, a := range e.Args {
			if !IsDeterministic(a) {
				return false
			}
		}
		return true
	case CaseExpr:
		return false
	case ListExpr:
		return allDeterministic(e.Elems)
	case TupleExpr:
		return allDeterministic(e.Elems)
	case MapExpr:
		for _, p := range e.Pairs {
			if !IsDeterministic(p.Key) || !IsDeterministic(p.Val) {
				return false
			}
		}
		return true
	case BinaryExpr:
		return IsDeterministic(e.L) && IsDeterministic(e.R)
	case UnaryExpr:
		return IsDeterministic(e.Operand)
	case PipeExpr:
		return IsDeterministic(e.L) && IsDeterministic(e.R)
	case MatchExpr:
		return IsDeterministic(e.Pattern) && IsDeterministic(e.Value)
	case IfExpr:
		if e.Else != nil && !IsDeterministic(e.Else) {
			return false
		}
		return IsDeterministic(e.Cond) && IsDeterministic(e.Then)
	case BlockExpr:
		return allDeterministic(e.Exprs)
	case AccessExpr:
		return IsDeterministic(e.Subject) && IsDeterministic(e.Key)
	}
	return true
}

func allDeterministic(elems []Expr) bool {
	for _, el := range elems {
		if !IsDeterministic(el) {
			return false
		}
	}
	return true
}

// ComplexityScore estimates how much work evaluating e takes. The score
// decides whether an expression is worth caching.
func ComplexityScore(e Expr) int {
	switch e := e.(type) {
	case ListExpr:
		return 1 + sumComplexity(e.Elems)
	case TupleExpr:
		return 1 + sumComplexity(e.Elems)
	case MapExpr:
		n := 1
		for _, p := range e.Pairs {
			n += ComplexityScore(p.Key) + ComplexityScore(p.Val)
		}
		return n
	case BinaryExpr:
		return 2 + ComplexityScore(e.L) + ComplexityScore(e.R)
	case UnaryExpr:
		return 2 + ComplexityScore(e.Operand)
	case CallExpr:
		return 5 + sumComplexity(e.Args)
	case PipeExpr:
		return 3 + ComplexityScore(e.L) + ComplexityScore(e.R)
	case MatchExpr:
		return 4 + ComplexityScore(e.Pattern) + ComplexityScore(e.Value)
	case CaseExpr:
		n := 10 + ComplexityScore(e.Subject)
		for _, cl := range e.Clauses {
			n += ComplexityScore(cl.Pattern) + ComplexityScore(cl.Body)
			if cl.Guard != nil {
				n += ComplexityScore(cl.Guard)
			}
		}
		return n
	case IfExpr:
		n := 5 + ComplexityScore(e.Cond) + ComplexityScore(e.Then)
		if e.Else != nil {
			n += ComplexityScore(e.Else)
		}
		return n
	case BlockExpr:
		return 2 + sumComplexity(e.Exprs)
	case AccessExpr:
		return 3 + ComplexityScore(e.Subject) + ComplexityScore(e.Key)
	}
	return 1
}

func sumComplexity(elems []Expr) int {
	n := 0
	for _, el := range elems {
		n += ComplexityScore(el)
	}
	return n
}
