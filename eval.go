package ellex

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gitlab.com/variadico/lctime"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// An EvalContext holds the bindings and depth budget for MiniElixir
// evaluation. Booleans surface as the strings "true" and "false"; nil and
// "false" are the only falsy values.
type EvalContext struct {
	// Bindings are the variables visible to the expression.
	Bindings map[string]Value
	// MaxDepth bounds evaluation nesting.
	MaxDepth int

	depth int
}

// NewEvalContext returns an empty context with the standard depth budget.
func NewEvalContext() *EvalContext {
	return &EvalContext{Bindings: map[string]Value{}, MaxDepth: 50}
}

// Bind sets a variable in the context.
func (ctx *EvalContext) Bind(name string, v Value) {
	ctx.Bindings[name] = v
}

// Eval evaluates a MiniElixir expression. The caller is expected to have
// validated e first; Eval enforces only the depth budget itself.
func Eval(e Expr, ctx *EvalContext) (Value, error) {
	ctx.depth++
	defer func() { ctx.depth-- }()
	if ctx.depth > ctx.MaxDepth {
		return nil, &SafetyViolationError{Reason: "evaluation nested too deeply"}
	}
	switch e := e.(type) {
	case AtomLit:
		return String(e.Name), nil
	case StringLit:
		return String(e.Val), nil
	case IntLit:
		return Number(e.Val), nil
	case FloatLit:
		return Number(e.Val), nil
	case BoolLit:
		return boolValue(e.Val), nil
	case NilLit:
		return Nil{}, nil
	case ListExpr:
		return evalElems(e.Elems, ctx)
	case TupleExpr:
		return evalElems(e.Elems, ctx)
	case MapExpr:
		out := make(List, 0, len(e.Pairs))
		for _, p := range e.Pairs {
			k, err := Eval(p.Key, ctx)
			if err != nil {
				return nil, err
			}
			v, err := Eval(p.Val, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, List{k, v})
		}
		return out, nil
	case VarExpr:
		v, ok := ctx.Bindings[e.Name]
		if !ok {
			return nil, logicErrorf("undefined variable %q", e.Name)
		}
		return v, nil
	case BinaryExpr:
		return evalBinary(e, ctx)
	case UnaryExpr:
		return evalUnary(e, ctx)
	case CallExpr:
		return evalCall(e, ctx)
	case PipeExpr:
		return evalPipe(e, ctx)
	case MatchExpr:
		v, err := Eval(e.Value, ctx)
		if err != nil {
			return nil, err
		}
		if !matchPattern(e.Pattern, v, ctx.Bindings) {
			return nil, logicErrorf("no match of value %s", v)
		}
		return v, nil
	case CaseExpr:
		return evalCase(e, ctx)
	case IfExpr:
		c, err := Eval(e.Cond, ctx)
		if err != nil {
			return nil, err
		}
		if truthy(c) {
			return Eval(e.Then, ctx)
		}
		if e.Else != nil {
			return Eval(e.Else, ctx)
		}
		return Nil{}, nil
	case BlockExpr:
		var last Value = Nil{}
		for _, el := range e.Exprs {
			v, err := Eval(el, ctx)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil
	case AccessExpr:
		return evalAccess(e, ctx)
	}
	return nil, logicErrorf("cannot evaluate %T", e)
}

func evalElems(elems []Expr, ctx *EvalContext) (Value, error) {
	out := make(List, 0, len(elems))
	for _, el := range elems {
		v, err := Eval(el, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func boolValue(b bool) Value {
	if b {
		return String("true")
	}
	return String("false")
}

// truthy reports whether v counts as true: everything except nil and
// "false".
func truthy(v Value) bool {
	switch v := v.(type) {
	case Nil:
		return false
	case String:
		return v != "false"
	}
	return true
}

func evalBinary(e BinaryExpr, ctx *EvalContext) (Value, error) {
	// and/or short-circuit and yield the deciding branch's truth.
	if e.Op == OpAnd || e.Op == OpOr {
		l, err := Eval(e.L, ctx)
		if err != nil {
			return nil, err
		}
		if e.Op == OpAnd && !truthy(l) {
			return boolValue(false), nil
		}
		if e.Op == OpOr && truthy(l) {
			return boolValue(true), nil
		}
		r, err := Eval(e.R, ctx)
		if err != nil {
			return nil, err
		}
		return boolValue(truthy(r)), nil
	}
	l, err := Eval(e.L, ctx)
	if err != nil {
		return nil, err
	}
	r, err := Eval(e.R, ctx)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpRem:
		return evalArith(e.Op, l, r)
	case OpEq:
		return boolValue(Equal(l, r)), nil
	case OpNeq:
		return boolValue(!Equal(l, r)), nil
	case OpStrictEq:
		return boolValue(TypeOf(l) == TypeOf(r) && Equal(l, r)), nil
	case OpStrictNeq:
		return boolValue(TypeOf(l) != TypeOf(r) || !Equal(l, r)), nil
	case OpLt, OpGt, OpLe, OpGe:
		return evalCompare(e.Op, l, r)
	case OpConcat:
		ls, lok := l.(String)
		rs, rok := r.(String)
		if !lok || !rok {
			return nil, logicErrorf("<> needs two strings")
		}
		return ls + rs, nil
	case OpCons:
		ll, lok := l.(List)
		rl, rok := r.(List)
		if !lok || !rok {
			return nil, logicErrorf("++ needs two lists")
		}
		out := make(List, 0, len(ll)+len(rl))
		out = append(out, ll...)
		out = append(out, rl...)
		return out, nil
	}
	return nil, logicErrorf("unknown operator %v", e.Op)
}

func evalArith(op BinOp, l, r Value) (Value, error) {
	ln, lok := l.(Number)
	rn, rok := r.(Number)
	if !lok || !rok {
		return nil, logicErrorf("%v needs two numbers", op)
	}
	switch op {
	case OpAdd:
		return ln + rn, nil
	case OpSub:
		return ln - rn, nil
	case OpMul:
		return ln * rn, nil
	case OpDiv:
		if rn == 0 {
			return nil, logicErrorf("division by zero")
		}
		return ln / rn, nil
	case OpRem:
		if rn == 0 {
			return nil, logicErrorf("division by zero")
		}
		return Number(math.Mod(float64(ln), float64(rn))), nil
	}
	return nil, logicErrorf("unknown operator %v", op)
}

func evalCompare(op BinOp, l, r Value) (Value, error) {
	var cmp int
	switch l := l.(type) {
	case Number:
		r, ok := r.(Number)
		if !ok {
			return nil, logicErrorf("%v needs matching types", op)
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		}
	case String:
		r, ok := r.(String)
		if !ok {
			return nil, logicErrorf("%v needs matching types", op)
		}
		cmp = strings.Compare(string(l), string(r))
	default:
		return nil, logicErrorf("%v cannot compare %v values", op, TypeOf(l))
	}
	switch op {
	case OpLt:
		return boolValue(cmp < 0), nil
	case OpGt:
		return boolValue(cmp > 0), nil
	case OpLe:
		return boolValue(cmp <= 0), nil
	case OpGe:
		return boolValue(cmp >= 0), nil
	}
	return nil, logicErrorf("unknown operator %v", op)
}

func evalUnary(e UnaryExpr, ctx *EvalContext) (Value, error) {
	v, err := Eval(e.Operand, ctx)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case OpNeg:
		n, ok := v.(Number)
		if !ok {
			return nil, logicErrorf("- needs a number")
		}
		return -n, nil
	case OpNot:
		return boolValue(!truthy(v)), nil
	}
	return nil, logicErrorf("unknown operator %v", e.Op)
}

func evalPipe(e PipeExpr, ctx *EvalContext) (Value, error) {
	l, err := Eval(e.L, ctx)
	if err != nil {
		return nil, err
	}
	call, ok := e.R.(CallExpr)
	if !ok {
		return nil, logicErrorf("|> needs a function call on the right")
	}
	args := make([]Value, 0, len(call.Args)+1)
	args = append(args, l)
	for _, a := range call.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return applyBuiltin(call.Module, call.Func, args)
}

func evalCall(e CallExpr, ctx *EvalContext) (Value, error) {
	args := make([]Value, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return applyBuiltin(e.Module, e.Func, args)
}

func evalCase(e CaseExpr, ctx *EvalContext) (Value, error) {
	subj, err := Eval(e.Subject, ctx)
	if err != nil {
		return nil, err
	}
	for _, cl := range e.Clauses {
		binds := map[string]Value{}
		for k, v := range ctx.Bindings {
			binds[k] = v
		}
		if !matchPattern(cl.Pattern, subj, binds) {
			continue
		}
		inner := &EvalContext{Bindings: binds, MaxDepth: ctx.MaxDepth, depth: ctx.depth}
		if cl.Guard != nil {
			g, err := Eval(cl.Guard, inner)
			if err != nil {
				return nil, err
			}
			if !truthy(g) {
				continue
			}
		}
		return Eval(cl.Body, inner)
	}
	return nil, logicErrorf("no case clause matching %s", subj)
}

func evalAccess(e AccessExpr, ctx *EvalContext) (Value, error) {
	subj, err := Eval(e.Subject, ctx)
	if err != nil {
		return nil, err
	}
	key, err := Eval(e.Key, ctx)
	if err != nil {
		return nil, err
	}
	l, ok := subj.(List)
	if !ok {
		return nil, logicErrorf("cannot index a %v", TypeOf(subj))
	}
	// Number keys index; other keys treat the list as key-value pairs.
	if n, ok := key.(Number); ok {
		i := int(n)
		if i < 0 || i >= len(l) {
			return Nil{}, nil
		}
		return l[i], nil
	}
	return mapGet(l, key), nil
}

// matchPattern matches v against a pattern, binding variables into binds.
// Patterns are variables, literals, and list or tuple shapes.
func matchPattern(p Expr, v Value, binds map[string]Value) bool {
	switch p := p.(type) {
	case VarExpr:
		if p.Name != "_" {
			binds[p.Name] = v
		}
		return true
	case AtomLit:
		s, ok := v.(String)
		return ok && string(s) == p.Name
	case StringLit:
		s, ok := v.(String)
		return ok && string(s) == p.Val
	case IntLit:
		n, ok := v.(Number)
		return ok && n == Number(p.Val)
	case FloatLit:
		n, ok := v.(Number)
		return ok && n == Number(p.Val)
	case BoolLit:
		return Equal(boolValue(p.Val), v)
	case NilLit:
		_, ok := v.(Nil)
		return ok
	case ListExpr:
		l, ok := v.(List)
		if !ok || len(l) != len(p.Elems) {
			return false
		}
		for i, el := range p.Elems {
			if !matchPattern(el, l[i], binds) {
				return false
			}
		}
		return true
	case TupleExpr:
		l, ok := v.(List)
		if !ok || len(l) != len(p.Elems) {
			return false
		}
		for i, el := range p.Elems {
			if !matchPattern(el, l[i], binds) {
				return false
			}
		}
		return true
	}
	return false
}

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

func applyBuiltin(module, fn string, args []Value) (Value, error) {
	if module != "" {
		if need, ok := allowedModuleCalls[module+"."+fn]; ok && len(args) != need {
			return nil, logicErrorf("%s.%s takes %d arguments, got %d", module, fn, need, len(args))
		}
		return applyModuleBuiltin(module, fn, args)
	}
	if need, ok := allowedCalls[fn]; ok && len(args) != need {
		return nil, logicErrorf("%s takes %d arguments, got %d", fn, need, len(args))
	}
	switch fn {
	case "length":
		l, ok := args[0].(List)
		if !ok {
			return nil, logicErrorf("length needs a list")
		}
		return Number(len(l)), nil
	case "hd":
		l, ok := args[0].(List)
		if !ok || len(l) == 0 {
			return nil, logicErrorf("hd needs a non-empty list")
		}
		return l[0], nil
	case "tl":
		l, ok := args[0].(List)
		if !ok || len(l) == 0 {
			return nil, logicErrorf("tl needs a non-empty list")
		}
		return append(List{}, l[1:]...), nil
	case "to_string":
		return String(args[0].String()), nil
	case "is_list":
		_, ok := args[0].(List)
		return boolValue(ok), nil
	case "is_atom":
		s, ok := args[0].(String)
		return boolValue(ok && s == "true" || ok && s == "false" || Equal(args[0], Nil{})), nil
	case "is_number":
		_, ok := args[0].(Number)
		return boolValue(ok), nil
	case "is_binary":
		_, ok := args[0].(String)
		return boolValue(ok), nil
	case "elem":
		l, ok := args[0].(List)
		n, nok := args[1].(Number)
		if !ok || !nok {
			return nil, logicErrorf("elem needs a tuple and an index")
		}
		i := int(n)
		if i < 0 || i >= len(l) {
			return nil, logicErrorf("elem index %d out of range", i)
		}
		return l[i], nil
	case "tuple_size":
		l, ok := args[0].(List)
		if !ok {
			return nil, logicErrorf("tuple_size needs a tuple")
		}
		return Number(len(l)), nil
	case "rem":
		return evalArith(OpRem, args[0], args[1])
	}
	return nil, logicErrorf("unknown function %s", fn)
}

func applyModuleBuiltin(module, fn string, args []Value) (Value, error) {
	switch module {
	case "String":
		return applyStringBuiltin(fn, args)
	case "Enum":
		return applyEnumBuiltin(fn, args)
	case "Map":
		return applyMapBuiltin(fn, args)
	case "DateTime":
		return applyDateTimeBuiltin(fn, args)
	}
	return nil, logicErrorf("unknown module %s", module)
}

func applyStringBuiltin(fn string, args []Value) (Value, error) {
	s, ok := args[0].(String)
	if !ok {
		return nil, logicErrorf("String.%s needs a string", fn)
	}
	switch fn {
	case "upcase":
		return String(upperCaser.String(string(s))), nil
	case "downcase":
		return String(lowerCaser.String(string(s))), nil
	case "capitalize":
		low := lowerCaser.String(string(s))
		r, size := utf8.DecodeRuneInString(low)
		if size == 0 {
			return String(""), nil
		}
		return String(string(unicode.ToUpper(r)) + low[size:]), nil
	case "trim":
		return String(strings.TrimSpace(string(s))), nil
	case "contains?":
		sub, ok := args[1].(String)
		if !ok {
			return nil, logicErrorf("String.contains? needs a string to search for")
		}
		return boolValue(strings.Contains(string(s), string(sub))), nil
	case "split":
		sep, ok := args[1].(String)
		if !ok {
			return nil, logicErrorf("String.split needs a string separator")
		}
		parts := strings.Split(string(s), string(sep))
		out := make(List, len(parts))
		for i, p := range parts {
			out[i] = String(p)
		}
		return out, nil
	}
	return nil, logicErrorf("unknown function String.%s", fn)
}

func applyEnumBuiltin(fn string, args []Value) (Value, error) {
	l, ok := args[0].(List)
	if !ok {
		return nil, logicErrorf("Enum.%s needs a list", fn)
	}
	switch fn {
	case "count":
		return Number(len(l)), nil
	case "at":
		n, ok := args[1].(Number)
		if !ok {
			return nil, logicErrorf("Enum.at needs a numeric index")
		}
		i := int(n)
		if i < 0 || i >= len(l) {
			return Nil{}, nil
		}
		return l[i], nil
	case "member?":
		for _, v := range l {
			if Equal(v, args[1]) {
				return boolValue(true), nil
			}
		}
		return boolValue(false), nil
	case "empty?":
		return boolValue(len(l) == 0), nil
	case "reverse":
		out := make(List, len(l))
		for i, v := range l {
			out[len(l)-1-i] = v
		}
		return out, nil
	case "sum":
		var sum Number
		for _, v := range l {
			n, ok := v.(Number)
			if !ok {
				return nil, logicErrorf("Enum.sum needs a list of numbers")
			}
			sum += n
		}
		return sum, nil
	}
	return nil, logicErrorf("unknown function Enum.%s", fn)
}

// Maps are lists of [key, value] pairs, matching how map literals evaluate.
func applyMapBuiltin(fn string, args []Value) (Value, error) {
	m, ok := args[0].(List)
	if !ok {
		return nil, logicErrorf("Map.%s needs a map", fn)
	}
	switch fn {
	case "get":
		return mapGet(m, args[1]), nil
	case "put":
		out := make(List, 0, len(m)+1)
		replaced := false
		for _, p := range m {
			pair, ok := p.(List)
			if ok && len(pair) == 2 && Equal(pair[0], args[1]) {
				out = append(out, List{args[1], args[2]})
				replaced = true
				continue
			}
			out = append(out, p)
		}
		if !replaced {
			out = append(out, List{args[1], args[2]})
		}
		return out, nil
	case "has_key?":
		for _, p := range m {
			pair, ok := p.(List)
			if ok && len(pair) == 2 && Equal(pair[0], args[1]) {
				return boolValue(true), nil
			}
		}
		return boolValue(false), nil
	case "keys":
		out := make(List, 0, len(m))
		for _, p := range m {
			if pair, ok := p.(List); ok && len(pair) == 2 {
				out = append(out, pair[0])
			}
		}
		return out, nil
	case "values":
		out := make(List, 0, len(m))
		for _, p := range m {
			if pair, ok := p.(List); ok && len(pair) == 2 {
				out = append(out, pair[1])
			}
		}
		return out, nil
	}
	return nil, logicErrorf("unknown function Map.%s", fn)
}

func mapGet(m List, key Value) Value {
	for _, p := range m {
		if pair, ok := p.(List); ok && len(pair) == 2 && Equal(pair[0], key) {
			return pair[1]
		}
	}
	return Nil{}
}

func applyDateTimeBuiltin(fn string, args []Value) (Value, error) {
	switch fn {
	case "utc_now":
		return String(time.Now().UTC().Format(time.RFC3339)), nil
	case "to_string":
		s, ok := args[0].(String)
		if !ok {
			return nil, logicErrorf("DateTime.to_string needs a datetime string")
		}
		t, err := time.Parse(time.RFC3339, string(s))
		if err != nil {
			return s, nil
		}
		return String(lctime.Strftime("%Y-%m-%d %H:%M:%S", t)), nil
	}
	return nil, logicErrorf("unknown function DateTime.%s", fn)
}
