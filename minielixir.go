package ellex

import (
	"fmt"
	"strconv"
	"strings"
)

// An Expr is a MiniElixir expression. MiniElixir is the sandboxed expression
// language hosts embed for computed values; it is deliberately small, and
// every construct is one of the types below.
type Expr interface {
	isExpr()
}

// AtomLit is an atom, written :name.
type AtomLit struct{ Name string }

// StringLit is a string literal.
type StringLit struct{ Val string }

// IntLit is an integer literal.
type IntLit struct{ Val int64 }

// FloatLit is a float literal.
type FloatLit struct{ Val float64 }

// BoolLit is true or false.
type BoolLit struct{ Val bool }

// NilLit is nil.
type NilLit struct{}

// ListExpr is [a, b, c].
type ListExpr struct{ Elems []Expr }

// TupleExpr is {a, b, c}.
type TupleExpr struct{ Elems []Expr }

// MapPair is one key: value entry of a map.
type MapPair struct{ Key, Val Expr }

// MapExpr is %{k => v, ...}.
type MapExpr struct{ Pairs []MapPair }

// VarExpr reads a bound variable.
type VarExpr struct{ Name string }

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	Op   BinOp
	L, R Expr
}

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	Op      UnOp
	Operand Expr
}

// CallExpr calls a function, optionally module-qualified as in
// String.upcase(x).
type CallExpr struct {
	Module string
	Func   string
	Args   []Expr
}

// PipeExpr is l |> r, feeding l as r's first argument.
type PipeExpr struct{ L, R Expr }

// MatchExpr is pattern = value.
type MatchExpr struct{ Pattern, Value Expr }

// CaseClause is one pattern -> body arm of a case, with an optional guard.
type CaseClause struct {
	Pattern Expr
	Guard   Expr
	Body    Expr
}

// CaseExpr is case subject do clauses end.
type CaseExpr struct {
	Subject Expr
	Clauses []CaseClause
}

// IfExpr is if cond do then else other end. Else may be nil.
type IfExpr struct{ Cond, Then, Else Expr }

// BlockExpr is a sequence of expressions; its value is the last one's.
type BlockExpr struct{ Exprs []Expr }

// AccessExpr is subject[key].
type AccessExpr struct{ Subject, Key Expr }

func (AtomLit) isExpr()    {}
func (StringLit) isExpr()  {}
func (IntLit) isExpr()     {}
func (FloatLit) isExpr()   {}
func (BoolLit) isExpr()    {}
func (NilLit) isExpr()     {}
func (ListExpr) isExpr()   {}
func (TupleExpr) isExpr()  {}
func (MapExpr) isExpr()    {}
func (VarExpr) isExpr()    {}
func (BinaryExpr) isExpr() {}
func (UnaryExpr) isExpr()  {}
func (CallExpr) isExpr()   {}
func (PipeExpr) isExpr()   {}
func (MatchExpr) isExpr()  {}
func (CaseExpr) isExpr()   {}
func (IfExpr) isExpr()     {}
func (BlockExpr) isExpr()  {}
func (AccessExpr) isExpr() {}

// BinOp is a binary operator.
type BinOp int

const (
	OpAdd BinOp = iota // +
	OpSub              // -
	OpMul              // *
	OpDiv              // /
	OpRem              // rem
	OpEq               // ==
	OpNeq              // !=
	OpStrictEq         // ===
	OpStrictNeq        // !==
	OpLt               // <
	OpGt               // >
	OpLe               // <=
	OpGe               // >=
	OpAnd              // and, &&
	OpOr               // or, ||
	OpConcat           // <>
	OpCons             // ++
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpRem:
		return "rem"
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpStrictEq:
		return "==="
	case OpStrictNeq:
		return "!=="
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpConcat:
		return "<>"
	case OpCons:
		return "++"
	}
	return "?"
}

// UnOp is a unary operator.
type UnOp int

const (
	OpNeg UnOp = iota // -
	OpNot             // not, !
)

func (op UnOp) String() string {
	if op == OpNeg {
		return "-"
	}
	return "not"
}

// FreeVars returns the distinct variable names e reads, in first-appearance
// order. Match and case patterns bind rather than read, so their names are
// excluded.
func FreeVars(e Expr) []string {
	var names []string
	seen := map[string]bool{}
	var rec func(e Expr, bound map[string]bool)
	add := func(name string, bound map[string]bool) {
		if !bound[name] && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	rec = func(e Expr, bound map[string]bool) {
		switch e := e.(type) {
		case VarExpr:
			add(e.Name, bound)
		case ListExpr:
			for _, el := range e.Elems {
				rec(el, bound)
			}
		case TupleExpr:
			for _, el := range e.Elems {
				rec(el, bound)
			}
		case MapExpr:
			for _, p := range e.Pairs {
				rec(p.Key, bound)
				rec(p.Val, bound)
			}
		case BinaryExpr:
			rec(e.L, bound)
			rec(e.R, bound)
		case UnaryExpr:
			rec(e.Operand, bound)
		case CallExpr:
			for _, a := range e.Args {
				rec(a, bound)
			}
		case PipeExpr:
			rec(e.L, bound)
			rec(e.R, bound)
		case MatchExpr:
			rec(e.Value, bound)
			bindPattern(e.Pattern, bound)
		case CaseExpr:
			rec(e.Subject, bound)
			for _, cl := range e.Clauses {
				inner := map[string]bool{}
				for k := range bound {
					inner[k] = true
				}
				bindPattern(cl.Pattern, inner)
				if cl.Guard != nil {
					rec(cl.Guard, inner)
				}
				rec(cl.Body, inner)
			}
		case IfExpr:
			rec(e.Cond, bound)
			rec(e.Then, bound)
			if e.Else != nil {
				rec(e.Else, bound)
			}
		case BlockExpr:
			for _, el := range e.Exprs {
				rec(el, bound)
			}
		case AccessExpr:
			rec(e.Subject, bound)
			rec(e.Key, bound)
		}
	}
	rec(e, map[string]bool{})
	return names
}

func bindPattern(p Expr, bound map[string]bool) {
	switch p := p.(type) {
	case VarExpr:
		bound[p.Name] = true
	case ListExpr:
		for _, el := range p.Elems {
			bindPattern(el, bound)
		}
	case TupleExpr:
		for _, el := range p.Elems {
			bindPattern(el, bound)
		}
	}
}

// exprKey renders e in a canonical form, so structurally identical
// expressions share one result-cache slot.
func exprKey(e Expr) string {
	var b strings.Builder
	writeExprKey(&b, e)
	return b.String()
}

func writeExprKey(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case AtomLit:
		b.WriteByte(':')
		b.WriteString(e.Name)
	case StringLit:
		b.WriteString(strconv.Quote(e.Val))
	case IntLit:
		b.WriteString(strconv.FormatInt(e.Val, 10))
	case FloatLit:
		b.WriteString(strconv.FormatFloat(e.Val, 'g', -1, 64))
	case BoolLit:
		b.WriteString(strconv.FormatBool(e.Val))
	case NilLit:
		b.WriteString("nil")
	case ListExpr:
		writeExprList(b, "[", e.Elems, "]")
	case TupleExpr:
		writeExprList(b, "{", e.Elems, "}")
	case MapExpr:
		b.WriteString("%{")
		for i, p := range e.Pairs {
			if i > 0 {
				b.WriteByte(',')
			}
			writeExprKey(b, p.Key)
			b.WriteString("=>")
			writeExprKey(b, p.Val)
		}
		b.WriteByte('}')
	case VarExpr:
		b.WriteString(e.Name)
	case BinaryExpr:
		b.WriteByte('(')
		writeExprKey(b, e.L)
		b.WriteString(e.Op.String())
		writeExprKey(b, e.R)
		b.WriteByte(')')
	case UnaryExpr:
		b.WriteByte('(')
		b.WriteString(e.Op.String())
		writeExprKey(b, e.Operand)
		b.WriteByte(')')
	case CallExpr:
		if e.Module != "" {
			b.WriteString(e.Module)
			b.WriteByte('.')
		}
		b.WriteString(e.Func)
		writeExprList(b, "(", e.Args, ")")
	case PipeExpr:
		b.WriteByte('(')
		writeExprKey(b, e.L)
		b.WriteString("|>")
		writeExprKey(b, e.R)
		b.WriteByte(')')
	case MatchExpr:
		b.WriteByte('(')
		writeExprKey(b, e.Pattern)
		b.WriteByte('=')
		writeExprKey(b, e.Value)
		b.WriteByte(')')
	case CaseExpr:
		b.WriteString("case(")
		writeExprKey(b, e.Subject)
		for _, cl := range e.Clauses {
			b.WriteByte(';')
			writeExprKey(b, cl.Pattern)
			if cl.Guard != nil {
				b.WriteString("when")
				writeExprKey(b, cl.Guard)
			}
			b.WriteString("->")
			writeExprKey(b, cl.Body)
		}
		b.WriteByte(')')
	case IfExpr:
		b.WriteString("if(")
		writeExprKey(b, e.Cond)
		b.WriteByte(';')
		writeExprKey(b, e.Then)
		if e.Else != nil {
			b.WriteByte(';')
			writeExprKey(b, e.Else)
		}
		b.WriteByte(')')
	case BlockExpr:
		writeExprList(b, "do(", e.Exprs, ")")
	case AccessExpr:
		writeExprKey(b, e.Subject)
		b.WriteByte('[')
		writeExprKey(b, e.Key)
		b.WriteByte(']')
	default:
		fmt.Fprintf(b, "%T", e)
	}
}

func writeExprList(b *strings.Builder, open string, elems []Expr, close string) {
	b.WriteString(open)
	for i, el := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		writeExprKey(b, el)
	}
	b.WriteString(close)
}
