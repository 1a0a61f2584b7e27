package ellex

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// ParseMiniElixir parses a MiniElixir source string into an expression.
// Multiple top-level expressions separated by newlines or semicolons become
// a block.
func ParseMiniElixir(src string) (Expr, error) {
	tokens := make(chan token, 16)
	go lexMiniElixir(bufio.NewReader(strings.NewReader(src)), tokens)
	// On a parse error the lexer may still be sending; drain it so it can
	// finish and close the channel.
	defer func() {
		for range tokens {
		}
	}()
	p := &parser{tokens: tokens}
	p.next()
	var exprs []Expr
	p.skipSemis()
	for p.ok {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if p.ok && p.tok.Kind != semiToken {
			return nil, p.errorf("unexpected %q", p.tok.Value)
		}
		p.skipSemis()
	}
	switch len(exprs) {
	case 0:
		return nil, &ParseError{Msg: "empty expression"}
	case 1:
		return exprs[0], nil
	}
	return BlockExpr{Exprs: exprs}, nil
}

// parser reads tokens with one-token lookahead. ok is false at end of input.
type parser struct {
	tokens <-chan token
	tok    token
	ok     bool
}

func (p *parser) next() {
	p.tok, p.ok = <-p.tokens
}

func (p *parser) skipSemis() {
	for p.ok && p.tok.Kind == semiToken {
		p.next()
	}
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	if p.tok.Err != nil {
		return &ParseError{Line: p.tok.Line, Col: p.tok.Col, Msg: p.tok.Err.Error()}
	}
	return &ParseError{Line: p.tok.Line, Col: p.tok.Col, Msg: fmt.Sprintf(format, args...)}
}

// isOp reports whether the current token is the given operator.
func (p *parser) isOp(op string) bool {
	return p.ok && p.tok.Kind == opToken && p.tok.Value == op
}

// isIdent reports whether the current token is the given keyword.
func (p *parser) isIdent(name string) bool {
	return p.ok && p.tok.Kind == identToken && p.tok.Value == name
}

// parseExpr parses at the lowest precedence: match, right-associative.
func (p *parser) parseExpr() (Expr, error) {
	l, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if p.isOp("=") {
		p.next()
		r, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return MatchExpr{Pattern: l, Value: r}, nil
	}
	return l, nil
}

func (p *parser) parsePipe() (Expr, error) {
	l, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.isOp("|>") {
		p.next()
		r, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		l = PipeExpr{L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") || p.isIdent("or") {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = BinaryExpr{Op: OpOr, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") || p.isIdent("and") {
		p.next()
		r, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		l = BinaryExpr{Op: OpAnd, L: l, R: r}
	}
	return l, nil
}

var compareOps = map[string]BinOp{
	"==": OpEq, "!=": OpNeq, "===": OpStrictEq, "!==": OpStrictNeq,
	"<": OpLt, ">": OpGt, "<=": OpLe, ">=": OpGe,
}

func (p *parser) parseCompare() (Expr, error) {
	l, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for p.ok && p.tok.Kind == opToken {
		op, found := compareOps[p.tok.Value]
		if !found {
			break
		}
		p.next()
		r, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		l = BinaryExpr{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseConcat() (Expr, error) {
	l, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	// <> and ++ associate to the right, like in Elixir.
	if p.isOp("<>") || p.isOp("++") {
		op := OpConcat
		if p.tok.Value == "++" {
			op = OpCons
		}
		p.next()
		r, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		return BinaryExpr{Op: op, L: l, R: r}, nil
	}
	return l, nil
}

func (p *parser) parseAdd() (Expr, error) {
	l, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := OpAdd
		if p.tok.Value == "-" {
			op = OpSub
		}
		p.next()
		r, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		l = BinaryExpr{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseMul() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := OpMul
		if p.tok.Value == "/" {
			op = OpDiv
		}
		p.next()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = BinaryExpr{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseUnary() (Expr, error) {
	switch {
	case p.isOp("-"):
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: OpNeg, Operand: e}, nil
	case p.isOp("!"), p.isIdent("not"):
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: OpNot, Operand: e}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary followed by any number of [key] accesses.
func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.ok && p.tok.Kind == openToken && p.tok.Value == "[" {
		p.next()
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectClose("]"); err != nil {
			return nil, err
		}
		e = AccessExpr{Subject: e, Key: key}
	}
	return e, nil
}

func (p *parser) expectClose(close string) error {
	if !p.ok || p.tok.Kind != closeToken || p.tok.Value != close {
		return p.errorf("expected %q", close)
	}
	p.next()
	return nil
}

func (p *parser) parsePrimary() (Expr, error) {
	if !p.ok {
		return nil, &ParseError{Msg: "unexpected end of input"}
	}
	switch p.tok.Kind {
	case badToken:
		return nil, p.errorf("bad token")
	case atomToken:
		name := p.tok.Value
		p.next()
		return AtomLit{Name: name}, nil
	case stringToken:
		v := p.tok.Value
		p.next()
		return StringLit{Val: v}, nil
	case intToken:
		n, err := strconv.ParseInt(p.tok.Value, 10, 64)
		if err != nil {
			return nil, p.errorf("bad integer %q", p.tok.Value)
		}
		p.next()
		return IntLit{Val: n}, nil
	case floatToken:
		f, err := strconv.ParseFloat(p.tok.Value, 64)
		if err != nil {
			return nil, p.errorf("bad float %q", p.tok.Value)
		}
		p.next()
		return FloatLit{Val: f}, nil
	case openToken:
		return p.parseBracketed()
	case identToken:
		return p.parseIdentExpr()
	}
	return nil, p.errorf("unexpected %q", p.tok.Value)
}

func (p *parser) parseBracketed() (Expr, error) {
	switch p.tok.Value {
	case "(":
		p.next()
		p.skipSemis()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSemis()
		if err := p.expectClose(")"); err != nil {
			return nil, err
		}
		return e, nil
	case "[":
		p.next()
		elems, err := p.parseExprList("]")
		if err != nil {
			return nil, err
		}
		return ListExpr{Elems: elems}, nil
	case "{":
		p.next()
		elems, err := p.parseExprList("}")
		if err != nil {
			return nil, err
		}
		return TupleExpr{Elems: elems}, nil
	case "%{":
		p.next()
		return p.parseMap()
	}
	return nil, p.errorf("unexpected %q", p.tok.Value)
}

// parseExprList parses comma-separated expressions through the closing
// bracket.
func (p *parser) parseExprList(close string) ([]Expr, error) {
	var elems []Expr
	p.skipSemis()
	for p.ok && !(p.tok.Kind == closeToken && p.tok.Value == close) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		p.skipSemis()
		if p.ok && p.tok.Kind == commaToken {
			p.next()
			p.skipSemis()
		}
	}
	if err := p.expectClose(close); err != nil {
		return nil, err
	}
	return elems, nil
}

func (p *parser) parseMap() (Expr, error) {
	var pairs []MapPair
	p.skipSemis()
	for p.ok && !(p.tok.Kind == closeToken && p.tok.Value == "}") {
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.isOp("=>") {
			return nil, p.errorf("expected \"=>\" in map")
		}
		p.next()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, MapPair{Key: k, Val: v})
		p.skipSemis()
		if p.ok && p.tok.Kind == commaToken {
			p.next()
			p.skipSemis()
		}
	}
	if err := p.expectClose("}"); err != nil {
		return nil, err
	}
	return MapExpr{Pairs: pairs}, nil
}

func (p *parser) parseIdentExpr() (Expr, error) {
	name := p.tok.Value
	switch name {
	case "true":
		p.next()
		return BoolLit{Val: true}, nil
	case "false":
		p.next()
		return BoolLit{Val: false}, nil
	case "nil":
		p.next()
		return NilLit{}, nil
	case "if":
		return p.parseIf()
	case "case":
		return p.parseCase()
	case "do", "end", "else", "when":
		return nil, p.errorf("unexpected keyword %q", name)
	}
	p.next()
	// Module.function(args): modules are capitalized.
	if p.isOp(".") && isUpper(name) {
		p.next()
		if !p.ok || p.tok.Kind != identToken {
			return nil, p.errorf("expected function name after %q", name+".")
		}
		fn := p.tok.Value
		p.next()
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return CallExpr{Module: name, Func: fn, Args: args}, nil
	}
	if p.ok && p.tok.Kind == openToken && p.tok.Value == "(" {
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return CallExpr{Func: name, Args: args}, nil
	}
	return VarExpr{Name: name}, nil
}

func isUpper(s string) bool {
	return s != "" && 'A' <= s[0] && s[0] <= 'Z'
}

func (p *parser) parseCallArgs() ([]Expr, error) {
	if !p.ok || p.tok.Kind != openToken || p.tok.Value != "(" {
		return nil, nil
	}
	p.next()
	return p.parseExprList(")")
}

// parseIf parses if cond do exprs [else exprs] end.
func (p *parser) parseIf() (Expr, error) {
	p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.isIdent("do") {
		return nil, p.errorf("expected \"do\" after if condition")
	}
	p.next()
	then, err := p.parseBody("else", "end")
	if err != nil {
		return nil, err
	}
	var els Expr
	if p.isIdent("else") {
		p.next()
		els, err = p.parseBody("end")
		if err != nil {
			return nil, err
		}
	}
	if !p.isIdent("end") {
		return nil, p.errorf("expected \"end\"")
	}
	p.next()
	return IfExpr{Cond: cond, Then: then, Else: els}, nil
}

// parseBody parses expressions until one of the stop keywords, collapsing a
// single expression out of its block.
func (p *parser) parseBody(stops ...string) (Expr, error) {
	var exprs []Expr
	p.skipSemis()
	for {
		if !p.ok {
			return nil, &ParseError{Msg: "unexpected end of input"}
		}
		stopped := false
		for _, s := range stops {
			if p.isIdent(s) {
				stopped = true
			}
		}
		if stopped {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		p.skipSemis()
	}
	switch len(exprs) {
	case 0:
		return NilLit{}, nil
	case 1:
		return exprs[0], nil
	}
	return BlockExpr{Exprs: exprs}, nil
}

// parseCase parses case subject do pattern [when guard] -> expr ... end.
// Each clause body is a single expression; parenthesize for more.
func (p *parser) parseCase() (Expr, error) {
	p.next()
	subj, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.isIdent("do") {
		return nil, p.errorf("expected \"do\" after case subject")
	}
	p.next()
	var clauses []CaseClause
	p.skipSemis()
	for p.ok && !p.isIdent("end") {
		pat, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		var guard Expr
		if p.isIdent("when") {
			p.next()
			guard, err = p.parsePipe()
			if err != nil {
				return nil, err
			}
		}
		if !p.isOp("->") {
			return nil, p.errorf("expected \"->\" in case clause")
		}
		p.next()
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, CaseClause{Pattern: pat, Guard: guard, Body: body})
		p.skipSemis()
	}
	if !p.isIdent("end") {
		return nil, p.errorf("expected \"end\"")
	}
	p.next()
	if len(clauses) == 0 {
		return nil, p.errorf("case with no clauses")
	}
	return CaseExpr{Subject: subj, Clauses: clauses}, nil
}
