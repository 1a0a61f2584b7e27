package ellex

import (
	"strconv"
	"strings"
)

// StatementToExpr converts an Ellex statement into an equivalent MiniElixir
// expression, for hosts that analyze or evaluate programs through the
// expression pipeline. Loops convert only when their iteration count is
// small enough to unroll.
func StatementToExpr(s Statement) (Expr, error) {
	switch s := s.(type) {
	case Tell:
		return valueToExpr(s.Value)
	case Ask:
		return VarExpr{Name: s.Var}, nil
	case Assign:
		v, err := valueToExpr(s.Value)
		if err != nil {
			return nil, err
		}
		return MatchExpr{Pattern: VarExpr{Name: s.Var}, Value: v}, nil
	case When:
		is, err := valueToExpr(s.Is)
		if err != nil {
			return nil, err
		}
		then, err := statementsToExpr(s.Then)
		if err != nil {
			return nil, err
		}
		var els Expr
		if len(s.Otherwise) > 0 {
			els, err = statementsToExpr(s.Otherwise)
			if err != nil {
				return nil, err
			}
		}
		cond := BinaryExpr{Op: OpEq, L: VarExpr{Name: s.Var}, R: is}
		return IfExpr{Cond: cond, Then: then, Else: els}, nil
	case Repeat:
		if s.Count > unrollLimit {
			return nil, logicErrorf("cannot convert a %d-iteration loop to an expression", s.Count)
		}
		body, err := statementsToExpr(s.Body)
		if err != nil {
			return nil, err
		}
		exprs := make([]Expr, s.Count)
		for i := range exprs {
			exprs[i] = body
		}
		return BlockExpr{Exprs: exprs}, nil
	case Call:
		args := make([]Expr, 0, len(s.Args))
		for _, a := range s.Args {
			e, err := valueToExpr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, e)
		}
		return CallExpr{Func: s.Name, Args: args}, nil
	}
	return nil, logicErrorf("cannot convert %T to an expression", s)
}

func statementsToExpr(stmts []Statement) (Expr, error) {
	exprs := make([]Expr, 0, len(stmts))
	for _, s := range stmts {
		e, err := StatementToExpr(s)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	switch len(exprs) {
	case 0:
		return NilLit{}, nil
	case 1:
		return exprs[0], nil
	}
	return BlockExpr{Exprs: exprs}, nil
}

func valueToExpr(v Value) (Expr, error) {
	switch v := v.(type) {
	case String:
		return StringLit{Val: string(v)}, nil
	case Number:
		f := float64(v)
		if f == float64(int64(f)) {
			return IntLit{Val: int64(f)}, nil
		}
		return FloatLit{Val: f}, nil
	case List:
		elems := make([]Expr, 0, len(v))
		for _, e := range v {
			el, err := valueToExpr(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, el)
		}
		return ListExpr{Elems: elems}, nil
	case Nil:
		return NilLit{}, nil
	}
	return nil, logicErrorf("cannot convert a %v to an expression", TypeOf(v))
}

// ParseProgram parses the line-oriented Ellex surface syntax:
//
//	tell "Hello, {name}!"
//	ask name
//	set count to 5
//	repeat 3 times
//	  tell "hi"
//	end
//	when answer is "yes"
//	  tell "great"
//	otherwise
//	  tell "ok"
//	end
//	call dance
//
// This is the thin syntax hosts and the REPL feed the runtime; the full
// surface grammar is an external collaborator.
func ParseProgram(src string) ([]Statement, error) {
	var lines []progLine
	for i, raw := range strings.Split(src, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		lines = append(lines, progLine{text: text, num: i + 1})
	}
	lp := &lineParser{lines: lines}
	stmts, err := lp.parseBlock(false)
	if err != nil {
		return nil, err
	}
	if lp.pos < len(lp.lines) {
		return nil, &ParseError{Line: lp.lines[lp.pos].num, Msg: "unexpected \"" + lp.lines[lp.pos].text + "\""}
	}
	return stmts, nil
}

type progLine struct {
	text string
	num  int
}

type lineParser struct {
	lines []progLine
	pos   int
}

func (lp *lineParser) errorf(num int, msg string) *ParseError {
	return &ParseError{Line: num, Msg: msg}
}

// parseBlock parses statements until end of input or, inside a block, until
// an "end" or "otherwise" line, which is left for the caller.
func (lp *lineParser) parseBlock(nested bool) ([]Statement, error) {
	var stmts []Statement
	for lp.pos < len(lp.lines) {
		line := lp.lines[lp.pos]
		word, rest := splitWord(line.text)
		if nested && (word == "end" || word == "otherwise") {
			return stmts, nil
		}
		lp.pos++
		switch word {
		case "tell":
			v, err := parseLineValue(rest, line.num)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, Tell{Value: v})
		case "ask":
			s, err := parseAsk(rest, line.num)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		case "set":
			s, err := parseSet(rest, line.num)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		case "repeat":
			body, count, err := lp.parseRepeat(rest, line.num)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, Repeat{Count: count, Body: body})
		case "when":
			s, err := lp.parseWhen(rest, line.num)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		case "call":
			s, err := parseCall(rest, line.num)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		default:
			return nil, lp.errorf(line.num, "unknown command \""+word+"\"")
		}
	}
	if nested {
		return nil, &ParseError{Msg: "missing \"end\""}
	}
	return stmts, nil
}

func splitWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// parseLineValue parses a literal: a quoted string, a number, a bracketed
// list, or a bare variable name, which becomes an interpolated string.
func parseLineValue(s string, num int) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, &ParseError{Line: num, Msg: "missing value"}
	case s[0] == '"':
		if len(s) < 2 || s[len(s)-1] != '"' {
			return nil, &ParseError{Line: num, Msg: "unterminated string"}
		}
		return String(s[1 : len(s)-1]), nil
	case s[0] == '[':
		if s[len(s)-1] != ']' {
			return nil, &ParseError{Line: num, Msg: "unterminated list"}
		}
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return List{}, nil
		}
		var out List
		for _, part := range strings.Split(inner, ",") {
			v, err := parseLineValue(part, num)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case s == "nil":
		return Nil{}, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f), nil
	}
	if !isName(s) {
		return nil, &ParseError{Line: num, Msg: "bad value \"" + s + "\""}
	}
	// A bare name reads the variable through interpolation.
	return String("{" + s + "}"), nil
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') && !('0' <= r && r <= '9') {
			return false
		}
	}
	return s[0] < '0' || s[0] > '9'
}

func parseAsk(rest string, num int) (Statement, error) {
	name, qual := splitWord(rest)
	if !isName(name) {
		return nil, &ParseError{Line: num, Msg: "ask needs a variable name"}
	}
	s := Ask{Var: name}
	if qual != "" {
		word, kind := splitWord(qual)
		if word != "as" {
			return nil, &ParseError{Line: num, Msg: "expected \"as\" after variable name"}
		}
		t, err := parseType(kind)
		if err != nil {
			return nil, &ParseError{Line: num, Msg: "unknown type \"" + kind + "\""}
		}
		s.Hint = &t
	}
	return s, nil
}

func parseSet(rest string, num int) (Statement, error) {
	name, tail := splitWord(rest)
	if !isName(name) {
		return nil, &ParseError{Line: num, Msg: "set needs a variable name"}
	}
	word, valueText := splitWord(tail)
	if word != "to" {
		return nil, &ParseError{Line: num, Msg: "expected \"to\" after variable name"}
	}
	v, err := parseLineValue(valueText, num)
	if err != nil {
		return nil, err
	}
	return Assign{Var: name, Value: v}, nil
}

func (lp *lineParser) parseRepeat(rest string, num int) ([]Statement, int, error) {
	countText, word := splitWord(rest)
	if word != "times" {
		return nil, 0, &ParseError{Line: num, Msg: "expected \"times\" after repeat count"}
	}
	count, err := strconv.Atoi(countText)
	if err != nil || count < 0 {
		return nil, 0, &ParseError{Line: num, Msg: "bad repeat count \"" + countText + "\""}
	}
	body, err := lp.parseBlock(true)
	if err != nil {
		return nil, 0, err
	}
	if err := lp.expectLine("end"); err != nil {
		return nil, 0, err
	}
	return body, count, nil
}

func (lp *lineParser) parseWhen(rest string, num int) (Statement, error) {
	name, tail := splitWord(rest)
	if !isName(name) {
		return nil, &ParseError{Line: num, Msg: "when needs a variable name"}
	}
	word, valueText := splitWord(tail)
	if word != "is" {
		return nil, &ParseError{Line: num, Msg: "expected \"is\" after variable name"}
	}
	is, err := parseLineValue(valueText, num)
	if err != nil {
		return nil, err
	}
	then, err := lp.parseBlock(true)
	if err != nil {
		return nil, err
	}
	s := When{Var: name, Is: is, Then: then}
	if lp.pos < len(lp.lines) && lp.lines[lp.pos].text == "otherwise" {
		lp.pos++
		s.Otherwise, err = lp.parseBlock(true)
		if err != nil {
			return nil, err
		}
	}
	if err := lp.expectLine("end"); err != nil {
		return nil, err
	}
	return s, nil
}

func parseCall(rest string, num int) (Statement, error) {
	name, tail := splitWord(rest)
	if !isName(name) {
		return nil, &ParseError{Line: num, Msg: "call needs a function name"}
	}
	s := Call{Name: name}
	if tail != "" {
		word, argText := splitWord(tail)
		if word != "with" {
			return nil, &ParseError{Line: num, Msg: "expected \"with\" before arguments"}
		}
		for _, part := range strings.Split(argText, ",") {
			v, err := parseLineValue(part, num)
			if err != nil {
				return nil, err
			}
			s.Args = append(s.Args, v)
		}
	}
	return s, nil
}

func (lp *lineParser) expectLine(want string) error {
	if lp.pos >= len(lp.lines) || lp.lines[lp.pos].text != want {
		num := 0
		if lp.pos < len(lp.lines) {
			num = lp.lines[lp.pos].num
		}
		return &ParseError{Line: num, Msg: "expected \"" + want + "\""}
	}
	lp.pos++
	return nil
}
