package ellex

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// A token is a single lexical element of MiniElixir source.
type token struct {
	Kind  tokenKind
	Value string
	Err   error

	Line, Col int
}

type tokenKind int

const (
	badToken tokenKind = iota

	semiToken   // semicolon and newline
	identToken  // identifier or keyword
	atomToken   // :name
	intToken    // integer
	floatToken  // float
	stringToken // "string"
	opToken     // operator
	openToken   // open bracket: (, [, {, %{
	closeToken  // close bracket: ), ], }
	commaToken  // comma
)

// lexFn is a lexer state function. Each lexFn lexes a token, sends it on the
// supplied channel, and returns the next lexFn to use.
type lexFn func(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int)

// lexMiniElixir converts a source into a stream of tokens. The channel is
// closed at end of input.
func lexMiniElixir(src *bufio.Reader, tokens chan<- token) {
	state := eatSpace
	line, col := 1, 1
	for state != nil {
		state, line, col = state(src, tokens, line, col)
	}
	close(tokens)
}

// accept appends the next run of characters in src which satisfy the
// predicate to b. Returns b after appending, the first rune which did not
// satisfy the predicate, and any error that occurred. If there was no such
// error, the last rune is unread.
func accept(src *bufio.Reader, predicate func(rune) bool, b []byte) ([]byte, rune, error) {
	r, _, err := src.ReadRune()
	for {
		if err != nil {
			return b, r, err
		}
		if !predicate(r) {
			break
		}
		b = append(b, string(r)...)
		r, _, err = src.ReadRune()
	}
	src.UnreadRune()
	return b, r, nil
}

// lexsend is a shortcut for sending a token with error checking. It returns
// eatSpace as the default lexing function.
func lexsend(err error, tokens chan<- token, good token) lexFn {
	if err != nil && err != io.EOF {
		good.Kind = badToken
		good.Err = err
	}
	tokens <- good
	if err != nil {
		return nil
	}
	return eatSpace
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '?' || r == '!' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

// eatSpace consumes space and decides the next lexFn to use.
func eatSpace(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int) {
	eaten, r, err := accept(src, func(r rune) bool { return strings.ContainsRune(" \r\f\t\v", r) }, nil)
	col += len(eaten)
	if err != nil {
		if err != io.EOF {
			tokens <- token{Kind: badToken, Value: string(r), Err: err, Line: line, Col: col}
		}
		return nil, line, col
	}
	switch {
	case r == ';', r == '\n':
		src.ReadRune()
		tokens <- token{Kind: semiToken, Value: string(r), Line: line, Col: col}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		return eatSpace, line, col
	case r == '#':
		return lexComment, line, col
	case r == ':':
		return lexAtom, line, col
	case r == '"':
		return lexString, line, col
	case isDigit(r):
		return lexNumber, line, col
	case r == '_', unicode.IsLetter(r):
		return lexIdent, line, col
	case r == '%':
		return lexPercent, line, col
	case strings.ContainsRune("([{", r):
		src.ReadRune()
		tokens <- token{Kind: openToken, Value: string(r), Line: line, Col: col}
		return eatSpace, line, col + 1
	case strings.ContainsRune(")]}", r):
		src.ReadRune()
		tokens <- token{Kind: closeToken, Value: string(r), Line: line, Col: col}
		return eatSpace, line, col + 1
	case r == ',':
		src.ReadRune()
		tokens <- token{Kind: commaToken, Value: ",", Line: line, Col: col}
		return eatSpace, line, col + 1
	case strings.ContainsRune("+-*/<>=!&|.", r):
		return lexOp, line, col
	default:
		src.ReadRune()
		tokens <- token{
			Kind:  badToken,
			Value: string(r),
			Err:   fmt.Errorf("unexpected character %q", r),
			Line:  line,
			Col:   col,
		}
		return nil, line, col + 1
	}
}

// lexComment consumes a # comment through end of line.
func lexComment(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int) {
	eaten, _, err := accept(src, func(r rune) bool { return r != '\n' }, nil)
	col += len(eaten)
	if err != nil {
		return nil, line, col
	}
	return eatSpace, line, col
}

// lexIdent lexes an identifier or keyword.
func lexIdent(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int) {
	b, _, err := accept(src, isIdentRune, nil)
	tok := token{Kind: identToken, Value: string(b), Line: line, Col: col}
	return lexsend(err, tokens, tok), line, col + len(b)
}

// lexAtom lexes :name.
func lexAtom(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int) {
	src.ReadRune()
	b, _, err := accept(src, isIdentRune, nil)
	if len(b) == 0 {
		tokens <- token{
			Kind:  badToken,
			Value: ":",
			Err:   fmt.Errorf("expected atom name after ':'"),
			Line:  line,
			Col:   col,
		}
		return nil, line, col + 1
	}
	tok := token{Kind: atomToken, Value: string(b), Line: line, Col: col}
	return lexsend(err, tokens, tok), line, col + 1 + len(b)
}

// lexNumber lexes an integer or float. A dot continues the number only when
// a digit follows; otherwise it is the access operator.
func lexNumber(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int) {
	b, r, err := accept(src, isDigit, nil)
	kind := intToken
	if err == nil && r == '.' {
		src.ReadRune()
		r2, _, err2 := src.ReadRune()
		if err2 == nil && isDigit(r2) {
			src.UnreadRune()
			kind = floatToken
			b = append(b, '.')
			b, _, err = accept(src, isDigit, b)
		} else {
			if err2 == nil {
				src.UnreadRune()
			}
			tokens <- token{Kind: intToken, Value: string(b), Line: line, Col: col}
			tokens <- token{Kind: opToken, Value: ".", Line: line, Col: col + len(b)}
			return eatSpace, line, col + len(b) + 1
		}
	}
	tok := token{Kind: kind, Value: string(b), Line: line, Col: col}
	return lexsend(err, tokens, tok), line, col + len(b)
}

// lexString lexes a double-quoted string with backslash escapes.
func lexString(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int) {
	src.ReadRune()
	var b []byte
	n := 1
	for {
		r, _, err := src.ReadRune()
		if err != nil {
			tokens <- token{
				Kind:  badToken,
				Value: string(b),
				Err:   fmt.Errorf("unterminated string"),
				Line:  line,
				Col:   col,
			}
			return nil, line, col + n
		}
		n++
		switch r {
		case '"':
			tokens <- token{Kind: stringToken, Value: string(b), Line: line, Col: col}
			return eatSpace, line, col + n
		case '\\':
			r, _, err = src.ReadRune()
			if err != nil {
				continue
			}
			n++
			switch r {
			case 'n':
				b = append(b, '\n')
			case 't':
				b = append(b, '\t')
			case 'r':
				b = append(b, '\r')
			default:
				b = append(b, string(r)...)
			}
		case '\n':
			b = append(b, '\n')
			line++
			col = 1
			n = 0
		default:
			b = append(b, string(r)...)
		}
	}
}

// lexPercent lexes %{. Bare % is not an operator in MiniElixir; rem is a
// keyword instead.
func lexPercent(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int) {
	src.ReadRune()
	r, _, err := src.ReadRune()
	if err == nil && r == '{' {
		tokens <- token{Kind: openToken, Value: "%{", Line: line, Col: col}
		return eatSpace, line, col + 2
	}
	if err == nil {
		src.UnreadRune()
	}
	tokens <- token{
		Kind:  badToken,
		Value: "%",
		Err:   fmt.Errorf("expected '{' after '%%'"),
		Line:  line,
		Col:   col,
	}
	return nil, line, col + 1
}

// operators lists operators longest first, so maximal munch resolves ===
// before == before =.
var operators = []string{
	"===", "!==", "|>", "->", "=>", "<>", "++", "==", "!=", "<=", ">=",
	"&&", "||", "+", "-", "*", "/", "<", ">", "=", "!", ".",
}

// lexOp splits a run of operator characters into operator tokens.
func lexOp(src *bufio.Reader, tokens chan<- token, line, col int) (lexFn, int, int) {
	b, _, err := accept(src, func(r rune) bool { return strings.ContainsRune("+-*/<>=!&|.", r) }, nil)
	s := string(b)
	for len(s) > 0 {
		matched := ""
		for _, op := range operators {
			if strings.HasPrefix(s, op) {
				matched = op
				break
			}
		}
		if matched == "" {
			tokens <- token{
				Kind:  badToken,
				Value: s,
				Err:   fmt.Errorf("unknown operator %q", s),
				Line:  line,
				Col:   col,
			}
			return nil, line, col
		}
		tokens <- token{Kind: opToken, Value: matched, Line: line, Col: col}
		col += len(matched)
		s = s[len(matched):]
	}
	if err != nil {
		if err != io.EOF {
			tokens <- token{Kind: badToken, Err: err, Line: line, Col: col}
		}
		return nil, line, col
	}
	return eatSpace, line, col
}
