package ellex

import (
	"fmt"
	"strconv"
	"strings"
)

// A Value is any datum an Ellex program can hold or produce. The concrete
// types are String, Number, List, Function, and Nil; nothing else implements
// Value.
type Value interface {
	// String formats the value the way tell prints it.
	String() string

	isEllexValue()
}

// Type is a coarse classification of a Value. Caches key on Types rather
// than on full values.
type Type int

const (
	// TypeString is the type of String values.
	TypeString Type = iota
	// TypeNumber is the type of Number values.
	TypeNumber
	// TypeList is the type of List values.
	TypeList
	// TypeFunction is the type of Function values.
	TypeFunction
	// TypeNil is the type of Nil.
	TypeNil
)

// String returns the type's name.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeList:
		return "list"
	case TypeFunction:
		return "function"
	case TypeNil:
		return "nil"
	}
	return "unknown"
}

// TypeOf returns v's Type. A nil interface is TypeNil.
func TypeOf(v Value) Type {
	switch v.(type) {
	case String:
		return TypeString
	case Number:
		return TypeNumber
	case List:
		return TypeList
	case *Function:
		return TypeFunction
	}
	return TypeNil
}

// String is a text value.
type String string

func (String) isEllexValue() {}

// String returns the text itself, without quoting.
func (s String) String() string { return string(s) }

// Number is a numeric value. All Ellex numbers are float64.
type Number float64

func (Number) isEllexValue() {}

// String formats the number, dropping the fraction when it is integral.
func (n Number) String() string {
	f := float64(n)
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// List is an ordered sequence of values.
type List []Value

func (List) isEllexValue() {}

// String formats the list as [a, b, c].
func (l List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Function is a named, user-defined procedure.
type Function struct {
	// Name is the name the function is called by.
	Name string
	// Params are the function's parameter names.
	Params []string
	// Body is the function's statements.
	Body []Statement
}

func (*Function) isEllexValue() {}

// String formats the function as a reference, not its body.
func (f *Function) String() string { return fmt.Sprintf("<function %s>", f.Name) }

// Nil is the absent value.
type Nil struct{}

func (Nil) isEllexValue() {}

// String returns "nil".
func (Nil) String() string { return "nil" }

// Equal reports whether a and b are structurally equal. Functions compare by
// pointer identity; lists compare element-wise.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case String:
		b, ok := b.(String)
		return ok && a == b
	case Number:
		b, ok := b.(Number)
		return ok && a == b
	case List:
		b, ok := b.(List)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case *Function:
		b, ok := b.(*Function)
		return ok && a == b
	case Nil:
		_, ok := b.(Nil)
		return ok
	}
	return false
}

// Interpolate replaces each {name} in s with the named variable's formatted
// value. Unknown names are left as-is, braces included. lookup may be nil, in
// which case s is returned unchanged.
func Interpolate(s string, lookup func(name string) (Value, bool)) string {
	if lookup == nil || !strings.ContainsRune(s, '{') {
		return s
	}
	var b strings.Builder
	for {
		i := strings.IndexByte(s, '{')
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		name := s[i+1 : i+j]
		b.WriteString(s[:i])
		if v, ok := lookup(name); ok {
			b.WriteString(v.String())
		} else {
			b.WriteString(s[i : i+j+1])
		}
		s = s[i+j+1:]
	}
}
