package ellex

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// A Session is the persistent state of a runtime: config, variables,
// functions, and input history. Caches and monitor counters are never
// persisted; they rebuild on first execution.
type Session struct {
	Config    Config
	Variables map[string]Value
	Functions map[string]*Function
	History   []string
}

// Snapshot captures the runtime's persistent state.
func Snapshot(r *Runtime, history []string) *Session {
	return &Session{
		Config:    r.Config(),
		Variables: r.Variables(),
		Functions: r.Functions(),
		History:   append([]string(nil), history...),
	}
}

// Restore returns a fresh runtime with the session's config, variables, and
// functions installed.
func (s *Session) Restore() *Runtime {
	r := NewRuntime(s.Config)
	for name, v := range s.Variables {
		r.SetVariable(name, v)
	}
	for _, f := range s.Functions {
		r.DefineFunction(f)
	}
	return r
}

// The YAML form tags every value with its type, since a bare YAML scalar
// cannot distinguish the string "3" from the number 3.

type sessionDoc struct {
	Config    Config              `yaml:"config"`
	Variables map[string]valueDoc `yaml:"variables,omitempty"`
	Functions []functionDoc       `yaml:"functions,omitempty"`
	History   []string            `yaml:"history,omitempty"`
}

type valueDoc struct {
	Type string     `yaml:"type"`
	Str  string     `yaml:"str,omitempty"`
	Num  float64    `yaml:"num,omitempty"`
	List []valueDoc `yaml:"list,omitempty"`
}

type functionDoc struct {
	Name   string         `yaml:"name"`
	Params []string       `yaml:"params,omitempty"`
	Body   []statementDoc `yaml:"body"`
}

type statementDoc struct {
	Kind      string         `yaml:"kind"`
	Value     *valueDoc      `yaml:"value,omitempty"`
	Var       string         `yaml:"var,omitempty"`
	Hint      string         `yaml:"hint,omitempty"`
	Count     int            `yaml:"count,omitempty"`
	Name      string         `yaml:"name,omitempty"`
	Args      []valueDoc     `yaml:"args,omitempty"`
	Body      []statementDoc `yaml:"body,omitempty"`
	Then      []statementDoc `yaml:"then,omitempty"`
	Otherwise []statementDoc `yaml:"otherwise,omitempty"`
}

func encodeValue(v Value) valueDoc {
	switch v := v.(type) {
	case String:
		return valueDoc{Type: "string", Str: string(v)}
	case Number:
		return valueDoc{Type: "number", Num: float64(v)}
	case List:
		d := valueDoc{Type: "list"}
		for _, e := range v {
			d.List = append(d.List, encodeValue(e))
		}
		return d
	case *Function:
		// Function values persist by reference; the function table
		// carries the definition.
		return valueDoc{Type: "function", Str: v.Name}
	}
	return valueDoc{Type: "nil"}
}

func decodeValue(d valueDoc, functions map[string]*Function) (Value, error) {
	switch d.Type {
	case "string":
		return String(d.Str), nil
	case "number":
		return Number(d.Num), nil
	case "list":
		out := make(List, 0, len(d.List))
		for _, e := range d.List {
			v, err := decodeValue(e, functions)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case "function":
		if f, ok := functions[d.Str]; ok {
			return f, nil
		}
		return nil, fmt.Errorf("session references undefined function %q", d.Str)
	case "nil":
		return Nil{}, nil
	}
	return nil, fmt.Errorf("session has unknown value type %q", d.Type)
}

func encodeStatements(stmts []Statement) []statementDoc {
	out := make([]statementDoc, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, encodeStatement(s))
	}
	return out
}

func encodeStatement(s Statement) statementDoc {
	switch s := s.(type) {
	case Tell:
		v := encodeValue(s.Value)
		return statementDoc{Kind: "tell", Value: &v}
	case Ask:
		d := statementDoc{Kind: "ask", Var: s.Var}
		if s.Hint != nil {
			d.Hint = s.Hint.String()
		}
		return d
	case Assign:
		v := encodeValue(s.Value)
		return statementDoc{Kind: "assign", Var: s.Var, Value: &v}
	case Repeat:
		return statementDoc{Kind: "repeat", Count: s.Count, Body: encodeStatements(s.Body)}
	case When:
		v := encodeValue(s.Is)
		return statementDoc{
			Kind:      "when",
			Var:       s.Var,
			Value:     &v,
			Then:      encodeStatements(s.Then),
			Otherwise: encodeStatements(s.Otherwise),
		}
	case Call:
		d := statementDoc{Kind: "call", Name: s.Name}
		for _, a := range s.Args {
			d.Args = append(d.Args, encodeValue(a))
		}
		return d
	}
	return statementDoc{Kind: "tell", Value: &valueDoc{Type: "nil"}}
}

func decodeStatements(docs []statementDoc, functions map[string]*Function) ([]Statement, error) {
	out := make([]Statement, 0, len(docs))
	for _, d := range docs {
		s, err := decodeStatement(d, functions)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeStatement(d statementDoc, functions map[string]*Function) (Statement, error) {
	switch d.Kind {
	case "tell":
		if d.Value == nil {
			return nil, fmt.Errorf("session tell without value")
		}
		v, err := decodeValue(*d.Value, functions)
		if err != nil {
			return nil, err
		}
		return Tell{Value: v}, nil
	case "ask":
		s := Ask{Var: d.Var}
		if d.Hint != "" {
			t, err := parseType(d.Hint)
			if err != nil {
				return nil, err
			}
			s.Hint = &t
		}
		return s, nil
	case "assign":
		if d.Value == nil {
			return nil, fmt.Errorf("session assign without value")
		}
		v, err := decodeValue(*d.Value, functions)
		if err != nil {
			return nil, err
		}
		return Assign{Var: d.Var, Value: v}, nil
	case "repeat":
		body, err := decodeStatements(d.Body, functions)
		if err != nil {
			return nil, err
		}
		return Repeat{Count: d.Count, Body: body}, nil
	case "when":
		if d.Value == nil {
			return nil, fmt.Errorf("session when without comparison value")
		}
		is, err := decodeValue(*d.Value, functions)
		if err != nil {
			return nil, err
		}
		then, err := decodeStatements(d.Then, functions)
		if err != nil {
			return nil, err
		}
		otherwise, err := decodeStatements(d.Otherwise, functions)
		if err != nil {
			return nil, err
		}
		return When{Var: d.Var, Is: is, Then: then, Otherwise: otherwise}, nil
	case "call":
		s := Call{Name: d.Name}
		for _, a := range d.Args {
			v, err := decodeValue(a, functions)
			if err != nil {
				return nil, err
			}
			s.Args = append(s.Args, v)
		}
		return s, nil
	}
	return nil, fmt.Errorf("session has unknown statement kind %q", d.Kind)
}

func parseType(s string) (Type, error) {
	for _, t := range []Type{TypeString, TypeNumber, TypeList, TypeFunction, TypeNil} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("session has unknown type %q", s)
}

// Save writes the session as YAML.
func (s *Session) Save(path string) error {
	doc := sessionDoc{Config: s.Config, History: s.History}
	if len(s.Variables) > 0 {
		doc.Variables = map[string]valueDoc{}
		for name, v := range s.Variables {
			doc.Variables[name] = encodeValue(v)
		}
	}
	for _, f := range s.Functions {
		doc.Functions = append(doc.Functions, functionDoc{
			Name:   f.Name,
			Params: f.Params,
			Body:   encodeStatements(f.Body),
		})
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// LoadSession reads a YAML session file.
func LoadSession(path string) (*Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc sessionDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("session %s: %w", path, err)
	}
	s := &Session{
		Config:    doc.Config,
		Variables: map[string]Value{},
		Functions: map[string]*Function{},
		History:   doc.History,
	}
	// Decode functions first so function-valued variables can resolve.
	for _, fd := range doc.Functions {
		s.Functions[fd.Name] = &Function{Name: fd.Name, Params: fd.Params}
	}
	for _, fd := range doc.Functions {
		body, err := decodeStatements(fd.Body, s.Functions)
		if err != nil {
			return nil, err
		}
		s.Functions[fd.Name].Body = body
	}
	for name, vd := range doc.Variables {
		v, err := decodeValue(vd, s.Functions)
		if err != nil {
			return nil, err
		}
		s.Variables[name] = v
	}
	return s, nil
}
