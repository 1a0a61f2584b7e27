package ellex

// A Statement is one step of an Ellex program. The concrete types are Tell,
// Ask, Assign, Repeat, When, and Call.
type Statement interface {
	isEllexStatement()
}

// Tell outputs a value. String values are interpolated against the current
// environment before printing.
type Tell struct {
	// Value is the value to output.
	Value Value
}

func (Tell) isEllexStatement() {}

// Ask reads a value from the program's input into a variable.
type Ask struct {
	// Var is the variable to store the answer in.
	Var string
	// Hint optionally constrains the answer's type. Nil hint means any.
	Hint *Type
}

func (Ask) isEllexStatement() {}

// Assign binds a variable to a value.
type Assign struct {
	// Var is the variable name.
	Var string
	// Value is the value to bind.
	Value Value
}

func (Assign) isEllexStatement() {}

// Repeat executes its body a fixed number of times. The loop counter is
// bound to the variable "count" during each iteration, starting at 1.
type Repeat struct {
	// Count is the number of iterations.
	Count int
	// Body is the statements to repeat.
	Body []Statement
}

func (Repeat) isEllexStatement() {}

// When executes Then if the named variable equals Is, and otherwise
// executes Otherwise. Otherwise may be empty.
type When struct {
	// Var is the variable to test.
	Var string
	// Is is the value compared against.
	Is Value
	// Then runs on a match.
	Then []Statement
	// Otherwise runs on a mismatch.
	Otherwise []Statement
}

func (When) isEllexStatement() {}

// Call invokes a named function, or a built-in command such as a turtle
// movement when no function by that name exists.
type Call struct {
	// Name is the function or command name.
	Name string
	// Args are the argument values.
	Args []Value
}

func (Call) isEllexStatement() {}
