package ellex

import "fmt"

// TimeoutError reports that an execution exceeded its wall-clock budget.
type TimeoutError struct {
	// LimitMs is the configured timeout in milliseconds.
	LimitMs int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timeout: exceeded %d ms", e.LimitMs)
}

// InstructionLimitError reports that an execution performed too many steps.
type InstructionLimitError struct {
	// Limit is the configured instruction ceiling.
	Limit uint64
}

func (e *InstructionLimitError) Error() string {
	return fmt.Sprintf("instruction limit exceeded: %d instructions", e.Limit)
}

// MemoryLimitError reports that an execution used too much memory.
type MemoryLimitError struct {
	// CurrentMB is the usage observed when the limit tripped.
	CurrentMB uint64
	// LimitMB is the configured ceiling.
	LimitMB uint64
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded: using %d MB of %d MB", e.CurrentMB, e.LimitMB)
}

// RecursionLimitError reports that calls nested too deeply.
type RecursionLimitError struct {
	// Current is the depth that tripped the limit.
	Current int
	// Limit is the configured maximum depth.
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion depth exceeded: %d levels deep, limit is %d", e.Current, e.Limit)
}

// LoopLimitError reports a loop that asked for or ran too many iterations.
type LoopLimitError struct {
	// Current is the iteration count that tripped the limit.
	Current int
	// Limit is the configured maximum.
	Limit int
}

func (e *LoopLimitError) Error() string {
	return fmt.Sprintf("loop limit exceeded: %d iterations, limit is %d", e.Current, e.Limit)
}

// SafetyViolationError reports code rejected by the sandbox validator before
// any evaluation happened.
type SafetyViolationError struct {
	// Reason describes the rejected construct.
	Reason string
}

func (e *SafetyViolationError) Error() string {
	return "safety violation: " + e.Reason
}

// ParseError reports malformed source, with its position when known.
type ParseError struct {
	// Line and Col locate the error, 1-based. Zero means unknown.
	Line, Col int
	// Msg describes the problem.
	Msg string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d, col %d: %s", e.Line, e.Col, e.Msg)
	}
	return "parse error: " + e.Msg
}

// LogicError reports a runtime fault in otherwise well-formed code, such as
// an undefined variable or division by zero.
type LogicError struct {
	// Msg describes the fault.
	Msg string
}

func (e *LogicError) Error() string { return e.Msg }

func logicErrorf(format string, args ...any) *LogicError {
	return &LogicError{Msg: fmt.Sprintf(format, args...)}
}

// FriendlyMessage rewrites err in language suitable for young programmers.
// Errors outside the Ellex taxonomy come back unchanged.
func FriendlyMessage(err error) string {
	switch e := err.(type) {
	case *TimeoutError:
		return "Your program took too long to finish! Try making it simpler."
	case *InstructionLimitError:
		return "Your program did too many things at once! Try breaking it into smaller parts."
	case *MemoryLimitError:
		return "Your program is using too much memory! Try working with smaller things."
	case *RecursionLimitError:
		return "Your functions are calling each other too many times! Check for loops that never stop."
	case *LoopLimitError:
		return fmt.Sprintf("That's a lot of repeating! Try fewer than %d times.", e.Limit)
	case *SafetyViolationError:
		return "That code isn't allowed here. Let's try something else!"
	case *ParseError:
		return "I didn't understand that. Can you check your spelling?"
	case *LogicError:
		return "Something went wrong: " + e.Msg
	}
	return err.Error()
}
