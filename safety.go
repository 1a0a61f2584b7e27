package ellex

import (
	"fmt"
	"time"
)

const defaultMaxInstructions = 100000

// instructionBudget derives an instruction ceiling from a loop ceiling: ten
// steps per allowed iteration, with a floor for loop-light programs. The
// preset limit tables follow the same rule.
func instructionBudget(maxLoopIterations int) uint64 {
	if maxLoopIterations <= 0 {
		return defaultMaxInstructions
	}
	n := 10 * uint64(maxLoopIterations)
	if n < 1000 {
		return 1000
	}
	return n
}

// ExecutionLimits are the hard ceilings a Monitor enforces.
type ExecutionLimits struct {
	// Timeout bounds wall-clock time for one execution.
	Timeout time.Duration
	// MemoryLimitMB bounds memory use.
	MemoryLimitMB uint64
	// MaxRecursionDepth bounds call nesting.
	MaxRecursionDepth int
	// MaxLoopIterations bounds any single loop.
	MaxLoopIterations int
	// MaxInstructions bounds the total steps of one execution.
	MaxInstructions uint64
}

// DefaultLimits returns the standard ceilings.
func DefaultLimits() ExecutionLimits {
	return ExecutionLimits{
		Timeout:           5 * time.Second,
		MemoryLimitMB:     64,
		MaxRecursionDepth: 100,
		MaxLoopIterations: 10000,
		MaxInstructions:   defaultMaxInstructions,
	}
}

// BeginnerLimits returns tightened ceilings for new programmers.
func BeginnerLimits() ExecutionLimits {
	return ExecutionLimits{
		Timeout:           3 * time.Second,
		MemoryLimitMB:     32,
		MaxRecursionDepth: 50,
		MaxLoopIterations: 1000,
		MaxInstructions:   10000,
	}
}

// AdvancedLimits returns loosened ceilings.
func AdvancedLimits() ExecutionLimits {
	return ExecutionLimits{
		Timeout:           30 * time.Second,
		MemoryLimitMB:     256,
		MaxRecursionDepth: 500,
		MaxLoopIterations: 100000,
		MaxInstructions:   1000000,
	}
}

// WithTimeout returns a copy of l with the timeout replaced.
func (l ExecutionLimits) WithTimeout(d time.Duration) ExecutionLimits {
	l.Timeout = d
	return l
}

// WithMemoryLimit returns a copy of l with the memory ceiling replaced.
func (l ExecutionLimits) WithMemoryLimit(mb uint64) ExecutionLimits {
	l.MemoryLimitMB = mb
	return l
}

// WithRecursionLimit returns a copy of l with the depth ceiling replaced.
func (l ExecutionLimits) WithRecursionLimit(depth int) ExecutionLimits {
	l.MaxRecursionDepth = depth
	return l
}

// WithLoopLimit returns a copy of l with the loop ceiling replaced.
func (l ExecutionLimits) WithLoopLimit(n int) ExecutionLimits {
	l.MaxLoopIterations = n
	return l
}

// WithInstructionLimit returns a copy of l with the instruction ceiling
// replaced.
func (l ExecutionLimits) WithInstructionLimit(n uint64) ExecutionLimits {
	l.MaxInstructions = n
	return l
}

// Stats is a snapshot of a Monitor's counters.
type Stats struct {
	// Instructions is the number of steps counted so far.
	Instructions uint64
	// Elapsed is the wall-clock time since the execution started.
	Elapsed time.Duration
	// RecursionDepth is the current call nesting.
	RecursionDepth int
	// MemoryMB is the most recent memory sample.
	MemoryMB uint64
}

// MemoryPercent returns memory use as a percentage of the given limit.
func (s Stats) MemoryPercent(limits ExecutionLimits) float64 {
	if limits.MemoryLimitMB == 0 {
		return 0
	}
	return float64(s.MemoryMB) / float64(limits.MemoryLimitMB) * 100
}

// RecursionPercent returns recursion depth as a percentage of the given
// limit.
func (s Stats) RecursionPercent(limits ExecutionLimits) float64 {
	if limits.MaxRecursionDepth == 0 {
		return 0
	}
	return float64(s.RecursionDepth) / float64(limits.MaxRecursionDepth) * 100
}

// A Warning is a soft alert that an execution is approaching a limit. It is
// advisory only; the execution continues.
type Warning struct {
	// Kind names the limit being approached.
	Kind WarningKind
	// Percent is how far toward the limit the execution has come.
	Percent float64
}

// WarningKind names the limit a Warning concerns.
type WarningKind int

const (
	// WarnTime means the execution is near its timeout.
	WarnTime WarningKind = iota
	// WarnMemory means the execution is near its memory ceiling.
	WarnMemory
	// WarnRecursion means calls are nesting near the depth ceiling.
	WarnRecursion
)

// Friendly formats the warning for young programmers.
func (w Warning) Friendly() string {
	switch w.Kind {
	case WarnTime:
		return "Your program is taking a while! It might stop soon."
	case WarnMemory:
		return fmt.Sprintf("Your program is using a lot of memory (%.0f%%)! Try to use less.", w.Percent)
	case WarnRecursion:
		return "Your functions are nesting very deep! They might stop soon."
	}
	return "Your program is close to a limit."
}

// A Monitor enforces ExecutionLimits over one execution at a time. It is not
// safe for concurrent use; each execution context owns its own Monitor.
type Monitor struct {
	limits       ExecutionLimits
	start        time.Time
	instructions uint64
	depth        int
	memoryMB     uint64
	sampleHost   bool
}

// NewMonitor returns a Monitor enforcing the given limits, ready for
// CheckStart.
func NewMonitor(limits ExecutionLimits) *Monitor {
	return &Monitor{limits: limits, start: time.Now()}
}

// Limits returns the limits the monitor enforces.
func (m *Monitor) Limits() ExecutionLimits { return m.limits }

// Reset zeroes all counters, the memory estimate included, and restarts the
// clock. Leftover state from an aborted execution never leaks into the next
// one. The host-sampling preference is configuration, not a counter, and
// survives.
func (m *Monitor) Reset() {
	m.start = time.Now()
	m.instructions = 0
	m.depth = 0
	m.memoryMB = 0
}

// CheckStart begins a fresh execution. It is Reset by another name, kept
// separate so call sites read as a protocol: CheckStart once, CheckContinue
// per step.
func (m *Monitor) CheckStart() { m.Reset() }

// CheckContinue counts one instruction and enforces the instruction,
// timeout, and memory ceilings, in that order.
func (m *Monitor) CheckContinue() error {
	m.instructions++
	if m.instructions > m.limits.MaxInstructions {
		return &InstructionLimitError{Limit: m.limits.MaxInstructions}
	}
	if time.Since(m.start) > m.limits.Timeout {
		return &TimeoutError{LimitMs: m.limits.Timeout.Milliseconds()}
	}
	// Sampling rusage every step would dominate execution; every 1024
	// instructions keeps the estimate fresh enough. Hosts that report
	// usage through UpdateMemoryUsage are never overwritten.
	if m.sampleHost && m.instructions&1023 == 0 {
		m.memoryMB = sampleMemoryMB()
	}
	if m.memoryMB > m.limits.MemoryLimitMB {
		return &MemoryLimitError{CurrentMB: m.memoryMB, LimitMB: m.limits.MemoryLimitMB}
	}
	return nil
}

// EnterRecursion records one level of call nesting, failing if the depth
// ceiling is exceeded. Every successful EnterRecursion must be paired with
// ExitRecursion.
func (m *Monitor) EnterRecursion() error {
	m.depth++
	if m.depth > m.limits.MaxRecursionDepth {
		return &RecursionLimitError{Current: m.depth, Limit: m.limits.MaxRecursionDepth}
	}
	return nil
}

// ExitRecursion unwinds one level of call nesting.
func (m *Monitor) ExitRecursion() {
	if m.depth > 0 {
		m.depth--
	}
}

// CheckLoopStart validates a loop's requested iteration count before the
// loop runs. A count equal to the limit is allowed.
func (m *Monitor) CheckLoopStart(n int) error {
	if n > m.limits.MaxLoopIterations {
		return &LoopLimitError{Current: n, Limit: m.limits.MaxLoopIterations}
	}
	return nil
}

// CheckLoopIteration guards one loop iteration, i counting from 0. Each
// iteration also counts as an instruction.
func (m *Monitor) CheckLoopIteration(i int) error {
	if i >= m.limits.MaxLoopIterations {
		return &LoopLimitError{Current: i, Limit: m.limits.MaxLoopIterations}
	}
	return m.CheckContinue()
}

// UpdateMemoryUsage sets the memory estimate directly. Hosts with better
// knowledge of the program's footprint than rusage provides use this; it
// turns off process sampling so their figure sticks.
func (m *Monitor) UpdateMemoryUsage(mb uint64) {
	m.memoryMB = mb
	m.sampleHost = false
}

// SampleHostMemory opts the monitor into refreshing its memory estimate from
// the whole process's footprint during CheckContinue. The estimate then
// includes the host itself, so limits should leave it headroom. The default
// is off, with memory driven entirely by UpdateMemoryUsage.
func (m *Monitor) SampleHostMemory(enable bool) {
	m.sampleHost = enable
	if enable {
		m.memoryMB = sampleMemoryMB()
	}
}

// Stats returns a snapshot of the monitor's counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Instructions:   m.instructions,
		Elapsed:        time.Since(m.start),
		RecursionDepth: m.depth,
		MemoryMB:       m.memoryMB,
	}
}

// Warnings reports the limits the execution is approaching: 80% of the
// timeout or memory ceiling, 90% of the recursion ceiling.
func (m *Monitor) Warnings() []Warning {
	var ws []Warning
	if m.limits.Timeout > 0 {
		p := float64(time.Since(m.start)) / float64(m.limits.Timeout) * 100
		if p >= 80 {
			ws = append(ws, Warning{Kind: WarnTime, Percent: p})
		}
	}
	if m.limits.MemoryLimitMB > 0 {
		p := float64(m.memoryMB) / float64(m.limits.MemoryLimitMB) * 100
		if p >= 80 {
			ws = append(ws, Warning{Kind: WarnMemory, Percent: p})
		}
	}
	if m.limits.MaxRecursionDepth > 0 {
		p := float64(m.depth) / float64(m.limits.MaxRecursionDepth) * 100
		if p >= 90 {
			ws = append(ws, Warning{Kind: WarnRecursion, Percent: p})
		}
	}
	return ws
}
