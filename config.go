package ellex

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config holds the user-facing settings of an Ellex environment. It is the
// persistent form; ExecutionLimits is derived from it for the monitor.
type Config struct {
	// ExecutionTimeoutMs bounds a single execution's wall-clock time.
	ExecutionTimeoutMs int64 `yaml:"execution_timeout_ms"`
	// MemoryLimitMB bounds a single execution's memory use.
	MemoryLimitMB uint64 `yaml:"memory_limit_mb"`
	// MaxRecursionDepth bounds call nesting.
	MaxRecursionDepth int `yaml:"max_recursion_depth"`
	// MaxLoopIterations bounds any single loop.
	MaxLoopIterations int `yaml:"max_loop_iterations"`
	// EnableTurtle allows turtle graphics commands.
	EnableTurtle bool `yaml:"enable_turtle"`
	// EnableAI allows AI-assisted commands in hosts that provide them.
	EnableAI bool `yaml:"enable_ai"`
}

// DefaultConfig returns the standard settings: 5 s, 64 MB, depth 100, loops
// to 10000, turtle on.
func DefaultConfig() Config {
	return Config{
		ExecutionTimeoutMs: 5000,
		MemoryLimitMB:      64,
		MaxRecursionDepth:  100,
		MaxLoopIterations:  10000,
		EnableTurtle:       true,
		EnableAI:           true,
	}
}

// BeginnerConfig returns tightened settings for new programmers: 3 s, 32 MB,
// depth 50, loops to 1000.
func BeginnerConfig() Config {
	return Config{
		ExecutionTimeoutMs: 3000,
		MemoryLimitMB:      32,
		MaxRecursionDepth:  50,
		MaxLoopIterations:  1000,
		EnableTurtle:       true,
		EnableAI:           true,
	}
}

// AdvancedConfig returns loosened settings: 30 s, 256 MB, depth 500, loops
// to 100000.
func AdvancedConfig() Config {
	return Config{
		ExecutionTimeoutMs: 30000,
		MemoryLimitMB:      256,
		MaxRecursionDepth:  500,
		MaxLoopIterations:  100000,
		EnableTurtle:       true,
		EnableAI:           true,
	}
}

// Limits derives the execution limits the monitor enforces. The instruction
// ceiling scales with the loop ceiling at ten steps per allowed iteration, so
// a config permitting a loop never has its iterations cut short by the
// instruction budget.
func (c Config) Limits() ExecutionLimits {
	return ExecutionLimits{
		Timeout:           time.Duration(c.ExecutionTimeoutMs) * time.Millisecond,
		MemoryLimitMB:     c.MemoryLimitMB,
		MaxRecursionDepth: c.MaxRecursionDepth,
		MaxLoopIterations: c.MaxLoopIterations,
		MaxInstructions:   instructionBudget(c.MaxLoopIterations),
	}
}

// Validate reports whether every limit in the config is positive.
func (c Config) Validate() error {
	if c.ExecutionTimeoutMs <= 0 {
		return fmt.Errorf("config: execution_timeout_ms must be positive, got %d", c.ExecutionTimeoutMs)
	}
	if c.MemoryLimitMB == 0 {
		return fmt.Errorf("config: memory_limit_mb must be positive")
	}
	if c.MaxRecursionDepth <= 0 {
		return fmt.Errorf("config: max_recursion_depth must be positive, got %d", c.MaxRecursionDepth)
	}
	if c.MaxLoopIterations <= 0 {
		return fmt.Errorf("config: max_loop_iterations must be positive, got %d", c.MaxLoopIterations)
	}
	return nil
}

// LoadConfig reads a YAML config file. Fields absent from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// SaveConfig writes the config as YAML.
func SaveConfig(path string, c Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
