/*
Package ellex implements the execution core of the Ellex programming
language.

Ellex is a small natural-language-flavored language for teaching programming
to children. A program is a sequence of statements: tell outputs a value, ask
reads one, repeat loops a fixed number of times, when branches on a variable
comparison, and call invokes a named function or a turtle graphics command.

The package is an embeddable library. Create a Runtime with NewRuntime, feed
it statements built directly or parsed from the line syntax by ParseProgram,
and read results and drawing output back:

	r := ellex.NewRuntime(ellex.DefaultConfig())
	stmts, err := ellex.ParseProgram(src)
	if err != nil {
		// ...
	}
	v, err := r.Run(stmts)

Every execution is guarded by a safety Monitor enforcing wall-clock,
instruction, memory, recursion, and loop ceilings, so a runaway program stops
with a typed error instead of hanging its host. FriendlyMessage rewrites
those errors in language suitable for young programmers.

Execution is accelerated by inline caches. Compile attaches cache sites to a
statement tree; repeated runs of the same tree observe variable types and
resolved functions, and monomorphic sites skip the slow paths. Caches degrade
gracefully to megamorphic and are invalidated globally by version when
functions are redefined.

The package also hosts MiniElixir, a sandboxed expression language for
computed values. ParseMiniElixir parses source, a Validator bounds nesting
and restricts calls to a fixed allow-list, and an Interpreter evaluates
expressions behind a result cache keyed on structural identity and the
referenced bindings.
*/
package ellex
