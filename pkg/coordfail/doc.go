/*
Package coordfail classifies the errors the write-coordination core can
produce into the taxonomy spec.md §7 specifies, as a value rather than a
set of sentinel types to runtime-match against. §9's design note asks for
exactly this: "exceptions used for control flow in the retry logic" become
a tagged result — Retryable(reason), TerminalFailure(kind, cause), or
success — and retryability is a property of the variant, not of a type
switch over concrete error types.

Open question #2 in spec.md §9 leaves the exact set of engine-side
exception kinds for the engine team to pin down; Kind below is Meridian's
answer, closed deliberately so pkg/engine's reference implementation and
pkg/replication's classification logic stay in lockstep.
*/
package coordfail
