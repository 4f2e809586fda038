// Package directive implements the grading pipeline that turns a student
// submission into feedback and a correctness verdict.
//
// A grading configuration declares an ordered list of named directives.
// Each directive is either a prompt template rendered against the
// accumulated pipeline state and sent to a language model, or a null
// placeholder that is skipped. Directive outputs are stored in the state
// under the directive's name, so later directives can reference everything
// earlier ones produced.
//
// The state is seeded with three keys before the first directive runs:
//
//	prompt    the question being answered
//	output    the student's submission
//	solution  the exemplary solution, or a sentinel when none exists
//
// plus any constants declared under "variables" in the configuration.
//
// Two rules are special:
//
//   - A directive named "auto_solution" copies the exemplary solution into
//     the state without a model call whenever a real solution is present,
//     its template notwithstanding. With only the sentinel present it is
//     handled like any other directive.
//   - After the last directive, an optional meta-evaluation pass sends the
//     produced feedback to a second model for critique and appends the
//     critique to the feedback.
//
// Directives within a run execute strictly sequentially; a State belongs to
// exactly one run and is not safe for concurrent use. Engines and Configs
// are read-only after construction and may be shared across goroutines.
package directive
