// Package plan holds the two blocking strategies for non-executing modes: the
// per-session plan collector, which accumulates blocked tool invocations as
// reviewable entries, and the stricter execution-plan state machine used for
// step-by-step approval.
//
// The two are independent; a session uses at most one of them at a time.
package plan
