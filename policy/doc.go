// Package policy holds the per-session permission policy: the session mode
// catalog and manager, the deterministic risk classifier for tool calls, and
// the gate that decides whether a classified call needs interactive approval.
//
// Each component owns its own map keyed by session id; no state is shared
// across components except through their accessors.
package policy
