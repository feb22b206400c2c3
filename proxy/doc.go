// Package proxy is the policy-interposing middle of acpgate: the session
// coordinator that serves the editor client and owns the subordinate agent
// peers, the tool-call interceptor that decides per invocation whether to
// relay, block, or escalate, and the interactive approval flow.
//
// One coordinator serves one editor client connection and any number of
// concurrent sessions. Per-session mutable state (mode, overrides, plans,
// blocked invocations) lives in the policy, plan, and interceptor components,
// each keyed by the upstream-facing session id.
package proxy
