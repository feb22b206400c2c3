package policy

import "sync"

// Gate decides whether a classified tool call needs interactive approval, and
// tracks each session's always-allow overrides. Overrides grow only through
// an explicit allow-always outcome and die with the session.
type Gate struct {
	mu        sync.Mutex
	overrides map[string]map[RiskKind]struct{}
}

// NewGate creates a gate with no overrides.
func NewGate() *Gate {
	return &Gate{overrides: make(map[string]map[RiskKind]struct{})}
}

// NeedsApproval is the pure decision function mapping (mode, risk kind,
// session overrides) to whether the call must be escalated.
func (g *Gate) NeedsApproval(sessionID string, mode Mode, kind RiskKind) bool {
	// Reads never require approval, in any mode.
	if kind == RiskRead {
		return false
	}
	if mode == ModeBypass {
		return false
	}
	if g.Allowed(sessionID, kind) {
		return false
	}

	switch mode {
	case ModePlan, ModeProfessional:
		// Forces the plan-collection path rather than execution.
		return true
	case ModeYolo:
		return kind == RiskDangerousCommand
	case ModeAutoEdit:
		return kind != RiskFileEdit
	default:
		// ModeDefault and anything unrecognized.
		return true
	}
}

// AllowAlways durably approves a risk kind for the session.
func (g *Gate) AllowAlways(sessionID string, kind RiskKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.overrides[sessionID]
	if !ok {
		set = make(map[RiskKind]struct{})
		g.overrides[sessionID] = set
	}
	set[kind] = struct{}{}
}

// Allowed reports whether the session has an always-allow override for kind.
func (g *Gate) Allowed(sessionID string, kind RiskKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.overrides[sessionID][kind]
	return ok
}

// Forget clears the session's override set on teardown.
func (g *Gate) Forget(sessionID string) {
	g.mu.Lock()
	delete(g.overrides, sessionID)
	g.mu.Unlock()
}
