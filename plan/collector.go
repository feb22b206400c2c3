package plan

import (
	"sync"

	"github.com/acpgate/acpgate/acp"
	"github.com/acpgate/acpgate/policy"
)

// Entry is one tool invocation collected for review instead of executed.
type Entry struct {
	Content      string
	Priority     string
	Status       string
	InvocationID string
	RiskKind     policy.RiskKind
}

// Entry priorities and statuses, mirroring the wire-level plan entry fields.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"

	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Collector accumulates plan entries per session. Entries are ordered by
// arrival and never capped; sessions are short-lived interactive
// conversations, so unbounded growth within one is accepted.
type Collector struct {
	mu    sync.Mutex
	plans map[string][]Entry
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{plans: make(map[string][]Entry)}
}

// Add appends an entry for the tool call to the session's plan, creating the
// plan if absent, and returns the new entry. Command executions are collected
// at high priority, everything else at medium.
func (c *Collector) Add(sessionID string, call policy.ToolCall, kind policy.RiskKind) Entry {
	priority := PriorityMedium
	if kind == policy.RiskCommandExecute || kind == policy.RiskDangerousCommand {
		priority = PriorityHigh
	}
	entry := Entry{
		Content:      call.Title,
		Priority:     priority,
		Status:       StatusPending,
		InvocationID: call.ID,
		RiskKind:     kind,
	}

	c.mu.Lock()
	c.plans[sessionID] = append(c.plans[sessionID], entry)
	c.mu.Unlock()
	return entry
}

// Get returns a copy of the session's ordered plan, empty if none.
func (c *Collector) Get(sessionID string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.plans[sessionID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// UpdateByInvocationID sets the status of the first entry matching the
// invocation id. No-op if none matches.
func (c *Collector) UpdateByInvocationID(sessionID, invocationID, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.plans[sessionID]
	for i := range entries {
		if entries[i].InvocationID == invocationID {
			entries[i].Status = status
			return
		}
	}
}

// Clear removes the session's plan entirely.
func (c *Collector) Clear(sessionID string) {
	c.mu.Lock()
	delete(c.plans, sessionID)
	c.mu.Unlock()
}

// Snapshot renders the session's plan as wire-level plan entries for a
// session/update notification.
func (c *Collector) Snapshot(sessionID string) []acp.PlanEntry {
	entries := c.Get(sessionID)
	out := make([]acp.PlanEntry, len(entries))
	for i, e := range entries {
		out[i] = acp.PlanEntry{
			Content:  e.Content,
			Priority: e.Priority,
			Status:   e.Status,
		}
	}
	return out
}
