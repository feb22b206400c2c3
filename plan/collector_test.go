package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acpgate/acpgate/policy"
)

func TestCollector_AddAndGet(t *testing.T) {
	t.Parallel()
	c := NewCollector()

	entry := c.Add("s1", policy.ToolCall{ID: "tc-1", Title: "Run migration"}, policy.RiskCommandExecute)
	assert.Equal(t, "Run migration", entry.Content)
	assert.Equal(t, PriorityHigh, entry.Priority)
	assert.Equal(t, StatusPending, entry.Status)

	c.Add("s1", policy.ToolCall{ID: "tc-2", Title: "Edit config"}, policy.RiskFileEdit)

	got := c.Get("s1")
	require.Len(t, got, 2)
	assert.Equal(t, "Run migration", got[0].Content)
	assert.Equal(t, PriorityMedium, got[1].Priority)

	assert.Empty(t, c.Get("s2"))
}

func TestCollector_UpdateByInvocationID(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.Add("s1", policy.ToolCall{ID: "tc-1", Title: "a"}, policy.RiskFileEdit)
	c.Add("s1", policy.ToolCall{ID: "tc-2", Title: "b"}, policy.RiskFileEdit)

	c.UpdateByInvocationID("s1", "tc-2", StatusCompleted)
	got := c.Get("s1")
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Equal(t, StatusCompleted, got[1].Status)

	// Unknown id is a no-op.
	c.UpdateByInvocationID("s1", "tc-9", StatusFailed)
	assert.Equal(t, StatusPending, c.Get("s1")[0].Status)
}

func TestCollector_Clear(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.Add("s1", policy.ToolCall{ID: "tc-1", Title: "a"}, policy.RiskOther)
	c.Clear("s1")
	assert.Empty(t, c.Get("s1"))
}

func TestCollector_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.Add("s1", policy.ToolCall{ID: "tc-1", Title: "a"}, policy.RiskOther)

	got := c.Get("s1")
	got[0].Status = StatusFailed
	assert.Equal(t, StatusPending, c.Get("s1")[0].Status)
}

func TestCollector_Snapshot(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.Add("s1", policy.ToolCall{ID: "tc-1", Title: "Run tests"}, policy.RiskCommandExecute)

	snap := c.Snapshot("s1")
	require.Len(t, snap, 1)
	assert.Equal(t, "Run tests", snap[0].Content)
	assert.Equal(t, "high", snap[0].Priority)
	assert.Equal(t, "pending", snap[0].Status)
}
