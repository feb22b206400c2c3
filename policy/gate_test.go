package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_DecisionTable(t *testing.T) {
	t.Parallel()

	allKinds := []RiskKind{
		RiskRead, RiskFileEdit, RiskFileDelete,
		RiskCommandExecute, RiskDangerousCommand, RiskOther,
	}

	// needs[mode][kind] is the expected escalation decision with no overrides.
	needs := map[Mode]map[RiskKind]bool{
		ModeDefault: {
			RiskRead: false, RiskFileEdit: true, RiskFileDelete: true,
			RiskCommandExecute: true, RiskDangerousCommand: true, RiskOther: true,
		},
		ModeAutoEdit: {
			RiskRead: false, RiskFileEdit: false, RiskFileDelete: true,
			RiskCommandExecute: true, RiskDangerousCommand: true, RiskOther: true,
		},
		ModePlan: {
			RiskRead: false, RiskFileEdit: true, RiskFileDelete: true,
			RiskCommandExecute: true, RiskDangerousCommand: true, RiskOther: true,
		},
		ModeProfessional: {
			RiskRead: false, RiskFileEdit: true, RiskFileDelete: true,
			RiskCommandExecute: true, RiskDangerousCommand: true, RiskOther: true,
		},
		ModeYolo: {
			RiskRead: false, RiskFileEdit: false, RiskFileDelete: false,
			RiskCommandExecute: false, RiskDangerousCommand: true, RiskOther: false,
		},
		ModeBypass: {
			RiskRead: false, RiskFileEdit: false, RiskFileDelete: false,
			RiskCommandExecute: false, RiskDangerousCommand: false, RiskOther: false,
		},
	}

	for mode, row := range needs {
		for _, kind := range allKinds {
			g := NewGate()
			got := g.NeedsApproval("s1", mode, kind)
			assert.Equalf(t, row[kind], got, "mode=%s kind=%s", mode, kind)
		}
	}
}

func TestGate_UnrecognizedModeActsAsDefault(t *testing.T) {
	t.Parallel()
	g := NewGate()
	assert.False(t, g.NeedsApproval("s1", Mode("mystery"), RiskRead))
	assert.True(t, g.NeedsApproval("s1", Mode("mystery"), RiskCommandExecute))
}

func TestGate_AllowAlways(t *testing.T) {
	t.Parallel()
	g := NewGate()

	require.True(t, g.NeedsApproval("s1", ModeDefault, RiskCommandExecute))

	g.AllowAlways("s1", RiskCommandExecute)
	assert.False(t, g.NeedsApproval("s1", ModeDefault, RiskCommandExecute))

	// Idempotent.
	g.AllowAlways("s1", RiskCommandExecute)
	assert.False(t, g.NeedsApproval("s1", ModeDefault, RiskCommandExecute))

	// Scoped to the kind and the session.
	assert.True(t, g.NeedsApproval("s1", ModeDefault, RiskFileDelete))
	assert.True(t, g.NeedsApproval("s2", ModeDefault, RiskCommandExecute))
}

func TestGate_ForgetClearsOverrides(t *testing.T) {
	t.Parallel()
	g := NewGate()

	g.AllowAlways("s1", RiskFileEdit)
	require.True(t, g.Allowed("s1", RiskFileEdit))

	g.Forget("s1")
	assert.False(t, g.Allowed("s1", RiskFileEdit))
	assert.True(t, g.NeedsApproval("s1", ModeDefault, RiskFileEdit))
}
