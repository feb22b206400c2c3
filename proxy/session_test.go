package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acpgate/acpgate/peer"
)

func TestSession_BeginPromptCancelsPrevious(t *testing.T) {
	t.Parallel()
	sess := &Session{ID: "s1"}

	var firstCancelled bool
	sess.BeginPrompt(func() { firstCancelled = true })
	sess.BeginPrompt(func() {})

	assert.True(t, firstCancelled)
}

func TestSession_StalePromptEndKeepsNewerRegistration(t *testing.T) {
	t.Parallel()
	sess := &Session{ID: "s1"}

	var firstCancelled, secondCancelled bool
	firstGen := sess.BeginPrompt(func() { firstCancelled = true })
	sess.BeginPrompt(func() { secondCancelled = true })
	require.True(t, firstCancelled)

	// The first prompt finishes after the second has begun. Its deferred
	// cleanup must leave the second prompt's cancel in place.
	sess.EndPrompt(firstGen)
	sess.CancelPrompt()

	assert.True(t, secondCancelled)
}

func TestSession_EndPromptClearsOwnRegistration(t *testing.T) {
	t.Parallel()
	sess := &Session{ID: "s1"}

	var cancelled bool
	gen := sess.BeginPrompt(func() { cancelled = true })
	sess.EndPrompt(gen)
	sess.CancelPrompt()

	assert.False(t, cancelled)
}

func TestSession_OwnsProcess(t *testing.T) {
	t.Parallel()
	procA := peer.NewAgentProcess(peer.AgentConfig{BinaryPath: "agent"})
	procB := peer.NewAgentProcess(peer.AgentConfig{BinaryPath: "agent"})

	sess := &Session{ID: "s1", Process: procA}
	assert.True(t, sess.ownsProcess(procA))
	assert.False(t, sess.ownsProcess(procB))

	sess.setPeer(procB, nil, "agent-s1")
	assert.True(t, sess.ownsProcess(procB))
	assert.False(t, sess.ownsProcess(procA))
}
