package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/acpgate/acpgate/acp"
	"github.com/acpgate/acpgate/plan"
	"github.com/acpgate/acpgate/policy"
)

// Messages attached to synthesized failure updates.
const (
	planBlockedReason = "Plan mode - execution blocked"
	rejectedReason    = "User rejected the operation"
)

// approvalRequester is the Approver surface the interceptor depends on.
type approvalRequester interface {
	Request(ctx context.Context, sessionID string, call policy.ToolCall, kind policy.RiskKind, mode policy.Mode) Outcome
}

// invocationKey scopes blocked-invocation tracking by session, so invocation
// ids from different subordinate processes cannot collide.
type invocationKey struct {
	sessionID  string
	toolCallID string
}

// Interceptor routes every session/update from a subordinate peer through
// classification and gating, and decides whether to relay it unchanged, relay
// a modified status, or suppress it.
type Interceptor struct {
	gate     *policy.Gate
	modes    *policy.ModeManager
	plans    *plan.Collector
	approver approvalRequester
	client   ClientConn

	mu         sync.Mutex
	classifier *policy.Classifier
	blocked    map[invocationKey]struct{}
}

// NewInterceptor wires the interceptor to its collaborators.
func NewInterceptor(client ClientConn, classifier *policy.Classifier, gate *policy.Gate,
	modes *policy.ModeManager, plans *plan.Collector, approver approvalRequester) *Interceptor {
	return &Interceptor{
		client:     client,
		classifier: classifier,
		gate:       gate,
		modes:      modes,
		plans:      plans,
		approver:   approver,
		blocked:    make(map[invocationKey]struct{}),
	}
}

// SetClassifier swaps the classifier, used when config patterns reload.
func (i *Interceptor) SetClassifier(c *policy.Classifier) {
	i.mu.Lock()
	i.classifier = c
	i.mu.Unlock()
}

// HandleUpdate processes one session/update notification whose session id has
// already been rewritten to the upstream-facing id. Tool-call and
// tool-call-update notifications go through the policy pipeline; everything
// else relays unchanged.
func (i *Interceptor) HandleUpdate(ctx context.Context, note *acp.SessionNotification) {
	switch note.Update.Type {
	case acp.UpdateTypeToolCall:
		i.handleToolCall(ctx, note)
	case acp.UpdateTypeToolCallUpdate:
		i.handleToolCallUpdate(note)
	default:
		i.relay(note)
	}
}

func (i *Interceptor) handleToolCall(ctx context.Context, note *acp.SessionNotification) {
	call := policy.ToolCall{
		ID:       note.Update.ToolCallID,
		Title:    note.Update.Title,
		Kind:     note.Update.Kind,
		RawInput: note.Update.RawInput,
	}
	kind := i.currentClassifier().Classify(call)
	mode := i.modes.Get(note.SessionID)
	key := invocationKey{note.SessionID, call.ID}

	if !i.gate.NeedsApproval(note.SessionID, mode, kind) {
		i.relay(note)
		return
	}

	if mode == policy.ModePlan {
		i.plans.Add(note.SessionID, call, kind)
		i.mark(i.blocked, key)

		// The original notification is suppressed; these three updates are
		// sent in its place, back to back.
		pending := *note
		pending.Update.Status = acp.ToolCallStatusPending
		i.relay(&pending)
		i.relay(&acp.SessionNotification{
			SessionID: note.SessionID,
			Update: acp.SessionUpdate{
				Type:    acp.UpdateTypePlan,
				Entries: i.plans.Snapshot(note.SessionID),
			},
		})
		i.relayBlockedUpdate(note.SessionID, call.ID, map[string]interface{}{
			"blocked": true,
			"reason":  planBlockedReason,
		})
		return
	}

	// Interactive path: the client sees the call as pending while approval
	// is outstanding.
	pending := *note
	pending.Update.Status = acp.ToolCallStatusPending
	i.relay(&pending)

	outcome := i.approver.Request(ctx, note.SessionID, call, kind, mode)
	slog.Debug("approval outcome",
		"sessionId", note.SessionID, "toolCallId", call.ID,
		"riskKind", string(kind), "outcome", outcome.String())

	if outcome.Approved() {
		return
	}
	i.mark(i.blocked, key)
	i.relayBlockedUpdate(note.SessionID, call.ID, map[string]interface{}{
		"rejected": true,
		"reason":   rejectedReason,
	})
}

func (i *Interceptor) handleToolCallUpdate(note *acp.SessionNotification) {
	key := invocationKey{note.SessionID, note.Update.ToolCallID}
	if i.isBlocked(key) {
		// The client already holds a terminal status for this invocation.
		return
	}

	status := note.Update.Status
	if status == acp.ToolCallStatusCompleted || status == acp.ToolCallStatusFailed {
		i.plans.UpdateByInvocationID(note.SessionID, note.Update.ToolCallID, status)
	}
	i.relay(note)
}

// ClearSession drops the session's invocation tracking on teardown.
func (i *Interceptor) ClearSession(sessionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for key := range i.blocked {
		if key.sessionID == sessionID {
			delete(i.blocked, key)
		}
	}
}

func (i *Interceptor) relay(note *acp.SessionNotification) {
	if err := i.client.Notify(acp.MethodSessionUpdate, note); err != nil {
		slog.Warn("failed to relay session update",
			"sessionId", note.SessionID, "type", note.Update.Type, "error", err)
	}
}

// relayBlockedUpdate sends a synthesized failed tool_call_update carrying a
// structured payload explaining the block.
func (i *Interceptor) relayBlockedUpdate(sessionID, toolCallID string, payload map[string]interface{}) {
	meta, err := json.Marshal(payload)
	if err != nil {
		meta = nil
	}
	i.relay(&acp.SessionNotification{
		SessionID: sessionID,
		Update: acp.SessionUpdate{
			Type:       acp.UpdateTypeToolCallUpdate,
			ToolCallID: toolCallID,
			Status:     acp.ToolCallStatusFailed,
			Meta:       meta,
		},
	})
}

func (i *Interceptor) currentClassifier() *policy.Classifier {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.classifier
}

func (i *Interceptor) mark(set map[invocationKey]struct{}, key invocationKey) {
	i.mu.Lock()
	set[key] = struct{}{}
	i.mu.Unlock()
}

func (i *Interceptor) isBlocked(key invocationKey) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.blocked[key]
	return ok
}
