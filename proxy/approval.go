package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/acpgate/acpgate/acp"
	"github.com/acpgate/acpgate/policy"
)

// ClientConn is the slice of the upstream peer connection the policy side
// needs: blocking requests and fire-and-forget notifications.
type ClientConn interface {
	SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
	Notify(method string, params interface{}) error
}

// Outcome is the closed result set of an approval request.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeAllowAlways
	OutcomeReject
	OutcomeCancelled
)

// String returns the outcome's wire-ish name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeAllowAlways:
		return "allow_always"
	case OutcomeReject:
		return "reject"
	default:
		return "cancelled"
	}
}

// Approved reports whether the outcome lets the invocation proceed.
func (o Outcome) Approved() bool {
	return o == OutcomeAllow || o == OutcomeAllowAlways
}

// Option ids offered on every permission request.
const (
	optionAllow       = "allow"
	optionAllowAlways = "allow_always"
	optionReject      = "reject"
)

var permissionOptions = []acp.PermissionOption{
	{ID: optionAllow, Name: "Allow", Kind: acp.PermissionAllowOnce},
	{ID: optionAllowAlways, Name: "Always Allow", Kind: acp.PermissionAllowAlways},
	{ID: optionReject, Name: "Reject", Kind: acp.PermissionRejectOnce},
}

// Approver runs the interactive approval flow against the upstream client.
// Transport failures and timeouts downgrade to OutcomeCancelled; approval
// must never crash the session and always fails closed.
type Approver struct {
	client  ClientConn
	gate    *policy.Gate
	timeout time.Duration
}

// NewApprover creates an approver. A zero timeout waits forever.
func NewApprover(client ClientConn, gate *policy.Gate, timeout time.Duration) *Approver {
	return &Approver{client: client, gate: gate, timeout: timeout}
}

// Request asks the upstream client to approve one tool call. Plan mode
// short-circuits to a synthetic rejection without contacting the client. An
// allow-always outcome records the risk kind in the session's override set
// before returning.
func (a *Approver) Request(ctx context.Context, sessionID string, call policy.ToolCall, kind policy.RiskKind, mode policy.Mode) Outcome {
	if mode == policy.ModePlan {
		return OutcomeReject
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req := acp.RequestPermissionRequest{
		SessionID: sessionID,
		ToolCall: acp.ToolCallRef{
			ToolCallID: call.ID,
			Title:      call.Title,
			Kind:       call.Kind,
			Status:     acp.ToolCallStatusPending,
			RawInput:   call.RawInput,
		},
		Options: permissionOptions,
	}

	raw, err := a.client.SendRequest(ctx, acp.MethodRequestPermission, req)
	if err != nil {
		slog.Warn("approval request failed, treating as cancelled",
			"sessionId", sessionID, "toolCallId", call.ID, "error", err)
		return OutcomeCancelled
	}

	var resp acp.RequestPermissionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		slog.Warn("unparsable approval response, treating as cancelled",
			"sessionId", sessionID, "toolCallId", call.ID, "error", err)
		return OutcomeCancelled
	}

	if resp.Outcome.Type != "selected" {
		return OutcomeCancelled
	}
	switch resp.Outcome.OptionID {
	case optionAllow:
		return OutcomeAllow
	case optionAllowAlways:
		a.gate.AllowAlways(sessionID, kind)
		return OutcomeAllowAlways
	case optionReject:
		return OutcomeReject
	default:
		// Unknown option id fails closed.
		return OutcomeReject
	}
}
