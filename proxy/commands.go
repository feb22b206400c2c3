package proxy

import (
	"context"
	"fmt"
	"strings"

	"github.com/acpgate/acpgate/command"
	"github.com/acpgate/acpgate/plan"
	"github.com/acpgate/acpgate/policy"
)

// Argument shapes for the builtin slash commands. The schemas generated from
// these are what clients see in available_commands_update.

type modeCmdArgs struct {
	Mode string `json:"mode,omitempty" jsonschema:"description=Mode id to switch to,enum=default,enum=auto_edit,enum=plan,enum=professional,enum=yolo,enum=bypass"`
}

type modelCmdArgs struct {
	Model string `json:"model,omitempty" jsonschema:"description=Model id to switch to"`
}

type planCmdArgs struct {
	Action string `json:"action,omitempty" jsonschema:"description=Execution-plan action,enum=show,enum=create,enum=approve,enum=step,enum=done,enum=skip,enum=reject"`
}

type helpCmdArgs struct{}

func (c *Coordinator) builtinCommands() *command.Registry {
	r := command.NewRegistry()
	command.Register[modeCmdArgs](r, "mode", "Show or switch the session mode", c.cmdMode)
	command.Register[modelCmdArgs](r, "model", "Show or switch the session model", c.cmdModel)
	command.Register[planCmdArgs](r, "plan", "Show or drive the current plan", c.cmdPlan)
	command.Register[helpCmdArgs](r, "help", "List available commands", c.cmdHelp)
	return r
}

func (c *Coordinator) cmdMode(_ context.Context, sessionID string, args []string) (string, error) {
	if len(args) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Current mode: %s\n\nAvailable modes:\n", c.modes.Get(sessionID))
		for _, m := range policy.Catalog() {
			fmt.Fprintf(&b, "  %s - %s\n", m.ID, m.Description)
		}
		return b.String(), nil
	}
	if err := c.setMode(sessionID, args[0]); err != nil {
		return "", err
	}
	return "Mode set to " + args[0], nil
}

func (c *Coordinator) cmdModel(ctx context.Context, sessionID string, args []string) (string, error) {
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		current := sess.ModelID
		if current == "" {
			current = "default"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Current model: %s\n\nAvailable models:\n", current)
		for _, m := range c.catalog.List() {
			fmt.Fprintf(&b, "  %s - %s\n", m.ModelID, m.Description)
		}
		return b.String(), nil
	}
	if err := c.setModel(ctx, sess, args[0]); err != nil {
		return "", err
	}
	return "Model set to " + args[0] + " (agent restarted)", nil
}

// cmdPlan shows the collected plan, or in professional mode drives the
// execution-plan state machine:
//
//	/plan                      show the current plan
//	/plan create step; step    create a draft execution plan
//	/plan approve              approve the draft and start stepping
//	/plan step                 approve and start the current step
//	/plan done [result]        complete the current step
//	/plan skip                 skip the current step
//	/plan reject               cancel the execution plan
func (c *Coordinator) cmdPlan(_ context.Context, sessionID string, args []string) (string, error) {
	if c.modes.Get(sessionID) == policy.ModeProfessional {
		return c.cmdExecPlan(sessionID, args)
	}

	entries := c.plans.Get(sessionID)
	if len(entries) == 0 {
		return "No plan collected. Switch to plan mode to collect one.", nil
	}
	var b strings.Builder
	b.WriteString("Collected plan:\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "  %d. [%s/%s] %s\n", i+1, e.Priority, e.Status, e.Content)
	}
	return b.String(), nil
}

func (c *Coordinator) cmdExecPlan(sessionID string, args []string) (string, error) {
	mgr := c.execManager(sessionID)

	action := "show"
	if len(args) > 0 {
		action = args[0]
	}

	if action == "create" {
		title := "Execution plan"
		var steps []string
		for _, s := range strings.Split(strings.Join(args[1:], " "), ";") {
			if s = strings.TrimSpace(s); s != "" {
				steps = append(steps, s)
			}
		}
		if len(steps) == 0 {
			return "", fmt.Errorf("usage: /plan create <step>; <step>; ...")
		}
		if _, err := mgr.Create(title, steps); err != nil {
			return "", err
		}
		return fmt.Sprintf("Created execution plan with %d steps. /plan approve to begin.", len(steps)), nil
	}

	p, err := mgr.Current()
	if err != nil {
		return "No execution plan. Use /plan create <step>; <step>; ...", nil
	}

	switch action {
	case "show":
		return renderExecPlan(p), nil
	case "approve":
		if err := p.Approve(); err != nil {
			return "", err
		}
		return "Execution plan approved.\n" + renderExecPlan(p), nil
	case "step":
		if err := p.ApproveStep(); err != nil {
			return "", err
		}
		if err := p.StartStep(); err != nil {
			return "", err
		}
		return fmt.Sprintf("Step %d started: %s", p.CurrentIndex()+1, p.Steps[p.CurrentIndex()].Description), nil
	case "done":
		result := strings.Join(args[1:], " ")
		if err := p.CompleteStep(result); err != nil {
			return "", err
		}
		return "Step completed.\n" + renderExecPlan(p), nil
	case "skip":
		if err := p.SkipStep(); err != nil {
			return "", err
		}
		return "Step skipped.\n" + renderExecPlan(p), nil
	case "reject":
		if err := p.Reject(); err != nil {
			return "", err
		}
		return "Execution plan cancelled.", nil
	default:
		return "", fmt.Errorf("unknown plan action: %s", action)
	}
}

func renderExecPlan(p *plan.ExecutionPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", p.Title, p.State)
	for i, s := range p.Steps {
		marker := "  "
		if i == p.CurrentIndex() {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%d. [%s] %s\n", marker, i+1, s.Status, s.Description)
	}
	return b.String()
}

func (c *Coordinator) cmdHelp(_ context.Context, _ string, _ []string) (string, error) {
	return c.commands.Help(), nil
}

// execManager returns the session's execution-plan manager, creating it on
// first use.
func (c *Coordinator) execManager(sessionID string) *plan.Manager {
	c.execMu.Lock()
	defer c.execMu.Unlock()
	mgr, ok := c.execs[sessionID]
	if !ok {
		mgr = plan.NewManager()
		c.execs[sessionID] = mgr
	}
	return mgr
}
