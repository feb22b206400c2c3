package plan

import (
	"errors"
	"fmt"
	"sync"
)

// Execution-plan errors.
var (
	ErrPlanActive   = errors.New("an execution plan is already active")
	ErrNoPlan       = errors.New("no execution plan")
	ErrPlanTerminal = errors.New("execution plan is terminal")
)

// PlanState is the lifecycle state of an ExecutionPlan.
type PlanState string

const (
	// StateDraft means the plan exists but has not been approved as a whole.
	StateDraft PlanState = "draft"
	// StateActive means the plan was approved and is stepping through.
	StateActive PlanState = "active"
	// StateCompleted means every step finished as completed or skipped.
	StateCompleted PlanState = "completed"
	// StateCancelled means the plan or one of its steps was rejected or failed.
	StateCancelled PlanState = "cancelled"
)

// StepStatus is the lifecycle state of one plan step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepApproved  StepStatus = "approved"
	StepExecuting StepStatus = "executing"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
)

// StepError reports an operation applied to a step in the wrong state.
type StepError struct {
	Index  int
	Status StepStatus
	Op     string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("cannot %s step %d in status %q", e.Op, e.Index, e.Status)
}

// Step is one ordered unit of work in an execution plan.
type Step struct {
	Description string
	Result      string
	Status      StepStatus
}

// ExecutionPlan steps through an ordered task breakdown with per-step
// approval. Exactly one step is current at a time while the plan is active,
// and steps only advance forward.
type ExecutionPlan struct {
	Title   string
	Steps   []Step
	State   PlanState
	current int
}

// Manager owns at most one live execution plan at a time.
type Manager struct {
	mu   sync.Mutex
	plan *ExecutionPlan
}

// NewManager creates a manager with no live plan.
func NewManager() *Manager {
	return &Manager{}
}

// Create starts a new plan in draft state. It fails with ErrPlanActive while
// a non-terminal plan exists.
func (m *Manager) Create(title string, stepDescriptions []string) (*ExecutionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plan != nil && !m.plan.terminal() {
		return nil, ErrPlanActive
	}
	steps := make([]Step, len(stepDescriptions))
	for i, d := range stepDescriptions {
		steps[i] = Step{Description: d, Status: StepPending}
	}
	m.plan = &ExecutionPlan{Title: title, Steps: steps, State: StateDraft}
	return m.plan, nil
}

// Current returns the live plan, or ErrNoPlan if none exists or the last one
// is terminal.
func (m *Manager) Current() (*ExecutionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plan == nil || m.plan.terminal() {
		return nil, ErrNoPlan
	}
	return m.plan, nil
}

// Clear drops the live plan regardless of state.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.plan = nil
	m.mu.Unlock()
}

func (p *ExecutionPlan) terminal() bool {
	return p.State == StateCompleted || p.State == StateCancelled
}

// Approve activates a draft plan. An empty plan completes immediately.
func (p *ExecutionPlan) Approve() error {
	if p.State != StateDraft {
		return ErrPlanTerminal
	}
	if len(p.Steps) == 0 {
		p.State = StateCompleted
		return nil
	}
	p.State = StateActive
	p.current = 0
	return nil
}

// Reject cancels the plan from any non-terminal state.
func (p *ExecutionPlan) Reject() error {
	if p.terminal() {
		return ErrPlanTerminal
	}
	p.State = StateCancelled
	return nil
}

// CurrentIndex returns the index of the current step while the plan is
// active, and -1 otherwise.
func (p *ExecutionPlan) CurrentIndex() int {
	if p.State != StateActive {
		return -1
	}
	return p.current
}

// ApproveStep marks the current pending step approved, ready to execute.
func (p *ExecutionPlan) ApproveStep() error {
	step, err := p.currentStep()
	if err != nil {
		return err
	}
	if step.Status != StepPending {
		return &StepError{Op: "approve", Index: p.current, Status: step.Status}
	}
	step.Status = StepApproved
	return nil
}

// StartStep marks the current approved step as executing.
func (p *ExecutionPlan) StartStep() error {
	step, err := p.currentStep()
	if err != nil {
		return err
	}
	if step.Status != StepApproved {
		return &StepError{Op: "start", Index: p.current, Status: step.Status}
	}
	step.Status = StepExecuting
	return nil
}

// CompleteStep finishes the current executing step with a result and advances
// to the next step, completing the plan after the last one.
func (p *ExecutionPlan) CompleteStep(result string) error {
	step, err := p.currentStep()
	if err != nil {
		return err
	}
	if step.Status != StepExecuting {
		return &StepError{Op: "complete", Index: p.current, Status: step.Status}
	}
	step.Status = StepCompleted
	step.Result = result
	p.advance()
	return nil
}

// SkipStep skips the current step before it starts executing and advances.
func (p *ExecutionPlan) SkipStep() error {
	step, err := p.currentStep()
	if err != nil {
		return err
	}
	if step.Status == StepExecuting {
		return &StepError{Op: "skip", Index: p.current, Status: step.Status}
	}
	step.Status = StepSkipped
	p.advance()
	return nil
}

// FailStep marks the current step failed and cancels the whole plan.
func (p *ExecutionPlan) FailStep(reason string) error {
	step, err := p.currentStep()
	if err != nil {
		return err
	}
	step.Status = StepFailed
	step.Result = reason
	p.State = StateCancelled
	return nil
}

func (p *ExecutionPlan) currentStep() (*Step, error) {
	if p.State != StateActive {
		return nil, ErrPlanTerminal
	}
	return &p.Steps[p.current], nil
}

func (p *ExecutionPlan) advance() {
	p.current++
	if p.current >= len(p.Steps) {
		p.State = StateCompleted
	}
}
