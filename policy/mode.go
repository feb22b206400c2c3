package policy

import (
	"fmt"
	"sync"

	"github.com/acpgate/acpgate/acp"
)

// Mode is a session operating mode.
type Mode string

const (
	// ModeDefault asks for approval on every non-read operation.
	ModeDefault Mode = "default"
	// ModeAutoEdit auto-approves file edits and asks for everything else.
	ModeAutoEdit Mode = "auto_edit"
	// ModePlan blocks execution and collects intended actions as a plan.
	ModePlan Mode = "plan"
	// ModeProfessional plans first, then steps through execution with
	// per-step approval.
	ModeProfessional Mode = "professional"
	// ModeYolo auto-approves everything except dangerous commands.
	ModeYolo Mode = "yolo"
	// ModeBypass performs no checks at all.
	ModeBypass Mode = "bypass"
)

// Valid reports whether m is in the catalog.
func (m Mode) Valid() bool {
	switch m {
	case ModeDefault, ModeAutoEdit, ModePlan, ModeProfessional, ModeYolo, ModeBypass:
		return true
	default:
		return false
	}
}

// UnknownModeError reports a mode id outside the catalog.
type UnknownModeError struct {
	ID string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown session mode: %q", e.ID)
}

// Catalog returns the mode catalog for capability negotiation, in display
// order.
func Catalog() []acp.SessionMode {
	return []acp.SessionMode{
		{ID: string(ModeDefault), Name: "Default", Description: "Ask before any modifying operation"},
		{ID: string(ModeAutoEdit), Name: "Auto Edit", Description: "Auto-approve file edits, ask for commands"},
		{ID: string(ModePlan), Name: "Plan", Description: "Read-only planning; collect actions without executing"},
		{ID: string(ModeProfessional), Name: "Professional", Description: "Plan, then approve and execute step by step"},
		{ID: string(ModeYolo), Name: "Don't Ask", Description: "Auto-approve everything except dangerous commands"},
		{ID: string(ModeBypass), Name: "Bypass", Description: "No permission checks"},
	}
}

// ModeManager tracks the current mode per session. Unset sessions are in
// ModeDefault. Setting a mode records it and nothing else; cascading effects
// (clearing plans on leaving plan mode) are the caller's responsibility.
type ModeManager struct {
	mu    sync.Mutex
	modes map[string]Mode
}

// NewModeManager creates an empty mode manager.
func NewModeManager() *ModeManager {
	return &ModeManager{modes: make(map[string]Mode)}
}

// Get returns the session's current mode, defaulting to ModeDefault.
func (m *ModeManager) Get(sessionID string) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode, ok := m.modes[sessionID]; ok {
		return mode
	}
	return ModeDefault
}

// Set records the session's mode. It fails with *UnknownModeError if the id
// is not in the catalog, leaving the previous mode in place.
func (m *ModeManager) Set(sessionID, modeID string) error {
	mode := Mode(modeID)
	if !mode.Valid() {
		return &UnknownModeError{ID: modeID}
	}
	m.mu.Lock()
	m.modes[sessionID] = mode
	m.mu.Unlock()
	return nil
}

// Forget drops the session's mode state on teardown.
func (m *ModeManager) Forget(sessionID string) {
	m.mu.Lock()
	delete(m.modes, sessionID)
	m.mu.Unlock()
}
