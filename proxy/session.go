package proxy

import (
	"context"
	"sync"

	"github.com/acpgate/acpgate/acp"
	"github.com/acpgate/acpgate/peer"
)

// Session pairs an upstream-facing session id with its subordinate agent
// peer. The upstream id is ours; AgentSessionID is what the subordinate
// assigned in its own session/new and must be substituted on every frame
// crossing the boundary.
type Session struct {
	ID             string
	AgentSessionID string
	CWD            string
	ModelID        string

	Conn    *peer.Conn
	Process *peer.AgentProcess

	mu           sync.Mutex
	cancelPrompt context.CancelFunc
	promptGen    uint64
	restarting   bool
}

// BeginPrompt registers the cancel function for a newly started prompt and
// returns its generation token. A prompt already in flight is cancelled
// first.
func (s *Session) BeginPrompt(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	prev := s.cancelPrompt
	s.promptGen++
	gen := s.promptGen
	s.cancelPrompt = cancel
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
	return gen
}

// EndPrompt clears the cancel registration for the prompt identified by gen.
// A prompt finishing after a newer one has begun must not wipe the newer
// prompt's registration.
func (s *Session) EndPrompt(gen uint64) {
	s.mu.Lock()
	if s.promptGen == gen {
		s.cancelPrompt = nil
	}
	s.mu.Unlock()
}

// CancelPrompt aborts the in-flight prompt, if any.
func (s *Session) CancelPrompt() {
	s.mu.Lock()
	cancel := s.cancelPrompt
	s.cancelPrompt = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SetRestarting marks whether a deliberate subordinate restart is in
// progress, which suppresses exit-driven teardown.
func (s *Session) SetRestarting(v bool) {
	s.mu.Lock()
	s.restarting = v
	s.mu.Unlock()
}

// Restarting reports whether a deliberate restart is in progress.
func (s *Session) Restarting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarting
}

// ownsProcess reports whether p is still the session's current subordinate.
// An exit watcher for a process that has been swapped out must not act on
// the session.
func (s *Session) ownsProcess(p *peer.AgentProcess) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Process == p
}

// setPeer swaps in a freshly spawned subordinate peer during a restart.
func (s *Session) setPeer(proc *peer.AgentProcess, conn *peer.Conn, agentSessionID string) {
	s.mu.Lock()
	s.Process = proc
	s.Conn = conn
	s.AgentSessionID = agentSessionID
	s.mu.Unlock()
}

// Registry is the coordinator's session map.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

// Get looks a session up by upstream id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, acp.ErrSessionNotFound
	}
	return s, nil
}

// Remove drops a session from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
