package peer

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/acpgate/acpgate/acp"
	"github.com/acpgate/acpgate/internal/procattr"
)

// AgentConfig describes how to spawn the subordinate agent CLI.
type AgentConfig struct {
	Env        map[string]string
	BinaryPath string
	WorkDir    string
	// ModelFlag and ModelID select the model at spawn time, e.g.
	// --model <id>. Both empty means the agent's default.
	ModelFlag string
	ModelID   string
	Args      []string
}

// AgentProcess manages one subordinate agent subprocess. Its stdin/stdout
// carry the newline-delimited JSON-RPC stream; stderr is diagnostic-only and
// is drained to the log so the child never blocks on a full pipe.
type AgentProcess struct {
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	cmd      *exec.Cmd
	waitDone chan struct{}
	waitErr  error
	mu       sync.Mutex
	started  bool
	stopping bool
}

// NewAgentProcess prepares an unstarted agent process.
func NewAgentProcess(cfg AgentConfig) *AgentProcess {
	args := append([]string(nil), cfg.Args...)
	if cfg.ModelFlag != "" && cfg.ModelID != "" {
		args = append(args, cfg.ModelFlag, cfg.ModelID)
	}

	cmd := exec.Command(cfg.BinaryPath, args...)
	cmd.Dir = cfg.WorkDir

	// Process group for orphan prevention.
	procattr.Set(cmd)

	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	return &AgentProcess{cmd: cmd, waitDone: make(chan struct{})}
}

// Start spawns the process and wires up its pipes.
func (p *AgentProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return acp.ErrAlreadyStarted
	}

	var err error
	p.stdin, err = p.cmd.StdinPipe()
	if err != nil {
		return &acp.ProcessError{Message: "failed to get stdin pipe", Cause: err}
	}
	p.stdout, err = p.cmd.StdoutPipe()
	if err != nil {
		return &acp.ProcessError{Message: "failed to get stdout pipe", Cause: err}
	}
	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		return &acp.ProcessError{Message: "failed to get stderr pipe", Cause: err}
	}

	if err := p.cmd.Start(); err != nil {
		return &acp.ProcessError{Message: "failed to start agent process", Cause: err}
	}

	go p.drainStderr()

	// Single waiter; everyone else observes exit through Done.
	go func() {
		p.waitErr = p.cmd.Wait()
		close(p.waitDone)
	}()

	p.started = true
	return nil
}

// Stdin returns the protocol write side. Valid after Start.
func (p *AgentProcess) Stdin() io.Writer { return p.stdin }

// Stdout returns the protocol read side. Valid after Start.
func (p *AgentProcess) Stdout() io.Reader { return p.stdout }

// Done is closed once the process has exited.
func (p *AgentProcess) Done() <-chan struct{} { return p.waitDone }

// ExitErr returns the wait error. Valid once Done is closed.
func (p *AgentProcess) ExitErr() error {
	select {
	case <-p.waitDone:
		return p.waitErr
	default:
		return nil
	}
}

// Stop closes stdin to signal shutdown, then escalates to SIGINT and finally
// SIGKILL on the whole process group if the child lingers.
func (p *AgentProcess) Stop() {
	p.mu.Lock()
	if !p.started || p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	p.mu.Unlock()

	if p.stdin != nil {
		p.stdin.Close()
	}

	select {
	case <-p.waitDone:
		return
	case <-time.After(500 * time.Millisecond):
	}

	if p.cmd.Process != nil {
		_ = procattr.SignalGroup(p.cmd.Process, syscall.SIGINT)
	}
	select {
	case <-p.waitDone:
		return
	case <-time.After(500 * time.Millisecond):
	}

	if p.cmd.Process != nil {
		_ = procattr.KillGroup(p.cmd.Process)
	}
	select {
	case <-p.waitDone:
	case <-time.After(200 * time.Millisecond):
	}
}

// drainStderr logs the child's stderr line by line at debug level.
func (p *AgentProcess) drainStderr() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Debug("agent stderr", "line", scanner.Text())
	}
}
