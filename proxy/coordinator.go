package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acpgate/acpgate/acp"
	"github.com/acpgate/acpgate/command"
	"github.com/acpgate/acpgate/config"
	"github.com/acpgate/acpgate/models"
	"github.com/acpgate/acpgate/peer"
	"github.com/acpgate/acpgate/plan"
	"github.com/acpgate/acpgate/policy"
)

const version = "0.1.0"

// Coordinator serves the upstream editor client and owns every session's
// subordinate agent peer. It implements peer.Handler for the upstream
// connection.
type Coordinator struct {
	client      ClientConn
	agentCfg    config.AgentConfig
	defaultMode string

	sessions    *Registry
	modes       *policy.ModeManager
	gate        *policy.Gate
	plans       *plan.Collector
	catalog     *models.Catalog
	commands    *command.Registry
	interceptor *Interceptor

	execMu sync.Mutex
	execs  map[string]*plan.Manager
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithModelCatalog replaces the default builtin model catalog.
func WithModelCatalog(c *models.Catalog) CoordinatorOption {
	return func(co *Coordinator) { co.catalog = c }
}

// NewCoordinator wires a coordinator for one upstream client connection.
func NewCoordinator(client ClientConn, cfg *config.Config, opts ...CoordinatorOption) *Coordinator {
	gate := policy.NewGate()
	c := &Coordinator{
		client:      client,
		agentCfg:    cfg.Agent,
		defaultMode: cfg.DefaultMode,
		sessions:    NewRegistry(),
		modes:       policy.NewModeManager(),
		gate:        gate,
		plans:       plan.NewCollector(),
		catalog:     models.NewCatalog(),
		execs:       make(map[string]*plan.Manager),
	}
	for _, opt := range opts {
		opt(c)
	}

	approver := NewApprover(client, gate, time.Duration(cfg.ApprovalTimeout))
	c.interceptor = NewInterceptor(client, policy.NewClassifier(cfg.DangerousPatterns),
		gate, c.modes, c.plans, approver)
	c.commands = c.builtinCommands()
	return c
}

// ApplyConfig applies the reloadable subset of a freshly loaded config.
func (c *Coordinator) ApplyConfig(cfg *config.Config) {
	c.interceptor.SetClassifier(policy.NewClassifier(cfg.DangerousPatterns))
}

// HandleCall dispatches one upstream call. Blocking operations (session
// creation, prompts, model switches) run on their own goroutine so
// session/cancel and concurrent sessions stay responsive.
func (c *Coordinator) HandleCall(ctx context.Context, conn *peer.Conn, call peer.Call) {
	switch call.Method {
	case acp.MethodInitialize:
		c.handleInitialize(conn, call)
	case acp.MethodAuthenticate:
		c.handleAuthenticate(conn, call)
	case acp.MethodSessionNew:
		go c.handleNewSession(ctx, conn, call)
	case acp.MethodSessionSetMode:
		c.handleSetMode(conn, call)
	case acp.MethodSessionSetModel:
		go c.handleSetModel(ctx, conn, call)
	case acp.MethodSessionPrompt:
		go c.handlePrompt(ctx, conn, call)
	case acp.MethodSessionCancel:
		c.handleCancel(call)
	default:
		if call.HasID {
			_ = conn.RespondError(call.ID, acp.ErrCodeMethodNotFound, "unknown method: "+call.Method)
		} else {
			slog.Debug("ignoring unknown notification", "method", call.Method)
		}
	}
}

func (c *Coordinator) handleInitialize(conn *peer.Conn, call peer.Call) {
	var req acp.InitializeRequest
	if err := json.Unmarshal(call.Params, &req); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, "malformed initialize params")
		return
	}

	_ = conn.Respond(call.ID, acp.InitializeResponse{
		ProtocolVersion: acp.ProtocolVersion,
		AgentInfo:       &acp.Implementation{Name: "acpgate", Version: version},
		AgentCapabilities: &acp.AgentCapabilities{
			LoadSession: false,
			PromptCapabilities: &acp.PromptCapabilities{
				EmbeddedContext: true,
				Image:           true,
			},
		},
	})
}

// handleAuthenticate is a thin stub: no auth method is advertised, so any
// selection succeeds immediately. A middleware fronting an agent that does
// need device-flow auth would surface "pending" as the retryable -32000.
func (c *Coordinator) handleAuthenticate(conn *peer.Conn, call peer.Call) {
	var req acp.AuthenticateRequest
	if err := json.Unmarshal(call.Params, &req); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, "malformed authenticate params")
		return
	}
	_ = conn.Respond(call.ID, acp.AuthenticateResponse{})
}

func (c *Coordinator) handleNewSession(ctx context.Context, conn *peer.Conn, call peer.Call) {
	var req acp.NewSessionRequest
	if err := json.Unmarshal(call.Params, &req); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, "malformed session/new params")
		return
	}
	if err := c.catalog.Validate(req.ModelID); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, err.Error())
		return
	}

	sess, err := c.spawnSession(ctx, req.CWD, req.ModelID)
	if err != nil {
		slog.Error("session creation failed", "cwd", req.CWD, "error", err)
		_ = conn.RespondError(call.ID, acp.ErrCodeInternalError, err.Error())
		return
	}

	currentModel := sess.ModelID
	if currentModel == "" {
		currentModel = "default"
	}
	_ = conn.Respond(call.ID, acp.NewSessionResponse{
		SessionID: sess.ID,
		Modes: &acp.SessionModeState{
			CurrentModeID:  string(c.modes.Get(sess.ID)),
			AvailableModes: policy.Catalog(),
		},
		Models: &acp.SessionModelState{
			CurrentModelID:  currentModel,
			AvailableModels: c.catalog.List(),
		},
	})

	_ = c.client.Notify(acp.MethodSessionUpdate, acp.SessionNotification{
		SessionID: sess.ID,
		Update: acp.SessionUpdate{
			Type:              acp.UpdateTypeAvailableCommands,
			AvailableCommands: c.commands.Available(),
		},
	})
}

// spawnSession starts a subordinate peer and registers the session. On any
// failure the process is stopped and no session is left behind.
func (c *Coordinator) spawnSession(ctx context.Context, cwd, modelID string) (*Session, error) {
	sess := &Session{
		ID:      uuid.NewString(),
		CWD:     cwd,
		ModelID: modelID,
	}

	proc, conn, agentSessionID, err := c.startAgent(ctx, sess, cwd, modelID)
	if err != nil {
		return nil, err
	}
	sess.Process = proc
	sess.Conn = conn
	sess.AgentSessionID = agentSessionID

	c.registerDefaultMode(sess.ID)
	c.sessions.Add(sess)
	go c.watchProcess(sess, proc)

	slog.Info("session created",
		"sessionId", sess.ID, "agentSessionId", agentSessionID, "cwd", cwd, "model", modelID)
	return sess, nil
}

// registerDefaultMode records the session's starting mode, falling back to
// the default policy when the configured mode name is not recognized. The
// mode manager is the single source of truth for what gets advertised in the
// session/new response.
func (c *Coordinator) registerDefaultMode(sessionID string) {
	if err := c.modes.Set(sessionID, c.defaultMode); err != nil {
		slog.Warn("configured default mode not recognized, using default",
			"mode", c.defaultMode, "sessionId", sessionID)
		_ = c.modes.Set(sessionID, string(policy.ModeDefault))
	}
}

// startAgent spawns one subordinate process, connects its stdio peer, and
// runs the ACP client-side handshake (initialize, then session/new).
func (c *Coordinator) startAgent(ctx context.Context, sess *Session, cwd, modelID string) (*peer.AgentProcess, *peer.Conn, string, error) {
	if modelID == "" {
		modelID = c.agentCfg.Model
	}
	proc := peer.NewAgentProcess(peer.AgentConfig{
		BinaryPath: c.agentCfg.Binary,
		Args:       c.agentCfg.Args,
		WorkDir:    cwd,
		ModelFlag:  c.agentCfg.ModelFlag,
		ModelID:    modelID,
	})
	if err := proc.Start(); err != nil {
		return nil, nil, "", err
	}

	conn := peer.NewConn(proc.Stdout(), proc.Stdin(), peer.HandlerFunc(
		func(ctx context.Context, conn *peer.Conn, call peer.Call) {
			c.handleAgentCall(ctx, sess, conn, call)
		}))
	go func() { _ = conn.Run(context.Background()) }()

	if _, err := conn.SendRequest(ctx, acp.MethodInitialize, acp.InitializeRequest{
		ProtocolVersion: acp.ProtocolVersion,
		ClientInfo:      &acp.Implementation{Name: "acpgate", Version: version},
		ClientCapabilities: &acp.ClientCapabilities{
			Fs:       &acp.FsCapability{ReadTextFile: true, WriteTextFile: true},
			Terminal: true,
		},
	}); err != nil {
		conn.Close()
		proc.Stop()
		return nil, nil, "", err
	}

	raw, err := conn.SendRequest(ctx, acp.MethodSessionNew, acp.NewSessionRequest{
		CWD:        cwd,
		McpServers: []acp.McpServerConfig{},
	})
	if err != nil {
		conn.Close()
		proc.Stop()
		return nil, nil, "", err
	}
	var resp acp.NewSessionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		conn.Close()
		proc.Stop()
		return nil, nil, "", &acp.ProtocolError{Message: "malformed session/new response from agent", Cause: err}
	}
	return proc, conn, resp.SessionID, nil
}

// watchProcess tears the session down when its subordinate exits, unless a
// deliberate restart is in progress.
func (c *Coordinator) watchProcess(sess *Session, proc *peer.AgentProcess) {
	<-proc.Done()
	c.handleProcessExit(sess, proc)
}

// handleProcessExit acts on a subordinate exit. The exit of a process that a
// restart has already replaced is stale and must not tear down the session:
// Stop's final wait can return before the old process is fully dead, so its
// watcher may fire after the restarting flag has been cleared.
func (c *Coordinator) handleProcessExit(sess *Session, proc *peer.AgentProcess) {
	if sess.Restarting() || !sess.ownsProcess(proc) {
		return
	}
	slog.Info("agent process exited", "sessionId", sess.ID, "exitErr", proc.ExitErr())
	c.teardown(sess)
}

// teardown clears every component's state for the session.
func (c *Coordinator) teardown(sess *Session) {
	sess.CancelPrompt()
	c.sessions.Remove(sess.ID)
	c.modes.Forget(sess.ID)
	c.gate.Forget(sess.ID)
	c.plans.Clear(sess.ID)
	c.interceptor.ClearSession(sess.ID)
	c.execMu.Lock()
	delete(c.execs, sess.ID)
	c.execMu.Unlock()
	if sess.Conn != nil {
		sess.Conn.Close()
	}
}

func (c *Coordinator) handleSetMode(conn *peer.Conn, call peer.Call) {
	var req acp.SetModeRequest
	if err := json.Unmarshal(call.Params, &req); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, "malformed session/set_mode params")
		return
	}
	if _, err := c.sessions.Get(req.SessionID); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeSessionNotFound, "session not found: "+req.SessionID)
		return
	}
	if err := c.setMode(req.SessionID, req.ModeID); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, err.Error())
		return
	}
	_ = conn.Respond(call.ID, acp.SetModeResponse{})
}

// setMode records the new mode, clears the collected plan when leaving plan
// mode, and notifies the client. Shared by the RPC handler and /mode.
func (c *Coordinator) setMode(sessionID, modeID string) error {
	prev := c.modes.Get(sessionID)
	if err := c.modes.Set(sessionID, modeID); err != nil {
		return err
	}
	if prev == policy.ModePlan && policy.Mode(modeID) != policy.ModePlan {
		c.plans.Clear(sessionID)
	}
	_ = c.client.Notify(acp.MethodSessionUpdate, acp.SessionNotification{
		SessionID: sessionID,
		Update: acp.SessionUpdate{
			Type:          acp.UpdateTypeCurrentMode,
			CurrentModeID: modeID,
		},
	})
	return nil
}

func (c *Coordinator) handleSetModel(ctx context.Context, conn *peer.Conn, call peer.Call) {
	var req acp.SetModelRequest
	if err := json.Unmarshal(call.Params, &req); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, "malformed session/set_model params")
		return
	}
	sess, err := c.sessions.Get(req.SessionID)
	if err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeSessionNotFound, "session not found: "+req.SessionID)
		return
	}
	if err := c.setModel(ctx, sess, req.ModelID); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, err.Error())
		return
	}
	_ = conn.Respond(call.ID, acp.SetModelResponse{})
}

// setModel validates the model and restarts the subordinate with the new
// model flag. Shared by the RPC handler and /model.
func (c *Coordinator) setModel(ctx context.Context, sess *Session, modelID string) error {
	if err := c.catalog.Validate(modelID); err != nil {
		return err
	}
	if err := c.restartAgent(ctx, sess, modelID); err != nil {
		return err
	}
	sess.ModelID = modelID
	return nil
}

// restartAgent replaces the session's subordinate peer in place. The
// restarting flag suppresses exit-driven teardown while the old process dies.
func (c *Coordinator) restartAgent(ctx context.Context, sess *Session, modelID string) error {
	sess.SetRestarting(true)
	defer sess.SetRestarting(false)

	sess.CancelPrompt()
	if sess.Conn != nil {
		sess.Conn.Close()
	}
	if sess.Process != nil {
		sess.Process.Stop()
	}

	proc, conn, agentSessionID, err := c.startAgent(ctx, sess, sess.CWD, modelID)
	if err != nil {
		// The old peer is gone and the new one failed: the session is dead.
		c.teardown(sess)
		return err
	}
	sess.setPeer(proc, conn, agentSessionID)
	go c.watchProcess(sess, proc)
	slog.Info("agent restarted", "sessionId", sess.ID, "model", modelID)
	return nil
}

func (c *Coordinator) handlePrompt(ctx context.Context, conn *peer.Conn, call peer.Call) {
	var req acp.PromptRequest
	if err := json.Unmarshal(call.Params, &req); err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, "malformed session/prompt params")
		return
	}
	sess, err := c.sessions.Get(req.SessionID)
	if err != nil {
		_ = conn.RespondError(call.ID, acp.ErrCodeSessionNotFound, "session not found: "+req.SessionID)
		return
	}

	// Slash commands are handled locally and never reach the subordinate.
	if name, args, ok := command.Parse(promptText(req.Prompt)); ok {
		out, err := c.commands.Execute(ctx, sess.ID, name, args)
		if err != nil {
			out = err.Error()
		}
		c.sendMessage(sess.ID, out)
		_ = conn.Respond(call.ID, acp.PromptResponse{StopReason: acp.StopReasonEndTurn})
		return
	}

	pctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := sess.BeginPrompt(cancel)
	defer sess.EndPrompt(gen)

	raw, err := sess.Conn.SendRequest(pctx, acp.MethodSessionPrompt, acp.PromptRequest{
		SessionID: sess.AgentSessionID,
		Prompt:    req.Prompt,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = conn.Respond(call.ID, acp.PromptResponse{StopReason: acp.StopReasonCancelled})
			return
		}
		// A failed prompt becomes a chat message plus a normal end of turn,
		// so one failure does not terminate the conversation.
		slog.Warn("prompt forwarding failed", "sessionId", sess.ID, "error", err)
		c.sendMessage(sess.ID, "Error: "+err.Error())
		_ = conn.Respond(call.ID, acp.PromptResponse{StopReason: acp.StopReasonEndTurn})
		return
	}

	var resp acp.PromptResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.StopReason == "" {
		resp.StopReason = acp.StopReasonEndTurn
	}
	_ = conn.Respond(call.ID, resp)
}

func (c *Coordinator) handleCancel(call peer.Call) {
	var note acp.CancelNotification
	if err := json.Unmarshal(call.Params, &note); err != nil {
		return
	}
	sess, err := c.sessions.Get(note.SessionID)
	if err != nil {
		return
	}
	sess.CancelPrompt()
	_ = sess.Conn.Notify(acp.MethodSessionCancel, acp.CancelNotification{
		SessionID: sess.AgentSessionID,
	})
}

// handleAgentCall dispatches one subordinate-initiated call: session/update
// notifications go through the interceptor; requests are translated 1:1 into
// upstream client calls with the session id rewritten; anything unrecognized
// is answered with method-not-found so the subordinate never hangs.
func (c *Coordinator) handleAgentCall(ctx context.Context, sess *Session, conn *peer.Conn, call peer.Call) {
	switch call.Method {
	case acp.MethodSessionUpdate:
		var note acp.SessionNotification
		if err := json.Unmarshal(call.Params, &note); err != nil {
			slog.Warn("malformed session/update from agent", "sessionId", sess.ID, "error", err)
			return
		}
		note.SessionID = sess.ID
		c.interceptor.HandleUpdate(ctx, &note)

	case acp.MethodFsReadTextFile, acp.MethodFsWriteTextFile, acp.MethodRequestPermission,
		acp.MethodTerminalCreate, acp.MethodTerminalOutput, acp.MethodTerminalWaitExit,
		acp.MethodTerminalKill, acp.MethodTerminalRelease:
		if !call.HasID {
			return
		}
		c.proxyToClient(ctx, sess, conn, call)

	default:
		if call.HasID {
			_ = conn.RespondError(call.ID, acp.ErrCodeMethodNotFound, "unknown method: "+call.Method)
		} else {
			slog.Debug("ignoring agent notification", "method", call.Method)
		}
	}
}

// proxyToClient forwards a subordinate request to the upstream client and
// pipes the result (or error) back as the subordinate's response.
func (c *Coordinator) proxyToClient(ctx context.Context, sess *Session, conn *peer.Conn, call peer.Call) {
	params := map[string]interface{}{}
	if len(call.Params) > 0 {
		if err := json.Unmarshal(call.Params, &params); err != nil {
			_ = conn.RespondError(call.ID, acp.ErrCodeInvalidParams, "malformed params")
			return
		}
	}
	params["sessionId"] = sess.ID

	raw, err := c.client.SendRequest(ctx, call.Method, params)
	if err != nil {
		var rpcErr *acp.RPCError
		if errors.As(err, &rpcErr) {
			_ = conn.RespondError(call.ID, rpcErr.Code, rpcErr.Message)
		} else {
			_ = conn.RespondError(call.ID, acp.ErrCodeInternalError, err.Error())
		}
		return
	}
	_ = conn.Respond(call.ID, json.RawMessage(raw))
}

// sendMessage reports text to the user as an agent message chunk.
func (c *Coordinator) sendMessage(sessionID, text string) {
	content := acp.NewTextContent(text)
	_ = c.client.Notify(acp.MethodSessionUpdate, acp.SessionNotification{
		SessionID: sessionID,
		Update: acp.SessionUpdate{
			Type:    acp.UpdateTypeAgentMessage,
			Content: &content,
		},
	})
}

// promptText extracts the plain text of a prompt for slash-command parsing.
func promptText(blocks []acp.ContentBlock) string {
	for _, b := range blocks {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}
