package acp

import "encoding/json"

// ProtocolVersion is the ACP protocol version spoken on both links.
const ProtocolVersion = 1

// --- Initialize ---

// InitializeRequest establishes the connection and negotiates capabilities.
type InitializeRequest struct {
	ClientCapabilities *ClientCapabilities `json:"clientCapabilities,omitempty"`
	ClientInfo         *Implementation     `json:"clientInfo,omitempty"`
	ProtocolVersion    int                 `json:"protocolVersion"`
}

// InitializeResponse carries the agent's negotiated capabilities.
type InitializeResponse struct {
	AgentCapabilities *AgentCapabilities `json:"agentCapabilities,omitempty"`
	AgentInfo         *Implementation    `json:"agentInfo,omitempty"`
	AuthMethods       []AuthMethod       `json:"authMethods,omitempty"`
	ProtocolVersion   int                `json:"protocolVersion"`
}

// Implementation identifies a client or agent.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ClientCapabilities advertises what the client supports.
type ClientCapabilities struct {
	Fs       *FsCapability `json:"fs,omitempty"`
	Terminal bool          `json:"terminal,omitempty"`
}

// FsCapability describes file system capabilities.
type FsCapability struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

// AgentCapabilities advertises what the agent supports.
type AgentCapabilities struct {
	PromptCapabilities *PromptCapabilities `json:"promptCapabilities,omitempty"`
	LoadSession        bool                `json:"loadSession"`
}

// PromptCapabilities describes supported prompt content.
type PromptCapabilities struct {
	Audio           bool `json:"audio"`
	EmbeddedContext bool `json:"embeddedContext"`
	Image           bool `json:"image"`
}

// AuthMethod describes an authentication method.
type AuthMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// AuthenticateRequest selects an authentication method.
type AuthenticateRequest struct {
	MethodID string `json:"methodId"`
}

// AuthenticateResponse is empty on success.
type AuthenticateResponse struct{}

// --- Session ---

// NewSessionRequest creates a new conversation session.
type NewSessionRequest struct {
	CWD        string            `json:"cwd"`
	ModelID    string            `json:"modelId,omitempty"`
	McpServers []McpServerConfig `json:"mcpServers"`
}

// NewSessionResponse returns the created session plus mode and model catalogs
// for capability negotiation.
type NewSessionResponse struct {
	SessionID string             `json:"sessionId"`
	Modes     *SessionModeState  `json:"modes,omitempty"`
	Models    *SessionModelState `json:"models,omitempty"`
}

// SessionModeState pairs the current mode with the available catalog.
type SessionModeState struct {
	CurrentModeID  string        `json:"currentModeId"`
	AvailableModes []SessionMode `json:"availableModes"`
}

// SessionMode describes one selectable mode.
type SessionMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionModelState pairs the current model with the available catalog.
type SessionModelState struct {
	CurrentModelID  string      `json:"currentModelId"`
	AvailableModels []ModelInfo `json:"availableModels"`
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ModelID     string `json:"modelId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// McpServerConfig configures an external tool server for the session.
type McpServerConfig struct {
	Name    string   `json:"name"`
	Type    string   `json:"type,omitempty"`
	Command string   `json:"command,omitempty"`
	URL     string   `json:"url,omitempty"`
	Args    []string `json:"args,omitempty"`
	Env     []EnvVar `json:"env,omitempty"`
}

// EnvVar is a name-value pair for environment variables.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SetModeRequest changes the session's operating mode.
type SetModeRequest struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// SetModeResponse is empty on success.
type SetModeResponse struct{}

// SetModelRequest changes the session's model.
type SetModelRequest struct {
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
}

// SetModelResponse is empty on success.
type SetModelResponse struct{}

// --- Prompt ---

// Stop reasons for a completed prompt turn.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonCancelled = "cancelled"
)

// PromptRequest sends a user prompt into a session.
type PromptRequest struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// PromptResponse signals the prompt turn has completed.
type PromptResponse struct {
	StopReason string `json:"stopReason"`
}

// ContentBlock represents typed content in prompts and messages.
// Discriminated by the Type field.
type ContentBlock struct {
	Type string `json:"type"` // "text", "image", "resource", "resource_link"

	// TextContent
	Text string `json:"text,omitempty"`

	// ImageContent
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"` // base64-encoded
	URI      string `json:"uri,omitempty"`

	// ResourceLink
	Name string `json:"name,omitempty"`
}

// NewTextContent creates a text content block.
func NewTextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// CancelNotification aborts an in-flight prompt. Fire-and-forget.
type CancelNotification struct {
	SessionID string `json:"sessionId"`
}

// --- Session update (notification) ---

// SessionNotification is the params for a session/update notification.
type SessionNotification struct {
	SessionID string        `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
}

// SessionUpdate is a discriminated union of update kinds. The Type field
// (JSON name "sessionUpdate") determines which other fields are populated.
type SessionUpdate struct {
	Type string `json:"sessionUpdate"`

	// agent_message_chunk / agent_thought_chunk
	Content *ContentBlock `json:"content,omitempty"`

	// tool_call / tool_call_update
	ToolCallID string                 `json:"toolCallId,omitempty"`
	Title      string                 `json:"title,omitempty"`
	Kind       string                 `json:"kind,omitempty"`   // "read", "edit", "delete", "execute", ...
	Status     string                 `json:"status,omitempty"` // "pending", "in_progress", "completed", "failed"
	RawInput   map[string]interface{} `json:"rawInput,omitempty"`
	Locations  []ToolLocation         `json:"locations,omitempty"`

	// plan
	Entries []PlanEntry `json:"entries,omitempty"`

	// available_commands_update
	AvailableCommands []AvailableCommand `json:"availableCommands,omitempty"`

	// current_mode_update
	CurrentModeID string `json:"currentModeId,omitempty"`

	Meta json.RawMessage `json:"_meta,omitempty"`
}

// Tool call status constants.
const (
	ToolCallStatusPending    = "pending"
	ToolCallStatusInProgress = "in_progress"
	ToolCallStatusCompleted  = "completed"
	ToolCallStatusFailed     = "failed"
)

// ToolLocation references a file a tool call touches.
type ToolLocation struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// PlanEntry is a single entry in a plan snapshot.
type PlanEntry struct {
	Content  string `json:"content"`
	Priority string `json:"priority"` // "high", "medium", "low"
	Status   string `json:"status"`   // "pending", "in_progress", "completed", "failed"
}

// AvailableCommand advertises a locally handled slash command.
type AvailableCommand struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"` // JSON schema for arguments
}

// --- Agent-to-client requests ---

// ReadTextFileRequest asks the client to read a file.
type ReadTextFileRequest struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Line      int    `json:"line,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ReadTextFileResponse returns the file content.
type ReadTextFileResponse struct {
	Content string `json:"content"`
}

// WriteTextFileRequest asks the client to write a file.
type WriteTextFileRequest struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// WriteTextFileResponse is empty on success.
type WriteTextFileResponse struct{}

// RequestPermissionRequest asks the client to approve a tool call.
type RequestPermissionRequest struct {
	ToolCall  ToolCallRef        `json:"toolCall"`
	SessionID string             `json:"sessionId"`
	Options   []PermissionOption `json:"options"`
}

// ToolCallRef describes the tool call a permission request refers to.
type ToolCallRef struct {
	RawInput   map[string]interface{} `json:"rawInput,omitempty"`
	ToolCallID string                 `json:"toolCallId"`
	Title      string                 `json:"title,omitempty"`
	Kind       string                 `json:"kind,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Locations  []ToolLocation         `json:"locations,omitempty"`
}

// Permission option kinds.
const (
	PermissionAllowOnce   = "allow_once"
	PermissionAllowAlways = "allow_always"
	PermissionRejectOnce  = "reject_once"
)

// PermissionOption describes one permission choice.
type PermissionOption struct {
	ID   string `json:"optionId"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// RequestPermissionResponse returns the user's choice.
type RequestPermissionResponse struct {
	Outcome PermissionOutcome `json:"outcome"`
}

// PermissionOutcome is the result of a permission request, discriminated by
// Type: "selected" carries the chosen option id, "cancelled" carries nothing.
type PermissionOutcome struct {
	Type     string `json:"outcome"`
	OptionID string `json:"optionId,omitempty"`
}
