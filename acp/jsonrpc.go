package acp

import "encoding/json"

// ACP JSON-RPC method constants.
const (
	// Agent-provided methods (we call these on the subordinate process; the
	// editor client calls them on us).
	MethodInitialize      = "initialize"
	MethodAuthenticate    = "authenticate"
	MethodSessionNew      = "session/new"
	MethodSessionPrompt   = "session/prompt"
	MethodSessionSetMode  = "session/set_mode"
	MethodSessionSetModel = "session/set_model"

	// Notifications.
	MethodSessionCancel = "session/cancel"
	MethodSessionUpdate = "session/update"

	// Client-provided methods (the subordinate process calls these on us; we
	// translate them into the same calls on the editor client).
	MethodRequestPermission = "session/request_permission"
	MethodFsReadTextFile    = "fs/read_text_file"
	MethodFsWriteTextFile   = "fs/write_text_file"
	MethodTerminalCreate    = "terminal/create"
	MethodTerminalOutput    = "terminal/output"
	MethodTerminalWaitExit  = "terminal/wait_for_exit"
	MethodTerminalKill      = "terminal/kill"
	MethodTerminalRelease   = "terminal/release"
)

// Session update type constants (the sessionUpdate discriminator).
const (
	UpdateTypeAgentMessage      = "agent_message_chunk"
	UpdateTypeAgentThought      = "agent_thought_chunk"
	UpdateTypeToolCall          = "tool_call"
	UpdateTypeToolCallUpdate    = "tool_call_update"
	UpdateTypePlan              = "plan"
	UpdateTypeAvailableCommands = "available_commands_update"
	UpdateTypeCurrentMode       = "current_mode_update"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      int64           `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	Error   *Error          `json:"error,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	ID      int64           `json:"id"`
}

// Notification represents a JSON-RPC 2.0 notification (no id).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ACP-specific error codes.
const (
	ErrCodeAuthRequired     = -32000
	ErrCodeResourceNotFound = -32001
	ErrCodeSessionNotFound  = -32002
)

// NewRequest creates a JSON-RPC 2.0 request with marshaled params.
func NewRequest(id int64, method string, params interface{}) (*Request, error) {
	paramsData, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}, nil
}

// NewResponse creates a JSON-RPC 2.0 success response.
func NewResponse(id int64, result interface{}) (*Response, error) {
	resultData, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  resultData,
	}, nil
}

// NewErrorResponse creates a JSON-RPC 2.0 error response.
func NewErrorResponse(id int64, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	}
}

// NewNotification creates a JSON-RPC 2.0 notification.
func NewNotification(method string, params interface{}) (*Notification, error) {
	paramsData, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsData,
	}, nil
}
