package peer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/acpgate/acpgate/acp"
)

// Call is a peer-initiated request or notification delivered to a Handler.
// HasID distinguishes the two: a request carries an id and expects exactly one
// response via Conn.Respond or Conn.RespondError.
type Call struct {
	Params json.RawMessage
	Method string
	ID     int64
	HasID  bool
}

// Handler receives peer-initiated calls. Calls are delivered one at a time in
// arrival order; a handler that must block (approval round-trips, prompt
// forwarding) decides for itself whether to spawn a goroutine.
type Handler interface {
	HandleCall(ctx context.Context, conn *Conn, call Call)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn *Conn, call Call)

// HandleCall invokes f.
func (f HandlerFunc) HandleCall(ctx context.Context, conn *Conn, call Call) {
	f(ctx, conn, call)
}

// rpcResult holds the outcome of one outstanding request.
type rpcResult struct {
	result json.RawMessage
	err    error
}

// Conn is a duplex JSON-RPC 2.0 channel over a newline-delimited JSON stream.
type Conn struct {
	dec     *acp.Decoder
	enc     *acp.Encoder
	handler Handler
	onClose func(err error)
	pending map[int64]chan rpcResult
	done    chan struct{}
	nextID  atomic.Int64
	mu      sync.Mutex
	closed  bool
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithOnClose registers a callback invoked once when the read loop exits,
// carrying the transport error that ended it (nil on clean EOF).
func WithOnClose(fn func(err error)) ConnOption {
	return func(c *Conn) { c.onClose = fn }
}

// NewConn creates a connection over the given transport. The read loop does
// not start until Run is called.
func NewConn(r io.Reader, w io.Writer, handler Handler, opts ...ConnOption) *Conn {
	c := &Conn{
		dec:     acp.NewDecoder(r),
		enc:     acp.NewEncoder(w),
		handler: handler,
		pending: make(map[int64]chan rpcResult),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads and dispatches inbound frames until the transport closes or ctx
// is cancelled. It returns the transport error, or nil on clean EOF.
func (c *Conn) Run(ctx context.Context) error {
	var runErr error
	for {
		raw, err := c.dec.Next()
		if raw != nil {
			c.dispatch(ctx, raw)
		}
		if err != nil {
			if err != io.EOF {
				runErr = err
			}
			break
		}
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		case <-c.done:
		default:
			continue
		}
		break
	}

	if c.onClose != nil {
		c.onClose(runErr)
	}
	return runErr
}

// Close tears the connection down and rejects every outstanding request with
// ErrConnClosed. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	pending := c.pending
	c.pending = make(map[int64]chan rpcResult)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcResult{err: acp.ErrConnClosed}
	}
}

// SendRequest issues a request and blocks until the matching response arrives,
// the context is done, or the connection closes. Identifiers start at 1 and
// are never reused while outstanding.
func (c *Conn) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := c.nextID.Add(1)

	req, err := acp.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	ch := make(chan rpcResult, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, acp.ErrConnClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.enc.Encode(req); err != nil {
		c.removePending(id)
		return nil, err
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	}
}

// Notify sends a notification. Fire-and-forget: no response is expected.
func (c *Conn) Notify(method string, params interface{}) error {
	notif, err := acp.NewNotification(method, params)
	if err != nil {
		return err
	}
	return c.enc.Encode(notif)
}

// Respond answers a peer-initiated request.
func (c *Conn) Respond(id int64, result interface{}) error {
	resp, err := acp.NewResponse(id, result)
	if err != nil {
		return err
	}
	return c.enc.Encode(resp)
}

// RespondError answers a peer-initiated request with a JSON-RPC error.
func (c *Conn) RespondError(id int64, code int, message string) error {
	return c.enc.Encode(acp.NewErrorResponse(id, code, message))
}

// PendingCount reports the number of outstanding requests.
func (c *Conn) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Conn) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// dispatch routes one inbound frame: responses resolve their pending entry,
// requests and notifications go to the handler, anything else is dropped.
func (c *Conn) dispatch(ctx context.Context, raw json.RawMessage) {
	kind, id, method := acp.ClassifyFrame(raw)

	switch kind {
	case acp.FrameResponse:
		c.resolve(raw, id)

	case acp.FrameRequest:
		var req acp.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			_ = c.RespondError(id, acp.ErrCodeInvalidRequest, "malformed request")
			return
		}
		c.handler.HandleCall(ctx, c, Call{Method: method, Params: req.Params, ID: id, HasID: true})

	case acp.FrameNotification:
		var notif acp.Notification
		if err := json.Unmarshal(raw, &notif); err != nil {
			return
		}
		c.handler.HandleCall(ctx, c, Call{Method: method, Params: notif.Params})

	default:
		slog.Debug("dropping frame with neither method nor id")
	}
}

// resolve matches a response frame to its pending request. A response whose
// id matches nothing pending (already resolved, or spurious) is discarded.
func (c *Conn) resolve(raw json.RawMessage, id int64) {
	var resp acp.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		slog.Debug("dropping unparsable response frame", "id", id)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		slog.Debug("discarding response with no pending request", "id", id)
		return
	}

	if resp.Error != nil {
		ch <- rpcResult{err: &acp.RPCError{Code: resp.Error.Code, Message: resp.Error.Message}}
		return
	}
	ch <- rpcResult{result: resp.Result}
}
