package peer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acpgate/acpgate/acp"
)

// connHarness wires a Conn to in-memory pipes so tests can play the remote
// peer by reading and writing raw frames.
type connHarness struct {
	conn     *Conn
	toConn   *io.PipeWriter // test writes frames the Conn will read
	fromConn *bufio.Reader  // test reads frames the Conn wrote
	calls    chan Call
}

func newConnHarness(t *testing.T) *connHarness {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	h := &connHarness{
		toConn:   inW,
		fromConn: bufio.NewReader(outR),
		calls:    make(chan Call, 16),
	}
	h.conn = NewConn(inR, outW, HandlerFunc(func(_ context.Context, _ *Conn, call Call) {
		h.calls <- call
	}))

	go h.conn.Run(context.Background())
	t.Cleanup(func() {
		h.conn.Close()
		inW.Close()
		outW.Close()
	})
	return h
}

// nextFrame reads one newline-delimited frame written by the Conn.
func (h *connHarness) nextFrame(t *testing.T) map[string]interface{} {
	t.Helper()
	line, err := h.fromConn.ReadBytes('\n')
	require.NoError(t, err)
	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(line, &frame))
	return frame
}

func (h *connHarness) inject(t *testing.T, frame string) {
	t.Helper()
	_, err := h.toConn.Write([]byte(frame + "\n"))
	require.NoError(t, err)
}

func TestConn_RequestIDsStartAtOneAndIncrement(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	for want := 1; want <= 3; want++ {
		go h.conn.SendRequest(context.Background(), "session/prompt", nil)
		frame := h.nextFrame(t)
		assert.Equal(t, float64(want), frame["id"])
		assert.Equal(t, "session/prompt", frame["method"])
	}
}

func TestConn_ResolvePendingAndEmptyMap(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	type res struct {
		raw json.RawMessage
		err error
	}
	done := make(chan res, 1)
	go func() {
		raw, err := h.conn.SendRequest(context.Background(), acp.MethodInitialize, acp.InitializeRequest{ProtocolVersion: 1})
		done <- res{raw, err}
	}()

	frame := h.nextFrame(t)
	assert.Equal(t, acp.MethodInitialize, frame["method"])
	require.Equal(t, 1, h.conn.PendingCount())

	h.inject(t, `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":1}}`)

	r := <-done
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"protocolVersion":1}`, string(r.raw))
	assert.Equal(t, 0, h.conn.PendingCount())
}

// Three concurrent requests resolved in reverse arrival order must each get
// their own matching result.
func TestConn_OutOfOrderResponses(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	results := make([]json.RawMessage, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, err := h.conn.SendRequest(context.Background(), "session/prompt", map[string]int{"n": i})
			require.NoError(t, err)
			results[i] = raw
		}(i)
	}

	// Map request ids to the n each caller sent, then answer in reverse order.
	idForN := map[int]int64{}
	for i := 0; i < 3; i++ {
		frame := h.nextFrame(t)
		var params struct {
			N int `json:"n"`
		}
		b, _ := json.Marshal(frame["params"])
		require.NoError(t, json.Unmarshal(b, &params))
		idForN[params.N] = int64(frame["id"].(float64))
	}

	for n := 2; n >= 0; n-- {
		h.inject(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"echo":%d}}`, idForN[n], n))
	}

	wg.Wait()
	for n := 0; n < 3; n++ {
		assert.JSONEq(t, fmt.Sprintf(`{"echo":%d}`, n), string(results[n]))
	}
	assert.Equal(t, 0, h.conn.PendingCount())
}

func TestConn_ErrorResponseRejectsWithMessage(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.conn.SendRequest(context.Background(), "session/new", nil)
		errCh <- err
	}()

	h.nextFrame(t)
	h.inject(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"no such method"}}`)

	err := <-errCh
	var rpcErr *acp.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, acp.ErrCodeMethodNotFound, rpcErr.Code)
	assert.Equal(t, "no such method", rpcErr.Message)
}

func TestConn_SpuriousResponseDiscarded(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	// No request outstanding; this must be dropped without disturbing later traffic.
	h.inject(t, `{"jsonrpc":"2.0","id":99,"result":{}}`)

	done := make(chan struct{})
	go func() {
		raw, err := h.conn.SendRequest(context.Background(), "session/prompt", nil)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(raw))
		close(done)
	}()

	h.nextFrame(t)
	h.inject(t, `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	<-done
}

func TestConn_PeerInitiatedCalls(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	h.inject(t, `{"jsonrpc":"2.0","id":5,"method":"fs/read_text_file","params":{"path":"a.go"}}`)
	call := <-h.calls
	assert.True(t, call.HasID)
	assert.Equal(t, int64(5), call.ID)
	assert.Equal(t, acp.MethodFsReadTextFile, call.Method)

	h.inject(t, `{"jsonrpc":"2.0","method":"session/update","params":{"sessionId":"s"}}`)
	call = <-h.calls
	assert.False(t, call.HasID)
	assert.Equal(t, acp.MethodSessionUpdate, call.Method)
}

func TestConn_RespondAndRespondError(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	errCh := make(chan error, 1)
	go func() { errCh <- h.conn.Respond(5, acp.ReadTextFileResponse{Content: "ok"}) }()
	frame := h.nextFrame(t)
	require.NoError(t, <-errCh)
	assert.Equal(t, float64(5), frame["id"])

	go func() { errCh <- h.conn.RespondError(6, acp.ErrCodeMethodNotFound, "unknown method: x") }()
	frame = h.nextFrame(t)
	require.NoError(t, <-errCh)
	errObj := frame["error"].(map[string]interface{})
	assert.Equal(t, float64(acp.ErrCodeMethodNotFound), errObj["code"])
}

func TestConn_CloseRejectsOutstanding(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.conn.SendRequest(context.Background(), "session/prompt", nil)
		errCh <- err
	}()
	h.nextFrame(t)

	h.conn.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, acp.ErrConnClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("outstanding request not rejected on close")
	}
}

func TestConn_ContextCancelRemovesPending(t *testing.T) {
	t.Parallel()
	h := newConnHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := h.conn.SendRequest(ctx, "session/prompt", nil)
		errCh <- err
	}()
	h.nextFrame(t)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, h.conn.PendingCount())
}
