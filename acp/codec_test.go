package acp

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_SkipsNonJSONLines(t *testing.T) {
	t.Parallel()
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`node:internal/warning: something noisy`,
		``,
		`   `,
		`{"jsonrpc":"2.0","id":1,"result":{}}`,
	}, "\n") + "\n"

	dec := NewDecoder(strings.NewReader(input))

	first, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, string(first))

	second, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, string(second))

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

// A frame split across multiple underlying reads must still decode whole.
func TestDecoder_FragmentedFrame(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()
	dec := NewDecoder(pr)

	go func() {
		pw.Write([]byte(`{"jsonrpc":"2.0","me`))
		pw.Write([]byte(`thod":"session/update"}`))
		pw.Write([]byte("\n"))
		pw.Close()
	}()

	frame, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"session/update"}`, string(frame))
}

func TestEncoder_OneLinePerFrame(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	req, err := NewRequest(1, MethodInitialize, InitializeRequest{ProtocolVersion: ProtocolVersion})
	require.NoError(t, err)
	require.NoError(t, enc.Encode(req))

	notif, err := NewNotification(MethodSessionCancel, CancelNotification{SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, enc.Encode(notif))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "each line must be standalone JSON: %s", line)
	}
}

func TestClassifyFrame(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		raw        string
		wantKind   FrameKind
		wantID     int64
		wantMethod string
	}{
		{
			name:       "request has method and id",
			raw:        `{"jsonrpc":"2.0","id":7,"method":"session/prompt","params":{}}`,
			wantKind:   FrameRequest,
			wantID:     7,
			wantMethod: "session/prompt",
		},
		{
			name:     "response has id only",
			raw:      `{"jsonrpc":"2.0","id":7,"result":{}}`,
			wantKind: FrameResponse,
			wantID:   7,
		},
		{
			name:     "error response has id only",
			raw:      `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"nope"}}`,
			wantKind: FrameResponse,
			wantID:   3,
		},
		{
			name:       "notification has method only",
			raw:        `{"jsonrpc":"2.0","method":"session/update","params":{}}`,
			wantKind:   FrameNotification,
			wantMethod: "session/update",
		},
		{
			name:     "neither method nor id",
			raw:      `{"jsonrpc":"2.0"}`,
			wantKind: FrameInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id, method := ClassifyFrame(json.RawMessage(tt.raw))
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantMethod, method)
		})
	}
}
