package acp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// Decoder reads newline-delimited JSON frames from a byte stream. A line that
// is blank or does not parse as JSON is dropped without error: agent CLIs
// occasionally interleave diagnostic output on the protocol stream, and a
// stray line must never tear down the connection.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r in a frame decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next parseable frame. It blocks until a full line is
// available, tolerating frames that arrive over multiple underlying reads.
// The returned error is io.EOF (or the transport error) once the stream ends.
func (d *Decoder) Next() (json.RawMessage, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			// A final unterminated fragment is only a frame if it parses.
			if len(bytes.TrimSpace(line)) > 0 && json.Valid(line) {
				return json.RawMessage(bytes.TrimSpace(line)), err
			}
			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			slog.Debug("dropping non-JSON line on protocol stream", "len", len(line))
			continue
		}
		return json.RawMessage(line), nil
	}
}

// Encoder writes frames as single newline-terminated JSON lines. Writes are
// serialized so concurrent senders never interleave within one line.
type Encoder struct {
	enc *json.Encoder
	mu  sync.Mutex
}

// NewEncoder wraps w in a frame encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes v as one frame. json.Encoder appends the newline terminator.
func (e *Encoder) Encode(v interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(v)
}

// FrameKind classifies an inbound JSON-RPC frame.
type FrameKind int

const (
	// FrameInvalid marks a frame with neither method nor id.
	FrameInvalid FrameKind = iota
	// FrameRequest is a peer-initiated call carrying an id.
	FrameRequest
	// FrameNotification is a peer-initiated call without an id.
	FrameNotification
	// FrameResponse answers one of our outstanding requests.
	FrameResponse
)

// ClassifyFrame peeks at a raw frame and reports its kind plus the id (valid
// for FrameRequest and FrameResponse) and method (valid for FrameRequest and
// FrameNotification).
func ClassifyFrame(raw json.RawMessage) (kind FrameKind, id int64, method string) {
	var base struct {
		ID     *int64 `json:"id,omitempty"`
		Method string `json:"method,omitempty"`
	}
	if err := json.Unmarshal(raw, &base); err != nil {
		return FrameInvalid, 0, ""
	}

	switch {
	case base.Method != "" && base.ID != nil:
		return FrameRequest, *base.ID, base.Method
	case base.ID != nil:
		return FrameResponse, *base.ID, ""
	case base.Method != "":
		return FrameNotification, 0, base.Method
	default:
		return FrameInvalid, 0, ""
	}
}
