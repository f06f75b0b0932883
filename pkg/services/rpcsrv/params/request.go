package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dankorotin/countergo/pkg/counterrpc"
)

type (
	// Request contains a standard JSON-RPC 2.0 request and a batch of
	// requests: either of them can be filled depending on the actual
	// contents.
	Request struct {
		In    *In
		Batch Batch
	}

	// In represents a standard JSON-RPC 2.0 request.
	In struct {
		JSONRPC   string          `json:"jsonrpc"`
		Method    string          `json:"method"`
		RawParams []Param         `json:"params,omitempty"`
		RawID     json.RawMessage `json:"id,omitempty"`
	}

	// Batch represents a standard JSON-RPC 2.0 batch.
	Batch []In
)

// NewRequest creates a new empty Request.
func NewRequest() *Request {
	return &Request{}
}

// NewIn creates a new empty In request.
func NewIn() *In {
	return &In{
		JSONRPC: counterrpc.JSONRPCVersion,
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface. A Request can
// hold either a single request or a batch, so it dispatches on the payload
// shape instead of the default struct decoding.
func (r *Request) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return json.Unmarshal(data, &r.Batch)
	}
	r.In = NewIn()
	return json.Unmarshal(data, r.In)
}

// DecodeData decodes the given reader into the request struct.
func (r *Request) DecodeData(data io.ReadCloser) error {
	defer data.Close()

	rawData := json.RawMessage{}
	err := json.NewDecoder(data).Decode(&rawData)
	if err != nil {
		return fmt.Errorf("error parsing JSON payload: %w", err)
	}

	return r.UnmarshalJSON(rawData)
}

// DecodeDataFromReader is a version of DecodeData that doesn't close the
// reader.
func (r *Request) DecodeDataFromReader(data io.Reader) error {
	return r.DecodeData(io.NopCloser(data))
}
