/*
Package counterrpc contains a set of types used for JSON-RPC communication
with countergo servers. It defines basic request/response types as well as a
set of errors used for specific responses.
*/
package counterrpc

import (
	"encoding/json"
)

// JSONRPCVersion is the only JSON-RPC protocol version supported.
const JSONRPCVersion = "2.0"

// EventID represents an event type happening on the server.
type EventID string

// Event types the server can notify websocket subscribers about.
const (
	// InvalidEventID is an invalid event id.
	InvalidEventID EventID = ""
	// ExecutionEventID is used for new execution events.
	ExecutionEventID EventID = "execution_added"
)

type (
	// Request represents a standard JSON-RPC 2.0 request.
	Request struct {
		// JSONRPC is the protocol version, only valid when it contains
		// JSONRPCVersion.
		JSONRPC string `json:"jsonrpc"`
		// Method is the method being called.
		Method string `json:"method"`
		// Params is a set of method-specific parameters passed to the call.
		// All countergo calls expect params to be an array.
		RawParams []json.RawMessage `json:"params,omitempty"`
		// ID is an identifier associated with this request.
		RawID json.RawMessage `json:"id,omitempty"`
	}

	// Header is a generic JSON-RPC 2.0 response header (ID and JSON-RPC version).
	Header struct {
		ID      json.RawMessage `json:"id"`
		JSONRPC string          `json:"jsonrpc"`
	}

	// HeaderAndError adds an Error (that can be empty) to the Header, it's
	// used to construct type-specific responses.
	HeaderAndError struct {
		Header
		Error *Error `json:"error,omitempty"`
	}

	// Response represents a standard raw JSON-RPC 2.0
	// response: http://www.jsonrpc.org/specification#response_object.
	Response struct {
		HeaderAndError
		Result json.RawMessage `json:"result,omitempty"`
	}

	// Notification is a type used to represent wire format of events, they're
	// special in that they look like requests but they don't have IDs and
	// their "method" is actually an event name.
	Notification struct {
		JSONRPC string        `json:"jsonrpc"`
		Event   EventID       `json:"method"`
		Payload []interface{} `json:"params"`
	}
)

// ValidEventID tells whether the given event id is valid for subscriptions.
func ValidEventID(id EventID) bool {
	return id == ExecutionEventID
}
