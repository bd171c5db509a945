package protocol

import (
	"encoding/json"
	"fmt"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
)

// JSONRPCVersion is the only protocol version this daemon accepts.
const JSONRPCVersion = "2.0"

// JSONRPCMessage is the envelope fragment common to every JSON-RPC 2.0
// message this daemon reads or writes.
type JSONRPCMessage struct {
	JSONRPC string `json:"jsonrpc"`
}

// Request is a decoded JSON-RPC 2.0 request or notification. ID is nil for
// a notification.
type Request struct {
	JSONRPCMessage
	ID     interface{}     `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a Request, marshaling params if given.
func NewRequest(id interface{}, method string, params interface{}) (*Request, error) {
	paramsJSON, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Method:         method,
		Params:         paramsJSON,
	}, nil
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result or
// Error is populated, never both.
type Response struct {
	JSONRPCMessage
	ID     interface{}     `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// NewResponse builds a success response.
func NewResponse(id interface{}, result interface{}) (*Response, error) {
	resultJSON, err := marshalParams(result)
	if err != nil {
		return nil, err
	}
	if resultJSON == nil {
		resultJSON = json.RawMessage("null")
	}
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Result:         resultJSON,
	}, nil
}

// NewErrorResponse builds an error response carrying a raw code/message.
func NewErrorResponse(id interface{}, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// NewErrorResponseFromDaemonError maps a DaemonError onto the wire envelope,
// preserving code and message and attaching details as error.data.
func NewErrorResponseFromDaemonError(id interface{}, err daemonerrors.DaemonError) *Response {
	var data interface{}
	if d := err.Details(); d != "" {
		data = d
	}
	return NewErrorResponse(id, err.Code(), err.Message(), data)
}

// Notification is a JSON-RPC 2.0 message with no id; the server never
// expects a reply.
type Notification struct {
	JSONRPCMessage
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewNotification builds a Notification, marshaling params if given.
func NewNotification(method string, params interface{}) (*Notification, error) {
	paramsJSON, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Notification{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		Method:         method,
		Params:         paramsJSON,
	}, nil
}

// Error is a JSON-RPC 2.0 error object. Code is one of the fixed codes in
// pkg/errors; this package never defines its own code taxonomy.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func marshalParams(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return raw, nil
}

// DecodeRequest parses a raw frame into a Request. It returns an error
// rather than classifying the failure — the caller (a transport adapter)
// owns mapping decode failures to -32700.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// IsWellFormedEnvelope reports whether req carries the required protocol
// tag and a non-empty method.
func IsWellFormedEnvelope(req *Request) bool {
	return req != nil && req.JSONRPC == JSONRPCVersion && req.Method != ""
}

// IsNotificationRequest reports whether req has no id, meaning no response
// should be emitted for it.
func IsNotificationRequest(req *Request) bool {
	return req != nil && req.ID == nil
}
