package jsonrpcx

import (
	"encoding/json"
	"net/http"
)

// Version is the JSON-RPC protocol version carried by every message
const Version = "2.0"

// Notification is a JSON-RPC 2.0 notification pushed to stream clients
type Notification struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewNotification creates a notification for method
func NewNotification(method string, params any) Notification {
	return Notification{Jsonrpc: Version, Method: method, Params: params}
}

// Marshal encodes the notification
func (n Notification) Marshal() ([]byte, error) {
	return json.Marshal(n)
}

// Stream methods
const (
	MethodConnected     = "stream.connected"
	MethodHeartbeat     = "stream.heartbeat"
	MethodViewState     = "view.state"
	MethodViewUpdated   = "view.updated"
	MethodGeofenceAlert = "geofence.alert"
	MethodSessionEnded  = "session.ended"
)

// Error codes used in HTTP error bodies
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	// ActionFailed is an application error raised by a tracker action
	ActionFailed = -32000
)

// Error represents a JSON-RPC 2.0 style error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Response is the body returned by view server actions
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Success writes a successful response
func Success(w http.ResponseWriter, result any) {
	Write(w, http.StatusOK, Response{JSONRPC: Version, Result: result})
}

// Fail writes an error response with the given HTTP status
func Fail(w http.ResponseWriter, status, code int, message string) {
	Write(w, status, Response{JSONRPC: Version, Error: &Error{Code: code, Message: message}})
}

// Write encodes a response
func Write(w http.ResponseWriter, status int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// Encode response - if error occurs, it will be logged by middleware
	_ = json.NewEncoder(w).Encode(response)
}
