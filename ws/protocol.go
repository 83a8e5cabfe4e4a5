package ws

import "encoding/json"

// Frame is the type-peek for incoming messages.
type Frame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Event  string          `json:"event,omitempty"`
}

// Request is a parsed incoming request.
type Request struct {
	ID     string
	Method string
	Params map[string]json.RawMessage
}

// Response is an outgoing response.
type Response struct {
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	OK      bool        `json:"ok"`
	Payload interface{} `json:"payload,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is an outgoing server-initiated event.
type Event struct {
	Type    string      `json:"type"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

func NewResponse(id string, payload interface{}) Response {
	return Response{Type: "res", ID: id, OK: true, Payload: payload}
}

func NewErrorResponse(id, code, message string) Response {
	return Response{
		Type:  "res",
		ID:    id,
		OK:    false,
		Error: &Error{Code: code, Message: message},
	}
}

func NewEvent(event string, payload interface{}) Event {
	return Event{Type: "event", Event: event, Payload: payload}
}
