package websocket

import "encoding/json"

// Event is a state-change notification pushed to the browser so the
// visible view re-renders without polling.
type Event struct {
	Event  string `json:"event"`
	Detail string `json:"detail,omitempty"`
}

// NewEvent serializes an event for broadcast.
func NewEvent(event, detail string) []byte {
	payload, _ := json.Marshal(Event{Event: event, Detail: detail})
	return payload
}
