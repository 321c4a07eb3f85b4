// Package hub fans status messages out to dashboard websocket clients
// using a single goroutine that owns the client set.
package hub

// MessageType indicates the websocket frame type.
type MessageType int

const (
	// JSONMessage is a JSON-encoded text frame
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data
	BinaryMessage
)

// Message is one frame to broadcast.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
