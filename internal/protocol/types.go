// Package protocol defines the JSON wire messages exchanged between annotation
// clients and the sync server. Every message is a flat object tagged by "type".
package protocol

import "errors"

// MessageType is the discriminator carried in the "type" field of every message.
type MessageType string

// Client -> server
const (
	TypeJoin         MessageType = "join"
	TypeLeave        MessageType = "leave"
	TypeStrokeStart  MessageType = "stroke:start"
	TypeStrokePoint  MessageType = "stroke:point"
	TypeStrokeEnd    MessageType = "stroke:end"
	TypeStrokeDelete MessageType = "stroke:delete"
	TypeCursorMove   MessageType = "cursor:move"
	TypePing         MessageType = "ping"
)

// Server -> client
const (
	TypeJoined            MessageType = "joined"
	TypeParticipantJoined MessageType = "participant:joined"
	TypeParticipantLeft   MessageType = "participant:left"
	TypeStrokeStarted     MessageType = "stroke:started"
	TypeStrokePoints      MessageType = "stroke:points"
	TypeStrokeEnded       MessageType = "stroke:ended"
	TypeStrokeDeleted     MessageType = "stroke:deleted"
	TypeCursorMoved       MessageType = "cursor:moved"
	TypeError             MessageType = "error"
	TypePong              MessageType = "pong"
)

// Error codes carried by error messages.
const (
	CodeInvalidMessage     = "INVALID_MESSAGE"
	CodeUnknownType        = "UNKNOWN_TYPE"
	CodeMaxClientsExceeded = "MAX_CLIENTS_EXCEEDED"
	CodeServerShutdown     = "SERVER_SHUTDOWN"
)

var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownType  = errors.New("unknown message type")
	ErrInvalidField = errors.New("invalid field")
)

// String returns the string representation of the MessageType
func (t MessageType) String() string {
	return string(t)
}

// Message is implemented by every wire message in both directions.
type Message interface {
	MessageType() MessageType
}

// Point is one sampled pen position. Pressure is optional.
type Point struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Pressure *float64 `json:"pressure,omitempty"`
}

// Participant is the peer-visible projection of a joined connection.
type Participant struct {
	ProfileID    string `json:"profileId"`
	ProfileName  string `json:"profileName"`
	ProfileColor string `json:"profileColor"`
}
