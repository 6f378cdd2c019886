package core

import "time"

// MessageType categorizes the intent of a message on the bus.
type MessageType string

const (
	// MessageTask asks the receiver to perform a unit of work.
	MessageTask MessageType = "task"
	// MessageResult carries the outcome of completed work.
	MessageResult MessageType = "result"
	// MessageError reports a failure to interested agents.
	MessageError MessageType = "error"
	// MessageStatus carries health / progress updates.
	MessageStatus MessageType = "status"
	// MessageEvent is a generic notification.
	MessageEvent MessageType = "event"
)

// Message is the unit of communication between agents. After publication it
// must be treated as immutable. Receiver is empty for broadcast messages.
// CorrelationID links causally related messages for tracing.
type Message struct {
	ID            string         `json:"id"`
	Type          MessageType    `json:"type"`
	Sender        string         `json:"sender"`
	Receiver      string         `json:"receiver,omitempty"`
	Payload       map[string]any `json:"payload"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// NewMessage constructs a message with a generated id and UTC timestamp.
// Receiver and correlationID may be empty.
func NewMessage(typ MessageType, sender, receiver string, payload map[string]any, correlationID string) Message {
	return Message{
		ID:            NewID(),
		Type:          typ,
		Sender:        sender,
		Receiver:      receiver,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// IsBroadcast reports whether the message targets every subscriber.
func (m Message) IsBroadcast() bool { return m.Receiver == "" }
