package overlay

import "github.com/google/uuid"

// =============================================================================
// Message Kinds
// =============================================================================

// Kind classifies a message for renderers. The scheduler itself never
// interprets kinds; they travel with the message so surfaces can style them.
type Kind int

// Message kinds.
const (
	// KindNormal is an ordinary chat message.
	KindNormal Kind = iota
	// KindHighlight is an emphasized message (e.g. paid or pinned).
	KindHighlight
	// KindSystem is a message generated by the host application.
	KindSystem
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindHighlight:
		return "highlight"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Message is a normalized unit of ingestion. The payload is opaque to the
// scheduler; only the renderer gives it shape.
type Message struct {
	ID      uuid.UUID
	Kind    Kind
	Payload any
}

// NewMessage creates a message with a fresh ID.
func NewMessage(kind Kind, payload any) Message {
	return Message{ID: uuid.New(), Kind: kind, Payload: payload}
}
