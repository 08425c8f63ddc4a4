package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"yeardash/internal/store"
)

// ChangeMessage announces that a collection changed in some instance.
// It only names the collection; receivers re-read it from the store.
type ChangeMessage struct {
	Origin     string    `json:"origin"`
	UserID     string    `json:"userId"`
	Collection string    `json:"collection"`
	DocID      string    `json:"docId,omitempty"`
	Op         string    `json:"op"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChangeMessage creates a message for c sent by origin
func NewChangeMessage(origin string, c store.Change) *ChangeMessage {
	return &ChangeMessage{
		Origin:     origin,
		UserID:     c.Path.UserID,
		Collection: c.Path.Collection,
		DocID:      c.DocID,
		Op:         string(c.Op),
		Timestamp:  time.Now(),
	}
}

// Path returns the collection the message is about
func (m *ChangeMessage) Path() store.Path {
	return store.Path{UserID: m.UserID, Collection: m.Collection}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON parses and checks a message
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Path().Validate(); err != nil {
		return nil, fmt.Errorf("invalid change message: %w", err)
	}
	return &msg, nil
}
