// Package channel decodes the off-chain join/part message stream (the
// "channel" in spec.md's glossary) and ships a redis/go-redis/v9 Redis
// Stream implementation, adapted from the pack's Redis persistence layer
// (Layr-Labs/eigenx-kms-go pkg/persistence/redis) from a KV store to a
// stream transport.
package channel

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MessageType distinguishes a join announcement from a part announcement.
type MessageType string

const (
	Join MessageType = "join"
	Part MessageType = "part"
)

// MessageID uniquely identifies a channel message: a server timestamp for
// ordering plus a UUID that keeps messages with equal timestamps distinct.
// The UUID is not an ordering key: eventstream.Merge orders equal-timestamp
// messages by their arrival order.
type MessageID struct {
	Timestamp int64
	UUID      string
}

// NewMessageID mints a MessageID at the given server timestamp.
func NewMessageID(timestampMs int64) MessageID {
	return MessageID{Timestamp: timestampMs, UUID: uuid.NewString()}
}

// Message is a decoded join/part announcement.
type Message struct {
	Type      MessageType
	Addresses []string
	MessageID MessageID
}

// wireMessage is Message's JSON wire shape, published/consumed over redis.
type wireMessage struct {
	Type      MessageType `json:"type"`
	Addresses []string    `json:"addresses"`
	Timestamp int64       `json:"timestamp"`
	UUID      string      `json:"uuid"`
}

// Encode serializes m for publication.
func Encode(m Message) ([]byte, error) {
	w := wireMessage{
		Type:      m.Type,
		Addresses: m.Addresses,
		Timestamp: m.MessageID.Timestamp,
		UUID:      m.MessageID.UUID,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("channel: encode message: %w", err)
	}
	return data, nil
}

// Decode parses a published payload back into a Message.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("channel: decode message: %w", err)
	}
	if w.Type != Join && w.Type != Part {
		return Message{}, fmt.Errorf("channel: unknown message type %q", w.Type)
	}
	return Message{
		Type:      w.Type,
		Addresses: w.Addresses,
		MessageID: MessageID{Timestamp: w.Timestamp, UUID: w.UUID},
	}, nil
}
