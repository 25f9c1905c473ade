// Package transport defines the msgpack envelope carried over the peer
// data channel once negotiation completes: game actions and batched state
// snapshots, with no further server involvement.
package transport

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/duelink/duelink/internal/conflict"
)

// Data channel message types.
const (
	MsgAction    = "ACTION"
	MsgStateSync = "SYNC_STATE"
	MsgCombatEnd = "COMBAT_END"
)

// Message is the envelope for all peer data channel traffic.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// ActionPayload carries one discrete game event.
type ActionPayload struct {
	Action conflict.ActionRecord `msgpack:"action"`
}

// StateBatchPayload carries one or more state snapshots. Snapshots produced
// faster than the sync interval are queued by the sender and flushed as one
// batch.
type StateBatchPayload struct {
	States []conflict.Snapshot `msgpack:"states"`
}

// NewMessage builds an envelope with an encoded payload.
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the envelope payload into v.
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// Encode serializes the whole envelope for the wire.
func (m Message) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// Decode parses an envelope off the wire.
func Decode(data []byte) (Message, error) {
	var m Message
	err := msgpack.Unmarshal(data, &m)
	return m, err
}
