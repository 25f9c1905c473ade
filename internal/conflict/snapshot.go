package conflict

// Snapshot is one participant's view of the shared game state at a point in
// time. Payload is a structured value tree; ConsistencyHash, when set, is
// the soft fingerprint of the payload. ResolvedAt is stamped on snapshots
// produced by the resolver.
type Snapshot struct {
	OwnerID         string `json:"ownerId,omitempty" msgpack:"ownerId,omitempty"`
	Timestamp       int64  `json:"timestamp" msgpack:"timestamp"`
	Payload         Value  `json:"payload" msgpack:"payload"`
	ConsistencyHash string `json:"consistencyHash,omitempty" msgpack:"consistencyHash,omitempty"`
	ResolvedAt      int64  `json:"resolvedAt,omitempty" msgpack:"resolvedAt,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Payload = s.Payload.Clone()
	return out
}

// ActionRecord is a discrete game event exchanged between peers. RecordedAt
// is stamped with local receipt time when the record enters the action log.
// Records are kept for audit and replay by the consumer; the resolver never
// replays them on its own.
type ActionRecord struct {
	ID         string `json:"id" msgpack:"id"`
	SenderID   string `json:"senderId" msgpack:"senderId"`
	Type       string `json:"type" msgpack:"type"`
	// Payload must not carry omitempty: the codecs would treat the
	// unexported-field struct as empty and strip the content in transit.
	Payload    Value  `json:"payload" msgpack:"payload"`
	Timestamp  int64  `json:"timestamp" msgpack:"timestamp"`
	RecordedAt int64  `json:"recordedAt,omitempty" msgpack:"recordedAt,omitempty"`
}
