package conflict

import (
	"encoding/json"
	"strconv"
)

// PayloadHash computes the soft consistency fingerprint of a state payload.
// It is a 32-bit shift-add hash over the canonical JSON encoding of the
// payload, rendered as lowercase hex. It detects accidental corruption and
// staleness between peers; it is not tamper-proof and must never be treated
// as a cryptographic digest.
//
// The hash covers the payload only. Owner, timestamps and the stored hash
// itself never feed into it, so re-stamping a snapshot does not change its
// fingerprint.
func PayloadHash(payload Value) string {
	data, err := json.Marshal(payload)
	if err != nil {
		// The variant type marshals every shape it can hold; this is
		// unreachable in practice but must not take the resolver down.
		return ""
	}

	var h int32
	for _, b := range data {
		h = (h << 5) - h + int32(b)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}
