package protocol

import (
	"encoding/json"
	"fmt"

	"classboard/pkg/types"
)

// Error frame reasons surfaced to clients. Unauthorized is distinct from
// the envelope errors so a client can present a credential prompt instead
// of a generic failure message.
const (
	ReasonMalformed    = "malformed envelope"
	ReasonInvalid      = "invalid command"
	ReasonUnauthorized = "unauthorized"
	ReasonRateLimited  = "rate limited"
)

type errorData struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// EncodeUpdate serializes a snapshot into the broadcast frame sent to
// teacher connections: an "update" envelope whose data is the ordered pair
// [reactions, questions]. Empty sequences encode as [] rather than null so
// clients can index the pair unconditionally.
func EncodeUpdate(snap types.Snapshot) ([]byte, error) {
	reactions := snap.Reactions
	if reactions == nil {
		reactions = []types.Reaction{}
	}
	questions := snap.Questions
	if questions == nil {
		questions = []types.Question{}
	}

	data, err := json.Marshal([2]interface{}{reactions, questions})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return json.Marshal(Envelope{
		Type: TypeUpdate,
		Data: data,
	})
}

// EncodeErrorFrame builds the unicast "error" envelope used to notify a
// connection before it is closed (or, for rate limiting, kept open).
// Encoding cannot fail for plain strings, so the frame is returned directly.
func EncodeErrorFrame(reason, detail string) []byte {
	data, _ := json.Marshal(errorData{Reason: reason, Detail: detail})
	frame, _ := json.Marshal(Envelope{
		Type: TypeError,
		Data: data,
	})
	return frame
}
