// Package protocol implements the wire envelope contract shared by all
// connections: {type, resource, id, data}. Inbound envelopes are decoded
// exactly once, at this boundary, into a closed command union; everything
// past Decode can match on command types exhaustively and never sees raw
// JSON. The codec holds no state.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"classboard/pkg/types"
)

// Envelope type and resource values recognized on the wire.
const (
	TypeNew    = "new"
	TypeDelete = "delete"
	TypeUpdate = "update"
	TypeError  = "error"

	ResourceFeedback = "feedback"
	ResourceQuestion = "question"
)

// Envelope is the raw wire shape, both directions. Resource and ID are
// pointers because "null" is a legal and meaningful value for both.
type Envelope struct {
	Type     string          `json:"type"`
	Resource *string         `json:"resource"`
	ID       *int64          `json:"id"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Command is the closed union of the four valid inbound operations.
// Only types in this package implement it.
type Command interface {
	isCommand()
}

// NewFeedback upserts the sender-asserted student's pace reaction.
type NewFeedback struct {
	Student string
	Kind    string
}

// ClearFeedback removes every reaction at once. Privileged.
type ClearFeedback struct{}

// NewQuestion appends a question; the server assigns its id.
type NewQuestion struct {
	Student string
	Text    string
}

// DeleteQuestion removes one question by server-assigned id. Privileged.
type DeleteQuestion struct {
	ID int64
}

func (NewFeedback) isCommand()    {}
func (ClearFeedback) isCommand()  {}
func (NewQuestion) isCommand()    {}
func (DeleteQuestion) isCommand() {}

// feedbackData and questionData are the required data shapes for the two
// "new" commands. Absent fields decode to "" and fail validation; the
// codec never infers defaults.
type feedbackData struct {
	Student string `json:"student"`
	Kind    string `json:"feedback"`
}

type questionData struct {
	Student string `json:"student"`
	Text    string `json:"question"`
}

// Decode parses a raw inbound message into a Command. It returns an error
// wrapping ErrMalformedEnvelope for unparseable input and one wrapping
// ErrInvalidCommand for a parseable envelope that is not one of the four
// recognized commands with all required fields present and non-empty.
func Decode(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	resource := ""
	if env.Resource != nil {
		resource = *env.Resource
	}

	switch {
	case env.Type == TypeNew && resource == ResourceFeedback:
		return decodeNewFeedback(env.Data)
	case env.Type == TypeNew && resource == ResourceQuestion:
		return decodeNewQuestion(env.Data)
	case env.Type == TypeDelete && resource == ResourceFeedback:
		return ClearFeedback{}, nil
	case env.Type == TypeDelete && resource == ResourceQuestion:
		if env.ID == nil {
			return nil, fmt.Errorf("%w: delete question requires an id", ErrInvalidCommand)
		}
		return DeleteQuestion{ID: *env.ID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown operation %q on %q", ErrInvalidCommand, env.Type, resource)
	}
}

func decodeNewFeedback(data json.RawMessage) (Command, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("%w: new feedback requires data", ErrInvalidCommand)
	}
	var payload feedbackData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: bad feedback data: %v", ErrInvalidCommand, err)
	}
	if err := types.ValidStudent(payload.Student); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := types.ValidKind(payload.Kind); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return NewFeedback{
		Student: strings.TrimSpace(payload.Student),
		Kind:    payload.Kind,
	}, nil
}

func decodeNewQuestion(data json.RawMessage) (Command, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("%w: new question requires data", ErrInvalidCommand)
	}
	var payload questionData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: bad question data: %v", ErrInvalidCommand, err)
	}
	if err := types.ValidStudent(payload.Student); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := types.ValidQuestionText(payload.Text); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return NewQuestion{
		Student: strings.TrimSpace(payload.Student),
		Text:    strings.TrimSpace(payload.Text),
	}, nil
}

// Privileged reports whether a command may only be issued over an
// authenticated teacher connection.
func Privileged(cmd Command) bool {
	switch cmd.(type) {
	case ClearFeedback, DeleteQuestion:
		return true
	default:
		return false
	}
}
