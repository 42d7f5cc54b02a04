// ABOUTME: Wire frames exchanged with the agent backend over the session socket
// ABOUTME: Decodes the type-tagged JSON envelope into progress, final and error frames

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the discriminator carried in the "type" field of every frame.
type Type string

const (
	TypeProgress      Type = "progress"
	TypeFinalResponse Type = "final_response"
	TypeError         Type = "error"
)

// ErrUnknownType is returned by Decode for a well-formed envelope whose type
// is not part of the known vocabulary. Callers drop such frames.
var ErrUnknownType = errors.New("unknown frame type")

// envelope is the outer JSON shape of every server frame.
type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Frame is one decoded server message. Exactly one of the payload pointers
// is set, matching Type.
type Frame struct {
	Type     Type
	Progress *Progress
	Final    *FinalResponse
	Error    *ErrorDetail
}

// Terminal reports whether the frame ends a request/response cycle.
func (f Frame) Terminal() bool {
	return f.Type == TypeFinalResponse || f.Type == TypeError
}

// Progress reports one intermediate backend step.
type Progress struct {
	Agent  string `json:"agent"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// ImageRef is a display-only image attached to an answer.
type ImageRef struct {
	URL          string `json:"url"`
	Description  string `json:"description"`
	Photographer string `json:"photographer"`
	ProfileURL   string `json:"profile_url"`
}

// FinalResponse is the terminal success payload.
type FinalResponse struct {
	Answer      string    `json:"answer"`
	Image       *ImageRef `json:"image,omitempty"`
	VoiceTaskID string    `json:"voice_task_id,omitempty"`

	// AgentUsed and Failed are set by the backend for diagnostics; a failed
	// final response still ends the cycle and its answer is shown as-is.
	AgentUsed string `json:"agent_used,omitempty"`
	Failed    bool   `json:"error,omitempty"`
}

// ErrorDetail is the terminal failure payload.
type ErrorDetail struct {
	Detail string `json:"detail"`
}

// Decode parses one raw text message from the backend.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("parsing envelope: %w", err)
	}

	f := Frame{Type: env.Type}
	switch env.Type {
	case TypeProgress:
		var p Progress
		if err := decodePayload(env.Payload, &p); err != nil {
			return Frame{}, err
		}
		f.Progress = &p
	case TypeFinalResponse:
		var r FinalResponse
		if err := decodePayload(env.Payload, &r); err != nil {
			return Frame{}, err
		}
		// An image without a URL has nothing to show.
		if r.Image != nil && r.Image.URL == "" {
			r.Image = nil
		}
		f.Final = &r
	case TypeError:
		var e ErrorDetail
		if err := decodePayload(env.Payload, &e); err != nil {
			return Frame{}, err
		}
		f.Error = &e
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return f, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	return nil
}

// Encode builds the wire form of a frame. The client never sends frames;
// this exists for the fake backend and tests.
func Encode(f Frame) ([]byte, error) {
	var payload any
	switch f.Type {
	case TypeProgress:
		payload = f.Progress
	case TypeFinalResponse:
		payload = f.Final
	case TypeError:
		payload = f.Error
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	return json.Marshal(envelope{Type: f.Type, Payload: raw})
}

// NewProgress is a convenience constructor for a progress frame.
func NewProgress(agent, status, detail string) Frame {
	return Frame{Type: TypeProgress, Progress: &Progress{Agent: agent, Status: status, Detail: detail}}
}

// NewFinal is a convenience constructor for a final_response frame.
func NewFinal(r FinalResponse) Frame {
	return Frame{Type: TypeFinalResponse, Final: &r}
}

// NewError is a convenience constructor for an error frame.
func NewError(detail string) Frame {
	return Frame{Type: TypeError, Error: &ErrorDetail{Detail: detail}}
}
