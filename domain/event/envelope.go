package event

import (
	"chat-relay/errors"
	"encoding/json"
	"fmt"
)

// Envelope is the frame exchanged on the websocket: {"event": "...", "data": ...}.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func EncodeOutbound(o Outbound) ([]byte, error) {
	return encode(o.Name(), o.payload())
}

// EncodeInbound is used by clients. Disconnect has no wire form.
func EncodeInbound(i Inbound) ([]byte, error) {
	switch in := i.(type) {
	case ChatMessageRequest, FileUploadRequest:
		return encode(in.Name(), in)
	case TypingStarted, TypingStopped:
		return encode(in.Name(), nil)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownEvent, i.Name())
	}
}

func encode(name Name, payload any) ([]byte, error) {
	env := Envelope{Event: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %q payload: %w", name, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// DecodeInbound parses a frame received from a participant.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	switch env.Event {
	case ChatMessageName:
		var req ChatMessageRequest
		if err := unmarshalData(env, &req); err != nil {
			return nil, err
		}
		return req, nil
	case FileUploadName:
		var req FileUploadRequest
		if err := unmarshalData(env, &req); err != nil {
			return nil, err
		}
		return req, nil
	case TypingName:
		return TypingStarted{}, nil
	case StopTypingName:
		return TypingStopped{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
}

// DecodeOutbound parses a frame pushed by the server.
func DecodeOutbound(raw []byte) (Outbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	switch env.Event {
	case UserJoinedName:
		var p Presence
		err := unmarshalData(env, &p)
		return UserJoined{Presence: p}, err
	case UserLeftName:
		var p Presence
		err := unmarshalData(env, &p)
		return UserLeft{Presence: p}, err
	case ChatMessageName:
		var m ChatMessage
		err := unmarshalData(env, &m)
		return m, err
	case FileUploadName:
		var f FileUpload
		err := unmarshalData(env, &f)
		return f, err
	case UserTypingName:
		var username string
		err := unmarshalData(env, &username)
		return UserTyping{Username: username}, err
	case UserStopTypingName:
		var username string
		err := unmarshalData(env, &username)
		return UserStopTyping{Username: username}, err
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
}

func unmarshalData(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %q has no data", errors.ErrInvalidPayload, env.Event)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%w: %q: %v", errors.ErrInvalidPayload, env.Event, err)
	}
	return nil
}
