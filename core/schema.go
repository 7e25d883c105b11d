package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	MaxPayloadBytes = 8192
	MaxInitDataLen  = 4096
	CurrentVersion  = 1
)

const (
	ActionAuthenticate = "authenticate"
	ActionBots         = "bots"
)

// Request is the JSON envelope sent over the socket.
type Request struct {
	Version int             `json:"version"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthenticatePayload is the payload for the "authenticate" action.
type AuthenticatePayload struct {
	InitData string `json:"init_data"`
}

// Response is the JSON envelope sent back to the client.
type Response struct {
	OK    bool        `json:"ok"`
	ID    string      `json:"id,omitempty"`
	Bot   string      `json:"bot,omitempty"`
	Bots  []string    `json:"bots,omitempty"`
	Error string      `json:"error,omitempty"`
	Code  FailureKind `json:"code,omitempty"`
}

// ValidateRequest checks the request envelope and the payload of known actions.
func ValidateRequest(data []byte) (*Request, error) {
	if len(data) > MaxPayloadBytes {
		return nil, fmt.Errorf("payload exceeds %d byte limit", MaxPayloadBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if req.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported version %d, expected %d", req.Version, CurrentVersion)
	}

	switch req.Action {
	case ActionAuthenticate:
		if err := validateAuthenticatePayload(req.Payload); err != nil {
			return nil, err
		}
	case ActionBots:
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}

	return &req, nil
}

func validateAuthenticatePayload(raw json.RawMessage) error {
	if raw == nil {
		return fmt.Errorf("missing payload")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p AuthenticatePayload
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("invalid authenticate payload: %w", err)
	}

	if p.InitData == "" {
		return fmt.Errorf("init_data is required")
	}
	if len(p.InitData) > MaxInitDataLen {
		return fmt.Errorf("init_data exceeds %d character limit", MaxInitDataLen)
	}

	return nil
}

// ParseAuthenticatePayload extracts the AuthenticatePayload from a validated request.
func ParseAuthenticatePayload(raw json.RawMessage) (AuthenticatePayload, error) {
	var p AuthenticatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return AuthenticatePayload{}, err
	}
	return p, nil
}
