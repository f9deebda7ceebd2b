package task

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

type Kind string

const (
	KindGenerateMessage  Kind = "generate_message"
	KindGenerateFeedback Kind = "generate_feedback"
	KindGenerateResult   Kind = "generate_result"
)

var ErrUnknownKind = errors.New("unknown task kind")

// Envelope is the wire format for one queued task. The envelope ID
// doubles as the reply-mailbox key for awaited tasks.
type Envelope struct {
	ID            string          `json:"task_id"`
	Kind          Kind            `json:"kind"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type GenerateMessagePayload struct {
	CharacterID uint   `json:"character_id"`
	EpisodeID   uint   `json:"episode_id"`
	UserID      uint   `json:"user_id"`
	UserEmail   string `json:"user_email"`
	UserMessage string `json:"user_message"`
}

func (p GenerateMessagePayload) Validate() error {
	if p.CharacterID == 0 || p.EpisodeID == 0 {
		return errors.New("character_id and episode_id are required")
	}
	if p.UserID == 0 || p.UserEmail == "" {
		return errors.New("user identity is required")
	}
	return nil
}

type GenerateFeedbackPayload struct {
	UserID    uint   `json:"user_id"`
	UserEmail string `json:"user_email"`
}

func (p GenerateFeedbackPayload) Validate() error {
	if p.UserID == 0 || p.UserEmail == "" {
		return errors.New("user identity is required")
	}
	return nil
}

type GenerateResultPayload struct {
	UserID    uint   `json:"user_id"`
	UserEmail string `json:"user_email"`
}

func (p GenerateResultPayload) Validate() error {
	if p.UserID == 0 || p.UserEmail == "" {
		return errors.New("user identity is required")
	}
	return nil
}

type validatable interface {
	Validate() error
}

func NewID() string {
	return ulid.Make().String()
}

// NewEnvelope validates the payload at enqueue time; a malformed task
// never reaches the queue.
func NewEnvelope(kind Kind, correlationID string, payload validatable) (Envelope, error) {
	if err := payload.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("invalid %s payload: %w", kind, err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload failed: %w", kind, err)
	}
	return Envelope{
		ID:            NewID(),
		Kind:          kind,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

func DecodeGenerateMessage(env Envelope) (GenerateMessagePayload, error) {
	var p GenerateMessagePayload
	if env.Kind != KindGenerateMessage {
		return p, fmt.Errorf("%w: got %s, want %s", ErrUnknownKind, env.Kind, KindGenerateMessage)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload failed: %w", env.Kind, err)
	}
	return p, p.Validate()
}

func DecodeGenerateFeedback(env Envelope) (GenerateFeedbackPayload, error) {
	var p GenerateFeedbackPayload
	if env.Kind != KindGenerateFeedback {
		return p, fmt.Errorf("%w: got %s, want %s", ErrUnknownKind, env.Kind, KindGenerateFeedback)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload failed: %w", env.Kind, err)
	}
	return p, p.Validate()
}

func DecodeGenerateResult(env Envelope) (GenerateResultPayload, error) {
	var p GenerateResultPayload
	if env.Kind != KindGenerateResult {
		return p, fmt.Errorf("%w: got %s, want %s", ErrUnknownKind, env.Kind, KindGenerateResult)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload failed: %w", env.Kind, err)
	}
	return p, p.Validate()
}
