package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority levels carried in envelope metadata.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Validation errors
var (
	ErrEmptyID   = errors.New("envelope ID cannot be empty")
	ErrEmptyType = errors.New("envelope type cannot be empty")
)

// Source identifies the sending agent.
type Source struct {
	AgentID  string `json:"agentId"`
	Language string `json:"language"`
	Runtime  string `json:"runtime"`
}

// Destination routes an envelope to one agent or to every agent.
type Destination struct {
	AgentID   string `json:"agentId,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`
}

// Metadata carries delivery hints. A response's CorrelationID equals the ID
// of the request it answers.
type Metadata struct {
	Priority      string `json:"priority"`
	CorrelationID string `json:"correlationId,omitempty"`
	RetryCount    int    `json:"retryCount"`
	MaxRetries    int    `json:"maxRetries"`
	TimeoutMs     int    `json:"timeoutMs"`
}

// Envelope is one discrete protocol message on the host channel.
type Envelope struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Type        string      `json:"type"`
	Source      Source      `json:"source"`
	Destination Destination `json:"destination"`
	Payload     any         `json:"payload"`
	Metadata    Metadata    `json:"metadata"`
}

// NewBroadcast creates an envelope addressed to every agent.
func NewBroadcast(msgType string, src Source, payload any, priority string) *Envelope {
	return &Envelope{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Type:        msgType,
		Source:      src,
		Destination: Destination{Broadcast: true},
		Payload:     payload,
		Metadata: Metadata{
			Priority:  priority,
			TimeoutMs: 5000,
		},
	}
}

// NewResponse creates an envelope answering req, correlated to its ID and
// addressed back to its sender.
func NewResponse(req *Envelope, msgType string, src Source, payload any) *Envelope {
	return &Envelope{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Type:        msgType,
		Source:      src,
		Destination: Destination{AgentID: req.Source.AgentID},
		Payload:     payload,
		Metadata: Metadata{
			Priority:      PriorityNormal,
			CorrelationID: req.ID,
			TimeoutMs:     5000,
		},
	}
}

// Encode serializes the envelope as a single JSON line (without the trailing
// newline).
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses one line from the host channel into an Envelope.
func Decode(line []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks the fields no envelope may omit.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Type == "" {
		return ErrEmptyType
	}
	return nil
}

// DecodePayload unmarshals the opaque payload into v. Incoming payloads are
// generic JSON values; handlers use this to read their typed parameters.
func (e *Envelope) DecodePayload(v any) error {
	if e.Payload == nil {
		return nil
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	return nil
}
