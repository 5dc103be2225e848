package models

import (
	"encoding/json"
	"time"

	pkgerrors "beacon/pkg/errors"
)

// RetentionForever marks a message that the expiration sweep never removes.
const RetentionForever = 999999

// InboundPush is the transport wrapper around a raw push payload.
type InboundPush struct {
	ID         string                 `json:"id"`
	ReceivedAt time.Time              `json:"received_at"`
	Payload    map[string]interface{} `json:"payload"`
	Metadata   PushMetadata           `json:"metadata"`
}

// DecodePush accepts either an InboundPush wrapper or a bare payload object.
func DecodePush(data []byte) (InboundPush, error) {
	var push InboundPush
	if err := json.Unmarshal(data, &push); err != nil {
		return push, pkgerrors.ErrValidation.WithMessage("push is not a json object").WithCause(err)
	}
	if push.Payload != nil {
		return push, nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return push, pkgerrors.ErrValidation.WithCause(err)
	}
	if len(payload) == 0 {
		return push, pkgerrors.ErrValidation.WithMessage("empty push")
	}
	return InboundPush{Payload: payload}, nil
}

type PushMetadata struct {
	TraceID string                 `json:"trace_id,omitempty"`
	Source  string                 `json:"source,omitempty"`
	DLQ     map[string]interface{} `json:"dlq,omitempty"`
}

// PersistedMessage is an archived notification as the presentation layer sees it.
type PersistedMessage struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Group     string    `json:"group"`
	Title     string    `json:"title,omitempty"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Body      string    `json:"body,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	URL       string    `json:"url,omitempty"`
	Image     string    `json:"image,omitempty"`
	Host      string    `json:"host,omitempty"`
	Level     int       `json:"level"`
	TTLDays   int       `json:"ttl_days"`
	Read      bool      `json:"read"`
	Other     string    `json:"other,omitempty"`
}

// ExpiresAt reports when the message becomes eligible for the sweep.
// Messages kept forever report ok == false.
func (m PersistedMessage) ExpiresAt() (time.Time, bool) {
	if m.TTLDays >= RetentionForever {
		return time.Time{}, false
	}
	// calendar days in UTC; a Duration overflows past ~106751 days
	return m.CreatedAt.UTC().AddDate(0, 0, m.TTLDays), true
}
