package models

import "time"

type InboundPushBuilder struct {
	push *InboundPush
}

func NewInboundPushBuilder() *InboundPushBuilder {
	return &InboundPushBuilder{
		push: &InboundPush{
			Payload: make(map[string]interface{}),
		},
	}
}

func (b *InboundPushBuilder) WithID(id string) *InboundPushBuilder {
	b.push.ID = id
	return b
}

func (b *InboundPushBuilder) WithReceivedAt(t time.Time) *InboundPushBuilder {
	b.push.ReceivedAt = t
	return b
}

func (b *InboundPushBuilder) WithField(key string, value interface{}) *InboundPushBuilder {
	b.push.Payload[key] = value
	return b
}

// WithAlert sets the APNs alert dictionary.
func (b *InboundPushBuilder) WithAlert(title, subtitle, body string) *InboundPushBuilder {
	aps, _ := b.push.Payload[KeyAPS].(map[string]interface{})
	if aps == nil {
		aps = make(map[string]interface{})
	}
	alert := map[string]interface{}{}
	if title != "" {
		alert["title"] = title
	}
	if subtitle != "" {
		alert["subtitle"] = subtitle
	}
	if body != "" {
		alert["body"] = body
	}
	aps["alert"] = alert
	b.push.Payload[KeyAPS] = aps
	return b
}

func (b *InboundPushBuilder) WithTraceID(traceID string) *InboundPushBuilder {
	b.push.Metadata.TraceID = traceID
	return b
}

func (b *InboundPushBuilder) Build() InboundPush {
	return *b.push
}
