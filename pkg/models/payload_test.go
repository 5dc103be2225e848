package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadCoercion(t *testing.T) {
	p := Payload{
		"Level":  "2",
		"badge":  float64(7),
		"call":   "yes",
		"volume": json.Number("4.5"),
		"id":     float64(42),
		"empty":  "",
	}

	level, ok := p.Int(KeyLevel)
	require.True(t, ok)
	assert.Equal(t, 2, level)

	badge, ok := p.Int(KeyBadge)
	require.True(t, ok)
	assert.Equal(t, 7, badge)

	call, ok := p.Bool(KeyCall)
	require.True(t, ok)
	assert.True(t, call)

	vol, ok := p.Float(KeyVolume)
	require.True(t, ok)
	assert.InDelta(t, 4.5, vol, 0.0001)

	id, ok := p.String(KeyID)
	require.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = p.String("empty")
	assert.False(t, ok)

	_, ok = p.String("missing")
	assert.False(t, ok)
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		in   interface{}
		want bool
		ok   bool
	}{
		{true, true, true},
		{"Y", true, true},
		{"no", false, true},
		{"0", false, true},
		{float64(3), true, true},
		{float64(0), false, true},
		{"maybe", false, false},
		{nil, false, false},
	}
	for _, tt := range tests {
		got, ok := AsBool(tt.in)
		assert.Equal(t, tt.ok, ok, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}
}

func TestLevelFromNumber(t *testing.T) {
	assert.Equal(t, LevelPassive, LevelFromNumber(-4))
	assert.Equal(t, LevelPassive, LevelFromNumber(0))
	assert.Equal(t, LevelActive, LevelFromNumber(1))
	assert.Equal(t, LevelTimeSensitive, LevelFromNumber(2))
	assert.Equal(t, LevelCritical, LevelFromNumber(9))
	assert.Equal(t, 3, LevelCritical.Number())
}

func TestEnvelopeCloneIsDeep(t *testing.T) {
	badge := 3
	env := Envelope{
		Title:        "hello",
		Badge:        &badge,
		Attachments:  []Attachment{{Kind: AttachmentImage, Path: "/tmp/a.png"}},
		CustomFields: map[string]interface{}{"nested": map[string]interface{}{"k": "v"}},
	}

	cp := env.Clone()
	*cp.Badge = 9
	cp.Attachments[0].Path = "/tmp/b.png"
	cp.CustomFields["nested"].(map[string]interface{})["k"] = "changed"

	assert.Equal(t, 3, *env.Badge)
	assert.Equal(t, "/tmp/a.png", env.Attachments[0].Path)
	assert.Equal(t, "v", env.CustomFields["nested"].(map[string]interface{})["k"])
}

func TestWithoutReserved(t *testing.T) {
	p := Payload{"title": "t", "Group": "g", "order_id": "123", "aps": map[string]interface{}{}}
	assert.Equal(t, map[string]interface{}{"order_id": "123"}, p.WithoutReserved())
}

func TestDecodePush(t *testing.T) {
	wrapped, err := DecodePush([]byte(`{"id":"n-1","payload":{"title":"hi"},"metadata":{"source":"kafka"}}`))
	require.NoError(t, err)
	assert.Equal(t, "n-1", wrapped.ID)
	assert.Equal(t, "hi", wrapped.Payload["title"])
	assert.Equal(t, "kafka", wrapped.Metadata.Source)

	bare, err := DecodePush([]byte(`{"title":"hi","id":"target"}`))
	require.NoError(t, err)
	assert.Empty(t, bare.ID)
	assert.Equal(t, "target", bare.Payload["id"])

	_, err = DecodePush([]byte(`{}`))
	assert.Error(t, err)
	_, err = DecodePush([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestValidateInboundPush(t *testing.T) {
	push := NewInboundPushBuilder().WithID("n-1").WithAlert("t", "", "b").Build()
	assert.NoError(t, ValidateInboundPush(&push))

	assert.Error(t, ValidateInboundPush(&InboundPush{}))
	bad := NewInboundPushBuilder().WithField(KeyAPS, "oops").Build()
	assert.Error(t, ValidateInboundPush(&bad))
}

func TestExpiresAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	at, ok := PersistedMessage{CreatedAt: created, TTLDays: 30}.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, created.Add(30*24*time.Hour), at)

	// past the range of time.Duration
	at, ok = PersistedMessage{CreatedAt: created, TTLDays: 200000}.ExpiresAt()
	require.True(t, ok)
	assert.True(t, at.After(created))
	assert.Equal(t, created.Year()+547, at.Year())

	_, ok = PersistedMessage{CreatedAt: created, TTLDays: RetentionForever}.ExpiresAt()
	assert.False(t, ok)
}
