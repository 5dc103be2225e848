package models

import (
	"strings"
	"time"
)

type InterruptionLevel string

const (
	LevelPassive       InterruptionLevel = "passive"
	LevelActive        InterruptionLevel = "active"
	LevelTimeSensitive InterruptionLevel = "timeSensitive"
	LevelCritical      InterruptionLevel = "critical"
)

// LevelFromNumber maps the numeric wire form onto a level.
// Anything at or below zero is passive, three and above is critical.
func LevelFromNumber(n int) InterruptionLevel {
	switch {
	case n <= 0:
		return LevelPassive
	case n == 1:
		return LevelActive
	case n == 2:
		return LevelTimeSensitive
	default:
		return LevelCritical
	}
}

// Number is the inverse of LevelFromNumber and is what gets persisted.
func (l InterruptionLevel) Number() int {
	switch l {
	case LevelPassive:
		return 0
	case LevelTimeSensitive:
		return 2
	case LevelCritical:
		return 3
	default:
		return 1
	}
}

type Category string

const (
	CategoryPlain    Category = "plain"
	CategoryMarkdown Category = "markdown"
)

const (
	AttachmentImage = "image"
	AttachmentIcon  = "icon"
)

type Attachment struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Sender is the communication metadata attached once an icon has been donated.
type Sender struct {
	Name           string `json:"name"`
	ImagePath      string `json:"image_path,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	GroupName      string `json:"group_name,omitempty"`
}

// Envelope is the notification record threaded through every stage of a run.
// Stages receive a copy and return the next version; nothing holds a
// reference to an envelope another stage is still working on.
type Envelope struct {
	Identifier   string                 `json:"identifier"`
	Title        string                 `json:"title,omitempty"`
	Subtitle     string                 `json:"subtitle,omitempty"`
	Body         string                 `json:"body,omitempty"`
	Category     Category               `json:"category"`
	ThreadKey    string                 `json:"thread_key,omitempty"`
	TargetID     string                 `json:"target_id,omitempty"`
	SoundName    string                 `json:"sound,omitempty"`
	Level        InterruptionLevel      `json:"level"`
	Volume       float64                `json:"volume,omitempty"`
	Badge        *int                   `json:"badge,omitempty"`
	Attachments  []Attachment           `json:"attachments,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"`
	Sender       *Sender                `json:"sender,omitempty"`
}

func (e Envelope) HasText() bool {
	return e.Title != "" || e.Subtitle != "" || e.Body != ""
}

func (e Envelope) Field(key string) (interface{}, bool) {
	return Payload(e.CustomFields).Get(key)
}

func (e Envelope) Clone() Envelope {
	out := e
	if e.Badge != nil {
		b := *e.Badge
		out.Badge = &b
	}
	if e.Attachments != nil {
		out.Attachments = append([]Attachment(nil), e.Attachments...)
	}
	if e.Sender != nil {
		s := *e.Sender
		out.Sender = &s
	}
	if e.CustomFields != nil {
		out.CustomFields = deepCopyMap(e.CustomFields)
	}
	return out
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		cp := make([]interface{}, len(val))
		for i := range val {
			cp[i] = deepCopyValue(val[i])
		}
		return cp
	default:
		return val
	}
}

type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeTerminated Outcome = "terminated"
	OutcomeExpired    Outcome = "expired"
)

// Notification is what leaves the service: the final envelope and how the run ended.
type Notification struct {
	Envelope    Envelope  `json:"envelope"`
	Outcome     Outcome   `json:"outcome"`
	StagesRun   int       `json:"stages_run"`
	DeliveredAt time.Time `json:"delivered_at"`
}

const soundExtension = ".caf"

// SoundFile appends the sound file extension unless sound already has it.
func SoundFile(sound string) string {
	if sound == "" || strings.HasSuffix(strings.ToLower(sound), soundExtension) {
		return sound
	}
	return sound + soundExtension
}
