package notifier

import (
	"strings"

	"beacon/pkg/models"
)

// BuildEnvelope maps an inbound payload onto the initial envelope. The aps
// dictionary wins over top-level keys of the same meaning.
func BuildEnvelope(id string, payload map[string]interface{}) models.Envelope {
	p := models.Payload(payload)
	env := models.Envelope{
		Identifier: id,
		Category:   models.CategoryPlain,
		Level:      models.LevelActive,
	}

	aps, _ := p.Map(models.KeyAPS)
	apsPayload := models.Payload(aps)

	switch alert := aps["alert"].(type) {
	case map[string]interface{}:
		a := models.Payload(alert)
		env.Title, _ = a.String(models.KeyTitle)
		env.Subtitle, _ = a.String(models.KeySubtitle)
		env.Body, _ = a.String(models.KeyBody)
	case string:
		env.Body = alert
	}
	if env.Title == "" {
		env.Title, _ = p.String(models.KeyTitle)
	}
	if env.Subtitle == "" {
		env.Subtitle, _ = p.String(models.KeySubtitle)
	}
	if env.Body == "" {
		env.Body, _ = p.String(models.KeyBody)
	}

	if md, ok := p.String(models.KeyMarkdown); ok {
		env.Body = md
		env.Category = models.CategoryMarkdown
	} else if isMarkdown(apsPayload, p) {
		env.Category = models.CategoryMarkdown
	}

	env.ThreadKey, _ = apsPayload.String("thread-id")
	env.TargetID, _ = p.String(models.KeyID)

	if snd, ok := apsPayload.String(models.KeySound); ok {
		env.SoundName = models.SoundFile(snd)
	} else if snd, ok := p.String(models.KeySound); ok {
		env.SoundName = models.SoundFile(snd)
	}

	if n, ok := apsPayload.Int(models.KeyBadge); ok {
		env.Badge = &n
	}

	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if strings.EqualFold(k, models.KeyAPS) {
			continue
		}
		fields[k] = v
	}
	env.CustomFields = fields
	return env
}

func isMarkdown(sources ...models.Payload) bool {
	for _, p := range sources {
		if c, ok := p.String(models.KeyCategory); ok && strings.EqualFold(c, string(models.CategoryMarkdown)) {
			return true
		}
	}
	return false
}
