package stages

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"

	"beacon/internal/logger"
	"beacon/internal/markdown"
	"beacon/internal/pipeline"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/models"
)

const (
	decryptFailedTitle = "Decryption failed"
	excerptRunes       = 64
)

// Decrypter is satisfied by *cipher.Gateway.
type Decrypter interface {
	Decrypt(index int, sealed string) ([]byte, error)
}

// Decryption replaces the envelope content with the decrypted ciphertext
// field. It is the only stage that can end a run early.
type Decryption struct {
	cipher Decrypter
	logger logger.Logger
	fold   cases.Caser
}

func NewDecryption(cipher Decrypter, log logger.Logger) *Decryption {
	return &Decryption{cipher: cipher, logger: log, fold: cases.Fold()}
}

func (s *Decryption) Name() string                   { return NameDecryption }
func (s *Decryption) Policy() pipeline.FailurePolicy { return pipeline.FailFast }

func (s *Decryption) Process(ctx context.Context, _ string, env models.Envelope) (models.Envelope, error) {
	p := models.Payload(env.CustomFields)
	sealed, ok := p.String(models.KeyCiphertext)
	if !ok {
		return env, nil
	}
	index, _ := p.Int(models.KeyCipherNumber)

	if s.cipher == nil {
		return env, pipeline.Terminal(failedEnvelope(env, sealed),
			pkgerrors.ErrDecryption.WithMessage("no cipher configured"))
	}

	plain, err := s.cipher.Decrypt(index, sealed)
	if err != nil {
		return env, pipeline.Terminal(failedEnvelope(env, sealed), err)
	}

	fields, err := s.decode(plain)
	if err != nil {
		return env, pipeline.Terminal(failedEnvelope(env, sealed),
			pkgerrors.ErrDecryption.WithMessage("decrypted payload is not a json object").WithCause(err))
	}

	s.logger.DebugwCtx(ctx, "Payload decrypted", "cipher_index", index, "fields", len(fields))
	return applyFields(env, fields), nil
}

// decode parses plain into a flat map with case-folded keys.
func (s *Decryption) decode(plain []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(plain, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, pkgerrors.New("null payload")
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[s.fold.String(k)] = v
	}
	return out, nil
}

// applyFields overwrites the envelope with whatever the decrypted map carries.
// Keys the map does not mention leave the outer values alone.
func applyFields(env models.Envelope, fields map[string]interface{}) models.Envelope {
	p := models.Payload(fields)

	if id, ok := p.String(models.KeyID); ok {
		env.TargetID = id
	}
	if v, ok := p.String(models.KeyTitle); ok {
		env.Title = v
	}
	if v, ok := p.String(models.KeySubtitle); ok {
		env.Subtitle = v
	}
	if v, ok := p.String(models.KeyBody); ok {
		env.Body = v
	}

	if md, ok := p.String(models.KeyMarkdown); ok {
		env.Body = md
		env.Category = models.CategoryMarkdown
	} else if c, ok := p.String(models.KeyCategory); ok {
		if strings.EqualFold(c, string(models.CategoryMarkdown)) {
			env.Category = models.CategoryMarkdown
		} else {
			env.Category = models.CategoryPlain
		}
	}

	if g, ok := p.String(models.KeyGroup); ok {
		env.ThreadKey = g
	}
	if snd, ok := p.String(models.KeySound); ok {
		env.SoundName = models.SoundFile(snd)
	}

	if env.CustomFields == nil {
		env.CustomFields = make(map[string]interface{}, len(fields))
	}
	for k, v := range fields {
		env.CustomFields[k] = v
	}
	return env
}

func failedEnvelope(env models.Envelope, sealed string) models.Envelope {
	return models.Envelope{
		Identifier: env.Identifier,
		Title:      decryptFailedTitle,
		Body:       markdown.Truncate(sealed, excerptRunes),
		Category:   models.CategoryPlain,
		Level:      models.LevelActive,
		CustomFields: map[string]interface{}{
			models.KeyCiphertext: sealed,
		},
	}
}
