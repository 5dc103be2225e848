package stages

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"beacon/internal/archive"
	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/internal/markdown"
	"beacon/internal/messages"
	"beacon/internal/pipeline"
	"beacon/internal/preferences"
	"beacon/pkg/models"
)

// HostNotifier is satisfied by *archive.HostCallback.
type HostNotifier interface {
	Notify(ctx context.Context, host, id string) error
}

// Archival stores a copy of the notification in the message archive. The
// write runs in the background; the envelope only changes for the banner
// preview and the thread key.
type Archival struct {
	messages messages.Store
	prefs    preferences.Store
	writer   archive.Submitter
	callback HostNotifier
	cfg      config.ArchiveConfig
	logger   logger.Logger
	now      func() time.Time
}

func NewArchival(
	store messages.Store,
	prefs preferences.Store,
	writer archive.Submitter,
	callback HostNotifier,
	cfg config.ArchiveConfig,
	log logger.Logger,
	now func() time.Time,
) *Archival {
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = constants.DefaultGroup
	}
	if cfg.PreviewRunes <= 0 {
		cfg.PreviewRunes = constants.DefaultPreviewRunes
	}
	if now == nil {
		now = time.Now
	}
	return &Archival{
		messages: store,
		prefs:    prefs,
		writer:   writer,
		callback: callback,
		cfg:      cfg,
		logger:   log,
		now:      now,
	}
}

func (s *Archival) Name() string                   { return NameArchival }
func (s *Archival) Policy() pipeline.FailurePolicy { return pipeline.FailOpen }

func (s *Archival) Process(ctx context.Context, identifier string, env models.Envelope) (models.Envelope, error) {
	p := models.Payload(env.CustomFields)

	storedBody := env.Body
	if env.Category == models.CategoryMarkdown {
		storedBody = markdown.EnsureLineBreaks(env.Body)
		env.Body = markdown.Preview(env.Body, s.cfg.PreviewRunes)
	}

	group, ok := p.String(models.KeyGroup)
	if !ok {
		group = env.ThreadKey
	}
	if group == "" {
		group = s.cfg.DefaultGroup
	}
	env.ThreadKey = group

	settings := settingsOrDefault(ctx, s.prefs, s.logger)
	ttl, ok := p.Int(models.KeyTTL)
	if !ok {
		ttl = settings.RetentionDays
	}

	if s.prefs != nil {
		if _, err := s.prefs.IncrementMessageCount(ctx); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to increment message count", "error", err)
		}
	}

	s.notifyHost(ctx, p, env, identifier)

	if !env.HasText() {
		env.Level = models.LevelPassive
		return env, nil
	}
	if ttl <= 0 || s.messages == nil || s.writer == nil {
		return env, nil
	}

	msg := models.PersistedMessage{
		ID:        messageID(env, identifier),
		CreatedAt: s.now(),
		Group:     group,
		Title:     env.Title,
		Subtitle:  env.Subtitle,
		Body:      storedBody,
		Level:     levelFromPayload(p).Number(),
		TTLDays:   ttl,
		Other:     otherFields(p),
	}
	msg.Icon, _ = p.String(models.KeyIcon)
	msg.URL, _ = p.String(models.KeyURL)
	msg.Image, _ = p.String(models.KeyImage)
	msg.Host, _ = p.String(models.KeyHost)

	// nothing is scheduled once the run has been abandoned
	if err := ctx.Err(); err != nil {
		return env, err
	}

	submitter := archive.SubmitterFrom(ctx, s.writer)
	if !submitter.Submit(ctx, "archive", s.write(msg)) {
		s.logger.WarnwCtx(ctx, "Archive writer closed, message not stored", "message_id", msg.ID)
		return env, nil
	}
	return env, nil
}

// notifyHost fires the host callback for every run that names a host and
// carries an id, whether or not the message is archived.
func (s *Archival) notifyHost(ctx context.Context, p models.Payload, env models.Envelope, identifier string) {
	host, _ := p.String(models.KeyHost)
	id := knownID(env, identifier)
	if host == "" || id == "" || s.callback == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if archive.BatchFrom(ctx) == nil && s.writer == nil {
		return
	}
	archive.SubmitterFrom(ctx, s.writer).Submit(ctx, "host_callback", func(jobCtx context.Context) error {
		return s.callback.Notify(jobCtx, host, id)
	})
}

func (s *Archival) write(msg models.PersistedMessage) archive.Job {
	return func(ctx context.Context) error {
		if err := s.messages.Add(ctx, msg); err != nil {
			return err
		}
		_, err := s.messages.DeleteExpired(ctx, s.now())
		return err
	}
}

func messageID(env models.Envelope, identifier string) string {
	if id := knownID(env, identifier); id != "" {
		return id
	}
	return uuid.NewString()
}

// knownID is the id the sender or transport supplied, never a generated one.
func knownID(env models.Envelope, identifier string) string {
	switch {
	case env.TargetID != "":
		return env.TargetID
	case env.Identifier != "":
		return env.Identifier
	default:
		return identifier
	}
}

// otherFields is the JSON of every field the pipeline does not interpret.
func otherFields(p models.Payload) string {
	rest := p.WithoutReserved()
	if len(rest) == 0 {
		return ""
	}
	b, err := json.Marshal(rest)
	if err != nil {
		return ""
	}
	return string(b)
}
