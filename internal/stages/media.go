package stages

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"beacon/internal/attachment"
	"beacon/internal/cloud"
	"beacon/internal/logger"
	"beacon/internal/pipeline"
	"beacon/internal/preferences"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/models"
)

const iconKeyPrefix = "icon:"

// AlbumSaver is satisfied by *attachment.Album.
type AlbumSaver interface {
	Save(ctx context.Context, src string) error
}

// Donor publishes the sender of a notification once its icon is known.
type Donor interface {
	Donate(ctx context.Context, env models.Envelope, iconPath string) (*models.Sender, error)
}

// SenderDonor derives sender metadata from the envelope itself.
type SenderDonor struct{}

func (SenderDonor) Donate(_ context.Context, env models.Envelope, iconPath string) (*models.Sender, error) {
	if _, err := os.Stat(iconPath); err != nil {
		return nil, fmt.Errorf("icon not readable: %w", err)
	}
	return &models.Sender{
		Name:           env.Title,
		ImagePath:      iconPath,
		ConversationID: env.ThreadKey,
		GroupName:      env.Subtitle,
	}, nil
}

// Media downloads the image attachment and resolves the sender icon.
type Media struct {
	fetcher *attachment.Fetcher
	album   AlbumSaver
	icons   cloud.IconStore
	prefs   preferences.Store
	donor   Donor
	logger  logger.Logger
}

func NewMedia(
	fetcher *attachment.Fetcher,
	album AlbumSaver,
	icons cloud.IconStore,
	prefs preferences.Store,
	donor Donor,
	log logger.Logger,
) *Media {
	if donor == nil {
		donor = SenderDonor{}
	}
	return &Media{
		fetcher: fetcher,
		album:   album,
		icons:   icons,
		prefs:   prefs,
		donor:   donor,
		logger:  log,
	}
}

func (s *Media) Name() string                   { return NameMedia }
func (s *Media) Policy() pipeline.FailurePolicy { return pipeline.FailOpen }

func (s *Media) Process(ctx context.Context, _ string, env models.Envelope) (models.Envelope, error) {
	if s.fetcher == nil {
		return env, nil
	}
	p := models.Payload(env.CustomFields)
	imageURL, hasImage := p.String(models.KeyImage)
	icon, hasIcon := p.String(models.KeyIcon)
	if !hasImage && !hasIcon {
		return env, nil
	}

	settings := settingsOrDefault(ctx, s.prefs, s.logger)

	var imagePath, iconPath string
	g, gctx := errgroup.WithContext(ctx)
	if hasImage {
		g.Go(func() error {
			path, err := s.resolveImage(gctx, p, imageURL, settings)
			if err != nil {
				s.logger.WarnwCtx(gctx, "Image attachment skipped", "url", imageURL, "error", err)
				return nil
			}
			imagePath = path
			return nil
		})
	}
	if hasIcon {
		g.Go(func() error {
			path, err := s.resolveIcon(gctx, icon, env.Title, settings.ImageCacheDays)
			if err != nil {
				s.logger.WarnwCtx(gctx, "Icon skipped", "icon", icon, "error", err)
				return nil
			}
			iconPath = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return env, err
	}
	if err := ctx.Err(); err != nil {
		return env, err
	}

	if imagePath != "" {
		env.Attachments = append(env.Attachments, models.Attachment{Kind: models.AttachmentImage, Path: imagePath})
	}
	if iconPath == "" {
		return env, nil
	}

	attached, err := s.fetcher.Attach(iconPath)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Icon could not be attached", "error", err)
		return env, nil
	}
	donated := env.Clone()
	sender, err := s.donor.Donate(ctx, donated, attached)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Sender donation failed", "error", err)
		_ = os.Remove(attached)
		return env, nil
	}
	donated.Attachments = append(donated.Attachments, models.Attachment{Kind: models.AttachmentIcon, Path: attached})
	donated.Sender = sender
	return donated, nil
}

func (s *Media) resolveImage(ctx context.Context, p models.Payload, rawURL string, settings preferences.Settings) (string, error) {
	cached, err := s.fetcher.Fetch(ctx, rawURL, settings.ImageCacheDays)
	if err != nil {
		return "", err
	}
	s.autoSave(ctx, p, cached, settings)
	return s.fetcher.Attach(cached)
}

// autoSave copies the image into the album. An explicit savealbum field wins;
// otherwise each distinct image is saved once when auto-save is on.
func (s *Media) autoSave(ctx context.Context, p models.Payload, path string, settings preferences.Settings) {
	if s.album == nil {
		return
	}
	if v, ok := p.String(models.KeySaveAlbum); ok {
		if v == "1" {
			s.save(ctx, path)
		}
		return
	}
	if !settings.AutoSaveImages || s.prefs == nil {
		return
	}
	hash, err := attachment.HashFile(path)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Could not hash image", "error", err)
		return
	}
	fresh, err := s.prefs.MarkImageSaved(ctx, hash)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Could not record saved image", "error", err)
		return
	}
	if fresh {
		s.save(ctx, path)
	}
}

func (s *Media) save(ctx context.Context, path string) {
	if err := s.album.Save(ctx, path); err != nil {
		s.logger.WarnwCtx(ctx, "Album save failed", "error", err)
	}
}

// resolveIcon returns a cache path for icon: a downloaded URL, a named record
// from the cloud store, or a generated placeholder.
func (s *Media) resolveIcon(ctx context.Context, icon, title string, days int) (string, error) {
	if isHTTP(icon) {
		return s.fetcher.Fetch(ctx, icon, days)
	}

	key := iconKeyPrefix + icon
	if path, ok := s.fetcher.Lookup(key, days); ok {
		return path, nil
	}

	if s.icons != nil {
		path, err := s.cloudIcon(ctx, key, icon, days)
		if err == nil {
			return path, nil
		}
		if !pkgerrors.IsNotFound(err) {
			s.logger.WarnwCtx(ctx, "Cloud icon lookup failed", "icon", icon, "error", err)
		}
	}

	return s.fetcher.Placeholder(placeholderStyle(title, icon))
}

func (s *Media) cloudIcon(ctx context.Context, key, name string, days int) (string, error) {
	rec, err := s.icons.QueryIcon(ctx, name)
	if err != nil {
		return "", err
	}
	data := rec.Data
	if len(data) == 0 && rec.URL != "" {
		path, err := s.fetcher.Fetch(ctx, rec.URL, days)
		if err != nil {
			return "", err
		}
		if data, err = os.ReadFile(path); err != nil {
			return "", err
		}
	}
	if len(data) == 0 {
		return "", pkgerrors.ErrNotFound.WithMessage(fmt.Sprintf("icon %q has no image", name))
	}
	return s.fetcher.Store(key, data)
}

// placeholderStyle keeps an explicit "text,fg,bg" icon style, otherwise the
// avatar shows the sender's title.
func placeholderStyle(title, icon string) string {
	if strings.Contains(icon, ",") || title == "" {
		return icon
	}
	return title
}

func isHTTP(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
