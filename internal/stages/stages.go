// Package stages holds the enrichment stages the notifier runs, in order:
// decryption, archival, level/sound, media, badge and mute.
package stages

import (
	"context"
	"time"

	"beacon/internal/archive"
	"beacon/internal/attachment"
	"beacon/internal/cloud"
	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/internal/messages"
	"beacon/internal/pipeline"
	"beacon/internal/preferences"
)

const (
	NameDecryption = "decryption"
	NameArchival   = "archival"
	NameLevel      = "level"
	NameMedia      = "media"
	NameBadge      = "badge"
	NameMute       = "mute"
)

// Deps are the collaborators shared by the stages. Icons, Album, Callback and
// Donor are optional.
type Deps struct {
	Cipher      Decrypter
	Messages    messages.Store
	Preferences preferences.Store
	Writer      archive.Submitter
	Callback    HostNotifier
	Extender    Extender
	Fetcher     *attachment.Fetcher
	Album       AlbumSaver
	Icons       cloud.IconStore
	Donor       Donor

	Archive config.ArchiveConfig
	Audio   config.AudioConfig

	Logger logger.Logger
	Now    func() time.Time
}

// Default returns the stages in the order they must run.
func Default(d Deps) []pipeline.Stage {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Donor == nil {
		d.Donor = SenderDonor{}
	}
	return []pipeline.Stage{
		NewDecryption(d.Cipher, d.Logger),
		NewArchival(d.Messages, d.Preferences, d.Writer, d.Callback, d.Archive, d.Logger, d.Now),
		NewLevel(d.Preferences, d.Extender, d.Audio.FallbackSound, d.Logger),
		NewMedia(d.Fetcher, d.Album, d.Icons, d.Preferences, d.Donor, d.Logger),
		NewBadge(d.Messages, d.Logger),
		NewMute(d.Preferences, d.Logger, d.Now),
	}
}

func settingsOrDefault(ctx context.Context, prefs preferences.Store, log logger.Logger) preferences.Settings {
	fallback := preferences.DefaultSettings(config.PreferenceDefaults{
		RetentionDays: constants.DefaultRetentionDays,
	})
	if prefs == nil {
		return fallback
	}
	s, err := prefs.Settings(ctx)
	if err != nil {
		log.WarnwCtx(ctx, "Preferences unavailable, using defaults", "error", err)
		return fallback
	}
	return s
}
