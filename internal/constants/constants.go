package constants

import "time"

const (
	ServiceNotify = "notify-service"
	ServiceCLI    = "beacon-cli"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	DefaultInputTopic  = "push_payloads"
	DefaultOutputTopic = "resolved_notifications"
)

const (
	DefaultMongoDBName     = "beacon"
	DefaultIconCollection  = "icons"
	DefaultRedisKeyPrefix  = "beacon:prefs:"
	DefaultSQLitePath      = "beacon.db"
	DefaultPreferencesFile = "preferences.toml"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

const (
	DefaultDeadline        = 30 * time.Second
	DefaultInterruptMargin = 1 * time.Second
)

const (
	SoundExtension      = ".caf"
	DefaultSoundName    = "nolet"
	DefaultCallSound    = "call"
	FallbackCallSound   = "call.caf"
	LongSoundPrefix     = "pb.sounds.30s"
	MinCallDuration     = 30 * time.Second
	CallSampleRate      = 44100
	CallChannels        = 2
	DefaultFFmpegBinary = "ffmpeg"
)

const (
	DefaultGroup           = "默认"
	DefaultPreviewRunes    = 256
	DefaultArchiveTimeout  = 10 * time.Second
	DefaultSweepInterval   = 1 * time.Hour
	DefaultRetentionDays   = 999999
	DefaultImageCacheDays  = 30
	DecryptionFailedTitle  = "Decryption failed"
	CiphertextExcerptRunes = 64
)

const (
	MaxPushBytes              = 256 << 10
	DefaultMaxAttachmentBytes = 10 << 20
	MaxVolume                 = 10
)
