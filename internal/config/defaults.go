package config

const (
	defaultDownloadDir  = "~/.local/share/clipforge/downloads"
	defaultTrimDir      = "~/.local/share/clipforge/trimmed"
	defaultMergeDir     = "~/.local/share/clipforge/merged"
	defaultHighlightDir = "~/.local/share/clipforge/highlights"
	defaultLogDir       = "~/.local/share/clipforge/logs"
	defaultAPIBind      = "127.0.0.1:7519"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultTransitionSeconds   = 1.0
	defaultDurationToleranceMs = 40
	defaultCopyCutToleranceMs  = 250
	defaultVideoCodec          = "libx264"
	defaultAudioCodec          = "aac"

	defaultWatermarkText     = "ClipForge"
	defaultWatermarkPosition = "top-right"
	defaultWatermarkOpacity  = 0.85
	defaultWatermarkFontSize = 24
	defaultWatermarkMargin   = 12

	defaultTokenURL             = "https://oauth2.googleapis.com/token"
	defaultUploadURL            = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"
	defaultRefreshLeewaySeconds = 30
	defaultResumeAttempts       = 3
	defaultRequestTimeout       = 10

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultWorkers            = 2
	defaultExpeditedWeight    = 3
	defaultStageRetryAttempts = 3
	defaultStageRetryBackoff  = 5

	defaultFreeQuota     = 2
	defaultShortsCap     = 60
	defaultStandardClass = "standard"
	defaultExpeditedName = "expedited"

	// UnlimitedQuota is the sentinel for plans without a monthly cap.
	UnlimitedQuota = -1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir:  defaultDownloadDir,
			TrimDir:      defaultTrimDir,
			MergeDir:     defaultMergeDir,
			HighlightDir: defaultHighlightDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:        "ffmpeg",
			FFprobeBinary:       "ffprobe",
			YtDlpBinary:         "yt-dlp",
			TransitionSeconds:   defaultTransitionSeconds,
			DurationToleranceMs: defaultDurationToleranceMs,
			CopyCutToleranceMs:  defaultCopyCutToleranceMs,
			VideoCodec:          defaultVideoCodec,
			AudioCodec:          defaultAudioCodec,
		},
		Watermark: Watermark{
			Text:     defaultWatermarkText,
			Position: defaultWatermarkPosition,
			Opacity:  defaultWatermarkOpacity,
			FontSize: defaultWatermarkFontSize,
			Margin:   defaultWatermarkMargin,
		},
		Storage: Storage{
			Bucket: "highlights",
		},
		YouTube: YouTube{
			TokenURL:             defaultTokenURL,
			UploadURL:            defaultUploadURL,
			RefreshLeewaySeconds: defaultRefreshLeewaySeconds,
			ResumeAttempts:       defaultResumeAttempts,
			RequestTimeout:       defaultRequestTimeout,
		},
		Tiers: Tiers{
			Free: TierRules{
				Transitions:      []string{"fade", "cut"},
				QueueClass:       defaultStandardClass,
				MonthlyQuota:     defaultFreeQuota,
				ShortsCapSeconds: defaultShortsCap,
			},
			Paid: TierRules{
				Transitions:      []string{"fade", "fadeblack", "crossfade", "slide", "zoom", "wipe", "cut"},
				QueueClass:       defaultExpeditedName,
				MonthlyQuota:     UnlimitedQuota,
				ShortsCapSeconds: defaultShortsCap,
			},
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			Workers:            defaultWorkers,
			ExpeditedWeight:    defaultExpeditedWeight,
			StageRetryAttempts: defaultStageRetryAttempts,
			StageRetryBackoff:  defaultStageRetryBackoff,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
			Publish:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
