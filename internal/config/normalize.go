package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFFmpeg(); err != nil {
		return err
	}
	if err := c.normalizeWatermark(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeYouTube()
	c.normalizeTiers()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.TrimDir, err = expandPath(c.Paths.TrimDir); err != nil {
		return fmt.Errorf("paths.trim_dir: %w", err)
	}
	if c.Paths.MergeDir, err = expandPath(c.Paths.MergeDir); err != nil {
		return fmt.Errorf("paths.merge_dir: %w", err)
	}
	if c.Paths.HighlightDir, err = expandPath(c.Paths.HighlightDir); err != nil {
		return fmt.Errorf("paths.highlight_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeFFmpeg() error {
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	if c.FFmpeg.FFmpegBinary == "" {
		c.FFmpeg.FFmpegBinary = "ffmpeg"
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = "ffprobe"
	}
	c.FFmpeg.YtDlpBinary = strings.TrimSpace(c.FFmpeg.YtDlpBinary)
	if c.FFmpeg.YtDlpBinary == "" {
		c.FFmpeg.YtDlpBinary = "yt-dlp"
	}
	if c.FFmpeg.TransitionSeconds <= 0 {
		c.FFmpeg.TransitionSeconds = defaultTransitionSeconds
	}
	if c.FFmpeg.DurationToleranceMs <= 0 {
		c.FFmpeg.DurationToleranceMs = defaultDurationToleranceMs
	}
	if c.FFmpeg.CopyCutToleranceMs <= 0 {
		c.FFmpeg.CopyCutToleranceMs = defaultCopyCutToleranceMs
	}
	c.FFmpeg.VideoCodec = strings.TrimSpace(c.FFmpeg.VideoCodec)
	if c.FFmpeg.VideoCodec == "" {
		c.FFmpeg.VideoCodec = defaultVideoCodec
	}
	c.FFmpeg.AudioCodec = strings.TrimSpace(c.FFmpeg.AudioCodec)
	if c.FFmpeg.AudioCodec == "" {
		c.FFmpeg.AudioCodec = defaultAudioCodec
	}
	return nil
}

func (c *Config) normalizeWatermark() error {
	var err error
	if c.Watermark.ImagePath, err = expandPath(c.Watermark.ImagePath); err != nil {
		return fmt.Errorf("watermark.image_path: %w", err)
	}
	c.Watermark.Position = strings.ToLower(strings.TrimSpace(c.Watermark.Position))
	if c.Watermark.Position == "" {
		c.Watermark.Position = defaultWatermarkPosition
	}
	if c.Watermark.Opacity <= 0 || c.Watermark.Opacity > 1 {
		c.Watermark.Opacity = defaultWatermarkOpacity
	}
	if c.Watermark.FontSize <= 0 {
		c.Watermark.FontSize = defaultWatermarkFontSize
	}
	if c.Watermark.Margin <= 0 {
		c.Watermark.Margin = defaultWatermarkMargin
	}
	if strings.TrimSpace(c.Watermark.Text) == "" {
		c.Watermark.Text = defaultWatermarkText
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("CLIPFORGE_STORAGE_ACCESS_KEY"); ok {
			c.Storage.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("CLIPFORGE_STORAGE_SECRET_KEY"); ok {
			c.Storage.SecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeYouTube() {
	if c.YouTube.ClientID == "" {
		if value, ok := os.LookupEnv("YOUTUBE_CLIENT_ID"); ok {
			c.YouTube.ClientID = strings.TrimSpace(value)
		}
	}
	if c.YouTube.ClientSecret == "" {
		if value, ok := os.LookupEnv("YOUTUBE_CLIENT_SECRET"); ok {
			c.YouTube.ClientSecret = strings.TrimSpace(value)
		}
	}
	c.YouTube.TokenURL = strings.TrimSpace(c.YouTube.TokenURL)
	if c.YouTube.TokenURL == "" {
		c.YouTube.TokenURL = defaultTokenURL
	}
	c.YouTube.UploadURL = strings.TrimSpace(c.YouTube.UploadURL)
	if c.YouTube.UploadURL == "" {
		c.YouTube.UploadURL = defaultUploadURL
	}
	if c.YouTube.RefreshLeewaySeconds <= 0 {
		c.YouTube.RefreshLeewaySeconds = defaultRefreshLeewaySeconds
	}
	if c.YouTube.ResumeAttempts <= 0 {
		c.YouTube.ResumeAttempts = defaultResumeAttempts
	}
	if c.YouTube.RequestTimeout <= 0 {
		c.YouTube.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeTiers() {
	c.Tiers.Free = normalizeTierRules(c.Tiers.Free, Default().Tiers.Free)
	c.Tiers.Paid = normalizeTierRules(c.Tiers.Paid, Default().Tiers.Paid)
}

func normalizeTierRules(rules, fallback TierRules) TierRules {
	transitions := make([]string, 0, len(rules.Transitions))
	seen := make(map[string]struct{}, len(rules.Transitions))
	for _, name := range rules.Transitions {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		transitions = append(transitions, normalized)
	}
	if len(transitions) == 0 {
		transitions = fallback.Transitions
	}
	rules.Transitions = transitions

	rules.QueueClass = strings.ToLower(strings.TrimSpace(rules.QueueClass))
	if rules.QueueClass == "" {
		rules.QueueClass = fallback.QueueClass
	}
	if rules.MonthlyQuota == 0 {
		rules.MonthlyQuota = fallback.MonthlyQuota
	}
	if rules.ShortsCapSeconds <= 0 {
		rules.ShortsCapSeconds = fallback.ShortsCapSeconds
	}
	return rules
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.ExpeditedWeight <= 0 {
		c.Workflow.ExpeditedWeight = defaultExpeditedWeight
	}
	if c.Workflow.StageRetryAttempts <= 0 {
		c.Workflow.StageRetryAttempts = defaultStageRetryAttempts
	}
	if c.Workflow.StageRetryBackoff <= 0 {
		c.Workflow.StageRetryBackoff = defaultStageRetryBackoff
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
