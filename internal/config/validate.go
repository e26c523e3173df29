package config

import (
	"errors"
	"fmt"
	"strings"
)

var watermarkPositions = map[string]struct{}{
	"top-left":     {},
	"top-right":    {},
	"bottom-left":  {},
	"bottom-right": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateWatermark(); err != nil {
		return err
	}
	if err := c.validateTiers(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	roots := map[string]string{
		"paths.download_dir":  c.Paths.DownloadDir,
		"paths.trim_dir":      c.Paths.TrimDir,
		"paths.merge_dir":     c.Paths.MergeDir,
		"paths.highlight_dir": c.Paths.HighlightDir,
		"paths.log_dir":       c.Paths.LogDir,
	}
	seen := make(map[string]string, len(roots))
	for key, dir := range roots {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s must be set", key)
		}
		if other, dup := seen[dir]; dup {
			return fmt.Errorf("%s and %s must not share a directory (%s)", key, other, dir)
		}
		seen[dir] = key
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.TransitionSeconds <= 0 {
		return errors.New("ffmpeg.transition_seconds must be positive")
	}
	if c.FFmpeg.DurationToleranceMs <= 0 {
		return errors.New("ffmpeg.duration_tolerance_ms must be positive")
	}
	if c.FFmpeg.CopyCutToleranceMs < c.FFmpeg.DurationToleranceMs {
		return errors.New("ffmpeg.copy_cut_tolerance_ms must not be smaller than ffmpeg.duration_tolerance_ms")
	}
	return nil
}

func (c *Config) validateWatermark() error {
	if _, ok := watermarkPositions[c.Watermark.Position]; !ok {
		return fmt.Errorf("watermark.position must be one of top-left, top-right, bottom-left, bottom-right (got %q)", c.Watermark.Position)
	}
	if c.Watermark.Opacity <= 0 || c.Watermark.Opacity > 1 {
		return errors.New("watermark.opacity must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateTiers() error {
	for plan, rules := range map[string]TierRules{"free": c.Tiers.Free, "paid": c.Tiers.Paid} {
		if len(rules.Transitions) == 0 {
			return fmt.Errorf("tiers.%s.transitions must not be empty", plan)
		}
		if rules.QueueClass == "" {
			return fmt.Errorf("tiers.%s.queue_class must be set", plan)
		}
		if rules.MonthlyQuota == 0 || rules.MonthlyQuota < UnlimitedQuota {
			return fmt.Errorf("tiers.%s.monthly_quota must be positive or %d for unlimited", plan, UnlimitedQuota)
		}
		if rules.ShortsCapSeconds <= 0 {
			return fmt.Errorf("tiers.%s.shorts_cap_seconds must be positive", plan)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":   c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":  c.Workflow.ErrorRetryInterval,
		"workflow.workers":               c.Workflow.Workers,
		"workflow.expedited_weight":      c.Workflow.ExpeditedWeight,
		"workflow.stage_retry_attempts":  c.Workflow.StageRetryAttempts,
		"workflow.stage_retry_backoff":   c.Workflow.StageRetryBackoff,
		"youtube.resume_attempts":        c.YouTube.ResumeAttempts,
		"youtube.request_timeout":        c.YouTube.RequestTimeout,
		"youtube.refresh_leeway_seconds": c.YouTube.RefreshLeewaySeconds,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
