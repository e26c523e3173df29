package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains workspace directory and API bind configuration.
type Paths struct {
	DownloadDir  string `toml:"download_dir"`
	TrimDir      string `toml:"trim_dir"`
	MergeDir     string `toml:"merge_dir"`
	HighlightDir string `toml:"highlight_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// FFmpeg contains subprocess tool names and media processing constants.
type FFmpeg struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	YtDlpBinary   string `toml:"ytdlp_binary"`

	// TransitionSeconds is the boundary overlap applied by transition joins.
	TransitionSeconds float64 `toml:"transition_seconds"`
	// DurationToleranceMs bounds acceptable audio/video duration drift.
	DurationToleranceMs int `toml:"duration_tolerance_ms"`
	// CopyCutToleranceMs bounds acceptable stream-copy cut deviation before
	// the cutter falls back to re-encoding a segment.
	CopyCutToleranceMs int `toml:"copy_cut_tolerance_ms"`

	VideoCodec string `toml:"video_codec"`
	AudioCodec string `toml:"audio_codec"`
}

// Watermark controls the overlay stamped onto free tier highlights.
type Watermark struct {
	Text      string  `toml:"text"`
	ImagePath string  `toml:"image_path"`
	Position  string  `toml:"position"`
	Opacity   float64 `toml:"opacity"`
	FontSize  int     `toml:"font_size"`
	Margin    int     `toml:"margin"`
}

// Storage contains the durable object storage connection for finished
// highlights.
type Storage struct {
	Endpoint      string `toml:"endpoint"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	Bucket        string `toml:"bucket"`
	UseSSL        bool   `toml:"use_ssl"`
	PublicBaseURL string `toml:"public_base_url"`
}

// YouTube contains the publish platform OAuth and upload endpoints.
type YouTube struct {
	ClientID             string `toml:"client_id"`
	ClientSecret         string `toml:"client_secret"`
	TokenURL             string `toml:"token_url"`
	UploadURL            string `toml:"upload_url"`
	RefreshLeewaySeconds int    `toml:"refresh_leeway_seconds"`
	ResumeAttempts       int    `toml:"resume_attempts"`
	RequestTimeout       int    `toml:"request_timeout"`
}

// TierRules describes one subscription plan's entitlements.
type TierRules struct {
	Transitions      []string `toml:"transitions"`
	QueueClass       string   `toml:"queue_class"`
	MonthlyQuota     int      `toml:"monthly_quota"`
	ShortsCapSeconds int      `toml:"shorts_cap_seconds"`
}

// Tiers maps the two subscription plans to their rules.
type Tiers struct {
	Free TierRules `toml:"free"`
	Paid TierRules `toml:"paid"`
}

// Workflow contains daemon timing, worker sizing, and retry limits.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	Workers            int `toml:"workers"`
	// ExpeditedWeight is how many expedited jobs are drained per standard
	// job when both lanes have work. Bounded fairness: standard is never
	// starved indefinitely.
	ExpeditedWeight    int `toml:"expedited_weight"`
	StageRetryAttempts int `toml:"stage_retry_attempts"`
	StageRetryBackoff  int `toml:"stage_retry_backoff"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Publish        bool   `toml:"publish"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ClipForge.
//
// Configuration sections by subsystem:
//   - Paths: stage workspace roots and API bind address
//   - FFmpeg: tool binaries and media processing tolerances
//   - Watermark: free tier overlay appearance
//   - Storage: durable object storage for finished highlights
//   - YouTube: publish platform OAuth and resumable upload endpoints
//   - Tiers: free/paid entitlement rules
//   - Workflow: worker pool sizing, polling, retries
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Watermark     Watermark     `toml:"watermark"`
	Storage       Storage       `toml:"storage"`
	YouTube       YouTube       `toml:"youtube"`
	Tiers         Tiers         `toml:"tiers"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the per-stage workspace roots and the log
// directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.DownloadDir,
		c.Paths.TrimDir,
		c.Paths.MergeDir,
		c.Paths.HighlightDir,
		c.Paths.LogDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkspaceRoots returns the stage workspace roots in pipeline order.
func (c *Config) WorkspaceRoots() []string {
	return []string{c.Paths.DownloadDir, c.Paths.TrimDir, c.Paths.MergeDir}
}

// CredentialsDir returns where per-user publish credentials are stored.
// It lives alongside the queue database and lock file.
func (c *Config) CredentialsDir() string {
	return filepath.Join(c.Paths.LogDir, "credentials")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
