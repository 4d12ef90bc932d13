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

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir    string `toml:"staging_dir"`
	RecordingsDir string `toml:"recordings_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
}

// OBS contains configuration for the OBS Studio WebSocket connection.
type OBS struct {
	URL      string `toml:"url"`
	Password string `toml:"password"`
	// HostRecordingsDir is the recordings directory as the OBS host sees it.
	// OBS may run on another machine (or a Windows host driving a container),
	// so this is distinct from paths.recordings_dir.
	HostRecordingsDir string `toml:"host_recordings_dir"`
	ConnectTimeout    int    `toml:"connect_timeout"`
	RequestTimeout    int    `toml:"request_timeout"`
	StopEventTimeout  int    `toml:"stop_event_timeout"`
	FileSyncTimeout   int    `toml:"file_sync_timeout"`
}

// Painter contains configuration for the browser-automation driver CLI.
type Painter struct {
	Command        string `toml:"command"`
	CDPURL         string `toml:"cdp_url"`
	CanvasURL      string `toml:"canvas_url"`
	SessionTimeout int    `toml:"session_timeout"`
	MaxAttempts    int    `toml:"max_attempts"`
}

// Metadata contains LLM connection settings for title/statement extraction.
type Metadata struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Storage contains S3-compatible object storage settings.
type Storage struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PublicBaseURL   string `toml:"public_base_url"`
}

// Gallery contains the gallery API and public site settings.
type Gallery struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	ArtworkBaseURL string `toml:"artwork_base_url"`
}

// Mailer contains submitter email notification settings.
type Mailer struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	From     string `toml:"from"`
	SiteName string `toml:"site_name"`
}

// Notifications contains configuration for ntfy operator notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Artwork        bool   `toml:"artwork"`
	Queue          bool   `toml:"queue"`
	Errors         bool   `toml:"errors"`
}

// Video contains ffmpeg compression settings for session captures.
type Video struct {
	CRF            int    `toml:"crf"`
	Preset         string `toml:"preset"`
	Tune           string `toml:"tune"`
	AudioBitrate   string `toml:"audio_bitrate"`
	TimeoutMinutes int    `toml:"timeout_minutes"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for easel.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - OBS: recording control over the OBS WebSocket protocol
//   - Painter: browser-automation driver for the drawing session
//   - Metadata: LLM settings for title/statement extraction
//   - Storage: S3-compatible artifact uploads
//   - Gallery: gallery API persistence and public URLs
//   - Mailer: submitter email delivery
//   - Notifications: ntfy operator push notifications
//   - Video: ffmpeg compression of session captures
//   - Workflow: daemon polling intervals and heartbeat timing
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	OBS           OBS           `toml:"obs"`
	Painter       Painter       `toml:"painter"`
	Metadata      Metadata      `toml:"metadata"`
	Storage       Storage       `toml:"storage"`
	Gallery       Gallery       `toml:"gallery"`
	Mailer        Mailer        `toml:"mailer"`
	Notifications Notifications `toml:"notifications"`
	Video         Video         `toml:"video"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/easel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
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

	defaultPath, err := expandPath("~/.config/easel/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("easel.toml")
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

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.RecordingsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RecordingEnabled reports whether a capture service is configured. When it is
// not, the recording stages skip rather than fail.
func (c *Config) RecordingEnabled() bool {
	return strings.TrimSpace(c.OBS.URL) != ""
}

// StorageEnabled reports whether artifact uploads are configured.
func (c *Config) StorageEnabled() bool {
	return strings.TrimSpace(c.Storage.Endpoint) != ""
}

// GalleryEnabled reports whether gallery persistence is configured.
func (c *Config) GalleryEnabled() bool {
	return strings.TrimSpace(c.Gallery.BaseURL) != ""
}

// MailerEnabled reports whether submitter email delivery is configured.
func (c *Config) MailerEnabled() bool {
	return strings.TrimSpace(c.Mailer.APIKey) != ""
}

// FFmpegBinary returns the ffmpeg executable name used for compression.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// PainterBinary returns the browser-automation driver executable name.
func (c *Config) PainterBinary() string {
	if binary := strings.TrimSpace(c.Painter.Command); binary != "" {
		return binary
	}
	return "painter"
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

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
