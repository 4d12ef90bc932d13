package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateOBS(); err != nil {
		return err
	}
	if err := c.validatePainter(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateGallery(); err != nil {
		return err
	}
	if err := c.validateMailer(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateOBS() error {
	if !c.RecordingEnabled() {
		return nil
	}
	if !strings.HasPrefix(c.OBS.URL, "ws://") && !strings.HasPrefix(c.OBS.URL, "wss://") {
		return fmt.Errorf("obs.url must be a ws:// or wss:// address, got %q", c.OBS.URL)
	}
	return ensurePositiveMap(map[string]int{
		"obs.connect_timeout":    c.OBS.ConnectTimeout,
		"obs.request_timeout":    c.OBS.RequestTimeout,
		"obs.stop_event_timeout": c.OBS.StopEventTimeout,
		"obs.file_sync_timeout":  c.OBS.FileSyncTimeout,
	})
}

func (c *Config) validatePainter() error {
	if strings.TrimSpace(c.Painter.Command) == "" {
		return errors.New("painter.command must be set")
	}
	if c.Painter.SessionTimeout <= 0 {
		return errors.New("painter.session_timeout must be positive (seconds)")
	}
	if c.Painter.MaxAttempts < 1 {
		return errors.New("painter.max_attempts must be >= 1")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.StorageEnabled() {
		return nil
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set when storage.endpoint is configured")
	}
	if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
		return errors.New("storage credentials incomplete: set storage.access_key_id and storage.secret_access_key (or the EASEL_STORAGE_* env vars)")
	}
	return nil
}

func (c *Config) validateGallery() error {
	if !c.GalleryEnabled() {
		return nil
	}
	if c.Gallery.ArtworkBaseURL == "" {
		return errors.New("gallery.artwork_base_url must be set when gallery.base_url is configured")
	}
	return nil
}

func (c *Config) validateMailer() error {
	if !c.MailerEnabled() {
		return nil
	}
	if c.Mailer.From == "" {
		return errors.New("mailer.from must be set when mailer.api_key is configured")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		return errors.New("video.crf must be between 0 and 51")
	}
	return ensurePositiveMap(map[string]int{
		"video.timeout_minutes": c.Video.TimeoutMinutes,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
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
