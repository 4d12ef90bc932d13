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
	c.normalizeOBS()
	c.normalizePainter()
	c.normalizeMetadata()
	c.normalizeStorage()
	c.normalizeGallery()
	c.normalizeMailer()
	c.normalizeVideo()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.RecordingsDir, err = expandPath(c.Paths.RecordingsDir); err != nil {
		return fmt.Errorf("paths.recordings_dir: %w", err)
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

func (c *Config) normalizeOBS() {
	c.OBS.URL = strings.TrimSpace(c.OBS.URL)
	if c.OBS.Password == "" {
		if value, ok := os.LookupEnv("OBS_WEBSOCKET_PASSWORD"); ok {
			c.OBS.Password = value
		}
	}
	c.OBS.HostRecordingsDir = strings.TrimSpace(c.OBS.HostRecordingsDir)
	if c.OBS.HostRecordingsDir == "" {
		c.OBS.HostRecordingsDir = c.Paths.RecordingsDir
	}
	if c.OBS.ConnectTimeout <= 0 {
		c.OBS.ConnectTimeout = defaultOBSConnectTimeout
	}
	if c.OBS.RequestTimeout <= 0 {
		c.OBS.RequestTimeout = defaultOBSRequestTimeout
	}
	if c.OBS.StopEventTimeout <= 0 {
		c.OBS.StopEventTimeout = defaultOBSStopEventTimeout
	}
	if c.OBS.FileSyncTimeout <= 0 {
		c.OBS.FileSyncTimeout = defaultOBSFileSyncTimeout
	}
}

func (c *Config) normalizePainter() {
	c.Painter.Command = strings.TrimSpace(c.Painter.Command)
	if c.Painter.Command == "" {
		c.Painter.Command = defaultPainterCommand
	}
	c.Painter.CDPURL = strings.TrimSpace(c.Painter.CDPURL)
	if c.Painter.CDPURL == "" {
		c.Painter.CDPURL = defaultPainterCDPURL
	}
	c.Painter.CanvasURL = strings.TrimSpace(c.Painter.CanvasURL)
	if c.Painter.SessionTimeout <= 0 {
		c.Painter.SessionTimeout = defaultPainterSessionTimeout
	}
	if c.Painter.MaxAttempts <= 0 {
		c.Painter.MaxAttempts = defaultPainterMaxAttempts
	}
}

func (c *Config) normalizeMetadata() {
	c.Metadata.APIKey = strings.TrimSpace(c.Metadata.APIKey)
	if c.Metadata.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Metadata.APIKey = strings.TrimSpace(value)
		}
	}
	c.Metadata.BaseURL = strings.TrimSpace(c.Metadata.BaseURL)
	if c.Metadata.BaseURL == "" {
		c.Metadata.BaseURL = defaultMetadataBaseURL
	}
	c.Metadata.Model = strings.TrimSpace(c.Metadata.Model)
	if c.Metadata.Model == "" {
		c.Metadata.Model = defaultMetadataModel
	}
	if c.Metadata.TimeoutSeconds <= 0 {
		c.Metadata.TimeoutSeconds = defaultMetadataTimeoutSeconds
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultStorageRegion
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	if c.Storage.AccessKeyID == "" {
		if value, ok := os.LookupEnv("EASEL_STORAGE_ACCESS_KEY_ID"); ok {
			c.Storage.AccessKeyID = strings.TrimSpace(value)
		}
	}
	c.Storage.SecretAccessKey = strings.TrimSpace(c.Storage.SecretAccessKey)
	if c.Storage.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("EASEL_STORAGE_SECRET_ACCESS_KEY"); ok {
			c.Storage.SecretAccessKey = strings.TrimSpace(value)
		}
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
}

func (c *Config) normalizeGallery() {
	c.Gallery.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gallery.BaseURL), "/")
	c.Gallery.APIToken = strings.TrimSpace(c.Gallery.APIToken)
	c.Gallery.ArtworkBaseURL = strings.TrimRight(strings.TrimSpace(c.Gallery.ArtworkBaseURL), "/")
}

func (c *Config) normalizeMailer() {
	c.Mailer.APIKey = strings.TrimSpace(c.Mailer.APIKey)
	if c.Mailer.APIKey == "" {
		if value, ok := os.LookupEnv("RESEND_API_KEY"); ok {
			c.Mailer.APIKey = strings.TrimSpace(value)
		}
	}
	c.Mailer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Mailer.BaseURL), "/")
	if c.Mailer.BaseURL == "" {
		c.Mailer.BaseURL = defaultMailerBaseURL
	}
	c.Mailer.From = strings.TrimSpace(c.Mailer.From)
	c.Mailer.SiteName = strings.TrimSpace(c.Mailer.SiteName)
	if c.Mailer.SiteName == "" {
		c.Mailer.SiteName = defaultMailerSiteName
	}
}

func (c *Config) normalizeVideo() {
	if c.Video.CRF <= 0 {
		c.Video.CRF = defaultVideoCRF
	}
	c.Video.Preset = strings.ToLower(strings.TrimSpace(c.Video.Preset))
	if c.Video.Preset == "" {
		c.Video.Preset = defaultVideoPreset
	}
	c.Video.Tune = strings.ToLower(strings.TrimSpace(c.Video.Tune))
	if c.Video.Tune == "" {
		c.Video.Tune = defaultVideoTune
	}
	c.Video.AudioBitrate = strings.TrimSpace(c.Video.AudioBitrate)
	if c.Video.AudioBitrate == "" {
		c.Video.AudioBitrate = defaultVideoAudioBitrate
	}
	if c.Video.TimeoutMinutes <= 0 {
		c.Video.TimeoutMinutes = defaultVideoTimeout
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
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
