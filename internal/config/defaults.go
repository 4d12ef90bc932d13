package config

const (
	defaultStagingDir    = "~/.local/share/easel/staging"
	defaultRecordingsDir = "~/.local/share/easel/recordings"
	defaultLogDir        = "~/.local/share/easel/logs"
	defaultAPIBind       = "127.0.0.1:7319"

	defaultOBSURL              = "ws://127.0.0.1:4455"
	defaultOBSConnectTimeout   = 10
	defaultOBSRequestTimeout   = 10
	defaultOBSStopEventTimeout = 30
	defaultOBSFileSyncTimeout  = 5

	defaultPainterCommand        = "painter"
	defaultPainterCDPURL         = "http://127.0.0.1:9222"
	defaultPainterSessionTimeout = 720
	defaultPainterMaxAttempts    = 2

	defaultMetadataBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultMetadataModel          = "google/gemini-3-flash-preview"
	defaultMetadataTimeoutSeconds = 30

	defaultStorageRegion = "auto"

	defaultMailerBaseURL  = "https://api.resend.com"
	defaultMailerSiteName = "Easel"

	defaultVideoCRF          = 20
	defaultVideoPreset       = "medium"
	defaultVideoTune         = "animation"
	defaultVideoAudioBitrate = "128k"
	defaultVideoTimeout      = 10

	defaultWorkflowQueuePollInterval  = 30
	defaultWorkflowErrorRetryInterval = 10
	defaultWorkflowHeartbeatInterval  = 30
	defaultWorkflowHeartbeatTimeout   = 90

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:    defaultStagingDir,
			RecordingsDir: defaultRecordingsDir,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
		},
		OBS: OBS{
			URL:              defaultOBSURL,
			ConnectTimeout:   defaultOBSConnectTimeout,
			RequestTimeout:   defaultOBSRequestTimeout,
			StopEventTimeout: defaultOBSStopEventTimeout,
			FileSyncTimeout:  defaultOBSFileSyncTimeout,
		},
		Painter: Painter{
			Command:        defaultPainterCommand,
			CDPURL:         defaultPainterCDPURL,
			SessionTimeout: defaultPainterSessionTimeout,
			MaxAttempts:    defaultPainterMaxAttempts,
		},
		Metadata: Metadata{
			BaseURL:        defaultMetadataBaseURL,
			Model:          defaultMetadataModel,
			TimeoutSeconds: defaultMetadataTimeoutSeconds,
		},
		Storage: Storage{
			Region: defaultStorageRegion,
		},
		Mailer: Mailer{
			BaseURL:  defaultMailerBaseURL,
			SiteName: defaultMailerSiteName,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Artwork:        true,
			Queue:          true,
			Errors:         true,
		},
		Video: Video{
			CRF:            defaultVideoCRF,
			Preset:         defaultVideoPreset,
			Tune:           defaultVideoTune,
			AudioBitrate:   defaultVideoAudioBitrate,
			TimeoutMinutes: defaultVideoTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultWorkflowQueuePollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetryInterval,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
