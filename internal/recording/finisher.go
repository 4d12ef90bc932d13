package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/notifications"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/services/obs"
	"easel/internal/stage"
)

const fileSyncPollInterval = 250 * time.Millisecond

// Finisher stops the screen recording once the drawing session is done and
// resolves the capture file on local disk.
type Finisher struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	client   Controller
	notifier notifications.Service
}

// NewFinisher constructs the recording finish handler sharing the arm's
// controller so both stages use one OBS connection.
func NewFinisher(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Controller, notifier notifications.Service) *Finisher {
	f := &Finisher{cfg: cfg, store: store, client: client, notifier: notifier}
	f.SetLogger(logger)
	return f
}

// SetLogger updates the handler's logging destination.
func (f *Finisher) SetLogger(logger *slog.Logger) {
	f.logger = logging.NewComponentLogger(logger, "recording-finish")
}

func (f *Finisher) Prepare(ctx context.Context, sub *queue.Submission) error {
	sub.InitProgress("Capturing", "Stopping screen recording")
	return nil
}

func (f *Finisher) Execute(ctx context.Context, sub *queue.Submission) error {
	logger := logging.WithContext(ctx, f.logger)
	if f.client == nil {
		logger.Info("recording disabled; no capture to finish")
		sub.SetProgressComplete("Capturing", "Recording disabled")
		return nil
	}

	if err := f.client.Connect(ctx); err != nil {
		return err
	}

	hostPath, err := f.client.StopRecord(ctx, time.Duration(f.cfg.OBS.StopEventTimeout)*time.Second)
	if err != nil {
		return err
	}
	if hostPath == "" {
		return services.Wrap(services.ErrExternalTool, "record", "stop",
			"OBS reported the recording stopped but no output path", nil)
	}

	localPath := obs.TranslateOutputPath(hostPath, f.cfg.Paths.RecordingsDir)
	logger.Info("recording stopped",
		logging.String("host_path", hostPath),
		logging.String("local_path", localPath))

	sub.SetProgress("Capturing", "Waiting for recording file to sync", 50)
	if err := waitForStableFile(ctx, localPath, time.Duration(f.cfg.OBS.FileSyncTimeout)*time.Second); err != nil {
		return services.Wrap(services.ErrTimeout, "record", "file_sync",
			fmt.Sprintf("Recording file %s did not appear or settle; check that the OBS output directory is mapped to recordings_dir", localPath), err)
	}

	sub.RecordingFile = localPath
	sub.SetProgressComplete("Capturing", "Recording captured")

	if f.notifier != nil {
		if err := f.notifier.Publish(ctx, notifications.EventArtworkCaptured, notifications.Payload{
			"artworkId": sub.ArtworkID,
		}); err != nil {
			logger.Warn("capture notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies the recordings directory is usable.
func (f *Finisher) HealthCheck(ctx context.Context) stage.Health {
	const name = "recording-finish"
	if f.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if f.client == nil {
		return stage.Healthy(name)
	}
	if f.cfg.Paths.RecordingsDir == "" {
		return stage.Unhealthy(name, "recordings directory not configured")
	}
	if info, err := os.Stat(f.cfg.Paths.RecordingsDir); err != nil || !info.IsDir() {
		return stage.Unhealthy(name, "recordings directory missing")
	}
	return stage.Healthy(name)
}

// waitForStableFile polls until the file exists and its size stops changing,
// or the timeout elapses. OBS finalizes the container after the stopped
// event, so the file can briefly be present but still growing.
func waitForStableFile(ctx context.Context, path string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)

	var lastSize int64 = -1
	for {
		if info, err := os.Stat(path); err == nil {
			size := info.Size()
			if size > 0 && size == lastSize {
				return nil
			}
			lastSize = size
		}
		if time.Now().After(deadline) {
			if lastSize > 0 {
				// Present but still growing at the deadline; accept it and
				// let compression fail loudly if the file is truncated.
				return nil
			}
			return fmt.Errorf("file %s not present after %s", path, timeout)
		}
		select {
		case <-time.After(fileSyncPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
