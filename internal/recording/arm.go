package recording

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/services/obs"
	"easel/internal/stage"
)

// Controller is the slice of the OBS client the recording stages use.
type Controller interface {
	Connect(ctx context.Context) error
	Connected() bool
	StartRecord(ctx context.Context) error
	StopRecord(ctx context.Context, eventTimeout time.Duration) (string, error)
	RecordStatus(ctx context.Context) (bool, error)
	SetRecordDirectory(ctx context.Context, dir string) error
}

// Arm starts the screen recording before a drawing session begins.
type Arm struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	client Controller
}

// NewArm constructs the recording arm handler.
func NewArm(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Arm {
	var client Controller
	if cfg.RecordingEnabled() {
		client = obs.NewClient(obs.Options{
			URL:            cfg.OBS.URL,
			Password:       cfg.OBS.Password,
			ConnectTimeout: time.Duration(cfg.OBS.ConnectTimeout) * time.Second,
			RequestTimeout: time.Duration(cfg.OBS.RequestTimeout) * time.Second,
			Logger:         logger,
		})
	}
	return NewArmWithController(cfg, store, logger, client)
}

// NewArmWithController allows injecting a custom controller (used for tests).
func NewArmWithController(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Controller) *Arm {
	arm := &Arm{cfg: cfg, store: store, client: client}
	arm.SetLogger(logger)
	return arm
}

// SetLogger updates the handler's logging destination.
func (a *Arm) SetLogger(logger *slog.Logger) {
	a.logger = logging.NewComponentLogger(logger, "recording-arm")
}

// Controller exposes the underlying client so the finish handler can share
// the connection.
func (a *Arm) Controller() Controller {
	return a.client
}

func (a *Arm) Prepare(ctx context.Context, sub *queue.Submission) error {
	sub.InitProgress("Recording", "Arming screen recorder")
	return nil
}

func (a *Arm) Execute(ctx context.Context, sub *queue.Submission) error {
	logger := logging.WithContext(ctx, a.logger)
	if a.client == nil {
		logger.Info("recording disabled; skipping capture arm")
		sub.SetProgressComplete("Recording", "Recording disabled")
		return nil
	}

	if err := a.client.Connect(ctx); err != nil {
		return err
	}

	active, err := a.client.RecordStatus(ctx)
	if err != nil {
		return err
	}
	if active {
		// A previous run crashed mid-session; the stray recording is
		// stopped and discarded so this session starts clean.
		logger.Warn("stray recording active; stopping before new session")
		strayPath, err := a.client.StopRecord(ctx, time.Duration(a.cfg.OBS.StopEventTimeout)*time.Second)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "record", "reconcile",
				"Failed to stop a stray recording left by a previous run", err)
		}
		logger.Info("stray recording discarded", logging.String("host_path", strayPath))
	}

	// The record directory is set per session in the OBS host's own path
	// syntax; the host may be a different machine with foreign-OS paths.
	if dir := strings.TrimSpace(a.cfg.OBS.HostRecordingsDir); dir != "" {
		if err := a.client.SetRecordDirectory(ctx, dir); err != nil {
			return err
		}
		logger.Debug("record directory set", logging.String("host_dir", dir))
	}

	if err := a.client.StartRecord(ctx); err != nil {
		return err
	}
	sub.SetProgress("Recording", "Screen recording started", 100)
	logger.Info("recording armed")
	return nil
}

// HealthCheck verifies OBS reachability settings.
func (a *Arm) HealthCheck(ctx context.Context) stage.Health {
	const name = "recording-arm"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if a.client == nil {
		return stage.Healthy(name)
	}
	if a.cfg.OBS.URL == "" {
		return stage.Unhealthy(name, "obs url not configured")
	}
	if a.client.Connected() {
		return stage.Healthy(name)
	}
	if err := a.client.Connect(ctx); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("obs unreachable: %v", err))
	}
	return stage.Healthy(name)
}
