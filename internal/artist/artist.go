package artist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/notifications"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/services/painter"
	"easel/internal/stage"
)

const progressPersistInterval = 2 * time.Second

var nowUnix = func() int64 { return time.Now().Unix() }

// Artist drives the browser drawing session for a submission.
type Artist struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	client   painter.Client
	notifier notifications.Service
}

// New constructs the drawing handler.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Artist {
	client := painter.NewCLI(painter.WithBinary(cfg.PainterBinary()))
	return NewWithDependencies(cfg, store, logger, client, notifications.NewService(cfg))
}

// NewWithDependencies allows injecting custom dependencies (used for tests).
func NewWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client painter.Client, notifier notifications.Service) *Artist {
	a := &Artist{cfg: cfg, store: store, client: client, notifier: notifier}
	a.SetLogger(logger)
	return a
}

// SetLogger updates the handler's logging destination.
func (a *Artist) SetLogger(logger *slog.Logger) {
	a.logger = logging.NewComponentLogger(logger, "artist")
}

func (a *Artist) Prepare(ctx context.Context, sub *queue.Submission) error {
	if strings.TrimSpace(sub.ArtworkID) == "" {
		sub.ArtworkID = fmt.Sprintf("easel-%d", nowUnix())
	}
	sub.InitProgress("Drawing", "Starting drawing session")
	return nil
}

func (a *Artist) Execute(ctx context.Context, sub *queue.Submission) error {
	logger := logging.WithContext(ctx, a.logger)

	if strings.TrimSpace(sub.Prompt) == "" {
		return services.Wrap(services.ErrValidation, "draw", "validate",
			"Submission has no prompt to draw", nil)
	}
	if a.client == nil {
		return services.Wrap(services.ErrConfiguration, "draw", "validate",
			"Painter client unavailable", nil)
	}

	stagingDir := a.submissionDir(sub)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "draw", "ensure staging dir",
			"Failed to create submission staging directory; set staging_dir to a writable path", err)
	}

	if a.notifier != nil {
		if err := a.notifier.Publish(ctx, notifications.EventSessionStarted, notifications.Payload{
			"artworkId": sub.ArtworkID,
			"prompt":    sub.Prompt,
		}); err != nil {
			logger.Warn("session notification failed", logging.Error(err))
		}
	}

	sessionCtx := ctx
	var cancel context.CancelFunc
	if a.cfg.Painter.SessionTimeout > 0 {
		sessionCtx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.Painter.SessionTimeout)*time.Second)
		defer cancel()
	}

	logger.Info("launching drawing session",
		logging.String(logging.FieldArtworkID, sub.ArtworkID),
		logging.String("staging_dir", stagingDir))

	var lastPersisted time.Time
	progress := func(update painter.ProgressUpdate) {
		stageLabel := strings.TrimSpace(update.Stage)
		if stageLabel == "" {
			stageLabel = "Drawing"
		}
		sub.SetProgress(stageLabel, strings.TrimSpace(update.Message), update.Percent)
		now := time.Now()
		if !lastPersisted.IsZero() && now.Sub(lastPersisted) < progressPersistInterval {
			return
		}
		lastPersisted = now
		if a.store != nil {
			if err := a.store.UpdateProgress(ctx, sub); err != nil {
				logger.Warn("failed to persist drawing progress", logging.Error(err))
			}
		}
	}

	result, err := a.client.Draw(sessionCtx, painter.Request{
		Prompt:    sub.Prompt,
		ArtworkID: sub.ArtworkID,
		OutputDir: stagingDir,
		CDPURL:    a.cfg.Painter.CDPURL,
		CanvasURL: a.cfg.Painter.CanvasURL,
	}, progress)
	if err != nil {
		if sessionCtx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrTimeout, "draw", "session",
				fmt.Sprintf("Drawing session exceeded %ds", a.cfg.Painter.SessionTimeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "draw", "session",
			"Painter session failed; check the canvas URL and browser availability", err)
	}

	if _, err := os.Stat(result.ImagePath); err != nil {
		return services.Wrap(services.ErrExternalTool, "draw", "collect artifacts",
			"Painter reported success but produced no image", err)
	}

	sub.ImageFile = result.ImagePath
	if _, err := os.Stat(result.TranscriptPath); err == nil {
		sub.TranscriptFile = result.TranscriptPath
	} else {
		logger.Warn("session transcript missing", logging.String("path", result.TranscriptPath))
	}

	sub.SetProgressComplete("Drawing", "Artwork drawn")
	logger.Info("drawing session complete",
		logging.String(logging.FieldArtworkID, sub.ArtworkID),
		logging.String("image", sub.ImageFile))
	return nil
}

// HealthCheck verifies the painter binary is resolvable.
func (a *Artist) HealthCheck(ctx context.Context) stage.Health {
	const name = "artist"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(a.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	binary := strings.TrimSpace(a.cfg.PainterBinary())
	if binary == "" {
		return stage.Unhealthy(name, "painter binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("painter binary %q not found", binary))
	}
	return stage.Healthy(name)
}

func (a *Artist) submissionDir(sub *queue.Submission) string {
	return filepath.Join(strings.TrimSpace(a.cfg.Paths.StagingDir), fmt.Sprintf("submission-%d", sub.ID))
}
