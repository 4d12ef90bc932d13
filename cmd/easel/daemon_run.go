package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"easel/internal/artist"
	"easel/internal/config"
	"easel/internal/curator"
	"easel/internal/daemon"
	"easel/internal/logging"
	"easel/internal/notifications"
	"easel/internal/notify"
	"easel/internal/preflight"
	"easel/internal/publisher"
	"easel/internal/queue"
	"easel/internal/recording"
	"easel/internal/video"
	"easel/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the easel daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("easel-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update easel.log link: %v\n", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "easel.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflightSnapshot(signalCtx, logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	workflowManager := workflow.NewManager(cfg, store, logger)
	if err := registerStages(workflowManager, cfg, store, logger); err != nil {
		return fmt.Errorf("configure stages: %w", err)
	}

	d, err := daemon.New(cfg, store, logger, workflowManager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if addr := d.APIAddr(); addr != "" {
		logger.Info("api listening", logging.String("addr", addr))
	}

	select {
	case <-signalCtx.Done():
	case <-d.Done():
		// The daemon stopped itself on a fatal workflow error.
	}
	logger.Info("easel daemon shutting down")
	return nil
}

// registerStages wires the eight pipeline handlers. The recording finisher
// shares the arm's OBS controller so start and stop ride one connection.
func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger) error {
	if mgr == nil || cfg == nil {
		return fmt.Errorf("workflow manager and config are required")
	}

	notifier := notifications.NewService(cfg)
	arm := recording.NewArm(cfg, store, logger)
	uploader, err := publisher.NewUploader(cfg, store, logger)
	if err != nil {
		return err
	}

	mgr.ConfigureStages(workflow.StageSet{
		RecordArm:    arm,
		Artist:       artist.New(cfg, store, logger),
		RecordFinish: recording.NewFinisher(cfg, store, logger, arm.Controller(), notifier),
		Compressor:   video.NewCompressor(cfg, store, logger),
		Curator:      curator.New(cfg, store, logger),
		Uploader:     uploader,
		Publisher:    publisher.NewPublisher(cfg, store, logger),
		Notifier:     notify.New(cfg, store, logger),
	})
	return nil
}

// logPreflightSnapshot records service readiness at startup. Failures are
// logged rather than fatal: a studio that comes up after the daemon should
// not require a restart.
func logPreflightSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		logger.Info("dependency status",
			logging.String("name", status.Name),
			logging.String("command", status.Command),
			logging.Bool("available", status.Available),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "easel.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
