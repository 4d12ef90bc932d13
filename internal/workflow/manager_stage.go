package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/retry"
	"easel/internal/services"
)

func (m *Manager) processSubmission(ctx context.Context, lane *laneState, laneLogger *slog.Logger, sub *queue.Submission) error {
	stg, ok := lane.stageForStatus(sub.Status)
	if !ok {
		if laneLogger == nil {
			laneLogger = m.logger
		}
		if laneLogger == nil {
			laneLogger = logging.NewNop()
		}
		laneLogger.Warn("no stage configured for status", logging.String("status", string(sub.Status)))
		m.waitForSubmissionOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, lane, stg.name, sub, requestID)
	stageLogger := m.stageLogger(stageCtx, laneLogger, sub)
	if aware, ok := stg.handler.(loggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	// The conditional transition is the claim: whichever lane (or process)
	// moves the row into the processing status wins, everyone else skips.
	if err := m.store.TransitionStatus(stageCtx, sub, stg.startStatus, stg.processingStatus); err != nil {
		if errors.Is(err, queue.ErrConflict) {
			stageLogger.Debug("submission claimed elsewhere",
				logging.String("status", string(stg.startStatus)))
			return nil
		}
		stageLogger.Error("failed to claim submission", logging.Error(err))
		m.setLastError(err)
		return err
	}
	m.setLastSubmission(sub)
	if lane == nil || lane.notificationsEnabled {
		m.onSubmissionStarted(stageCtx)
	}

	return m.executeStage(stageCtx, lane, stageLogger, stg, sub)
}

func (m *Manager) executeStage(ctx context.Context, lane *laneState, stageLogger *slog.Logger, stg pipelineStage, sub *queue.Submission) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("prompt", strings.TrimSpace(sub.Prompt)),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String("stage", stg.name))
		sub.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, sub); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		m.setLastError(errors.New("stage handler unavailable"))
		return errors.New("stage handler unavailable")
	}

	if err := handler.Prepare(ctx, sub); err != nil {
		m.handleStageFailure(ctx, stg.name, sub, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, sub); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, stageLogger, stg, sub)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		if services.Fatal(execErr) {
			m.releaseForShutdown(ctx, stageLogger, stg, sub, execErr)
			m.setLastError(execErr)
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, sub, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if sub.Status == stg.processingStatus || sub.Status == "" {
		sub.Status = stg.doneStatus
	}
	sub.LastHeartbeat = nil
	if sub.Status == queue.StatusCompleted {
		if sub.ProgressPercent < 100 {
			sub.ProgressPercent = 100
		}
		if strings.TrimSpace(sub.ProgressMessage) == "" {
			sub.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
	}
	if err := m.store.Update(ctx, sub); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info("stage completed",
		logging.String("next_status", string(sub.Status)),
		logging.String("progress_message", strings.TrimSpace(sub.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastSubmission(sub)
	m.checkQueueCompletion(ctx)
	return nil
}

// executeWithHeartbeat runs the stage handler under its retry policy while a
// heartbeat goroutine keeps the submission visibly alive.
func (m *Manager) executeWithHeartbeat(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, sub *queue.Submission) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, sub.ID)

	var opts []retry.Option
	if m.sleeper != nil {
		opts = append(opts, retry.WithSleeper(m.sleeper))
	}
	runner := retry.New(stg.policy, opts...)
	execErr := runner.Run(ctx, func(attemptCtx context.Context, attempt int) error {
		if attempt > 1 {
			stageLogger.Warn("retrying stage",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int("max_attempts", stg.policy.Normalized().MaxAttempts),
			)
		}
		return stg.handler.Execute(attemptCtx, sub)
	})
	hbCancel()
	hbWG.Wait()
	return execErr
}
