package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
)

// releaseForShutdown handles a fatal stage error: the submission goes back to
// its stage boundary untouched so it is ready once the operator fixes the
// underlying problem, and the failure is surfaced on the fatal channel so the
// daemon exits instead of grinding through the rest of the queue.
func (m *Manager) releaseForShutdown(ctx context.Context, logger *slog.Logger, stg pipelineStage, sub *queue.Submission, stageErr error) {
	logger.Error("fatal stage error; stopping daemon",
		logging.String("stage", stg.name),
		logging.Error(stageErr),
	)
	if err := m.store.TransitionStatus(ctx, sub, stg.processingStatus, stg.startStatus); err != nil && !errors.Is(err, queue.ErrConflict) {
		logger.Error("failed to release submission before shutdown", logging.Error(err))
	}
	m.notifyStageError(ctx, stg.name, sub, stageErr)
	m.reportFatal(stageErr)
}

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, sub *queue.Submission, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := m.stageLogger(ctx, base, sub).With(logging.String(logging.FieldComponent, "workflow-manager"))

	message := m.classifyStageFailure(stageName, stageErr)
	sub.SetFailed(message)

	logger.Error("stage failed",
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.Bool("retryable", services.Retryable(stageErr)),
		logging.Bool("fatal", services.Fatal(stageErr)),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, sub); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastSubmission(sub)
	m.notifyStageError(ctx, stageName, sub, stageErr)
	m.checkQueueCompletion(ctx)
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return m.stageFailureMessage(stageName, "failed without error detail")
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = m.stageFailureMessage(stageName, "failed")
	}
	return message
}

func (m *Manager) stageFailureMessage(stageName, defaultMsg string) string {
	if stageName != "" {
		return fmt.Sprintf("%s %s", stageName, defaultMsg)
	}
	return fmt.Sprintf("workflow %s", defaultMsg)
}
