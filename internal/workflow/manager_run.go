package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane == nil || len(lane.statusOrder) == 0 {
			continue
		}
		lanes = append(lanes, lane)
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
	}
	m.wg.Add(len(lanes))
	m.mu.Unlock()

	// Roll interrupted work back to its stage boundary before lanes start
	// claiming, so a crashed run resumes instead of wedging.
	if reset, err := m.store.ResetStuckProcessing(runCtx); err != nil {
		m.logger.Warn("failed to reset interrupted submissions", logging.Error(err))
	} else if reset > 0 {
		m.logger.Info("reset interrupted submissions", logging.Int64("count", reset))
	}

	for _, lane := range lanes {
		go m.runLane(runCtx, lane)
	}

	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	if lane == nil {
		return
	}
	logger := lane.logger
	if logger == nil {
		logger = m.logger
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if lane.runReclaimer {
			if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil {
				logger.Warn("reclaim stale processing failed; stuck submissions may remain",
					logging.Error(err))
			}
		}

		sub, err := m.nextSubmissionForLane(ctx, lane)
		if err != nil {
			m.handleNextSubmissionError(ctx, logger, err)
			continue
		}
		if sub == nil {
			m.waitForSubmissionOrShutdown(ctx)
			continue
		}

		if err := m.processSubmission(ctx, lane, logger, sub); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// A fatal error means every later submission would hit the same
			// wall; the lane parks and the daemon shuts down.
			if services.Fatal(err) {
				return
			}
		}
	}
}

func (m *Manager) nextSubmissionForLane(ctx context.Context, lane *laneState) (*queue.Submission, error) {
	if lane == nil || len(lane.claimOrder) == 0 {
		return nil, nil
	}
	return m.store.NextForStatuses(ctx, lane.claimOrder...)
}

func (m *Manager) handleNextSubmissionError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch next submission", logging.Error(err))
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForSubmissionOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}
