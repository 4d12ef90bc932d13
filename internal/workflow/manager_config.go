package workflow

import (
	"time"

	"easel/internal/queue"
	"easel/internal/retry"
)

// ConfigureStages registers the concrete stage handlers the workflow will run.
//
// The foreground lane owns OBS and the painter browser, so its statuses are
// processed strictly one submission at a time. The background lane picks up
// captured work and carries it through publication.
func (m *Manager) ConfigureStages(set StageSet) {
	foreground := &laneState{kind: laneForeground, name: "foreground", notificationsEnabled: true}
	background := &laneState{kind: laneBackground, name: "background", notificationsEnabled: false}

	sessionAttempts := 2
	if m.cfg != nil && m.cfg.Painter.MaxAttempts > 0 {
		sessionAttempts = m.cfg.Painter.MaxAttempts
	}

	if set.RecordArm != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "record-arm",
			handler:          set.RecordArm,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusRecordStarting,
			doneStatus:       queue.StatusRecording,
			policy:           retry.Policy{MaxAttempts: 2, BaseDelay: 2 * time.Second, PerAttemptTimeout: 30 * time.Second},
		})
	}
	if set.Artist != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "artist",
			handler:          set.Artist,
			startStatus:      queue.StatusRecording,
			processingStatus: queue.StatusDrawing,
			doneStatus:       queue.StatusDrawn,
			// The handler bounds each session with its own timeout.
			policy: retry.Policy{MaxAttempts: sessionAttempts, BaseDelay: 10 * time.Second},
		})
	}
	if set.RecordFinish != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "record-finish",
			handler:          set.RecordFinish,
			startStatus:      queue.StatusDrawn,
			processingStatus: queue.StatusRecordStopping,
			doneStatus:       queue.StatusCaptured,
			policy:           retry.Policy{MaxAttempts: 2, BaseDelay: 2 * time.Second, PerAttemptTimeout: 60 * time.Second},
		})
	}
	if set.Compressor != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "compressor",
			handler:          set.Compressor,
			startStatus:      queue.StatusCaptured,
			processingStatus: queue.StatusCompressing,
			doneStatus:       queue.StatusCompressed,
			policy:           retry.Policy{MaxAttempts: 2, BaseDelay: 30 * time.Second},
		})
	}
	if set.Curator != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "curator",
			handler:          set.Curator,
			startStatus:      queue.StatusCompressed,
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusExtracted,
			policy:           retry.Policy{MaxAttempts: 3, BaseDelay: 5 * time.Second},
		})
	}
	if set.Uploader != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "uploader",
			handler:          set.Uploader,
			startStatus:      queue.StatusExtracted,
			processingStatus: queue.StatusUploading,
			doneStatus:       queue.StatusUploaded,
			policy:           retry.Policy{MaxAttempts: 3, BaseDelay: 5 * time.Second, PerAttemptTimeout: 2 * time.Minute},
		})
	}
	if set.Publisher != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "publisher",
			handler:          set.Publisher,
			startStatus:      queue.StatusUploaded,
			processingStatus: queue.StatusPublishing,
			doneStatus:       queue.StatusPublished,
			policy:           retry.Policy{MaxAttempts: 3, BaseDelay: 5 * time.Second, PerAttemptTimeout: 30 * time.Second},
		})
	}
	if set.Notifier != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "notifier",
			handler:          set.Notifier,
			startStatus:      queue.StatusPublished,
			processingStatus: queue.StatusNotifying,
			doneStatus:       queue.StatusCompleted,
			// Submitter email is best-effort; the handler swallows failures.
			policy: retry.Policy{MaxAttempts: 1},
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(foreground.stages) > 0 {
		foreground.finalize()
		lanes[foreground.kind] = foreground
		order = append(order, foreground.kind)
	}
	if len(background.stages) > 0 {
		background.finalize()
		lanes[background.kind] = background
		order = append(order, background.kind)
	}

	// Stale-submission reclamation rolls back every interrupted stage in one
	// sweep, so only the first lane runs it.
	if len(order) > 0 {
		lanes[order[0]].runReclaimer = true
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
