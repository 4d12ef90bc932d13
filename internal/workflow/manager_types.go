package workflow

import (
	"log/slog"

	"easel/internal/queue"
	"easel/internal/retry"
	"easel/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	RecordArm    stage.Handler
	Artist       stage.Handler
	RecordFinish stage.Handler
	Compressor   stage.Handler
	Curator      stage.Handler
	Uploader     stage.Handler
	Publisher    stage.Handler
	Notifier     stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
	policy           retry.Policy
}

// loggerAware lets the manager hand stage handlers a submission-scoped logger.
type loggerAware interface {
	SetLogger(*slog.Logger)
}

type laneKind string

const (
	laneForeground laneKind = "foreground"
	laneBackground laneKind = "background"
)

type laneState struct {
	kind                 laneKind
	name                 string
	stages               []pipelineStage
	statusOrder          []queue.Status
	claimOrder           []queue.Status
	stageByStart         map[queue.Status]pipelineStage
	processingStatuses   []queue.Status
	logger               *slog.Logger
	notificationsEnabled bool
	runReclaimer         bool
}

func (l *laneState) finalize() {
	if l == nil {
		return
	}
	l.stageByStart = make(map[queue.Status]pipelineStage, len(l.stages))
	l.statusOrder = make([]queue.Status, 0, len(l.stages))
	seenProcessing := make(map[queue.Status]struct{})
	for _, stg := range l.stages {
		l.stageByStart[stg.startStatus] = stg
		l.statusOrder = append(l.statusOrder, stg.startStatus)
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				l.processingStatuses = append(l.processingStatuses, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}
	// Claiming prefers the deepest in-flight work: a submission already
	// partway through the lane always finishes before a pending one is
	// admitted, whatever its priority.
	l.claimOrder = make([]queue.Status, len(l.statusOrder))
	for i, status := range l.statusOrder {
		l.claimOrder[len(l.statusOrder)-1-i] = status
	}
}

func (l *laneState) stageForStatus(status queue.Status) (pipelineStage, bool) {
	if l == nil {
		return pipelineStage{}, false
	}
	stg, ok := l.stageByStart[status]
	return stg, ok
}
