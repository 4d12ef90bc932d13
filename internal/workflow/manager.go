package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"easel/internal/config"
	"easel/internal/notifications"
	"easel/internal/queue"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor

	lanes     map[laneKind]*laneState
	laneOrder []laneKind

	// sleeper overrides retry waits between stage attempts; tests set it to
	// avoid real backoff sleeps.
	sleeper func(context.Context, time.Duration) error

	fatalOnce sync.Once
	fatalCh   chan error

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastSub  *queue.Submission

	queueActive bool
	queueStart  time.Time
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		lanes:   make(map[laneKind]*laneState),
		fatalCh: make(chan error, 1),
	}
}

// FatalErrors delivers the first unrecoverable stage failure (rejected
// authentication, missing required dependency). The daemon watches this
// channel and shuts the process down instead of letting a lane fail every
// queued submission the same way.
func (m *Manager) FatalErrors() <-chan error {
	return m.fatalCh
}

func (m *Manager) reportFatal(err error) {
	m.fatalOnce.Do(func() {
		m.fatalCh <- err
	})
}
