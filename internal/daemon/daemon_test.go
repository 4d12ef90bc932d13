package daemon

import (
	"context"
	"testing"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/stage"
	"easel/internal/workflow"
)

type stubHandler struct{ name string }

func (s *stubHandler) Prepare(ctx context.Context, sub *queue.Submission) error {
	sub.InitProgress(s.name, s.name+" started")
	return nil
}

func (s *stubHandler) Execute(ctx context.Context, sub *queue.Submission) error { return nil }

func (s *stubHandler) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy(s.name) }

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.StagingDir = base + "/staging"
	cfg.Paths.RecordingsDir = base + "/recordings"
	cfg.Paths.LogDir = base + "/logs"
	cfg.Paths.APIBind = ""
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	return &cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, *queue.Store) {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), nil)
	mgr.ConfigureStages(workflow.StageSet{RecordArm: &stubHandler{name: "record-arm"}})

	d, err := New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d, store
}

func TestDaemonStartStopLifecycle(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:0"
	d, _ := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if addr := d.APIAddr(); addr == "" {
		t.Fatal("expected bound api address")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}
	d.Stop()
	// Stop is idempotent.
	d.Stop()
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := newTestConfig(t)
	first, store := newTestDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), nil)
	mgr.ConfigureStages(workflow.StageSet{RecordArm: &stubHandler{name: "record-arm"}})
	second, err := New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock conflict for second instance")
	}
}

func TestDaemonStopFailsInFlightSubmissions(t *testing.T) {
	cfg := newTestConfig(t)
	d, store := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	sub, err := store.Add(context.Background(), "a fox", "", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// Park the submission in a background processing status the configured
	// lane never touches, simulating interrupted work.
	sub.Status = queue.StatusCompressing
	now := time.Now().UTC()
	sub.LastHeartbeat = &now
	if err := store.Update(context.Background(), sub); err != nil {
		t.Fatalf("update: %v", err)
	}

	d.Stop()

	final, err := store.GetByID(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected failed after stop, got %s", final.Status)
	}
	if final.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("unexpected error message %q", final.ErrorMessage)
	}
}

type fatalHandler struct{ stubHandler }

func (f *fatalHandler) Execute(ctx context.Context, sub *queue.Submission) error {
	return services.Wrap(services.ErrFatal, "record-arm", "handshake",
		"OBS rejected the websocket password", nil)
}

func TestDaemonStopsOnFatalWorkflowError(t *testing.T) {
	cfg := newTestConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), nil)
	mgr.ConfigureStages(workflow.StageSet{RecordArm: &fatalHandler{stubHandler{name: "record-arm"}}})
	d, err := New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	sub, err := store.Add(context.Background(), "a fox", "", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	select {
	case <-d.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("daemon never stopped after fatal workflow error")
	}

	final, err := store.GetByID(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != queue.StatusPending {
		t.Fatalf("fatal shutdown must release the submission to pending, got %s", final.Status)
	}
	if final.ErrorMessage != "" {
		t.Fatalf("fatal shutdown must not mark the submission, got %q", final.ErrorMessage)
	}
}

func TestDaemonQueueMaintenance(t *testing.T) {
	cfg := newTestConfig(t)
	d, store := newTestDaemon(t, cfg)
	ctx := context.Background()

	sub, err := store.Add(ctx, "a fox", "", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	sub.SetFailed("boom")
	if err := store.Update(ctx, sub); err != nil {
		t.Fatalf("update: %v", err)
	}

	retried, err := d.RetryFailed(ctx, []int64{sub.ID})
	if err != nil || retried != 1 {
		t.Fatalf("retry failed: %d err=%v", retried, err)
	}

	health, err := d.QueueHealth(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("unexpected health %+v", health)
	}

	cleared, err := d.ClearQueue(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("clear: %d err=%v", cleared, err)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Notifications.NtfyTopic = ""
	d, _ := newTestDaemon(t, cfg)

	sent, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if sent || detail != "ntfy topic not configured" {
		t.Fatalf("unexpected result sent=%v detail=%q", sent, detail)
	}
}
