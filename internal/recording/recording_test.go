package recording

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
)

type fakeController struct {
	connected   bool
	active      bool
	startCalls  int
	stopCalls   int
	stopPath    string
	stopErr     error
	connectErr  error
	statusCalls int
	recordDir   string
}

func (f *fakeController) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeController) Connected() bool { return f.connected }

func (f *fakeController) StartRecord(ctx context.Context) error {
	f.startCalls++
	f.active = true
	return nil
}

func (f *fakeController) StopRecord(ctx context.Context, eventTimeout time.Duration) (string, error) {
	f.stopCalls++
	f.active = false
	return f.stopPath, f.stopErr
}

func (f *fakeController) RecordStatus(ctx context.Context) (bool, error) {
	f.statusCalls++
	return f.active, nil
}

func (f *fakeController) SetRecordDirectory(ctx context.Context, dir string) error {
	f.recordDir = dir
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.RecordingsDir = filepath.Join(base, "recordings")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.OBS.Password = "pw"
	cfg.OBS.FileSyncTimeout = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

func TestArmStartsRecording(t *testing.T) {
	cfg := testConfig(t)
	ctrl := &fakeController{}
	arm := NewArmWithController(cfg, nil, logging.NewNop(), ctrl)

	sub := &queue.Submission{ID: 1, Status: queue.StatusRecordStarting}
	if err := arm.Prepare(context.Background(), sub); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := arm.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if ctrl.startCalls != 1 {
		t.Fatalf("expected one StartRecord, got %d", ctrl.startCalls)
	}
	if ctrl.stopCalls != 0 {
		t.Fatalf("expected no stop for a clean arm, got %d", ctrl.stopCalls)
	}
}

func TestArmReconcilesStrayRecording(t *testing.T) {
	cfg := testConfig(t)
	ctrl := &fakeController{active: true, stopPath: "D:/obs/stray.mkv"}
	arm := NewArmWithController(cfg, nil, logging.NewNop(), ctrl)

	sub := &queue.Submission{ID: 2, Status: queue.StatusRecordStarting}
	if err := arm.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if ctrl.stopCalls != 1 {
		t.Fatalf("expected stray recording stopped once, got %d", ctrl.stopCalls)
	}
	if ctrl.startCalls != 1 {
		t.Fatalf("expected StartRecord after reconciliation, got %d", ctrl.startCalls)
	}
}

func TestArmSetsHostRecordDirectory(t *testing.T) {
	cfg := testConfig(t)
	cfg.OBS.HostRecordingsDir = "D:/obs/recordings"
	ctrl := &fakeController{}
	arm := NewArmWithController(cfg, nil, logging.NewNop(), ctrl)

	sub := &queue.Submission{ID: 6, Status: queue.StatusRecordStarting}
	if err := arm.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if ctrl.recordDir != "D:/obs/recordings" {
		t.Fatalf("expected host record directory to be set, got %q", ctrl.recordDir)
	}
	if ctrl.startCalls != 1 {
		t.Fatalf("expected StartRecord after directory set, got %d", ctrl.startCalls)
	}
}

func TestArmSkipsWhenRecordingDisabled(t *testing.T) {
	cfg := testConfig(t)
	arm := NewArmWithController(cfg, nil, logging.NewNop(), nil)

	sub := &queue.Submission{ID: 3, Status: queue.StatusRecordStarting}
	if err := arm.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sub.ProgressPercent != 100 {
		t.Fatalf("expected completed progress for disabled recorder, got %f", sub.ProgressPercent)
	}
}

func TestFinisherResolvesLocalPath(t *testing.T) {
	cfg := testConfig(t)

	recordingName := "easel-1700000000.mkv"
	localPath := filepath.Join(cfg.Paths.RecordingsDir, recordingName)
	if err := os.WriteFile(localPath, []byte("recording-bytes"), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}

	ctrl := &fakeController{stopPath: "D:/obs/recordings/" + recordingName}
	finisher := NewFinisher(cfg, nil, logging.NewNop(), ctrl, nil)

	sub := &queue.Submission{ID: 4, Status: queue.StatusRecordStopping, ArtworkID: "easel-1700000000"}
	if err := finisher.Prepare(context.Background(), sub); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := finisher.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sub.RecordingFile != localPath {
		t.Fatalf("expected recording file %q, got %q", localPath, sub.RecordingFile)
	}
	if ctrl.stopCalls != 1 {
		t.Fatalf("expected one StopRecord, got %d", ctrl.stopCalls)
	}
}

func TestFinisherFailsWhenFileNeverAppears(t *testing.T) {
	cfg := testConfig(t)
	ctrl := &fakeController{stopPath: "D:/obs/recordings/missing.mkv"}
	finisher := NewFinisher(cfg, nil, logging.NewNop(), ctrl, nil)

	sub := &queue.Submission{ID: 5, Status: queue.StatusRecordStopping}
	if err := finisher.Execute(context.Background(), sub); err == nil {
		t.Fatal("expected error when the recording file never syncs")
	}
}

func TestWaitForStableFileSettles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grow.mkv")
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- waitForStableFile(context.Background(), path, 2*time.Second)
	}()

	time.Sleep(300 * time.Millisecond)
	if err := os.WriteFile(path, []byte("complete-recording"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("expected file to settle, got %v", err)
	}
}
