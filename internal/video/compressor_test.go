package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.RecordingsDir = filepath.Join(base, "recordings")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		// The helper receives the intended output path so a success run can
		// create the file the way ffmpeg would.
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode),
			fmt.Sprintf("FFMPEG_HELPER_OUTPUT=%s", args[len(args)-1]),
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		_ = os.WriteFile(os.Getenv("FFMPEG_HELPER_OUTPUT"), []byte("mp4-bytes"), 0o644)
		fmt.Fprintln(os.Stderr, "frame= 100 fps=60 time=00:00:10.00")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "Unknown encoder 'libx264'")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func writeRecording(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.RecordingsDir, name)
	if err := os.WriteFile(path, []byte("raw-recording"), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

func TestExecuteCompressesAndDeletesSource(t *testing.T) {
	cfg := testConfig(t)
	setHelperCommand(t, "success")

	source := writeRecording(t, cfg, "easel-100.mkv")
	c := NewCompressor(cfg, nil, logging.NewNop())
	sub := &queue.Submission{ID: 11, ArtworkID: "easel-100", RecordingFile: source}

	if err := c.Prepare(context.Background(), sub); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := c.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}

	expected := filepath.Join(cfg.Paths.StagingDir, "submission-11", "easel-100.mp4")
	if sub.CompressedFile != expected {
		t.Fatalf("expected compressed file %q, got %q", expected, sub.CompressedFile)
	}
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("compressed file missing: %v", err)
	}
	if _, err := os.Stat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected raw recording deleted, stat err=%v", err)
	}
	if sub.RecordingFile != "" {
		t.Fatalf("expected recording file cleared, got %q", sub.RecordingFile)
	}
}

func TestExecuteSkipsWithoutRecording(t *testing.T) {
	cfg := testConfig(t)
	c := NewCompressor(cfg, nil, logging.NewNop())
	sub := &queue.Submission{ID: 12, ArtworkID: "easel-101"}

	if err := c.Execute(context.Background(), sub); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sub.CompressedFile != "" {
		t.Fatalf("expected no compressed file, got %q", sub.CompressedFile)
	}
}

func TestExecuteWrapsFfmpegFailure(t *testing.T) {
	cfg := testConfig(t)
	setHelperCommand(t, "failure")

	source := writeRecording(t, cfg, "easel-102.mkv")
	c := NewCompressor(cfg, nil, logging.NewNop())
	sub := &queue.Submission{ID: 13, ArtworkID: "easel-102", RecordingFile: source}

	err := c.Execute(context.Background(), sub)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, statErr := os.Stat(source); statErr != nil {
		t.Fatalf("source must survive a failed compression, stat err=%v", statErr)
	}
}

func TestExecuteFailsWhenInputMissing(t *testing.T) {
	cfg := testConfig(t)
	c := NewCompressor(cfg, nil, logging.NewNop())
	sub := &queue.Submission{ID: 14, RecordingFile: "/nonexistent/easel.mkv"}

	err := c.Execute(context.Background(), sub)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFfmpegArgsReflectConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Video.CRF = 23
	cfg.Video.Preset = "fast"
	cfg.Video.Tune = "film"
	cfg.Video.AudioBitrate = "96k"

	c := NewCompressor(cfg, nil, logging.NewNop())
	args := c.ffmpegArgs("in.mkv", "out.mp4")

	join := func(flag string) string {
		for i, arg := range args {
			if arg == flag && i+1 < len(args) {
				return args[i+1]
			}
		}
		return ""
	}
	if join("-crf") != "23" || join("-preset") != "fast" || join("-tune") != "film" || join("-b:a") != "96k" {
		t.Fatalf("unexpected args %v", args)
	}
	if join("-c:v") != "libx264" || join("-c:a") != "aac" {
		t.Fatalf("unexpected codec args %v", args)
	}
}
