package painter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/painter"))
	if cli.binary != "/opt/painter" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestCLIDrawRequiresPrompt(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Draw(context.Background(), Request{ArtworkID: "easel-1", OutputDir: "/tmp"}, nil); err == nil {
		t.Fatal("expected error when prompt is empty")
	}
}

func TestCLIDrawRequiresArtworkID(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Draw(context.Background(), Request{Prompt: "a fox", OutputDir: "/tmp"}, nil); err == nil {
		t.Fatal("expected error when artwork id is empty")
	}
}

func TestCLIDrawIncludesSessionFlags(t *testing.T) {
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "PAINTER_HELPER_MODE=success")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	cli := NewCLI()
	req := Request{
		Prompt:    "a fox in watercolor",
		ArtworkID: "easel-1700000000",
		OutputDir: t.TempDir(),
		CDPURL:    "http://127.0.0.1:9222",
		CanvasURL: "http://127.0.0.1:3000/canvas",
	}
	if _, err := cli.Draw(context.Background(), req, nil); err != nil {
		t.Fatalf("Draw returned error: %v", err)
	}

	for _, flag := range []string{"--prompt", "--artwork-id", "--output-dir", "--cdp-url", "--canvas-url", "--progress-json"} {
		if findArg(capturedArgs, flag) == -1 {
			t.Fatalf("expected painter command to include %s, got %v", flag, capturedArgs)
		}
	}
	if idx := findArg(capturedArgs, "--cdp-url"); capturedArgs[idx+1] != req.CDPURL {
		t.Fatalf("expected cdp url %q, got %q", req.CDPURL, capturedArgs[idx+1])
	}
}

func TestCLIDrawSuccess(t *testing.T) {
	setHelperCommand(t, "success")

	cli := NewCLI()
	outputDir := t.TempDir()

	var updates []ProgressUpdate
	result, err := cli.Draw(context.Background(), Request{
		Prompt:    "a lighthouse at dusk",
		ArtworkID: "easel-1700000001",
		OutputDir: outputDir,
	}, func(update ProgressUpdate) {
		updates = append(updates, update)
	})
	if err != nil {
		t.Fatalf("Draw returned error: %v", err)
	}

	if result.ImagePath != filepath.Join(outputDir, "easel-1700000001.png") {
		t.Fatalf("unexpected image path %q", result.ImagePath)
	}
	if result.TranscriptPath != filepath.Join(outputDir, "easel-1700000001.transcript.json") {
		t.Fatalf("unexpected transcript path %q", result.TranscriptPath)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(updates))
	}
	if updates[len(updates)-1].Percent != 100 {
		t.Fatalf("expected final update to report 100 percent, got %f", updates[len(updates)-1].Percent)
	}
	if updates[1].Stage != "drawing" {
		t.Fatalf("expected drawing stage, got %q", updates[1].Stage)
	}
}

func TestCLIDrawFailure(t *testing.T) {
	setHelperCommand(t, "failure")

	cli := NewCLI()
	if _, err := cli.Draw(context.Background(), Request{
		Prompt:    "a fox",
		ArtworkID: "easel-1",
		OutputDir: t.TempDir(),
	}, nil); err == nil {
		t.Fatal("expected session failure error")
	}
}

func TestCLIDrawSkipsInvalidJSON(t *testing.T) {
	setHelperCommand(t, "badjson")

	cli := NewCLI()
	var updates []ProgressUpdate
	if _, err := cli.Draw(context.Background(), Request{
		Prompt:    "a fox",
		ArtworkID: "easel-2",
		OutputDir: t.TempDir(),
	}, func(update ProgressUpdate) {
		updates = append(updates, update)
	}); err != nil {
		t.Fatalf("Draw returned error: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 progress update from valid json, got %d", len(updates))
	}
	if updates[0].Stage != "drawing" {
		t.Fatalf("expected stage 'drawing', got %q", updates[0].Stage)
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("PAINTER_HELPER_MODE=%s", mode))
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

	switch os.Getenv("PAINTER_HELPER_MODE") {
	case "success":
		fmt.Println(`{"percent":0,"stage":"start","message":"opening canvas"}`)
		fmt.Println(`{"percent":50,"stage":"drawing","message":"stroke 40/80"}`)
		fmt.Println(`{"percent":100,"stage":"complete","message":"saved"}`)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "canvas unreachable")
		os.Exit(1)
	case "badjson":
		fmt.Println("not-json")
		fmt.Println(`{"percent":75,"stage":"drawing","message":"stroke 60/80"}`)
		os.Exit(0)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
